// Package bca collects statements from the KlikBCA internet banking site.
package bca

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/assert"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/htmlutil"
)

const Name = "bca"

const (
	report_bca_logout = "bca.logout"
)

// Collector implements collector.Collector for KlikBCA.
type Collector struct {
	collector.Settings
	session *collector.Session
	tel     telemetry.API
}

func New(session *collector.Session, tel telemetry.API) *Collector {
	assert.NotNil(session)
	assert.NotNil(tel)
	return &Collector{
		session: session,
		tel:     tel,
	}
}

// Factory creates collectors that each get their own session.
func Factory(opts collector.Options, deps collector.Deps) collector.Factory {
	return func() (collector.Collector, error) {
		session, err := collector.NewSession(Name, opts, deps)
		if err != nil {
			return nil, err
		}
		return New(session, telemetry.NewScopedAPI(Name, deps.Tel)), nil
	}
}

func (c *Collector) Name() string {
	return Name
}

func (c *Collector) Landing(ctx context.Context) (int, error) {
	err := c.CheckBaseUri()
	if err != nil {
		return 0, err
	}

	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodGet,
		Url:     c.BaseUri,
		Referer: c.BaseUri,
	})
	if err != nil {
		return 0, fmt.Errorf("landing: %w", err)
	}
	if res.Status != http.StatusOK {
		return res.Status, nil
	}

	doc, err := htmlutil.Parse(ctx, res.Body)
	if err != nil {
		return res.Status, fmt.Errorf("landing: %w", err)
	}
	action, ok := doc.Find(`form[name="iBankForm"]`).First().Attr("action")
	if ok {
		c.session.SetLoginUri(c.BaseUri + "/" + strings.TrimLeft(action, "/"))
	}
	c.session.SetLanded(true)

	return res.Status, nil
}

func (c *Collector) Login(ctx context.Context) (int, error) {
	if !c.session.Landed() {
		return 0, collector.Precondition("use Landing() first")
	}
	if c.session.LoginUri() == "" {
		return 0, collector.Precondition("no login uri defined")
	}
	err := c.CheckCredential()
	if err != nil {
		return 0, err
	}

	c.session.Delay()

	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodPost,
		Url:     c.session.LoginUri(),
		Referer: c.session.EffectiveUri(),
		Form: map[string]string{
			"value(actions)":      "login",
			"value(user_id)":      c.UserID,
			"value(user_ip)":      c.session.Options().IPAddress,
			"value(browser_info)": c.session.Options().UserAgent,
			"value(mobile)":       "false",
			"value(pswd)":         c.Password,
			"value(Submit)":       "LOGIN",
		},
	})
	if err != nil {
		return 0, fmt.Errorf("login: %w", err)
	}
	if res.Status != http.StatusOK {
		return res.Status, nil
	}

	doc, err := htmlutil.Parse(ctx, res.Body)
	if err != nil {
		return res.Status, fmt.Errorf("login: %w", err)
	}
	// the login form is shown again when the login did not go through
	if doc.Find(`input[name="value(Submit)"]`).Length() > 0 {
		return res.Status, fmt.Errorf(
			"%w: maybe you already logged in previously while not yet logged out",
			collector.ErrLoginFailure,
		)
	}
	c.session.SetLoggedIn(true)

	return res.Status, nil
}

// navigation is the sequence of pages a browser goes through before it can ask
// for the account statement.
var navigation = []struct {
	method string
	path   string
}{
	{http.MethodGet, "/nav_bar/menu_bar.htm"},
	{http.MethodGet, "/nav_bar/account_information_menu.htm"},
	{http.MethodPost, "/accountstmt.do?value(actions)=acct_stmt"},
}

func (c *Collector) abort(ctx context.Context, err error) error {
	_, logoutErr := c.Logout(ctx)
	if logoutErr != nil {
		c.tel.ReportWarning(report_bca_logout, logoutErr)
	}
	return err
}

// Collect retrieves the statements between start and end, the bank can only show a single
// month at a time so both have to be in the same month.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) ([]collector.Entity, error) {
	if !c.session.LoggedIn() {
		return nil, collector.Precondition("use Login() first")
	}
	if start.Month() != end.Month() || start.Year() != end.Year() {
		return nil, c.abort(ctx, fmt.Errorf(
			"%w: unable to collect in different month / year",
			collector.ErrConfiguration,
		))
	}

	for _, step := range navigation {
		c.session.Delay()
		res, err := c.session.Do(ctx, collector.Request{
			Method:  step.method,
			Url:     c.BaseUri + step.path,
			Referer: c.session.EffectiveUri(),
		})
		if err != nil {
			return nil, c.abort(ctx, fmt.Errorf("unable to open %s: %w", step.path, err))
		}
		if res.Status != http.StatusOK {
			return nil, c.abort(ctx, fmt.Errorf("unable to open %s: status %d", step.path, res.Status))
		}
	}

	c.session.Delay()

	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodPost,
		Url:     c.BaseUri + "/accountstmt.do?value(actions)=acctstmtview",
		Referer: c.session.EffectiveUri(),
		Form: map[string]string{
			"value(D1)":      "0",
			"value(r1)":      "1",
			"value(startDt)": strconv.Itoa(start.Day()),
			"value(startMt)": strconv.Itoa(int(start.Month())),
			"value(startYr)": strconv.Itoa(start.Year()),
			"value(endDt)":   strconv.Itoa(end.Day()),
			"value(endMt)":   strconv.Itoa(int(end.Month())),
			"value(endYr)":   strconv.Itoa(end.Year()),
			"value(fDt)":     "",
			"value(tDt)":     "",
			"value(submit1)": "View Account Statement",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if res.Status != http.StatusOK {
		return nil, nil
	}

	doc, err := htmlutil.Parse(ctx, res.Body)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	return extractStatements(doc, start, c.Params, c.tel)
}

func (c *Collector) Logout(ctx context.Context) (int, error) {
	if !c.session.LoggedIn() {
		return 0, nil
	}
	defer c.session.SetLoggedIn(false)

	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodGet,
		Url:     c.BaseUri + "/authentication.do?value(actions)=logout",
		Referer: c.BaseUri + "/top.htm",
	})
	if err != nil {
		return 0, fmt.Errorf("logout: %w", err)
	}
	return res.Status, nil
}

func (c *Collector) SaveState(id string) (bool, error) {
	return c.session.SaveState(c.Store(), id)
}

func (c *Collector) RestoreState(id string, removeAfter bool) (bool, error) {
	return c.session.RestoreState(c.Store(), id, removeAfter)
}
