// Package mandiri collects statements from the Mandiri retail internet banking site.
package mandiri

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/assert"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/htmlutil"

	"github.com/antzucaro/matchr"
)

const Name = "mandiri"

const (
	report_mandiri_logout  = "mandiri.logout"
	report_mandiri_account = "mandiri.find-account"
)

// minimum JaroWinkler similarity for an account label to match the configured hint
const hintThreshold = 0.85

type Collector struct {
	collector.Settings
	session *collector.Session
	tel     telemetry.API

	accountIndex int
	accountHint  string
	// the account id (the value of the <option>) picked on the last Collect
	fromAccountID string
}

func New(session *collector.Session, tel telemetry.API) *Collector {
	assert.NotNil(session)
	assert.NotNil(tel)
	return &Collector{
		session:      session,
		tel:          tel,
		accountIndex: 1,
	}
}

// Factory creates collectors that each get their own session, accountIndex and
// accountHint are applied to every collector (zero values leave the defaults).
func Factory(opts collector.Options, deps collector.Deps, accountIndex int, accountHint string) collector.Factory {
	return func() (collector.Collector, error) {
		session, err := collector.NewSession(Name, opts, deps)
		if err != nil {
			return nil, err
		}
		c := New(session, telemetry.NewScopedAPI(Name, deps.Tel))
		if accountIndex > 0 {
			c.SetAccountIdIndex(accountIndex)
		}
		c.SetAccountHint(accountHint)
		return c, nil
	}
}

func (c *Collector) Name() string {
	return Name
}

// SetAccountIdIndex picks the n-th account (starting at 1) of the account selection.
func (c *Collector) SetAccountIdIndex(index int) {
	c.accountIndex = index
}

// SetAccountHint picks the account whose label is most similar to hint, it takes
// precedence over the account index when not empty.
func (c *Collector) SetAccountHint(hint string) {
	c.accountHint = hint
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
	if res.Status == http.StatusOK {
		c.session.SetLanded(true)
	}
	return res.Status, nil
}

func (c *Collector) Login(ctx context.Context) (int, error) {
	if !c.session.Landed() {
		return 0, collector.Precondition("use Landing() first")
	}
	err := c.CheckCredential()
	if err != nil {
		return 0, err
	}

	c.session.Delay()

	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodPost,
		Url:     c.BaseUri + "/retail/Login.do",
		Referer: c.session.EffectiveUri(),
		Form: map[string]string{
			"action":   "result",
			"userID":   c.UserID,
			"password": c.Password,
			"image.x":  "0",
			"image.y":  "0",
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
	if doc.Find(`input[name="userID"]`).Length() > 0 {
		return res.Status, fmt.Errorf(
			"%w: maybe you already logged in previously while not yet logged out",
			collector.ErrLoginFailure,
		)
	}
	c.session.SetLoggedIn(true)

	return res.Status, nil
}

func (c *Collector) abort(ctx context.Context, err error) error {
	_, logoutErr := c.Logout(ctx)
	if logoutErr != nil {
		c.tel.ReportWarning(report_mandiri_logout, logoutErr)
	}
	return err
}

func (c *Collector) open(ctx context.Context, url, referer string) (collector.Response, error) {
	c.session.Delay()
	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodGet,
		Url:     url,
		Referer: referer,
	})
	if err != nil {
		return res, err
	}
	if res.Status != http.StatusOK {
		return res, fmt.Errorf("status %d", res.Status)
	}
	return res, nil
}

func (c *Collector) Collect(ctx context.Context, start, end time.Time) ([]collector.Entity, error) {
	if !c.session.LoggedIn() {
		return nil, collector.Precondition("use Login() first")
	}

	_, err := c.open(ctx, c.BaseUri+"/retail/common/menu.jsp", c.BaseUri+"/retail/Redirect.do?action=forward")
	if err != nil {
		return nil, c.abort(ctx, fmt.Errorf("unable to open the menu: %w", err))
	}

	form, err := c.open(ctx, c.BaseUri+"/retail/TrxHistoryInq.do?action=form", c.session.EffectiveUri())
	if err != nil {
		return nil, c.abort(ctx, fmt.Errorf("unable to open the account statement form: %w", err))
	}

	accounts := findAccounts(form.Body)
	account, ok := c.pickAccount(accounts)
	if !ok {
		return nil, c.abort(ctx, collector.ParsingError(
			"unable to find the required account id among %d accounts", len(accounts),
		))
	}
	c.fromAccountID = account.ID

	c.session.Delay()

	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodPost,
		Url:     c.BaseUri + "/retail/TrxHistoryInq.do",
		Referer: c.session.EffectiveUri(),
		Form: map[string]string{
			"action":        "result",
			"fromAccountID": account.ID,
			"searchType":    "R",
			"fromDay":       strconv.Itoa(start.Day()),
			"fromMonth":     strconv.Itoa(int(start.Month())),
			"fromYear":      strconv.Itoa(start.Year()),
			"toDay":         strconv.Itoa(end.Day()),
			"toMonth":       strconv.Itoa(int(end.Month())),
			"toYear":        strconv.Itoa(end.Year()),
			"sortType":      "Date",
			"orderBy":       "ASC",
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
	entities, err := extractStatements(doc, c.Params, c.tel)
	if err != nil {
		return nil, err
	}

	// the table is oldest first
	for i, j := 0, len(entities)-1; i < j; i, j = i+1, j-1 {
		entities[i], entities[j] = entities[j], entities[i]
	}
	return entities, nil
}

func (c *Collector) Logout(ctx context.Context) (int, error) {
	if !c.session.LoggedIn() {
		return 0, nil
	}
	defer c.session.SetLoggedIn(false)

	res, err := c.session.Do(ctx, collector.Request{
		Method:  http.MethodGet,
		Url:     c.BaseUri + "/retail/Logout.do?action=result",
		Referer: c.BaseUri + "/retail/common/banner.jsp",
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

// FromAccountID is the bank's id of the account picked on the last Collect.
func (c *Collector) FromAccountID() string {
	return c.fromAccountID
}

type account struct {
	ID    string
	Label string
}

var accountOption = regexp.MustCompile(`<option\svalue="([0-9]+)">([\w\s\-\_\.\,]+)</option>`)

func findAccounts(body string) []account {
	var accounts []account
	for _, match := range accountOption.FindAllStringSubmatch(htmlutil.StripScripts(body), -1) {
		accounts = append(accounts, account{
			ID:    match[1],
			Label: strings.TrimSpace(match[2]),
		})
	}
	return accounts
}

// similarity compares hint with the whole label and with each " - " separated part of it,
// labels look like "<account number> - <product name>".
func similarity(label, hint string) float64 {
	label = strings.ToUpper(label)
	hint = strings.ToUpper(strings.TrimSpace(hint))

	best := matchr.JaroWinkler(label, hint, false)
	for _, part := range strings.Split(label, "-") {
		score := matchr.JaroWinkler(strings.TrimSpace(part), hint, false)
		if score > best {
			best = score
		}
	}
	return best
}

func (c *Collector) pickAccount(accounts []account) (account, bool) {
	if strings.TrimSpace(c.accountHint) == "" {
		if c.accountIndex < 1 || c.accountIndex > len(accounts) {
			return account{}, false
		}
		return accounts[c.accountIndex-1], true
	}

	var picked account
	best := 0.0
	for _, a := range accounts {
		score := similarity(a.Label, c.accountHint)
		if score > best {
			best = score
			picked = a
		}
	}
	if best < hintThreshold {
		c.tel.ReportWarning(
			report_mandiri_account,
			fmt.Errorf("no account label matches '%s'", c.accountHint),
			"best", best,
		)
		return account{}, false
	}
	return picked, true
}
