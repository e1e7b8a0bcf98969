package collector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"bankstatements/internal/components/assert"
	"bankstatements/internal/components/chrono"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/statestore"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const (
	report_session_debug_output = "session.debug-output"
	report_session_restore      = "session.restore-state"
)

// Options configures how a Session talks to a bank.
type Options struct {
	UserAgent    string
	IPAddress    string
	RequestDelay time.Duration
	Timeout      time.Duration
	// DebugOutput is a directory every raw http message is dumped to, empty disables it.
	DebugOutput      string
	CloudflareBypass bool
}

func (o Options) validate() error {
	if o.UserAgent == "" {
		return configurationError("no user agent defined")
	}
	if o.IPAddress == "" {
		return configurationError("no ip address defined")
	}
	return nil
}

type Deps struct {
	Sleep chrono.SleepAPI
	Tel   telemetry.API
}

// StateHook lets a collector keep extra values across a suspended session.
type StateHook interface {
	ImportantState() map[string]string
	SetImportantState(state map[string]string)
}

// Session is the http session of a single collector against a single bank, it owns the
// cookie jar and remembers where the previous request ended up.
type Session struct {
	name  string
	opts  Options
	sleep chrono.SleepAPI
	tel   telemetry.API
	hook  StateHook

	client *resty.Client
	jar    *RecordingJar

	landed       bool
	loggedIn     bool
	loginUri     string
	effectiveUri string
}

func NewSession(name string, opts Options, deps Deps) (*Session, error) {
	assert.NotEmptyStr(name)
	assert.NotNil(deps.Sleep)
	assert.NotNil(deps.Tel)

	err := opts.validate()
	if err != nil {
		return nil, err
	}
	return &Session{
		name:  name,
		opts:  opts,
		sleep: deps.Sleep,
		tel:   deps.Tel,
	}, nil
}

func (s *Session) SetStateHook(hook StateHook) {
	s.hook = hook
}

func (s *Session) Options() Options {
	return s.opts
}

func (s *Session) newTransport() http.RoundTripper {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if !s.opts.CloudflareBypass {
		return transport
	}
	rt := cloudflarebp.AddCloudFlareByPass(transport)
	// the bypass swaps out the tls config of the transport it wraps
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = true
	return rt
}

func (s *Session) http(baseUri string) (*resty.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	jar := s.jar
	if jar == nil {
		var err error
		jar, err = NewRecordingJar()
		if err != nil {
			return nil, err
		}
	}

	client := resty.New()
	client.SetTransport(s.newTransport())
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", s.opts.UserAgent)
	client.SetHeader("X-Forwarded-For", s.opts.IPAddress)
	if s.opts.Timeout > 0 {
		client.SetTimeout(s.opts.Timeout)
	}
	parsed, err := url.Parse(baseUri)
	if err == nil && parsed.Hostname() != "" {
		client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsed.Hostname()))
	}

	var output telemetry.InstrumentOutput
	if s.opts.DebugOutput != "" {
		fsOutput, err := telemetry.NewFilesystemOutput(filepath.Join(s.opts.DebugOutput, s.name))
		if err != nil {
			s.tel.ReportWarning(report_session_debug_output, err)
		} else {
			output = fsOutput
		}
	}
	telemetry.InstrumentResty(client, s.tel, output)

	s.client = client
	s.jar = jar
	return client, nil
}

// Delay blocks for the configured request delay.
func (s *Session) Delay() {
	s.sleep.Sleep(s.opts.RequestDelay)
}

// Request is a single request made through a Session.
type Request struct {
	Method  string
	Url     string
	Referer string
	// Form is sent as an urlencoded body if it is not nil.
	Form map[string]string
}

type Response struct {
	Status int
	Body   string
	// EffectiveUri is the url the request ended up at after following redirects.
	EffectiveUri string
}

// Do performs a request, statuses >= 400 and network failures are returned as *TransportError.
func (s *Session) Do(ctx context.Context, req Request) (Response, error) {
	client, err := s.http(req.Url)
	if err != nil {
		return Response{}, &TransportError{Method: req.Method, URL: req.Url, Err: err}
	}

	r := client.R().SetContext(ctx)
	if req.Referer != "" {
		r.SetHeader("Referer", req.Referer)
	}
	if req.Form != nil {
		r.SetFormData(req.Form)
	}

	res, err := r.Execute(req.Method, req.Url)
	if err != nil {
		return Response{}, &TransportError{Method: req.Method, URL: req.Url, Err: err}
	}

	effective := req.Url
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		effective = res.RawResponse.Request.URL.String()
	}
	s.effectiveUri = effective

	if res.StatusCode() >= 400 {
		return Response{}, &TransportError{
			Method: req.Method,
			URL:    req.Url,
			Status: res.StatusCode(),
			Body:   res.String(),
			Err:    fmt.Errorf("unexpected status %s", res.Status()),
		}
	}

	return Response{
		Status:       res.StatusCode(),
		Body:         res.String(),
		EffectiveUri: effective,
	}, nil
}

func (s *Session) Landed() bool {
	return s.landed
}

func (s *Session) SetLanded(landed bool) {
	s.landed = landed
}

func (s *Session) LoggedIn() bool {
	return s.loggedIn
}

func (s *Session) SetLoggedIn(loggedIn bool) {
	s.loggedIn = loggedIn
}

func (s *Session) LoginUri() string {
	return s.loginUri
}

func (s *Session) SetLoginUri(uri string) {
	s.loginUri = uri
}

func (s *Session) EffectiveUri() string {
	return s.effectiveUri
}

// Cookies returns a snapshot of the cookie jar.
func (s *Session) Cookies() []statestore.SavedCookie {
	if s.jar == nil {
		return nil
	}
	return s.jar.Snapshot()
}

type stateData struct {
	Landed       bool              `json:"landed"`
	LoginUri     string            `json:"login_uri"`
	EffectiveUri string            `json:"effective_uri"`
	Important    map[string]string `json:"important"`
}

func wrapStoreError(err error) error {
	if errors.Is(err, statestore.ErrNoStoragePath) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return err
}

// SaveState writes the cookie jar and the session state into store under id.
func (s *Session) SaveState(store statestore.FileStore, id string) (bool, error) {
	if store.Path() == "" {
		return false, wrapStoreError(statestore.ErrNoStoragePath)
	}

	important := map[string]string{}
	if s.hook != nil {
		important = s.hook.ImportantState()
	}
	data, err := json.Marshal(stateData{
		Landed:       s.landed,
		LoginUri:     s.loginUri,
		EffectiveUri: s.effectiveUri,
		Important:    important,
	})
	if err != nil {
		return false, err
	}

	err = store.SaveCookies(id, s.Cookies())
	if err != nil {
		return false, wrapStoreError(err)
	}
	err = store.SaveData(id, data)
	if err != nil {
		return false, wrapStoreError(err)
	}
	return true, nil
}

// RestoreState loads what SaveState wrote, it returns false without an error if nothing was
// saved under id. When removeAfter is true both artifacts are deleted after a restore.
func (s *Session) RestoreState(store statestore.FileStore, id string, removeAfter bool) (bool, error) {
	if store.Path() == "" {
		return false, wrapStoreError(statestore.ErrNoStoragePath)
	}

	cookies, ok, err := store.LoadCookies(id)
	if err != nil {
		return false, wrapStoreError(err)
	}
	if !ok {
		return false, nil
	}

	if s.jar == nil {
		s.jar, err = NewRecordingJar()
		if err != nil {
			return false, err
		}
	}
	s.jar.Restore(cookies)

	raw, ok, err := store.LoadData(id)
	if err != nil {
		return false, wrapStoreError(err)
	}
	if ok && len(raw) > 0 {
		var data stateData
		err = json.Unmarshal(raw, &data)
		if err != nil {
			s.tel.ReportWarning(report_session_restore, fmt.Errorf("decode state data: %w", err))
		} else {
			s.landed = data.Landed
			s.loginUri = data.LoginUri
			s.effectiveUri = data.EffectiveUri
			if s.hook != nil {
				important := data.Important
				if important == nil {
					important = map[string]string{}
				}
				s.hook.SetImportantState(important)
			}
		}
	}

	if removeAfter {
		err = store.Remove(id)
		if err != nil {
			return true, err
		}
	}
	return true, nil
}
