// Package collectortest has the fakes used to exercise collectors without a real bank.
package collectortest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bankstatements/internal/collector"
	"bankstatements/internal/components/telemetry"
)

// Sleep records every delay instead of blocking.
type Sleep struct {
	mutex  sync.Mutex
	onCall func()
	calls  []time.Duration
}

func (s *Sleep) Sleep(d time.Duration) {
	s.mutex.Lock()
	s.calls = append(s.calls, d)
	onCall := s.onCall
	s.mutex.Unlock()
	if onCall != nil {
		onCall()
	}
}

// OnSleep registers a callback that runs on every Sleep call.
func (s *Sleep) OnSleep(fn func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onCall = fn
}

func (s *Sleep) Calls() []time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]time.Duration, len(s.calls))
	copy(out, s.calls)
	return out
}

// Event is either a request received by a Bank or a delay ("sleep").
type Event struct {
	Method  string
	Path    string
	Query   url.Values
	Form    url.Values
	Headers http.Header
	Cookies []*http.Cookie
}

// Bank is a fake bank website.
type Bank struct {
	*httptest.Server

	mutex    sync.Mutex
	events   []Event
	handlers map[string]http.HandlerFunc
}

// NewBank starts a fake bank, `routes` maps "<METHOD> <path>" to a handler.
func NewBank(t testing.TB, routes map[string]http.HandlerFunc) *Bank {
	b := &Bank{handlers: routes}
	b.Server = httptest.NewTLSServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Bank) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))

	b.mutex.Lock()
	b.events = append(b.events, Event{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Form:    form,
		Headers: r.Header.Clone(),
		Cookies: r.Cookies(),
	})
	handler, ok := b.handlers[r.Method+" "+r.URL.Path]
	b.mutex.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

// MarkSleep records a delay in the same log as requests, it is meant to be passed to Sleep.OnSleep.
func (b *Bank) MarkSleep() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.events = append(b.events, Event{Method: "SLEEP"})
}

func (b *Bank) Events() []Event {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Requests returns the received requests without the recorded delays.
func (b *Bank) Requests() []Event {
	var out []Event
	for _, e := range b.Events() {
		if e.Method != "SLEEP" {
			out = append(out, e)
		}
	}
	return out
}

// Trace renders the event log as "<METHOD> <path>" lines, delays are "SLEEP".
func (b *Bank) Trace() []string {
	var out []string
	for _, e := range b.Events() {
		if e.Method == "SLEEP" {
			out = append(out, "SLEEP")
			continue
		}
		out = append(out, e.Method+" "+e.Path)
	}
	return out
}

// Page serves a file from the testdata directory.
func Page(t testing.TB, name string) http.HandlerFunc {
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(contents)
	}
}

// WithCookie wraps a handler so it also sets a cookie.
func WithCookie(name, value string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: name, Value: value, Path: "/"})
		next(w, r)
	}
}

// Status responds with a bare status code.
func Status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		w.Write([]byte(strings.ToLower(http.StatusText(code))))
	}
}

// Options returns session options suitable for tests.
func Options() collector.Options {
	return collector.Options{
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/55.0.2883.87 Safari/537.36",
		IPAddress:    "18.96.236.10",
		RequestDelay: 2 * time.Second,
		Timeout:      5 * time.Second,
	}
}

// Deps returns session dependencies that record delays and reports.
func Deps() (collector.Deps, *Sleep, *telemetry.Recorder) {
	sleep := &Sleep{}
	rec := &telemetry.Recorder{}
	return collector.Deps{Sleep: sleep, Tel: rec}, sleep, rec
}
