package collector

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"bankstatements/internal/statestore"
)

type cookieKey struct {
	domain string
	path   string
	name   string
}

// RecordingJar is a cookiejar.Jar that remembers the full attributes of every cookie it
// was given so the jar can be written to disk and rebuilt later.
type RecordingJar struct {
	inner   *cookiejar.Jar
	mutex   sync.Mutex
	cookies map[cookieKey]statestore.SavedCookie
}

func NewRecordingJar() (*RecordingJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &RecordingJar{
		inner:   inner,
		cookies: map[cookieKey]statestore.SavedCookie{},
	}, nil
}

func (j *RecordingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *RecordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mutex.Lock()
	defer j.mutex.Unlock()

	now := time.Now()
	for _, c := range cookies {
		saved := statestore.SavedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.TrimPrefix(c.Domain, "."),
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if saved.Domain == "" {
			saved.Domain = u.Hostname()
			saved.HostOnly = true
		}
		if saved.Path == "" || !strings.HasPrefix(saved.Path, "/") {
			saved.Path = "/"
		}
		switch {
		case c.MaxAge > 0:
			saved.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			saved.Expires = c.Expires
		}

		key := cookieKey{domain: saved.Domain, path: saved.Path, name: saved.Name}
		expired := c.MaxAge < 0 || (!saved.Expires.IsZero() && !saved.Expires.After(now))
		if expired {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = saved
	}
}

// Snapshot returns every live cookie the jar has recorded, sorted by domain, path and name.
func (j *RecordingJar) Snapshot() []statestore.SavedCookie {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	now := time.Now()
	out := make([]statestore.SavedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Domain != out[b].Domain {
			return out[a].Domain < out[b].Domain
		}
		if out[a].Path != out[b].Path {
			return out[a].Path < out[b].Path
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// Restore installs previously saved cookies into the jar.
func (j *RecordingJar) Restore(cookies []statestore.SavedCookie) {
	for _, c := range cookies {
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		u := &url.URL{Scheme: scheme, Host: c.Domain, Path: c.Path}

		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if !c.HostOnly {
			cookie.Domain = c.Domain
		}
		j.SetCookies(u, []*http.Cookie{cookie})
	}
}
