package credential

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/JonMunkholm/LeadSync/internal/storage"
	"golang.org/x/net/publicsuffix"
)

const cookiesKey = "session/cookies"

// SessionJar is an http.CookieJar that carries the ambient session cookie
// used by the refresh endpoint, persisted best-effort through a Mirror so a
// new process can still refresh.
type SessionJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	saved  map[string]map[string]string // request URL -> cookie name -> value
	mirror Mirror
	logger *slog.Logger
}

// NewSessionJar builds a jar and restores any cookies held by the mirror.
func NewSessionJar(mirror Mirror, logger *slog.Logger) (*SessionJar, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	j := &SessionJar{
		jar:    jar,
		saved:  make(map[string]map[string]string),
		mirror: mirror,
		logger: logger,
	}
	j.restore()
	return j, nil
}

func newCookieJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// SetCookies implements http.CookieJar.
func (j *SessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	key := jarKey(u)
	current := make(map[string]string)
	for _, c := range j.jar.Cookies(u) {
		current[c.Name] = c.Value
	}
	if len(current) == 0 {
		delete(j.saved, key)
	} else {
		j.saved[key] = current
	}
	j.persistLocked()
}

// Cookies implements http.CookieJar.
func (j *SessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// HasSession reports whether any cookie is held, in memory or restored from
// the mirror.
func (j *SessionJar) HasSession() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.saved) > 0
}

// Clear drops every cookie, in memory and in the mirror.
func (j *SessionJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if jar, err := newCookieJar(); err == nil {
		j.jar = jar
	}
	j.saved = make(map[string]map[string]string)

	if j.mirror == nil {
		return
	}
	if err := j.mirror.Delete(cookiesKey); err != nil {
		j.logger.Debug("session mirror delete failed", "error", err)
	}
}

func (j *SessionJar) persistLocked() {
	if j.mirror == nil {
		return
	}
	b, err := json.Marshal(j.saved)
	if err != nil {
		j.logger.Debug("session encode failed", "error", err)
		return
	}
	if err := j.mirror.Put(cookiesKey, b); err != nil {
		j.logger.Debug("session mirror write failed", "error", err)
	}
}

func (j *SessionJar) restore() {
	if j.mirror == nil {
		return
	}
	b, err := j.mirror.Get(cookiesKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			j.logger.Debug("session mirror read failed", "error", err)
		}
		return
	}
	var saved map[string]map[string]string
	if err := json.Unmarshal(b, &saved); err != nil {
		j.logger.Debug("session mirror decode failed", "error", err)
		return
	}
	for raw, values := range saved {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		cookies := make([]*http.Cookie, 0, len(values))
		for name, value := range values {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value})
		}
		j.jar.SetCookies(u, cookies)
		j.saved[raw] = values
	}
}

// jarKey identifies the URL a cookie set was received on. Restoring under the
// same URL reproduces the cookie's default domain and path.
func jarKey(u *url.URL) string {
	k := *u
	k.RawQuery = ""
	k.Fragment = ""
	return k.String()
}
