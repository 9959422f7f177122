package credential

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/JonMunkholm/LeadSync/internal/storage"
)

// mapMirror is an in-memory Mirror whose writes can be made to fail.
type mapMirror struct {
	mu      sync.Mutex
	data    map[string][]byte
	failPut bool
	failDel bool
	failGet bool
}

func newMapMirror() *mapMirror {
	return &mapMirror{data: make(map[string][]byte)}
}

func (m *mapMirror) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("storage disabled")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *mapMirror) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("quota exceeded")
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mapMirror) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel {
		return errors.New("storage disabled")
	}
	delete(m.data, key)
	return nil
}

func assertToken(t *testing.T, s Store, want string) {
	t.Helper()
	if got := s.Get(); got != want {
		t.Errorf("Get() = %q, want %q", got, want)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("")
	assertToken(t, s, "")

	s.Set("abc")
	assertToken(t, s, "abc")

	s.Clear()
	assertToken(t, s, "")
}

func TestMirroredStore_WritesThrough(t *testing.T) {
	mirror := newMapMirror()
	s := NewMirroredStore(mirror, nil)

	s.Set("token-1")
	assertToken(t, s, "token-1")
	if got := string(mirror.data[accessKey]); got != "token-1" {
		t.Errorf("mirror holds %q, want token-1", got)
	}

	s.Clear()
	assertToken(t, s, "")
	if _, ok := mirror.data[accessKey]; ok {
		t.Error("mirror still holds the token after Clear")
	}
}

func TestMirroredStore_SurvivesReload(t *testing.T) {
	mirror := newMapMirror()
	NewMirroredStore(mirror, nil).Set("persisted")

	assertToken(t, NewMirroredStore(mirror, nil), "persisted")
}

func TestMirroredStore_MirrorFailuresAreSwallowed(t *testing.T) {
	mirror := newMapMirror()
	mirror.failPut = true
	mirror.failDel = true

	s := NewMirroredStore(mirror, nil)
	s.Set("in-memory-wins")
	assertToken(t, s, "in-memory-wins")

	s.Clear()
	assertToken(t, s, "")
}

func TestMirroredStore_UnreadableMirrorAtStartup(t *testing.T) {
	mirror := newMapMirror()
	mirror.failGet = true

	s := NewMirroredStore(mirror, nil)
	assertToken(t, s, "")

	s.Set("fresh")
	assertToken(t, s, "fresh")
}

func TestMirroredStore_NilMirror(t *testing.T) {
	s := NewMirroredStore(nil, nil)
	s.Set("x")
	assertToken(t, s, "x")
	s.Set("")
	assertToken(t, s, "")
}

func newJar(t *testing.T, mirror Mirror) *SessionJar {
	t.Helper()
	jar, err := NewSessionJar(mirror, nil)
	if err != nil {
		t.Fatalf("NewSessionJar: %v", err)
	}
	return jar
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u
}

func TestSessionJar_PersistsAndRestores(t *testing.T) {
	mirror := newMapMirror()
	login := mustURL(t, "http://crm.example.com/api/auth/login")
	refresh := mustURL(t, "http://crm.example.com/api/auth/refresh")

	jar := newJar(t, mirror)
	if jar.HasSession() {
		t.Error("new jar reports a session")
	}
	jar.SetCookies(login, []*http.Cookie{{Name: "session", Value: "s-1", Path: "/api/auth", HttpOnly: true}})
	if n := len(jar.Cookies(refresh)); n != 1 {
		t.Fatalf("got %d cookies for refresh, want 1", n)
	}

	restored := newJar(t, mirror)
	if !restored.HasSession() {
		t.Error("restored jar reports no session")
	}
	cookies := restored.Cookies(refresh)
	if len(cookies) != 1 {
		t.Fatalf("got %d restored cookies, want 1", len(cookies))
	}
	if cookies[0].Name != "session" || cookies[0].Value != "s-1" {
		t.Errorf("restored cookie = %s=%s", cookies[0].Name, cookies[0].Value)
	}

	restored.Clear()
	if len(restored.Cookies(refresh)) != 0 || restored.HasSession() {
		t.Error("Clear kept cookies")
	}
	again := newJar(t, mirror)
	if len(again.Cookies(refresh)) != 0 || again.HasSession() {
		t.Error("cleared cookies came back from the mirror")
	}
}

func TestSessionJar_ExpiredCookieRemovedFromMirror(t *testing.T) {
	mirror := newMapMirror()
	u := mustURL(t, "http://crm.example.com/api/auth/logout")

	jar := newJar(t, mirror)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "s-1", Path: "/api/auth"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "", Path: "/api/auth", MaxAge: -1}})
	if jar.HasSession() {
		t.Error("expired cookie still counts as a session")
	}

	restored := newJar(t, mirror)
	if n := len(restored.Cookies(u)); n != 0 {
		t.Errorf("got %d restored cookies, want 0", n)
	}
}
