package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func verifyFixed(token string) (string, error) {
	if token == "good" {
		return "ada@example.com", nil
	}
	return "", errors.New("bad token")
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer good", http.StatusOK, "ada@example.com"},
		{"lowercase scheme", "bearer good", http.StatusOK, "ada@example.com"},
		{"missing header", "", http.StatusUnauthorized, "missing bearer token"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "missing bearer token"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "missing bearer token"},
		{"rejected token", "Bearer stale", http.StatusUnauthorized, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected := 0
			h := BearerAuth(verifyFixed, func(*http.Request) { rejected++ })(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(Subject(r.Context())))
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			wantRejected := 0
			if tt.wantStatus == http.StatusUnauthorized {
				wantRejected = 1
			}
			if rejected != wantRejected {
				t.Errorf("onReject calls = %d, want %d", rejected, wantRejected)
			}
		})
	}
}

type httpObs struct {
	method, route string
	status        int
}

func (o *httpObs) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.method, o.route, o.status = method, route, status
}

func TestLogger_ReportsRoutePattern(t *testing.T) {
	obs := &httpObs{}
	r := chi.NewRouter()
	r.Use(Logger(obs))
	r.Get("/api/leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads/42", nil))

	if obs.route != "/api/leads/{id}" {
		t.Errorf("route = %q, want %q", obs.route, "/api/leads/{id}")
	}
	if obs.status != http.StatusTeapot || obs.method != http.MethodGet {
		t.Errorf("observed %s %d, want GET 418", obs.method, obs.status)
	}
}

func TestLogger_Unmatched(t *testing.T) {
	obs := &httpObs{}
	r := chi.NewRouter()
	r.Use(Logger(obs))
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if obs.status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", obs.status)
	}
	if obs.route != "unmatched" {
		t.Errorf("route = %q, want unmatched", obs.route)
	}
}
