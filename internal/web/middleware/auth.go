package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/LeadSync/internal/logging"
)

type contextKey string

const ctxKeySubject contextKey = "auth_subject"

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier func(token string) (string, error)

// BearerAuth returns middleware that requires a valid
// "Authorization: Bearer <token>" header. Missing, malformed and expired
// tokens all get 401 with a JSON error body; onReject, if set, is called for
// each refused request.
func BearerAuth(verify TokenVerifier, onReject func(r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				reject(w, r, "missing bearer token", onReject)
				return
			}

			subject, err := verify(raw)
			if err != nil {
				logging.FromContext(r.Context()).Warn("auth: token rejected",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err,
				)
				reject(w, r, "unauthorized", onReject)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, msg string, onReject func(*http.Request)) {
	if onReject != nil {
		onReject(r)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="leadsync"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithSubject stores the authenticated subject in ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

// Subject returns the authenticated subject, or "".
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeySubject).(string); ok {
		return s
	}
	return ""
}
