package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/web/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer = "leadsync-devserver"

	// SessionCookie carries the refresh session. It is scoped to the auth
	// routes so lead traffic never sends it.
	SessionCookie = "leadsync_session"
	sessionPath   = "/api/auth"
)

var errSessionInvalid = errors.New("session expired or unknown")

// tokens issues and verifies HS256 access tokens.
type tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (t *tokens) issue(subject string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// verify implements middleware.TokenVerifier.
func (t *tokens) verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

type session struct {
	subject string
	expires time.Time
}

// sessions holds refresh sessions in memory. A restart logs everyone out.
type sessions struct {
	mu   sync.Mutex
	byID map[string]session
	ttl  time.Duration
	now  func() time.Time
}

func newSessions(ttl time.Duration, now func() time.Time) *sessions {
	return &sessions{byID: make(map[string]session), ttl: ttl, now: now}
}

func (s *sessions) create(subject string) (string, time.Time) {
	id := uuid.NewString()
	exp := s.now().Add(s.ttl)
	s.mu.Lock()
	s.byID[id] = session{subject: subject, expires: exp}
	s.mu.Unlock()
	return id, exp
}

func (s *sessions) lookup(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return "", errSessionInvalid
	}
	if !s.now().Before(sess.expires) {
		delete(s.byID, id)
		return "", errSessionInvalid
	}
	return sess.subject, nil
}

func (s *sessions) revoke(id string) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

// revokeAll drops every session.
func (s *sessions) revokeAll() {
	s.mu.Lock()
	clear(s.byID)
	s.mu.Unlock()
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=320"`
	Password string `json:"password" validate:"required,max=256"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(s.cfg.UserEmail))
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.UserPassword))
	if emailOK&passOK != 1 {
		s.obs.Rejected("unauthorized")
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	id, exp := s.sessions.create(req.Email)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     sessionPath,
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.writeToken(w, r, req.Email)
}

// handleRefresh trades a live session cookie for a new access token. The
// request carries no bearer token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		s.obs.Rejected("unauthorized")
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	subject, err := s.sessions.lookup(c.Value)
	if err != nil {
		s.obs.Rejected("unauthorized")
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	s.writeToken(w, r, subject)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.revoke(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     sessionPath,
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"email": middleware.Subject(r.Context())})
}

func (s *Server) writeToken(w http.ResponseWriter, r *http.Request, subject string) {
	tok, exp, err := s.tokens.issue(subject)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int64(exp.Sub(s.now()).Seconds()),
	})
}
