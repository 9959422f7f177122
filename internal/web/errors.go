package web

// errors.go writes JSON error bodies in the shape the client parses:
//
//	{"error": "...", "code": "...", "fields": {"email": "..."}}
//
// Technical details are logged with the request id and never sent.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/logging"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError maps err to a user message, logs the technical error and
// writes the response.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)
	writeJSON(w, status, ErrorResponse{Error: msg.Message, Code: msg.Code})
}

// writeError writes a plain error message.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request refused",
		"path", r.URL.Path,
		"status", status,
		"reason", message,
	)
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
