package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/logging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Lead is a stored lead.
type Lead struct {
	ID string `json:"id"`
	core.Record
	CreatedAt time.Time `json:"createdAt"`
}

// LeadStore persists leads. MemoryLeadStore and PostgresLeadStore
// implement it.
type LeadStore interface {
	// Create assigns the lead's ID and CreatedAt and stores it.
	Create(ctx context.Context, lead *Lead) error
	// List returns up to limit leads, newest first.
	List(ctx context.Context, limit int) ([]Lead, error)
}

// leadRequest is the accepted body of POST /api/leads.
type leadRequest struct {
	Name    string  `json:"name" validate:"required_without=Email,max=200"`
	Email   string  `json:"email" validate:"omitempty,email,max=320"`
	Phone   string  `json:"phone" validate:"max=50"`
	Company string  `json:"company" validate:"max=200"`
	Source  string  `json:"source" validate:"max=100"`
	Status  string  `json:"status" validate:"max=50"`
	Value   float64 `json:"value"`
	Notes   string  `json:"notes" validate:"max=4000"`
}

func (r leadRequest) record() core.Record {
	return core.Record{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Company: r.Company,
		Source:  r.Source,
		Status:  r.Status,
		Value:   r.Value,
		Notes:   r.Notes,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct returns per-field messages, or nil when v is valid.
func validateStruct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "name or email is required"
	case "email":
		return "must be a valid email"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	if n := s.writes.Add(1); s.cfg.FailEvery > 0 && n%int64(s.cfg.FailEvery) == 0 {
		s.obs.Rejected("injected")
		writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	var req leadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.obs.Rejected("invalid")
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if fields := validateStruct(req); fields != nil {
		s.obs.Rejected("invalid")
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}

	lead := &Lead{Record: req.record()}
	if err := s.leads.Create(r.Context(), lead); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.obs.LeadCreated()
	logging.FromContext(r.Context()).Debug("lead created", "lead_id", lead.ID)
	writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(n, maxListLimit)
	}

	leads, err := s.leads.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if leads == nil {
		leads = []Lead{}
	}
	writeJSON(w, http.StatusOK, map[string][]Lead{"leads": leads})
}

// MemoryLeadStore keeps leads for the process lifetime.
type MemoryLeadStore struct {
	mu    sync.RWMutex
	leads []Lead
	now   func() time.Time
}

func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{now: time.Now}
}

func (m *MemoryLeadStore) Create(_ context.Context, lead *Lead) error {
	lead.ID = uuid.NewString()
	lead.CreatedAt = m.now().UTC()
	m.mu.Lock()
	m.leads = append(m.leads, *lead)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLeadStore) List(_ context.Context, limit int) ([]Lead, error) {
	m.mu.RLock()
	out := slices.Clone(m.leads)
	m.mu.RUnlock()

	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many leads are stored.
func (m *MemoryLeadStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leads)
}
