package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/credential"
	"github.com/JonMunkholm/LeadSync/internal/retry"
	"github.com/JonMunkholm/LeadSync/internal/transport"
)

type retryCounter struct{ n atomic.Int32 }

func (r *retryCounter) ObserveRetry(string) { r.n.Add(1) }

func newClient(t *testing.T, h http.HandlerFunc) (*Client, *retryCounter) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tc, err := transport.New(credential.NewMemoryStore("tok"), transport.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}

	exec := retry.New(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	rc := &retryCounter{}
	return New(tc, exec, "/api/leads", rc), rc
}

func TestCreateLead_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, rc := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var rec core.Record
		_ = json.NewDecoder(r.Body).Decode(&rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Lead{ID: "lead-9", Record: rec})
	})

	lead, err := c.CreateLead(context.Background(), core.Record{Name: "Ada", Email: "ada@x.io", Source: "CSV Import", Status: "new"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.ID != "lead-9" || lead.Name != "Ada" {
		t.Errorf("lead = %+v", lead)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("got %d calls, want 3", got)
	}
	if got := rc.n.Load(); got != 2 {
		t.Errorf("got %d retries, want 2", got)
	}
}

func TestCreateLead_RejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, rc := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation failed","fields":{"email":"must be a valid email"}}`))
	})

	err := c.Submit(context.Background(), core.Record{Name: "Ada", Email: "nope"})
	var se *transport.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *transport.StatusError", err)
	}
	if se.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", se.StatusCode)
	}
	if calls.Load() != 1 || rc.n.Load() != 0 {
		t.Errorf("calls=%d retries=%d, want 1 and 0", calls.Load(), rc.n.Load())
	}
}

func TestCreateLead_ExhaustedReturnsLastStatus(t *testing.T) {
	var calls atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.Submit(context.Background(), core.Record{Name: "Ada"})
	var se *transport.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *transport.StatusError", err)
	}
	if se.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", se.StatusCode)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("got %d calls, want 4", got)
	}
}

func TestListLeads(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"leads":[{"id":"1","name":"Ada","email":"a@x","source":"CSV Import","status":"new","value":10}]}`))
	})

	leads, err := c.ListLeads(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("got %d leads, want 1", len(leads))
	}
	if leads[0].Name != "Ada" || leads[0].Value != 10 {
		t.Errorf("lead = %+v", leads[0])
	}
}
