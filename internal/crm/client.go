// Package crm submits leads to the backend's record-creation endpoint.
package crm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/logging"
	"github.com/JonMunkholm/LeadSync/internal/retry"
	"github.com/JonMunkholm/LeadSync/internal/transport"
)

// Doer is the part of the transport the client needs.
type Doer interface {
	DoJSON(ctx context.Context, method, path string, in, out any) error
}

// RetryObserver counts retries; the metrics package implements it.
type RetryObserver interface {
	ObserveRetry(op string)
}

// Lead is a stored lead as the backend returns it.
type Lead struct {
	ID string `json:"id"`
	core.Record
	CreatedAt string `json:"createdAt,omitempty"`
}

// Client creates and lists leads. Each creation runs through the retry
// executor, so transient failures are retried while rejections surface at
// once.
type Client struct {
	http      Doer
	retry     *retry.Executor
	leadsPath string
	obs       RetryObserver
}

// New returns a client posting to leadsPath.
func New(doer Doer, exec *retry.Executor, leadsPath string, obs RetryObserver) *Client {
	if exec == nil {
		exec = retry.New(retry.DefaultPolicy())
	}
	if leadsPath == "" {
		leadsPath = "/api/leads"
	}
	return &Client{http: doer, retry: exec, leadsPath: leadsPath, obs: obs}
}

// CreateLead posts one record. The returned error is the last attempt's
// error: *transport.StatusError for rejections, *transport.NetworkError for
// network failures.
func (c *Client) CreateLead(ctx context.Context, rec core.Record) (*Lead, error) {
	logger := logging.FromContext(ctx)
	return retry.Value(ctx, c.retry, func(ctx context.Context) (*Lead, error) {
		var lead Lead
		if err := c.http.DoJSON(ctx, http.MethodPost, c.leadsPath, rec, &lead); err != nil {
			return nil, err
		}
		return &lead, nil
	}, retry.WithOnRetry(func(attempt int, err error) {
		logger.Warn("retrying lead submission",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if c.obs != nil {
			c.obs.ObserveRetry("create_lead")
		}
	}))
}

// Submit implements core.Submitter.
func (c *Client) Submit(ctx context.Context, rec core.Record) error {
	_, err := c.CreateLead(ctx, rec)
	return err
}

// ListLeads returns every stored lead.
func (c *Client) ListLeads(ctx context.Context) ([]Lead, error) {
	var out struct {
		Leads []Lead `json:"leads"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.leadsPath, nil, &out); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return out.Leads, nil
}

// Whoami returns the identity the current credential belongs to.
func (c *Client) Whoami(ctx context.Context, mePath string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, mePath, nil, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

var _ Doer = (*transport.Client)(nil)
