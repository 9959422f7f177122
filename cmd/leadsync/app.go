package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/config"
	"github.com/JonMunkholm/LeadSync/internal/credential"
	"github.com/JonMunkholm/LeadSync/internal/crm"
	"github.com/JonMunkholm/LeadSync/internal/history"
	"github.com/JonMunkholm/LeadSync/internal/metrics"
	"github.com/JonMunkholm/LeadSync/internal/retry"
	"github.com/JonMunkholm/LeadSync/internal/storage"
	"github.com/JonMunkholm/LeadSync/internal/transport"
)

// app holds the collaborators a client command needs. Everything hangs off
// the local state database, so open it once per command and Close it.
type app struct {
	cfg *config.Config
	out io.Writer

	kv      *storage.KV
	store   *credential.MirroredStore
	jar     *credential.SessionJar
	metrics *metrics.Metrics
	http    *transport.Client
	crm     *crm.Client
	history *history.Store

	metricsSrv *http.Server
}

func openApp(cfg *config.Config, out io.Writer) (*app, error) {
	scfg := storage.Config{Path: cfg.Storage.StateDir(), InMemory: cfg.Storage.InMemory}
	if cfg.Logging.Level == "debug" {
		scfg.Logger = slog.Default()
	}
	kv, err := storage.Open(scfg)
	if err != nil {
		return nil, err
	}

	store := credential.NewMirroredStore(kv, slog.Default())
	jar, err := credential.NewSessionJar(kv, slog.Default())
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("session jar: %w", err)
	}

	m := metrics.New()
	tc, err := transport.New(store, transport.Options{
		BaseURL:             cfg.API.BaseURL,
		LoginPath:           cfg.API.LoginPath,
		RefreshPath:         cfg.API.RefreshPath,
		LogoutPath:          cfg.API.LogoutPath,
		Timeout:             cfg.API.Timeout,
		SingleFlightRefresh: cfg.API.SingleFlightRefresh,
		Jar:                 jar,
		Logger:              slog.Default(),
		Observer:            m,
	})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	// retry.New reads 0 as "use the default"; in config 0 means no retries.
	attempts := cfg.Retry.MaxAttempts
	if attempts == 0 {
		attempts = -1
	}
	exec := retry.New(retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Jitter:      cfg.Retry.Jitter,
	})

	return &app{
		cfg:     cfg,
		out:     out,
		kv:      kv,
		store:   store,
		jar:     jar,
		metrics: m,
		http:    tc,
		crm:     crm.New(tc, exec, cfg.API.LeadsPath, m),
		history: history.New(kv),
	}, nil
}

// serveMetrics exposes /metrics on addr for the lifetime of the app.
func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in; run leadsync login")

// signedIn reports whether a request can authenticate: with the stored
// token, or through a refresh with the persisted session cookie.
func (a *app) signedIn() bool {
	return a.store.Get() != "" || a.jar.HasSession()
}

func (a *app) Close() error {
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	return a.kv.Close()
}
