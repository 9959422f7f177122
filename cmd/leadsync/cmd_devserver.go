package main

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/LeadSync/internal/metrics"
	"github.com/JonMunkholm/LeadSync/internal/web"
	"github.com/spf13/cobra"
)

func (c *cli) newDevServerCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the reference CRM backend",
		Long: `devserver serves the login, refresh, logout and leads endpoints the client
talks to. Leads live in memory unless DATABASE_URL points at PostgreSQL.
Set DEVSERVER_FAIL_EVERY to answer every Nth lead write with 503.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg.DevServer
			if addr == "" {
				addr = cfg.Addr()
			}
			ctx := cmd.Context()

			opts := web.Options{}
			if cfg.DatabaseURL != "" {
				pg, err := web.OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
				if err != nil {
					return err
				}
				defer pg.Close()
				opts.Leads = pg
				if u, err := url.Parse(cfg.DatabaseURL); err == nil {
					slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
				}
			}

			m := metrics.New()
			opts.Observer = m
			opts.Metrics = m.Handler()
			srv := web.NewServer(cfg, opts)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down dev server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default DEVSERVER_HOST:DEVSERVER_PORT)")
	return cmd
}
