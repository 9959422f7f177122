// Command leadsync logs in to a CRM backend and bulk-imports leads from CSV,
// TSV or XLSX files through an authenticated, retrying transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/LeadSync/internal/config"
	"github.com/JonMunkholm/LeadSync/internal/logging"
	"github.com/JonMunkholm/LeadSync/internal/ux"
	"github.com/awnumar/memguard"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Signals cancel ctx so an interrupted import still prints its summary.
	// The enclave is wiped on every exit path.
	defer memguard.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stdin).ExecuteContext(ctx); err != nil {
		reportError(ux.New(os.Stderr, ux.IsTerminal(os.Stderr)), err)
		stop()
		memguard.Purge()
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	out io.Writer
	in  *os.File
	ux  *ux.Printer

	envFile string
	cfg     *config.Config
}

func newRootCmd(out io.Writer, in *os.File) *cobra.Command {
	c := &cli{out: out, in: in, ux: ux.New(out, ux.IsTerminal(out))}

	root := &cobra.Command{
		Use:           "leadsync",
		Short:         "Import leads into your CRM from spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file to load (missing file is ignored)")

	root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newImportCmd(),
		c.newHistoryCmd(),
		c.newDevServerCmd(),
	)
	return root
}

func (c *cli) loadConfig() error {
	// Overload lets the file win over the shell, as the server does.
	if err := godotenv.Overload(c.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	c.cfg = cfg
	return nil
}

// withApp opens the local state for one command run.
func (c *cli) withApp(fn func(a *app) error) error {
	a, err := openApp(c.cfg, c.out)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
