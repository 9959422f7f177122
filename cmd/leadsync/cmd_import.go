package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type importFlags struct {
	maps         []string
	profile      string
	forceProfile bool
	saveMapping  string
	separator    string
	rate         float64
	yes          bool
	dryRun       bool
	metricsAddr  string
}

func (c *cli) newImportCmd() *cobra.Command {
	f := &importFlags{}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import leads from a CSV, TSV or XLSX file",
		Long: `Import reads FILE, suggests a target field for every column from its
header, lets you review the mapping, previews the first rows and then
creates one lead per row. Rows that fail are logged and skipped; the run
always finishes with a summary.

Column overrides use the header text or the 1-based column number:

  leadsync import leads.csv --map "Contact=name" --map 4=skip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("rate") {
				f.rate = c.cfg.Import.RatePerSecond
			}
			if !cmd.Flags().Changed("metrics-addr") {
				f.metricsAddr = c.cfg.Metrics.Addr
			}
			return c.withApp(func(a *app) error {
				return c.runImport(cmd, a, args[0], f)
			})
		},
	}

	fl := cmd.Flags()
	fl.StringArrayVar(&f.maps, "map", nil, `column override "HEADER=FIELD" or "N=FIELD"; FIELD may be skip (repeatable)`)
	fl.StringVar(&f.profile, "profile", "", "YAML mapping profile to apply over the suggestions")
	fl.BoolVar(&f.forceProfile, "force-profile", false, "apply --profile even when it matches few columns")
	fl.StringVar(&f.saveMapping, "save-mapping", "", "write the final mapping to this YAML file")
	fl.StringVar(&f.separator, "separator", "", "field separator for text files (default from IMPORT_SEPARATOR; tab for .tsv)")
	fl.Float64Var(&f.rate, "rate", 0, "maximum submissions per second (0 = unpaced)")
	fl.BoolVarP(&f.yes, "yes", "y", false, "skip the interactive review and confirmation")
	fl.BoolVar(&f.dryRun, "dry-run", false, "stop after the preview")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while importing")
	return cmd
}

func (c *cli) runImport(cmd *cobra.Command, a *app, path string, f *importFlags) error {
	ctx := cmd.Context()
	icfg := c.cfg.Import

	sep, err := c.separatorFor(path, f.separator)
	if err != nil {
		return err
	}

	// upload
	table, err := core.LoadFile(path, core.LoadOptions{MaxSize: icfg.MaxFileSize, Separator: sep})
	if err != nil {
		return describe(err)
	}
	c.ux.Infof("Loaded %s: %d rows, %d columns", filepath.Base(path), len(table.Rows), len(table.Headers))
	if table.Reconciled > 0 {
		c.ux.Warnf("%d rows had a different number of cells than the header and were padded or truncated", table.Reconciled)
	}

	var limiter *rate.Limiter
	if f.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(f.rate), 1)
	}

	tty := c.ux.Styled()
	job := core.NewJob(core.JobOptions{
		Separator:    sep,
		PreviewRows:  icfg.PreviewRows,
		ErrorLogSize: icfg.ErrorLogSize,
		Defaults:     core.Defaults{Source: icfg.DefaultSource, Status: icfg.DefaultStatus},
		Limiter:      limiter,
		OnProgress: func(p core.Progress) {
			if tty && p.Phase == core.PhaseImporting {
				c.ux.Progress(fmt.Sprintf("Importing %d/%d", p.Processed, p.Total), p.Fraction())
			}
		},
		Observer: a.metrics,
	})
	if err := job.LoadTable(filepath.Base(path), table); err != nil {
		return describe(err)
	}

	// map
	if f.profile != "" {
		if err := c.applyProfile(job, table.Headers, f); err != nil {
			return err
		}
	}
	for _, m := range f.maps {
		col, field, err := parseMapFlag(m, table.Headers)
		if err != nil {
			return err
		}
		if err := job.SetMapping(col, field); err != nil {
			return err
		}
	}
	if !f.yes && c.interactive() {
		if err := reviewMappings(job); err != nil {
			return err
		}
	}
	printMappings(c.ux, job.Mappings())

	if f.saveMapping != "" {
		p := core.ProfileFromMappings(strings.TrimSuffix(filepath.Base(f.saveMapping), filepath.Ext(f.saveMapping)), job.Mappings())
		if err := p.Save(f.saveMapping); err != nil {
			return err
		}
		c.ux.Successf("Saved mapping to %s", f.saveMapping)
	}

	// preview
	if err := job.ToPreview(); err != nil {
		return describe(err)
	}
	preview, err := job.Preview()
	if err != nil {
		return err
	}
	printPreview(c.ux, preview)

	if f.dryRun {
		return nil
	}
	if !f.yes {
		ok, err := c.confirm(fmt.Sprintf("Import %d rows?", len(table.Rows)))
		if err != nil {
			return err
		}
		if !ok {
			c.ux.Infof("Import aborted")
			return nil
		}
	}
	if !a.signedIn() {
		return errNotSignedIn
	}
	if f.metricsAddr != "" {
		if err := a.serveMetrics(f.metricsAddr); err != nil {
			return err
		}
	}

	// importing
	sum, err := job.Run(ctx, a.crm)
	if err != nil {
		return err
	}
	if tty {
		c.ux.EndProgress()
	}
	if err := a.history.Record(sum); err != nil {
		slog.Warn("import history not saved", "error", err)
	}
	printSummary(c.ux, sum)

	if sum.Cancelled {
		return errors.New("import cancelled")
	}
	return nil
}

// separatorFor picks the text separator: the flag, then ".tsv" -> tab, then
// the configured default.
func (c *cli) separatorFor(path, flag string) (rune, error) {
	if flag != "" {
		if flag == `\t` {
			return '\t', nil
		}
		if utf8.RuneCountInString(flag) != 1 || flag == `"` {
			return 0, fmt.Errorf("--separator %q must be a single non-quote character", flag)
		}
		r, _ := utf8.DecodeRuneInString(flag)
		return r, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t', nil
	}
	r, _ := utf8.DecodeRuneInString(c.cfg.Import.Separator)
	return r, nil
}

func (c *cli) applyProfile(job *core.Job, headers []string, f *importFlags) error {
	p, err := core.LoadProfile(f.profile)
	if err != nil {
		return err
	}
	score := p.MatchScore(headers)
	if score < core.ProfileMatchThreshold && !f.forceProfile {
		c.ux.Warnf("profile %s matches %.0f%% of the columns; not applied (use --force-profile)",
			f.profile, score*100)
		return nil
	}
	n, err := job.ApplyProfile(p)
	if err != nil {
		return err
	}
	c.ux.Successf("Applied profile %s to %d columns", f.profile, n)
	return nil
}

// parseMapFlag resolves "HEADER=FIELD" or "N=FIELD" against headers. The
// header match is case-insensitive.
func parseMapFlag(s string, headers []string) (int, core.Field, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", fmt.Errorf("--map %q: want HEADER=FIELD", s)
	}
	field, ok := core.ParseField(value)
	if !ok {
		return 0, "", fmt.Errorf("--map %q: unknown field %q", s, value)
	}

	key = strings.TrimSpace(key)
	if n, err := strconv.Atoi(key); err == nil {
		if n < 1 || n > len(headers) {
			return 0, "", fmt.Errorf("--map %q: column %d out of range 1-%d", s, n, len(headers))
		}
		return n - 1, field, nil
	}
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), key) {
			return i, field, nil
		}
	}
	return 0, "", fmt.Errorf("--map %q: no column named %q", s, key)
}

// reviewMappings shows one select per column, seeded with the current
// mapping, and applies the choices.
func reviewMappings(job *core.Job) error {
	mappings := job.Mappings()
	table := job.Table()
	choices := make([]string, len(mappings))

	options := []huh.Option[string]{huh.NewOption("skip", "")}
	for _, f := range core.Fields {
		options = append(options, huh.NewOption(string(f), string(f)))
	}

	selects := make([]huh.Field, 0, len(mappings))
	for i, m := range mappings {
		choices[i] = string(m.Target)
		sel := huh.NewSelect[string]().
			Title(fmt.Sprintf("Column %d: %s", m.Column+1, m.Header)).
			Options(options...).
			Value(&choices[i])
		if len(table.Rows) > 0 {
			sel.Description("e.g. " + table.Rows[0].Cells[m.Column])
		}
		selects = append(selects, sel)
	}

	if err := huh.NewForm(huh.NewGroup(selects...)).Run(); err != nil {
		return err
	}
	for i, m := range mappings {
		if err := job.SetMapping(m.Column, core.Field(choices[i])); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) confirm(question string) (bool, error) {
	if !c.interactive() {
		return false, errors.New("stdin is not a terminal; pass --yes to import without confirmation")
	}
	ok := true
	err := huh.NewConfirm().Title(question).Affirmative("Import").Negative("Cancel").Value(&ok).Run()
	return ok, err
}
