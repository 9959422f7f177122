package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/config"
	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/storage"
	"github.com/JonMunkholm/LeadSync/internal/ux"
	"github.com/JonMunkholm/LeadSync/internal/web"
)

func TestParseMapFlag(t *testing.T) {
	headers := []string{"Full Name", "E-mail", "Notes"}

	tests := []struct {
		in      string
		col     int
		field   core.Field
		wantErr string
	}{
		{"full name=name", 0, core.FieldName, ""},
		{"2=email", 1, core.FieldEmail, ""},
		{" Notes =skip", 2, core.FieldSkip, ""},
		{"3=-", 2, core.FieldSkip, ""},
		{"Notes", 0, "", "want HEADER=FIELD"},
		{"Notes=colour", 0, "", "unknown field"},
		{"4=name", 0, "", "out of range"},
		{"Phone=phone", 0, "", "no column named"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			col, field, err := parseMapFlag(tt.in, headers)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("got error %v, want one containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if col != tt.col || field != tt.field {
				t.Errorf("got (%d, %s), want (%d, %s)", col, field, tt.col, tt.field)
			}
		})
	}
}

func TestSeparatorFor(t *testing.T) {
	c := &cli{cfg: &config.Config{Import: config.ImportConfig{Separator: ";"}}}

	tests := []struct {
		path, flag string
		want       rune
		wantErr    bool
	}{
		{"leads.csv", "", ';', false},
		{"leads.TSV", "", '\t', false},
		{"leads.tsv", ",", ',', false},
		{"leads.csv", `\t`, '\t', false},
		{"leads.csv", "|", '|', false},
		{"leads.csv", "||", 0, true},
		{"leads.csv", `"`, 0, true},
	}
	for _, tt := range tests {
		got, err := c.separatorFor(tt.path, tt.flag)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s %q: expected error", tt.path, tt.flag)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %q: unexpected error: %v", tt.path, tt.flag, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s %q: got %q, want %q", tt.path, tt.flag, got, tt.want)
		}
	}
}

var cancelledSummary = &core.Summary{
	FileName:  "leads.csv",
	Total:     10,
	Processed: 4,
	Succeeded: 3,
	Failed:    1,
	Cancelled: true,
	Duration:  1500 * time.Millisecond,
	Errors: []core.RowError{
		{Line: 7, Reason: core.ErrMissingIdentity.Error()},
	},
}

func TestPrintSummary_Plain(t *testing.T) {
	var buf bytes.Buffer
	printSummary(ux.New(&buf, false), cancelledSummary)

	out := buf.String()
	for _, want := range []string{
		"Import cancelled after 4 of 10 rows: leads.csv",
		"Succeeded: 3",
		"1.5s",
		"line 7 [VAL001] required field missing: name or email",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "╭") {
		t.Errorf("plain output drew a box:\n%s", out)
	}
}

func TestPrintSummary_Styled(t *testing.T) {
	var buf bytes.Buffer
	printSummary(ux.New(&buf, true), cancelledSummary)

	out := buf.String()
	for _, want := range []string{"╭", "Import cancelled after 4 of 10 rows", "line 7 [VAL001]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintMappings(t *testing.T) {
	var buf bytes.Buffer
	printMappings(ux.New(&buf, false), []core.Mapping{
		{Column: 0, Header: "Full Name", Target: core.FieldName},
		{Column: 1, Header: "Owner", Target: core.FieldSkip},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[0] != "Mapping:" {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if got := strings.Fields(lines[1]); !slices.Equal(got, []string{"1", "Full", "Name", "->", "name"}) {
		t.Errorf("row 1 = %q", got)
	}
	if !strings.HasSuffix(lines[2], "-> (skip)") {
		t.Errorf("row 2 = %q", lines[2])
	}
	// Columns line up.
	if strings.Index(lines[1], "->") != strings.Index(lines[2], "->") {
		t.Errorf("arrows misaligned:\n%s\n%s", lines[1], lines[2])
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	reportError(ux.New(&buf, false), describe(fmt.Errorf("load: %w", core.ErrUnsupportedFile)))
	out := buf.String()
	if !strings.HasPrefix(out, "error: ") || !strings.Contains(out, "(Code: FILE003)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "  detail: load: ") {
		t.Errorf("detail line missing:\n%s", out)
	}

	buf.Reset()
	reportError(ux.New(&buf, false), errors.New("boom"))
	if buf.String() != "error: boom\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestDescribe(t *testing.T) {
	err := describe(fmt.Errorf("load: %w", core.ErrUnsupportedFile))
	var ue *core.UserError
	if !errors.As(err, &ue) {
		t.Fatalf("got %T, want *core.UserError", err)
	}
	if !errors.Is(err, core.ErrUnsupportedFile) {
		t.Error("cause lost")
	}

	plain := errors.New("opaque")
	if describe(plain) != plain {
		t.Error("unknown error should pass through")
	}
}

const cliCSV = "Full Name,Email Address,Company,Deal Value\n" +
	"Ada Lovelace,ada@example.com,Analytical Engines,\"$1,200\"\n" +
	",,Nobody Inc,99\n" +
	"Bob,bob@,Acme,5\n" +
	"Cy,cy@example.com,Acme,7\n"

// run executes one CLI invocation the way main does.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out, nil)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// cliEnv starts a backend and points the CLI at it with fresh local state.
// It returns the lead store, the state directory and a CSV file path.
func cliEnv(t *testing.T) (*web.MemoryLeadStore, string, string) {
	t.Helper()
	leads := web.NewMemoryLeadStore()
	srv := web.NewServer(config.DevServerConfig{
		JWTSecret:     "cli-secret",
		AccessTTL:     time.Minute,
		SessionTTL:    time.Hour,
		UserEmail:     "demo@leadsync.local",
		UserPassword:  "demo",
		MaxConcurrent: 2,
		MaxWait:       time.Second,
	}, web.Options{Leads: leads})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	t.Setenv("LEADSYNC_API_URL", ts.URL)
	t.Setenv("LEADSYNC_STATE_DIR", state)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("RETRY_BASE_DELAY", "1ms")
	t.Setenv("RETRY_MAX_DELAY", "5ms")
	t.Setenv("RETRY_JITTER", "0s")

	csvPath := filepath.Join(dir, "leads.csv")
	if err := os.WriteFile(csvPath, []byte(cliCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	return leads, state, csvPath
}

func mustContain(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_LoginImportHistory(t *testing.T) {
	leads, _, csvPath := cliEnv(t)
	dir := filepath.Dir(csvPath)

	if _, err := run(t, "whoami"); err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("whoami before login: got %v", err)
	}

	out, err := run(t, "login", "--email", "demo@leadsync.local", "--password", "demo")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	mustContain(t, out, "Signed in as demo@leadsync.local")

	out, err = run(t, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if out != "demo@leadsync.local\n" {
		t.Errorf("whoami = %q", out)
	}

	// Without --yes and without a terminal the import refuses to start.
	if _, err := run(t, "import", csvPath); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("import without --yes: got %v", err)
	}

	out, err = run(t, "import", csvPath, "--dry-run", "--map", "Company=skip")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	mustContain(t, out, "Loaded leads.csv: 4 rows, 4 columns", "(skip)", "Preview:")
	if leads.Len() != 0 {
		t.Fatalf("dry run stored %d leads", leads.Len())
	}

	profile := filepath.Join(dir, "crm.yaml")
	out, err = run(t, "import", csvPath, "--yes", "--save-mapping", profile)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	mustContain(t, out, "Saved mapping to "+profile, "Import complete: leads.csv", "line 3 [VAL001]", "line 4 [VAL002]")
	if leads.Len() != 2 {
		t.Errorf("stored %d leads, want 2", leads.Len())
	}

	p, err := core.LoadProfile(profile)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.Name != "crm" {
		t.Errorf("profile name = %q, want crm", p.Name)
	}
	if got := p.MatchScore([]string{"Full Name", "Email Address", "Company", "Deal Value"}); got != 1.0 {
		t.Errorf("match score = %v, want 1", got)
	}

	out, err = run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("history printed %d lines, want 2:\n%s", len(lines), out)
	}
	want := []string{"leads.csv", "4", "2", "2", "complete"}
	if got := strings.Fields(lines[1])[2:]; !slices.Equal(got, want) {
		t.Errorf("history row = %q, want %q", got, want)
	}

	out, err = run(t, "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	mustContain(t, out, "Signed out")

	if _, err := run(t, "whoami"); err == nil {
		t.Error("whoami after logout: expected error")
	}
}

func TestCLI_ImportWithSessionCookieOnly(t *testing.T) {
	leads, state, csvPath := cliEnv(t)

	if _, err := run(t, "import", csvPath, "--yes"); !errors.Is(err, errNotSignedIn) {
		t.Fatalf("import with no session: got %v, want errNotSignedIn", err)
	}

	if _, err := run(t, "login", "--email", "demo@leadsync.local", "--password", "demo"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Drop the stored token; only the persisted session cookie remains.
	kv, err := storage.Open(storage.Config{Path: state})
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Delete("credential/access"); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "import", csvPath, "--yes")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	mustContain(t, out, "Import complete: leads.csv")
	if leads.Len() != 2 {
		t.Errorf("stored %d leads, want 2", leads.Len())
	}
}
