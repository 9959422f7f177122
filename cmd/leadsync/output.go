package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/ux"
	"github.com/mattn/go-isatty"
)

// interactive reports whether prompts can be shown.
func (c *cli) interactive() bool {
	return c.in != nil && isatty.IsTerminal(c.in.Fd())
}

func printMappings(u *ux.Printer, mappings []core.Mapping) {
	u.Section("Mapping")
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		target := string(m.Target)
		if m.Target == core.FieldSkip {
			target = u.Muted("(skip)")
		}
		rows = append(rows, []string{strconv.Itoa(m.Column + 1), m.Header, u.Arrow() + " " + target})
	}
	u.Table(nil, rows)
}

func printPreview(u *ux.Printer, rows []core.PreviewRow) {
	u.Section("Preview")
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := strconv.Itoa(r.Line)
		if r.Err != nil {
			out = append(out, []string{line, u.Muted("(skipped: " + r.Err.Error() + ")")})
			continue
		}
		rec := r.Record
		out = append(out, []string{line, rec.Name, rec.Email, rec.Company, fmt.Sprintf("%.2f", rec.Value), rec.Status})
	}
	u.Table([]string{"LINE", "NAME", "EMAIL", "COMPANY", "VALUE", "STATUS"}, out)
}

func printSummary(u *ux.Printer, sum *core.Summary) {
	title := "Import complete"
	if sum.Cancelled {
		title = fmt.Sprintf("Import cancelled after %d of %d rows", sum.Processed, sum.Total)
	}
	title += ": " + sum.FileName

	failed := strconv.Itoa(sum.Failed)
	if sum.Failed > 0 {
		failed = u.Bad(failed)
	}
	lines := []string{
		"Succeeded: " + u.Good(strconv.Itoa(sum.Succeeded)),
		"Failed:    " + failed,
		"Duration:  " + sum.Duration.Round(time.Millisecond).String(),
	}
	if len(sum.Errors) > 0 {
		lines = append(lines, "", fmt.Sprintf("Most recent errors (%d shown):", len(sum.Errors)))
		for _, e := range sum.Errors {
			msg := core.MapReason(e.Reason)
			lines = append(lines, fmt.Sprintf("line %d [%s] %s", e.Line, msg.Code, e.Reason))
		}
	}

	if sum.Cancelled || sum.Failed > 0 {
		u.WarningBox(title, lines)
		return
	}
	u.Box(title, lines)
}

// reportError prints a command failure. Coded failures show their user
// message with the technical error underneath.
func reportError(u *ux.Printer, err error) {
	var ue *core.UserError
	if errors.As(err, &ue) {
		u.Error(ue.Error(), ue.Technical.Error())
		return
	}
	u.Error(err.Error(), "")
}
