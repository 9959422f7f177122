// Package ux renders command output. Terminals get lipgloss styling, boxes
// and a progress bar; any other writer gets the same content as plain text
// so it can be piped and parsed.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorBorder  = lipgloss.Color("#16858E")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#5F7A84")
)

// Icon is a status marker shown in styled output.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Printer writes output to one writer, styled or plain.
type Printer struct {
	w      io.Writer
	styled bool

	title   lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	box     lipgloss.Style
	warnBox lipgloss.Style
	cell    lipgloss.Style
}

// New returns a Printer for w. Use IsTerminal(w) for styled unless the
// caller knows better.
func New(w io.Writer, styled bool) *Printer {
	r := lipgloss.NewRenderer(w)
	p := &Printer{w: w, styled: styled, cell: r.NewStyle()}
	if !styled {
		plain := r.NewStyle()
		p.title, p.bold, p.muted = plain, plain, plain
		p.success, p.warning, p.failure = plain, plain, plain
		p.box, p.warnBox = plain, plain
		return p
	}

	p.title = r.NewStyle().Bold(true).Foreground(colorAccent)
	p.bold = r.NewStyle().Bold(true)
	p.muted = r.NewStyle().Foreground(colorMuted)
	p.success = r.NewStyle().Foreground(colorSuccess)
	p.warning = r.NewStyle().Foreground(colorWarning)
	p.failure = r.NewStyle().Foreground(colorError)
	p.box = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)
	p.warnBox = p.box.BorderForeground(colorWarning)
	return p
}

// Styled reports whether p renders for a terminal.
func (p *Printer) Styled() bool { return p.styled }

// Println writes text unchanged.
func (p *Printer) Println(text string) {
	fmt.Fprintln(p.w, text)
}

// Infof writes an informational line.
func (p *Printer) Infof(format string, args ...any) {
	fmt.Fprintln(p.w, fmt.Sprintf(format, args...))
}

// Successf writes a line marked as done.
func (p *Printer) Successf(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if !p.styled {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.success.Render(string(IconSuccess)), text)
}

// Warnf writes a warning line.
func (p *Printer) Warnf(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if !p.styled {
		fmt.Fprintf(p.w, "warning: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.warning.Render(string(IconWarning)), p.warning.Render(text))
}

// Error writes an error line, with an optional muted detail line under it.
func (p *Printer) Error(text, detail string) {
	if !p.styled {
		fmt.Fprintf(p.w, "error: %s\n", text)
		if detail != "" {
			fmt.Fprintf(p.w, "  detail: %s\n", detail)
		}
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.failure.Render(string(IconError)), p.failure.Render(text))
	if detail != "" {
		fmt.Fprintln(p.w, p.muted.Render("  "+detail))
	}
}

// Section writes a blank line and a heading.
func (p *Printer) Section(title string) {
	if !p.styled {
		fmt.Fprintf(p.w, "\n%s:\n", title)
		return
	}
	fmt.Fprintf(p.w, "\n%s\n", p.title.Render(title))
}

// Arrow returns the mapping arrow.
func (p *Printer) Arrow() string {
	if !p.styled {
		return "->"
	}
	return p.muted.Render(string(IconArrow))
}

// Good styles text as a success value.
func (p *Printer) Good(text string) string { return p.success.Render(text) }

// Bad styles text as a failure value.
func (p *Printer) Bad(text string) string { return p.failure.Render(text) }

// Muted styles text as secondary.
func (p *Printer) Muted(text string) string { return p.muted.Render(text) }

// Table writes rows in aligned columns. headers may be nil. Cells are
// measured before styling, so widths hold for colored output too.
func (p *Printer) Table(headers []string, rows [][]string) {
	cols := len(headers)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}

	widths := make([]int, cols)
	measure := func(cells []string) {
		for i, c := range cells {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}
	measure(headers)
	for _, r := range rows {
		measure(r)
	}

	if headers != nil {
		fmt.Fprintln(p.w, p.tableLine(headers, widths, p.bold))
	}
	for _, r := range rows {
		fmt.Fprintln(p.w, p.tableLine(r, widths, p.cell))
	}
}

func (p *Printer) tableLine(cells []string, widths []int, st lipgloss.Style) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		c := ""
		if i < len(cells) {
			c = cells[i]
		}
		if i == len(widths)-1 {
			parts[i] = st.Render(c)
			continue
		}
		parts[i] = st.Render(c + strings.Repeat(" ", w-lipgloss.Width(c)+2))
	}
	return strings.TrimRight(strings.Join(parts, ""), " ")
}

// Box writes a titled block. Styled output draws a rounded border; plain
// output writes the title followed by indented lines.
func (p *Printer) Box(title string, lines []string) {
	p.renderBox(p.box, title, lines)
}

// WarningBox is Box with a warning-colored border.
func (p *Printer) WarningBox(title string, lines []string) {
	p.renderBox(p.warnBox, title, lines)
}

func (p *Printer) renderBox(st lipgloss.Style, title string, lines []string) {
	if !p.styled {
		fmt.Fprintf(p.w, "\n%s\n", title)
		for _, l := range lines {
			if l == "" {
				fmt.Fprintln(p.w)
				continue
			}
			fmt.Fprintf(p.w, "  %s\n", l)
		}
		return
	}
	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{p.title.Render(title)}, lines...)...)
	fmt.Fprintf(p.w, "\n%s\n", st.Render(body))
}

// ProgressBar renders fraction (0..1) as a bar of width cells followed by
// the percentage. Plain output is the percentage alone.
func (p *Printer) ProgressBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	pct := fmt.Sprintf("%3.0f%%", fraction*100)
	if !p.styled {
		return strings.TrimSpace(pct)
	}
	filled := int(fraction * float64(width))
	bar := p.success.Render(strings.Repeat("█", filled)) +
		p.muted.Render(strings.Repeat("░", width-filled))
	return bar + " " + pct
}

// Progress redraws a single status line in place. Call EndProgress once
// the operation finishes.
func (p *Printer) Progress(label string, fraction float64) {
	fmt.Fprintf(p.w, "\r%s %s", label, p.ProgressBar(fraction, 24))
}

// EndProgress moves past the progress line.
func (p *Printer) EndProgress() {
	fmt.Fprintln(p.w)
}
