package core

import (
	"strings"
)

// DefaultSeparator is the field separator used when none is configured.
const DefaultSeparator = ','

// Parser splits delimited text into a Table.
//
// Input is split into lines first, so a quoted field cannot span lines.
// Inside a line a double quote toggles quoted mode, and a doubled quote
// inside a quoted field is a literal quote. Cells are trimmed.
type Parser struct {
	Separator rune
}

// NewParser returns a parser for sep, or for DefaultSeparator when sep is 0.
func NewParser(sep rune) *Parser {
	if sep == 0 {
		sep = DefaultSeparator
	}
	return &Parser{Separator: sep}
}

// Parse converts text into a Table. Leading blank lines are skipped; the
// first non-blank line is the header. Rows whose cells are all empty are
// dropped. Rows wider or narrower than the header are truncated or padded
// and counted in Table.Reconciled.
func (p *Parser) Parse(text string) (*Table, error) {
	sep := p.Separator
	if sep == 0 {
		sep = DefaultSeparator
	}

	lines := splitLines(text)

	headerAt := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyFile
	}

	t := &Table{Headers: parseLine(lines[headerAt], sep)}
	width := len(t.Headers)

	for i := headerAt + 1; i < len(lines); i++ {
		cells := parseLine(lines[i], sep)
		if isEmptyRow(cells) {
			continue
		}
		if len(cells) != width {
			cells = fitWidth(cells, width)
			t.Reconciled++
		}
		t.Rows = append(t.Rows, Row{Line: i + 1, Cells: cells})
	}

	return t, nil
}

// splitLines splits on \n, \r\n and lone \r.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func parseLine(line string, sep rune) []string {
	var (
		cells    []string
		cur      strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == sep && !inQuotes:
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func fitWidth(cells []string, width int) []string {
	if len(cells) > width {
		return cells[:width]
	}
	out := make([]string, width)
	copy(out, cells)
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
