package core

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMissingIdentity marks a row with neither a name nor an email after
// mapping. Such rows are never submitted.
var ErrMissingIdentity = errors.New("required field missing: name or email")

// Defaults fills optional fields that the backend requires.
type Defaults struct {
	Source string
	Status string
}

// DefaultDefaults returns the labels used when nothing is configured.
func DefaultDefaults() Defaults {
	return Defaults{Source: "CSV Import", Status: "new"}
}

// BuildRecord applies mappings to a row. When several columns share a
// target, the last non-empty value wins, except notes which are joined.
func BuildRecord(row Row, mappings []Mapping, d Defaults) (Record, error) {
	var (
		rec   Record
		notes []string
	)
	for _, m := range mappings {
		if m.Target == FieldSkip || m.Column < 0 || m.Column >= len(row.Cells) {
			continue
		}
		v := strings.TrimSpace(row.Cells[m.Column])
		if v == "" {
			continue
		}
		switch m.Target {
		case FieldName:
			rec.Name = v
		case FieldEmail:
			rec.Email = v
		case FieldPhone:
			rec.Phone = v
		case FieldCompany:
			rec.Company = v
		case FieldSource:
			rec.Source = v
		case FieldStatus:
			rec.Status = v
		case FieldValue:
			rec.Value = ParseAmount(v)
		case FieldNotes:
			notes = append(notes, v)
		}
	}
	rec.Notes = strings.Join(notes, "; ")

	if rec.Name == "" && rec.Email == "" {
		return Record{}, ErrMissingIdentity
	}
	if rec.Source == "" {
		rec.Source = d.Source
	}
	if rec.Status == "" {
		rec.Status = d.Status
	}
	return rec, nil
}

// ParseAmount keeps digits, '.' and '-' and parses the rest as a float.
// Anything unparseable is 0. Accounting negatives like "(1,200)" are
// honoured.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	if negative && v > 0 {
		v = -v
	}
	return v
}
