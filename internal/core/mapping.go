package core

import "strings"

// Field is a lead attribute a source column can be mapped to. The empty
// Field means the column is skipped.
type Field string

const (
	FieldSkip    Field = ""
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldCompany Field = "company"
	FieldSource  Field = "source"
	FieldStatus  Field = "status"
	FieldValue   Field = "value"
	FieldNotes   Field = "notes"
)

// Fields lists every mappable target in display order.
var Fields = []Field{
	FieldName, FieldEmail, FieldPhone, FieldCompany,
	FieldSource, FieldStatus, FieldValue, FieldNotes,
}

// ParseField resolves a field name, case-insensitively. "" and "skip" give
// FieldSkip.
func ParseField(s string) (Field, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "skip" || s == "-" {
		return FieldSkip, true
	}
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return FieldSkip, false
}

// Mapping assigns a target field to one source column. Several columns may
// share a target.
type Mapping struct {
	Column int
	Header string
	Target Field
}

// keywordGroup matches a header when any keyword is a substring of it.
type keywordGroup struct {
	field    Field
	keywords []string
}

// keywordGroups is checked in order and the first match wins, so a header
// like "Company Name" lands on name. Users review the result.
var keywordGroups = []keywordGroup{
	{FieldName, []string{"name", "contact", "person"}},
	{FieldEmail, []string{"email", "e-mail", "mail"}},
	{FieldPhone, []string{"phone", "mobile", "tel", "cell"}},
	{FieldCompany, []string{"company", "organization", "organisation", "org", "business"}},
	{FieldSource, []string{"source", "channel", "origin", "campaign"}},
	{FieldStatus, []string{"status", "stage"}},
	{FieldValue, []string{"value", "amount", "deal", "revenue", "price"}},
	{FieldNotes, []string{"note", "comment", "description", "remark"}},
}

// SuggestField guesses the target for a single header.
func SuggestField(header string) Field {
	h := strings.ToLower(strings.TrimSpace(header))
	if h == "" {
		return FieldSkip
	}
	for _, g := range keywordGroups {
		for _, kw := range g.keywords {
			if strings.Contains(h, kw) {
				return g.field
			}
		}
	}
	return FieldSkip
}

// Suggest seeds one mapping per header.
func Suggest(headers []string) []Mapping {
	out := make([]Mapping, len(headers))
	for i, h := range headers {
		out[i] = Mapping{Column: i, Header: h, Target: SuggestField(h)}
	}
	return out
}

// HasTarget reports whether any mapping names a target field.
func HasTarget(mappings []Mapping) bool {
	for _, m := range mappings {
		if m.Target != FieldSkip {
			return true
		}
	}
	return false
}
