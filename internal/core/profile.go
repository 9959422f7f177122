package core

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfileMatchThreshold is the minimum MatchScore for a profile to be
// applied automatically.
const ProfileMatchThreshold = 0.7

// Profile is a saved header -> target mapping, stored as YAML:
//
//	name: hubspot-export
//	columns:
//	  - header: E-mail Address
//	    target: email
//	  - header: Owner
//	    target: skip
type Profile struct {
	Name    string          `yaml:"name,omitempty"`
	Columns []ProfileColumn `yaml:"columns"`
}

// ProfileColumn maps one header text to a target field.
type ProfileColumn struct {
	Header string `yaml:"header"`
	Target string `yaml:"target"`
}

// ProfileFromMappings captures the current mapping, skipped columns
// included, so a later Apply restores every decision.
func ProfileFromMappings(name string, mappings []Mapping) *Profile {
	p := &Profile{Name: name, Columns: make([]ProfileColumn, 0, len(mappings))}
	for _, m := range mappings {
		target := string(m.Target)
		if m.Target == FieldSkip {
			target = "skip"
		}
		p.Columns = append(p.Columns, ProfileColumn{Header: m.Header, Target: target})
	}
	return p
}

// Validate checks every target names a known field.
func (p *Profile) Validate() error {
	var errs []string
	for i, c := range p.Columns {
		if strings.TrimSpace(c.Header) == "" {
			errs = append(errs, fmt.Sprintf("column %d: header is empty", i+1))
		}
		if _, ok := ParseField(c.Target); !ok {
			errs = append(errs, fmt.Sprintf("column %d (%s): unknown target %q", i+1, c.Header, c.Target))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid profile:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Apply sets the target of every mapping whose header matches a profile
// column, case-insensitively. It returns the number of columns changed or
// confirmed.
func (p *Profile) Apply(mappings []Mapping) int {
	lookup := p.lookup()
	n := 0
	for i := range mappings {
		target, ok := lookup[normalizeHeader(mappings[i].Header)]
		if !ok {
			continue
		}
		mappings[i].Target = target
		n++
	}
	return n
}

// MatchScore is the share of the profile's headers present in headers.
func (p *Profile) MatchScore(headers []string) float64 {
	if len(p.Columns) == 0 {
		return 0
	}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[normalizeHeader(h)] = true
	}
	hits := 0
	for _, c := range p.Columns {
		if present[normalizeHeader(c.Header)] {
			hits++
		}
	}
	return float64(hits) / float64(len(p.Columns))
}

func (p *Profile) lookup() map[string]Field {
	out := make(map[string]Field, len(p.Columns))
	for _, c := range p.Columns {
		if f, ok := ParseField(c.Target); ok {
			out[normalizeHeader(c.Header)] = f
		}
	}
	return out
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// LoadProfile reads and validates a profile file.
func LoadProfile(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes the profile as YAML.
func (p *Profile) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
