package attributes

import (
	"fmt"
	"regexp"
)

// Masked replaces attribute values hidden by a Masker.
const Masked = "***"

// Masker hides attribute values whose names match sensitive patterns when
// attributes are displayed. Stored attributes are never modified.
type Masker struct {
	patterns []*regexp.Regexp
}

// NewMasker compiles patterns, e.g. "password" or "(?i)token".
func NewMasker(patterns []string) (*Masker, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return &Masker{patterns: compiled}, nil
}

// Mask returns a copy of values fit for display. Nested maps are masked too.
// A nil Masker only copies.
func (m *Masker) Mask(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if m.matches(k) {
			out[k] = Masked
			continue
		}
		// Recurse if map
		if subMap, ok := v.(map[string]any); ok {
			out[k] = m.Mask(subMap)
		} else {
			out[k] = v // shallow copy of value
		}
	}
	return out
}

func (m *Masker) matches(name string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
