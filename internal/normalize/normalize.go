// Package normalize canonicalizes raw entity names and applies the
// exclusion policy that drops vendors, resellers, and generic noise.
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// legalSuffixes are stripped from the end of a name during normalization.
// Longest suffixes are tried first so "Holding Company" wins over "Company".
var legalSuffixes = []string{
	"LLC", "Ltd", "Ltd.", "Inc", "Inc.", "Corp", "Group",
	"Holdings", "Holding", "FZE", "WLL", "PJSC", "PSC", "BSC", "QSC",
	"Co.", "Company", "S.A.", "GmbH", "AG", "PLC",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalizer derives canonical keys from raw entity names.
type Normalizer struct {
	suffixes []string
}

// New builds a Normalizer. Extra suffixes from configuration are merged
// with the built-in legal-entity suffixes.
func New(extraSuffixes []string) *Normalizer {
	suffixes := make([]string, 0, len(legalSuffixes)+len(extraSuffixes))
	suffixes = append(suffixes, legalSuffixes...)
	for _, s := range extraSuffixes {
		if s = strings.TrimSpace(s); s != "" {
			suffixes = append(suffixes, s)
		}
	}
	// Longest-match-first so compound suffixes strip before their tails.
	sort.Slice(suffixes, func(i, j int) bool {
		return len(suffixes[i]) > len(suffixes[j])
	})
	return &Normalizer{suffixes: suffixes}
}

// Key returns the canonical key for a raw entity name: trimmed,
// lower-cased, legal suffixes stripped, internal whitespace collapsed.
// Key is idempotent: Key(Key(x)) == Key(x).
func (n *Normalizer) Key(raw string) string {
	name := strings.TrimSpace(raw)
	for _, suffix := range n.suffixes {
		if len(name) > len(suffix)+1 &&
			strings.EqualFold(name[len(name)-len(suffix):], suffix) &&
			name[len(name)-len(suffix)-1] == ' ' {
			name = strings.TrimSpace(name[:len(name)-len(suffix)])
		}
	}
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.ToLower(strings.TrimSpace(name))
}

// Exclusions is the static set of disallowed entity names: system
// integrators, platform vendors, and generic placeholders that must never
// appear in the inventory.
type Exclusions struct {
	entries []string
	norm    *Normalizer
}

// NewExclusions builds the exclusion set. Entries are stored normalized.
func NewExclusions(norm *Normalizer, entries []string) *Exclusions {
	e := &Exclusions{norm: norm}
	seen := make(map[string]struct{}, len(entries))
	for _, raw := range entries {
		key := norm.Key(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		e.entries = append(e.entries, key)
	}
	return e
}

// Match reports whether a raw name is excluded. A name matches when its
// normalized form equals a disallowed entry, or when either string is a
// substring of the other. The substring rule is intentionally aggressive
// to suppress noise; it is known to over-filter short names and is kept
// as-is for behavioral fidelity.
func (e *Exclusions) Match(raw string) bool {
	key := e.norm.Key(raw)
	if key == "" {
		return false
	}
	for _, entry := range e.entries {
		if key == entry {
			return true
		}
		if strings.Contains(key, entry) || strings.Contains(entry, key) {
			return true
		}
	}
	return false
}

// Entries returns a copy of the normalized exclusion entries.
func (e *Exclusions) Entries() []string {
	out := make([]string, len(e.entries))
	copy(out, e.entries)
	return out
}
