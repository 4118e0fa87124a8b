package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCanonicalizes(t *testing.T) {
	t.Parallel()

	n := New(nil)
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"trims and lowercases", "  Acme Energy  ", "acme energy"},
		{"strips llc", "Acme Energy LLC", "acme energy"},
		{"strips group", "ACME ENERGY GROUP", "acme energy"},
		{"strips holdings", "BinDawood Holdings", "bindawood"},
		{"collapses whitespace", "Acme   \t Energy", "acme energy"},
		{"suffix only is kept", "Group", "group"},
		{"mid-name suffix untouched", "Group Therapy Labs", "group therapy labs"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, n.Key(tc.raw))
		})
	}
}

func TestKeyIdempotent(t *testing.T) {
	t.Parallel()

	n := New(nil)
	inputs := []string{
		"Acme Energy LLC", "  DP World  ", "ACME ENERGY GROUP",
		"already canonical", "Saudi Electricity Company",
	}
	for _, raw := range inputs {
		once := n.Key(raw)
		assert.Equal(t, once, n.Key(once), "Key not a fixed point for %q", raw)
	}
}

func TestKeyExtraSuffixesLongestFirst(t *testing.T) {
	t.Parallel()

	n := New([]string{"Trading Establishment"})
	// The compound suffix must strip before the built-in shorter ones get
	// a chance to mangle it.
	assert.Equal(t, "alpha", n.Key("Alpha Trading Establishment"))
}

func TestExclusionsMatch(t *testing.T) {
	t.Parallel()

	n := New(nil)
	ex := NewExclusions(n, []string{"SAP", "Accenture", "unknown", "world bank"})

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()
		assert.True(t, ex.Match("SAP"))
		assert.True(t, ex.Match("accenture"))
	})

	t.Run("substring in either direction", func(t *testing.T) {
		t.Parallel()
		// Disallowed entry inside the candidate.
		assert.True(t, ex.Match("Accenture Middle East"))
		// Candidate inside a disallowed entry.
		assert.True(t, ex.Match("World"))
	})

	t.Run("asymmetry preserved", func(t *testing.T) {
		t.Parallel()
		// "World" dies as a partial of "world bank"; "DP World" survives
		// because neither string contains the other.
		assert.True(t, ex.Match("World"))
		assert.False(t, ex.Match("DP World"))
	})

	t.Run("clean names pass", func(t *testing.T) {
		t.Parallel()
		assert.False(t, ex.Match("Almarai"))
		assert.False(t, ex.Match("Emirates Global Aluminium"))
	})

	t.Run("empty never matches", func(t *testing.T) {
		t.Parallel()
		assert.False(t, ex.Match(""))
		assert.False(t, ex.Match("   "))
	})
}

func TestExclusionsEntriesNormalizedAndDeduped(t *testing.T) {
	t.Parallel()

	n := New(nil)
	ex := NewExclusions(n, []string{"SAP", "sap", " IBM Corp ", ""})
	entries := ex.Entries()
	require.Len(t, entries, 2)
	assert.Contains(t, entries, "sap")
	assert.Contains(t, entries, "ibm")
}
