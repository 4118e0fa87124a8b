package aggregate

import (
	"strings"

	"github.com/signalfold/signalfold/internal/intel"
)

// Inventory is the read-only query surface over a completed fold. It is
// what downstream reporting consumes: the ranked records plus the
// pre-dedup raw observation count.
type Inventory struct {
	records  []intel.EntityRecord
	rawCount int
}

// NewInventory wraps fold output for querying. The records slice is copied
// so later mutation by the caller cannot leak into queries.
func NewInventory(records []intel.EntityRecord, rawCount int) *Inventory {
	return &Inventory{
		records:  append([]intel.EntityRecord(nil), records...),
		rawCount: rawCount,
	}
}

// Filter narrows inventory queries. Zero values mean "no constraint".
type Filter struct {
	Region   string
	Category string
	MinScore int
}

// Entities returns the ranked records matching the filter, preserving the
// fold's sort order.
func (inv *Inventory) Entities(f Filter) []intel.EntityRecord {
	out := make([]intel.EntityRecord, 0, len(inv.records))
	for _, rec := range inv.records {
		if f.Region != "" && !strings.EqualFold(rec.Region, f.Region) {
			continue
		}
		if f.Category != "" && !hasCategory(rec, f.Category) {
			continue
		}
		if rec.Score < f.MinScore {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// RawCount returns the number of observations seen before deduplication.
func (inv *Inventory) RawCount() int {
	return inv.rawCount
}

// Len returns the number of surviving entity records.
func (inv *Inventory) Len() int {
	return len(inv.records)
}

func hasCategory(rec intel.EntityRecord, category string) bool {
	for _, c := range rec.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
