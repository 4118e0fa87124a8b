package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalfold/signalfold/internal/intel"
)

func testInventory() *Inventory {
	return NewInventory([]intel.EntityRecord{
		{CanonicalKey: "acme energy", Region: "Qatar", Categories: []string{"Energy"}, Score: 3},
		{CanonicalKey: "beta marine", Region: "UAE", Categories: []string{"Shipping"}, Score: 2},
		{CanonicalKey: "gamma foods", Region: "Qatar", Categories: []string{"Food & Beverage"}, Score: 1},
	}, 42)
}

func TestInventoryFilters(t *testing.T) {
	t.Parallel()

	inv := testInventory()

	t.Run("no filter returns all in rank order", func(t *testing.T) {
		t.Parallel()
		got := inv.Entities(Filter{})
		require.Len(t, got, 3)
		assert.Equal(t, "acme energy", got[0].CanonicalKey)
	})

	t.Run("region filter case-insensitive", func(t *testing.T) {
		t.Parallel()
		got := inv.Entities(Filter{Region: "qatar"})
		require.Len(t, got, 2)
	})

	t.Run("category filter", func(t *testing.T) {
		t.Parallel()
		got := inv.Entities(Filter{Category: "shipping"})
		require.Len(t, got, 1)
		assert.Equal(t, "beta marine", got[0].CanonicalKey)
	})

	t.Run("min score", func(t *testing.T) {
		t.Parallel()
		got := inv.Entities(Filter{MinScore: 2})
		require.Len(t, got, 2)
	})

	t.Run("combined", func(t *testing.T) {
		t.Parallel()
		got := inv.Entities(Filter{Region: "Qatar", MinScore: 2})
		require.Len(t, got, 1)
		assert.Equal(t, "acme energy", got[0].CanonicalKey)
	})
}

func TestInventoryCounts(t *testing.T) {
	t.Parallel()

	inv := testInventory()
	assert.Equal(t, 42, inv.RawCount())
	assert.Equal(t, 3, inv.Len())
}
