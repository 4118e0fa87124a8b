package fetch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockedOriginsMarkAndLookup(t *testing.T) {
	reg := NewBlockedOrigins()

	require.False(t, reg.IsBlocked("portal.example.com"))
	assert.True(t, reg.Mark("portal.example.com"))
	assert.True(t, reg.IsBlocked("portal.example.com"))
	assert.Equal(t, 1, reg.Len())
}

func TestBlockedOriginsMarkIsIdempotent(t *testing.T) {
	reg := NewBlockedOrigins()

	assert.True(t, reg.Mark("portal.example.com"))
	assert.False(t, reg.Mark("portal.example.com"))
	assert.Equal(t, 1, reg.Len())
}

func TestBlockedOriginsCaseInsensitive(t *testing.T) {
	reg := NewBlockedOrigins()

	reg.Mark("Portal.Example.COM")
	assert.True(t, reg.IsBlocked("portal.example.com"))
}

func TestBlockedOriginsIgnoresEmpty(t *testing.T) {
	reg := NewBlockedOrigins()

	assert.False(t, reg.Mark("   "))
	assert.False(t, reg.IsBlocked(""))
	assert.Equal(t, 0, reg.Len())
}

func TestBlockedOriginsConcurrentMark(t *testing.T) {
	reg := NewBlockedOrigins()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Mark("shared.example.com")
		}()
	}
	wg.Wait()

	assert.True(t, reg.IsBlocked("shared.example.com"))
	assert.Equal(t, 1, reg.Len())
}
