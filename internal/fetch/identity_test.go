package fetch

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityHeadersCarryBrowserProfile(t *testing.T) {
	pool := NewIdentityPool(nil, 1)
	target, err := url.Parse("https://news.example.com/press/2026/expansion")
	require.NoError(t, err)

	headers := pool.Headers(target)

	assert.NotEmpty(t, headers.Get("User-Agent"))
	assert.Contains(t, headers.Get("Accept"), "text/html")
	assert.Equal(t, "en-US,en;q=0.9", headers.Get("Accept-Language"))
	assert.Equal(t, "https://news.example.com/", headers.Get("Referer"))
}

func TestIdentityRotationUsesWholePool(t *testing.T) {
	pool := NewIdentityPool(nil, 7)
	target, _ := url.Parse("https://example.com/")

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		seen[pool.Headers(target).Get("User-Agent")] = struct{}{}
	}
	assert.Equal(t, len(defaultUserAgents), len(seen))
}

func TestIdentityCustomAgents(t *testing.T) {
	pool := NewIdentityPool([]string{"test-agent/1.0"}, 1)
	target, _ := url.Parse("https://example.com/")

	assert.Equal(t, "test-agent/1.0", pool.Headers(target).Get("User-Agent"))
}

func TestIdentityNilTargetSkipsReferer(t *testing.T) {
	pool := NewIdentityPool(nil, 1)

	headers := pool.Headers(nil)
	assert.Empty(t, headers.Get("Referer"))
	assert.NotEmpty(t, headers.Get("User-Agent"))
}
