package fetch

import (
	"strings"
	"sync"
)

// BlockedOrigins is the process-wide registry of origins that returned an
// access-denial response. Origins are keyed by the URL's host, including
// the port when one is present, so a block on one port never shadows a
// different service on the same machine. The registry is shared by every
// fetcher instance: once any fetcher observes a block for an origin, all
// later requests to that origin skip direct retrieval and go straight to
// the fallback chain. Marking is idempotent and safe under concurrent
// adapters.
type BlockedOrigins struct {
	mu      sync.RWMutex
	blocked map[string]struct{}
}

// NewBlockedOrigins creates an empty registry.
func NewBlockedOrigins() *BlockedOrigins {
	return &BlockedOrigins{blocked: make(map[string]struct{})}
}

// Mark records the origin as blocked for the remainder of the process.
// It returns true the first time the origin is added.
func (b *BlockedOrigins) Mark(origin string) bool {
	key := normalizeOrigin(origin)
	if key == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blocked[key]; ok {
		return false
	}
	b.blocked[key] = struct{}{}
	return true
}

// IsBlocked reports whether the origin has been marked.
func (b *BlockedOrigins) IsBlocked(origin string) bool {
	key := normalizeOrigin(origin)
	if key == "" {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blocked[key]
	return ok
}

// Len returns the number of blocked origins.
func (b *BlockedOrigins) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blocked)
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSpace(origin))
}
