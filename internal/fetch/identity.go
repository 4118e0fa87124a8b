package fetch

import (
	"math/rand"
	"net/http"
	"net/url"
	"sync"
)

// defaultUserAgents is a small pool of current desktop browser identities.
// Rotation across these plus a browser-shaped header profile reduces
// fingerprinting by origins that gate on header consistency.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
}

// browserHeaders is the fixed header profile sent with every request.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Cache-Control":             "max-age=0",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Upgrade-Insecure-Requests": "1",
}

// IdentityPool hands out a rotated outbound identity per attempt.
type IdentityPool struct {
	mu     sync.Mutex
	agents []string
	rng    *rand.Rand
}

// NewIdentityPool builds a pool. With no agents supplied the built-in set
// is used. seed fixes the rotation order for tests; pass 0 for random.
func NewIdentityPool(agents []string, seed int64) *IdentityPool {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	src := rand.NewSource(seed)
	if seed == 0 {
		src = rand.NewSource(rand.Int63())
	}
	return &IdentityPool{
		agents: append([]string(nil), agents...),
		rng:    rand.New(src),
	}
}

// Headers returns a fresh header set for one attempt: the browser profile,
// a rotated User-Agent, and a Referer derived from the target's own origin.
func (p *IdentityPool) Headers(target *url.URL) http.Header {
	h := make(http.Header, len(browserHeaders)+2)
	for k, v := range browserHeaders {
		h.Set(k, v)
	}
	h.Set("User-Agent", p.nextAgent())
	if target != nil && target.Scheme != "" && target.Host != "" {
		h.Set("Referer", target.Scheme+"://"+target.Host+"/")
	}
	return h
}

func (p *IdentityPool) nextAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rng.Intn(len(p.agents))]
}
