package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/signalfold/signalfold/internal/intel"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

func testConfig() Config {
	return Config{
		RequestsPerSecond: 1000,
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		Timeout:           5 * time.Second,
	}
}

func newTestFetcher(t *testing.T, cfg Config, origins *BlockedOrigins, opts ...Option) *Fetcher {
	t.Helper()
	clk := fixedClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	return New(cfg, origins, clk, zaptest.NewLogger(t), opts...)
}

func TestFetchSuccessDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>press release</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig(), NewBlockedOrigins())

	doc, err := f.Fetch(context.Background(), srv.URL+"/press")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doc.StatusCode)
	assert.Equal(t, intel.ViaDirect, doc.Via)
	assert.Contains(t, string(doc.Body), "press release")
	assert.False(t, doc.Retrieved.IsZero())
}

func TestFetchSendsRotatedIdentity(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig(), NewBlockedOrigins())

	_, err := f.Fetch(context.Background(), srv.URL+"/page")

	require.NoError(t, err)
	assert.NotEmpty(t, gotUA)
	assert.Equal(t, srv.URL+"/", gotReferer)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<html>recovered</html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig(), NewBlockedOrigins())

	doc, err := f.Fetch(context.Background(), srv.URL+"/flaky")

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Contains(t, string(doc.Body), "recovered")
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig(), NewBlockedOrigins())

	_, err := f.Fetch(context.Background(), srv.URL+"/down")

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchForbiddenBlocksOriginAndUsesFallback(t *testing.T) {
	var originHits int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&originHits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	cache := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>cached copy</html>"))
	}))
	defer cache.Close()

	cfg := testConfig()
	cfg.Fallback = FallbackConfig{CacheTemplate: cache.URL + "/view?u=%s"}
	registry := NewBlockedOrigins()
	f := newTestFetcher(t, cfg, registry)

	doc, err := f.Fetch(context.Background(), origin.URL+"/members")

	require.NoError(t, err)
	assert.Equal(t, intel.ViaCache, doc.Via)
	assert.Contains(t, string(doc.Body), "cached copy")
	assert.Equal(t, int32(1), atomic.LoadInt32(&originHits), "no retry after access denial")
	assert.True(t, registry.IsBlocked(mustParse(t, origin.URL).Host))
}

func TestFetchForbiddenWithDeadFallbacks(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dead.Close()

	cfg := testConfig()
	cfg.Fallback = FallbackConfig{
		CacheTemplate:  dead.URL + "/view?u=%s",
		SearchTemplate: dead.URL + "/search?q=%s",
	}
	registry := NewBlockedOrigins()
	f := newTestFetcher(t, cfg, registry)

	_, err := f.Fetch(context.Background(), origin.URL+"/members")

	assert.ErrorIs(t, err, ErrNoFallback)
	assert.True(t, registry.IsBlocked(mustParse(t, origin.URL).Host))
}

func TestFetchSkipsDirectForBlockedOrigin(t *testing.T) {
	var originHits int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&originHits, 1)
		_, _ = w.Write([]byte("should never be served"))
	}))
	defer origin.Close()

	cache := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>from cache</html>"))
	}))
	defer cache.Close()

	cfg := testConfig()
	cfg.Fallback = FallbackConfig{CacheTemplate: cache.URL + "/view?u=%s"}
	registry := NewBlockedOrigins()
	registry.Mark(mustParse(t, origin.URL).Host)
	f := newTestFetcher(t, cfg, registry)

	doc, err := f.Fetch(context.Background(), origin.URL+"/anything")

	require.NoError(t, err)
	assert.Equal(t, intel.ViaCache, doc.Via)
	assert.Equal(t, int32(0), atomic.LoadInt32(&originHits))
}

func TestFetchBlockScopedToPort(t *testing.T) {
	forbidden := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer forbidden.Close()

	// Same host, different port: must stay directly reachable.
	open := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>still open</html>"))
	}))
	defer open.Close()

	registry := NewBlockedOrigins()
	f := newTestFetcher(t, testConfig(), registry)

	_, err := f.Fetch(context.Background(), forbidden.URL+"/a")
	assert.Error(t, err)
	assert.True(t, registry.IsBlocked(mustParse(t, forbidden.URL).Host))

	doc, err := f.Fetch(context.Background(), open.URL+"/b")
	require.NoError(t, err)
	assert.Equal(t, intel.ViaDirect, doc.Via)
	assert.False(t, registry.IsBlocked(mustParse(t, open.URL).Host))
}

func TestFetchRegistrySharedAcrossFetchers(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	registry := NewBlockedOrigins()
	first := newTestFetcher(t, testConfig(), registry)
	second := newTestFetcher(t, testConfig(), registry)

	_, err := first.Fetch(context.Background(), origin.URL+"/a")
	assert.Error(t, err)

	// The second fetcher never hits the origin directly.
	_, err = second.Fetch(context.Background(), origin.URL+"/b")
	assert.ErrorIs(t, err, ErrNoFallback)
	assert.True(t, registry.IsBlocked(mustParse(t, origin.URL).Host))
}

type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memoryBlobStore) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

type stubHasher struct{}

func (stubHasher) Hash(data []byte) (string, error) {
	return "deadbeefdeadbeefdeadbeef", nil
}

func TestFetchArchivesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>archived</html>"))
	}))
	defer srv.Close()

	store := &memoryBlobStore{}
	f := newTestFetcher(t, testConfig(), NewBlockedOrigins(), WithArchive(store, stubHasher{}))

	_, err := f.Fetch(context.Background(), srv.URL+"/doc")

	require.NoError(t, err)
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.objects, 1)
	for path, body := range store.objects {
		assert.Contains(t, path, "documents/")
		assert.Contains(t, string(body), "archived")
	}
}

func TestFetchInvalidURL(t *testing.T) {
	f := newTestFetcher(t, testConfig(), NewBlockedOrigins())

	_, err := f.Fetch(context.Background(), "://not-a-url")

	assert.Error(t, err)
}

func TestFetchContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig(), NewBlockedOrigins())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, srv.URL+"/slow")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExhausted)
}
