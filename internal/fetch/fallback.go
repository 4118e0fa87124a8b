package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/intel"
	"github.com/signalfold/signalfold/internal/metrics"
)

// keywordPattern extracts candidate search terms from a URL's path and
// query: alphabetic runs of at least three characters.
var keywordPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)

// maxSearchKeywords caps how many extracted terms join the search query.
const maxSearchKeywords = 5

// FallbackConfig points at the two recovery services. Each template takes
// one %s verb: the escaped target URL for the cache service, the escaped
// query for the search service. An empty template disables that strategy.
type FallbackConfig struct {
	CacheTemplate  string
	SearchTemplate string
	MaxFailures    uint32
	OpenTimeout    time.Duration
}

// getFunc performs one plain retrieval. The fetcher injects its own
// throttled direct-get so fallback traffic shares the identity pool and
// pacing budget.
type getFunc func(ctx context.Context, rawURL string) (intel.Document, error)

// FallbackClient recovers content for blocked or exhausted targets. Each
// strategy is wrapped in its own circuit breaker so a dead cache service
// cannot slow every blocked-origin fetch to a crawl.
type FallbackClient struct {
	cfg      FallbackConfig
	get      getFunc
	cacheCB  *gobreaker.CircuitBreaker
	searchCB *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewFallbackClient builds a client. get must not be nil.
func NewFallbackClient(cfg FallbackConfig, get getFunc, logger *zap.Logger) *FallbackClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	return &FallbackClient{
		cfg:      cfg,
		get:      get,
		cacheCB:  newServiceBreaker("fallback-cache", cfg, logger),
		searchCB: newServiceBreaker("fallback-search", cfg, logger),
		logger:   logger,
	}
}

func newServiceBreaker(name string, cfg FallbackConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(n string, from, to gobreaker.State) {
			logger.Warn("fallback breaker state change",
				zap.String("service", n),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Retrieve tries the cached-copy service first and the origin-scoped
// keyword search second, returning the first document that succeeds.
func (c *FallbackClient) Retrieve(ctx context.Context, target *url.URL) (intel.Document, error) {
	if target == nil {
		return intel.Document{}, fmt.Errorf("fallback: nil target: %w", ErrNoFallback)
	}

	var errs []error

	if doc, err := c.fromCache(ctx, target); err == nil {
		return doc, nil
	} else if !errors.Is(err, errStrategyDisabled) {
		errs = append(errs, err)
	}

	if doc, err := c.fromSearch(ctx, target); err == nil {
		return doc, nil
	} else if !errors.Is(err, errStrategyDisabled) {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return intel.Document{}, ErrNoFallback
	}
	if allOpen(errs) {
		return intel.Document{}, fmt.Errorf("%w: %w", ErrFallbackUnavailable, errors.Join(errs...))
	}
	return intel.Document{}, fmt.Errorf("%w: %w", ErrNoFallback, errors.Join(errs...))
}

var errStrategyDisabled = errors.New("fallback strategy disabled")

func (c *FallbackClient) fromCache(ctx context.Context, target *url.URL) (intel.Document, error) {
	if c.cfg.CacheTemplate == "" {
		return intel.Document{}, errStrategyDisabled
	}
	cacheURL := fmt.Sprintf(c.cfg.CacheTemplate, url.QueryEscape(target.String()))
	doc, err := c.through(ctx, c.cacheCB, cacheURL)
	if err != nil {
		metrics.ObserveFallback("cache", "error")
		return intel.Document{}, fmt.Errorf("cached copy: %w", err)
	}
	metrics.ObserveFallback("cache", "ok")
	doc.Via = intel.ViaCache
	return doc, nil
}

func (c *FallbackClient) fromSearch(ctx context.Context, target *url.URL) (intel.Document, error) {
	if c.cfg.SearchTemplate == "" {
		return intel.Document{}, errStrategyDisabled
	}
	query := SearchQuery(target)
	searchURL := fmt.Sprintf(c.cfg.SearchTemplate, url.QueryEscape(query))
	doc, err := c.through(ctx, c.searchCB, searchURL)
	if err != nil {
		metrics.ObserveFallback("search", "error")
		return intel.Document{}, fmt.Errorf("keyword search: %w", err)
	}
	metrics.ObserveFallback("search", "ok")
	doc.Via = intel.ViaSearch
	return doc, nil
}

func (c *FallbackClient) through(ctx context.Context, cb *gobreaker.CircuitBreaker, rawURL string) (intel.Document, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return c.get(ctx, rawURL)
	})
	if err != nil {
		return intel.Document{}, err
	}
	doc, ok := out.(intel.Document)
	if !ok {
		return intel.Document{}, fmt.Errorf("unexpected fallback result type %T", out)
	}
	return doc, nil
}

// SearchQuery builds the origin-scoped query for a target: "site:<host>"
// plus up to five keywords pulled from the path and query string.
func SearchQuery(target *url.URL) string {
	terms := []string{"site:" + strings.ToLower(target.Hostname())}
	raw := target.Path + " " + target.RawQuery
	for _, kw := range keywordPattern.FindAllString(raw, -1) {
		terms = append(terms, strings.ToLower(kw))
		if len(terms) == 1+maxSearchKeywords {
			break
		}
	}
	return strings.Join(terms, " ")
}

func allOpen(errs []error) bool {
	for _, err := range errs {
		if !errors.Is(err, gobreaker.ErrOpenState) {
			return false
		}
	}
	return len(errs) > 0
}
