package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/signalfold/signalfold/internal/intel"
	"github.com/signalfold/signalfold/internal/metrics"
)

// Config controls fetcher behavior.
type Config struct {
	// RequestsPerSecond paces all outbound traffic from this fetcher
	// through a single-token limiter. Defaults to 1.
	RequestsPerSecond float64
	// MaxAttempts bounds direct retrieval retries. Defaults to 3.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// Timeout applies per HTTP request.
	Timeout time.Duration
	// UserAgents overrides the built-in identity pool when non-empty.
	UserAgents []string
	// Fallback configures the blocked-origin recovery services.
	Fallback FallbackConfig
}

// Fetcher retrieves documents with throttling, identity rotation, retry
// with backoff, and a fallback chain for blocked origins. One fetcher is
// built per source adapter; the blocked-origin registry is shared across
// all of them.
type Fetcher struct {
	cfg           Config
	limiter       *rate.Limiter
	identities    *IdentityPool
	origins       *BlockedOrigins
	policy        *BackoffPolicy
	fallback      *FallbackClient
	renderer      *Renderer
	detector      *ShellDetector
	store         intel.BlobStore
	hasher        intel.Hasher
	clock         intel.Clock
	baseCollector *colly.Collector
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// Option customizes a Fetcher beyond its required dependencies.
type Option func(*Fetcher)

// WithRenderer enables headless escalation for pages the detector flags
// as JS shells.
func WithRenderer(r *Renderer, d *ShellDetector) Option {
	return func(f *Fetcher) {
		f.renderer = r
		f.detector = d
	}
}

// WithArchive stores every successfully retrieved document body.
func WithArchive(store intel.BlobStore, hasher intel.Hasher) Option {
	return func(f *Fetcher) {
		f.store = store
		f.hasher = hasher
	}
}

// New builds a Fetcher. origins must be the process-wide registry so block
// decisions propagate across adapters.
func New(cfg Config, origins *BlockedOrigins, clk intel.Clock, logger *zap.Logger, opts ...Option) *Fetcher {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	f := &Fetcher{
		cfg:           cfg,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		identities:    NewIdentityPool(cfg.UserAgents, 0),
		origins:       origins,
		policy:        NewBackoffPolicy(cfg.MaxAttempts, cfg.BaseDelay, cfg.MaxDelay),
		clock:         clk,
		baseCollector: colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt(), colly.AllowURLRevisit()),
		logger:        logger,
		sleep:         sleepCtx,
	}
	f.fallback = NewFallbackClient(cfg.Fallback, f.plainGet, logger)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the target. Blocked origins skip direct retrieval and go
// straight to the fallback chain; a 403 on any attempt marks the origin
// blocked for the rest of the process and reroutes this fetch the same
// way. Other errors retry with exponential backoff until the attempt
// budget runs out, which surfaces ErrExhausted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (intel.Document, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return intel.Document{}, fmt.Errorf("parse target: %w", err)
	}
	origin := target.Host

	if f.origins.IsBlocked(origin) {
		f.logger.Debug("origin blocked, using fallback", zap.String("origin", origin))
		return f.viaFallback(ctx, target)
	}

	var lastErr error
	for attempt := 0; attempt < f.policy.MaxAttempts(); attempt++ {
		doc, err := f.direct(ctx, rawURL, target)
		if err == nil {
			metrics.ObserveFetch(rawURL, "ok", len(doc.Body))
			return f.finish(ctx, doc)
		}
		lastErr = err

		if IsAccessDenied(err) {
			if f.origins.Mark(origin) {
				f.logger.Warn("origin blocked by access denial",
					zap.String("origin", origin),
					zap.String("url", rawURL),
				)
			}
			metrics.ObserveFetch(rawURL, "blocked", 0)
			metrics.SetBlockedOrigins(f.origins.Len())
			return f.viaFallback(ctx, target)
		}

		metrics.ObserveFetch(rawURL, "error", 0)
		if !f.policy.ShouldRetry(err, attempt) {
			break
		}
		wait := f.policy.Backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if sleepErr := f.sleep(ctx, wait); sleepErr != nil {
			return intel.Document{}, sleepErr
		}
	}
	if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
		return intel.Document{}, lastErr
	}
	return intel.Document{}, fmt.Errorf("%w: %s: %w", ErrExhausted, rawURL, lastErr)
}

func (f *Fetcher) viaFallback(ctx context.Context, target *url.URL) (intel.Document, error) {
	doc, err := f.fallback.Retrieve(ctx, target)
	if err != nil {
		return intel.Document{}, err
	}
	return f.finish(ctx, doc)
}

// direct runs one throttled GET with a rotated identity.
func (f *Fetcher) direct(ctx context.Context, rawURL string, target *url.URL) (intel.Document, error) {
	if err := f.throttle(ctx); err != nil {
		return intel.Document{}, err
	}
	return f.visit(ctx, rawURL, f.identities.Headers(target))
}

// plainGet serves the fallback client: same throttle and identity budget,
// referer derived from the service URL itself.
func (f *Fetcher) plainGet(ctx context.Context, rawURL string) (intel.Document, error) {
	if err := f.throttle(ctx); err != nil {
		return intel.Document{}, err
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return intel.Document{}, fmt.Errorf("parse fallback url: %w", err)
	}
	return f.visit(ctx, rawURL, f.identities.Headers(parsed))
}

func (f *Fetcher) throttle(ctx context.Context) error {
	start := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	metrics.ObserveThrottleDelay(time.Since(start))
	return nil
}

func (f *Fetcher) visit(ctx context.Context, rawURL string, headers http.Header) (intel.Document, error) {
	var (
		result   intel.Document
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = intel.Document{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Retrieved:  f.now(),
			Via:        intel.ViaDirect,
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = &StatusError{URL: rawURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return intel.Document{}, err
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		return nil
	}
}

// finish applies the headless escalation and archive steps to a retrieved
// document. Neither step may fail the fetch: a render error keeps the
// direct body, an archive error is logged and dropped.
func (f *Fetcher) finish(ctx context.Context, doc intel.Document) (intel.Document, error) {
	if f.renderer != nil && f.detector != nil && doc.Via == intel.ViaDirect && f.detector.NeedsRender(doc.Body) {
		rendered, err := f.renderer.Render(ctx, doc.FinalURL)
		if err != nil {
			f.logger.Warn("headless render failed, keeping direct body",
				zap.String("url", doc.FinalURL),
				zap.Error(err),
			)
		} else {
			rendered.URL = doc.URL
			rendered.Retrieved = f.now()
			doc = rendered
		}
	}
	f.archive(ctx, doc)
	return doc, nil
}

func (f *Fetcher) archive(ctx context.Context, doc intel.Document) {
	if f.store == nil || f.hasher == nil || len(doc.Body) == 0 {
		return
	}
	digest, err := f.hasher.Hash([]byte(doc.URL))
	if err != nil {
		f.logger.Warn("archive digest failed", zap.String("url", doc.URL), zap.Error(err))
		return
	}
	if len(digest) > 16 {
		digest = digest[:16]
	}
	path := fmt.Sprintf("documents/%s/%s.html", metrics.SanitizeOrigin(doc.URL), digest)
	if _, err := f.store.PutObject(ctx, path, "text/html", doc.Body); err != nil {
		f.logger.Warn("archive write failed", zap.String("path", path), zap.Error(err))
	}
}

func (f *Fetcher) now() time.Time {
	if f.clock != nil {
		return f.clock.Now()
	}
	return time.Now().UTC()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
