package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/adapter"
	"github.com/signalfold/signalfold/internal/aggregate"
	"github.com/signalfold/signalfold/internal/api"
	archivegcs "github.com/signalfold/signalfold/internal/archive/gcs"
	archivelocal "github.com/signalfold/signalfold/internal/archive/local"
	archivememory "github.com/signalfold/signalfold/internal/archive/memory"
	"github.com/signalfold/signalfold/internal/clock/system"
	"github.com/signalfold/signalfold/internal/config"
	"github.com/signalfold/signalfold/internal/fetch"
	"github.com/signalfold/signalfold/internal/hash/sha256"
	"github.com/signalfold/signalfold/internal/id/uuid"
	"github.com/signalfold/signalfold/internal/intel"
	"github.com/signalfold/signalfold/internal/logging"
	"github.com/signalfold/signalfold/internal/normalize"
	"github.com/signalfold/signalfold/internal/pipeline"
	pubsubpublisher "github.com/signalfold/signalfold/internal/publisher/pubsub"
	"github.com/signalfold/signalfold/internal/report"
	"github.com/signalfold/signalfold/internal/store/postgres"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Runs one full scan across all configured sources",
		Long: `Collects observations from every enabled source, folds them into a
deduplicated entity inventory and delivers the result to the configured
sinks (database, pub/sub, JSON report). With the server enabled, the
result is additionally exposed over HTTP until interrupted.`,
		RunE: runScanCommand,
	}
}

func runScanCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	norm := normalize.New(cfg.Aggregate.ExtraSuffixes)
	excl := normalize.NewExclusions(norm, cfg.Aggregate.Exclusions)
	agg := aggregate.New(norm, excl, aggregate.Config{GenericRegions: cfg.Aggregate.GenericRegions}, logger)

	clk := system.New()
	ids := uuid.New()

	fetchOpts, cleanup, err := buildFetchOptions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	origins := fetch.NewBlockedOrigins()
	newFetcher := func(name string) intel.Fetcher {
		return fetch.New(fetchConfig(cfg.Fetch), origins, clk, logger.Named(name), fetchOpts...)
	}

	adapters := buildAdapters(cfg, newFetcher, clk, excl, logger)
	if len(adapters) == 0 {
		return errors.New("no sources enabled")
	}

	pipeOpts, pipeCleanup, err := buildPipelineOptions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pipeCleanup()

	pipe := pipeline.New(adapters, agg, ids, clk, logger, pipeOpts...)

	result, runErr := pipe.Run(ctx)
	if runErr != nil {
		logger.Warn("scan completed with errors", zap.Error(runErr))
	}
	if result.Inventory != nil {
		logTopEntities(logger, result.Inventory)
	}

	if cfg.Server.Enabled {
		return serve(ctx, cfg, logger, result)
	}
	return runErr
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger, result pipeline.Result) error {
	server := api.NewServer(api.Config{APIKey: apiKey(cfg)}, logger)
	server.SetResult(result.Summary, result.Inventory)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

func apiKey(cfg config.Config) string {
	if cfg.Auth.Enabled {
		return cfg.Auth.APIKey
	}
	return ""
}

func fetchConfig(fc config.FetchConfig) fetch.Config {
	return fetch.Config{
		RequestsPerSecond: fc.RequestsPerSecond,
		MaxAttempts:       fc.MaxAttempts,
		BaseDelay:         fc.BaseDelay(),
		MaxDelay:          fc.MaxDelay(),
		Timeout:           fc.Timeout(),
		UserAgents:        fc.UserAgents,
		Fallback: fetch.FallbackConfig{
			CacheTemplate:  fc.CacheURL,
			SearchTemplate: fc.SearchURL,
			MaxFailures:    uint32(fc.MaxFailures),
			OpenTimeout:    time.Duration(fc.OpenTimeoutSeconds) * time.Second,
		},
	}
}

// buildFetchOptions assembles the optional renderer and archive wiring
// shared by every per-source fetcher. The returned cleanup releases the
// renderer and any remote clients.
func buildFetchOptions(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]fetch.Option, func(), error) {
	var opts []fetch.Option
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Headless.Enabled {
		renderer, err := fetch.NewRenderer(fetch.RendererConfig{
			MaxConcurrency: cfg.Headless.MaxParallel,
			Timeout:        time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			DomainQPS:      cfg.Headless.DomainQPS,
			UserAgent:      cfg.Headless.UserAgent,
		}, logger)
		switch {
		case err == nil:
			closers = append(closers, func() {
				if cerr := renderer.Close(); cerr != nil {
					logger.Warn("close renderer", zap.Error(cerr))
				}
			})
			var selectors []string
			if cfg.Headless.Selectors != "" {
				selectors = []string{cfg.Headless.Selectors}
			}
			detector := fetch.NewShellDetector(cfg.Headless.MinHTMLBytes, selectors, nil)
			opts = append(opts, fetch.WithRenderer(renderer, detector))
		case errors.Is(err, fetch.ErrRendererDisabled):
			logger.Warn("renderer disabled despite configuration")
		default:
			cleanup()
			return nil, nil, fmt.Errorf("init renderer: %w", err)
		}
	}

	store, err := buildBlobStore(ctx, cfg.Archive, &closers)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if store != nil {
		opts = append(opts, fetch.WithArchive(store, sha256.New()))
	}

	return opts, cleanup, nil
}

func buildBlobStore(ctx context.Context, cfg config.ArchiveConfig, closers *[]func()) (intel.BlobStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "memory":
		return archivememory.NewBlobStore(), nil
	case "local":
		store, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		*closers = append(*closers, func() { _ = client.Close() })
		store, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

func buildAdapters(
	cfg config.Config,
	newFetcher func(name string) intel.Fetcher,
	clk intel.Clock,
	excl *normalize.Exclusions,
	logger *zap.Logger,
) []intel.SourceAdapter {
	src := cfg.Sources
	deps := func(name string) adapter.Deps {
		return adapter.Deps{
			Fetcher:    newFetcher(name),
			Clock:      clk,
			Logger:     logger.Named(name),
			Exclusions: excl,
		}
	}

	var adapters []intel.SourceAdapter
	if src.Seed.Enabled {
		adapters = append(adapters, adapter.NewSeedAdapter(src.Seed.Path, clk, logger.Named("seed")))
	}
	if src.Stories.Enabled {
		adapters = append(adapters, adapter.NewStoriesAdapter(adapter.StoriesConfig{
			StoriesURL:    src.Stories.StoriesURL,
			NewsURL:       src.Stories.NewsURL,
			Origin:        src.Stories.Origin,
			RegionQueries: src.Stories.RegionQueries,
			NewsQueries:   src.Stories.NewsQueries,
			Vendor:        src.Vendor,
			Vocabulary:    src.Vocabulary,
			RegionHints:   src.RegionHints,
			DefaultRegion: src.DefaultRegion,
		}, deps("stories")))
	}
	if src.Press.Enabled {
		adapters = append(adapters, adapter.NewPressAdapter(adapter.PressConfig{
			SearchURL:     src.SearchURL,
			QueryPatterns: src.Press.QueryPatterns,
			Regions:       src.Press.Regions,
			Vendor:        src.Vendor,
			Vocabulary:    src.Vocabulary,
			RegionHints:   src.RegionHints,
		}, deps("press")))
	}
	if src.Jobs.Enabled {
		adapters = append(adapters, adapter.NewJobsAdapter(adapter.JobsConfig{
			SearchURL:   src.SearchURL,
			Boards:      jobBoards(src.Jobs.Boards),
			Queries:     regionQueries(src.Jobs.Queries),
			Vendor:      src.Vendor,
			Roles:       src.Jobs.Roles,
			FallbackTag: src.Jobs.FallbackTag,
		}, deps("jobs")))
	}
	if src.Procurement.Enabled {
		adapters = append(adapters, adapter.NewProcurementAdapter(adapter.ProcurementConfig{
			SearchURL:    src.SearchURL,
			Queries:      regionQueries(src.Procurement.Queries),
			RequireTerms: src.Procurement.RequireTerms,
			Vocabulary:   src.Vocabulary,
			Category:     src.Procurement.Category,
		}, deps("procurement")))
	}
	if src.Events.Enabled {
		adapters = append(adapters, adapter.NewEventsAdapter(adapter.EventsConfig{
			SearchURL:     src.SearchURL,
			Queries:       src.Events.Queries,
			Vendor:        src.Vendor,
			Vocabulary:    src.Vocabulary,
			RegionHints:   src.RegionHints,
			DefaultRegion: src.DefaultRegion,
		}, deps("events")))
	}
	return adapters
}

func jobBoards(boards []config.JobBoard) []adapter.JobBoard {
	out := make([]adapter.JobBoard, len(boards))
	for i, b := range boards {
		out[i] = adapter.JobBoard{Label: b.Label, URL: b.URL, Region: b.Region}
	}
	return out
}

func regionQueries(queries []config.RegionQuery) []adapter.RegionQueries {
	out := make([]adapter.RegionQueries, len(queries))
	for i, q := range queries {
		out[i] = adapter.RegionQueries{Region: q.Region, Queries: q.Queries}
	}
	return out
}

// buildPipelineOptions wires the optional delivery sinks. The returned
// cleanup closes the database pool and pub/sub client.
func buildPipelineOptions(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]pipeline.Option, func(), error) {
	var opts []pipeline.Option
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DB.DSN != "" {
		store, err := postgres.NewEntityStore(ctx, postgres.EntityStoreConfig{
			DSN:           cfg.DB.DSN,
			RunsTable:     cfg.DB.RunsTable,
			EntitiesTable: cfg.DB.EntitiesTable,
			MaxConns:      int32(cfg.DB.MaxConns),
			MinConns:      int32(cfg.DB.MinConns),
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init entity store: %w", err)
		}
		closers = append(closers, store.Close)
		opts = append(opts, pipeline.WithStore(store))
	}

	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init pubsub client: %w", err)
		}
		closers = append(closers, func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("close pubsub client", zap.Error(cerr))
			}
		})
		opts = append(opts, pipeline.WithPublisher(pubsubpublisher.New(client), cfg.PubSub.Topic))
	}

	if cfg.Report.Dir != "" {
		writer, err := report.NewWriter(cfg.Report.Dir)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("init report writer: %w", err)
		}
		opts = append(opts, pipeline.WithReporter(writer))
	}

	return opts, cleanup, nil
}

func logTopEntities(logger *zap.Logger, inventory *aggregate.Inventory) {
	const top = 10
	entities := inventory.Entities(aggregate.Filter{})
	if len(entities) > top {
		entities = entities[:top]
	}
	for _, e := range entities {
		logger.Info("entity",
			zap.String("name", e.DisplayName),
			zap.String("region", e.Region),
			zap.Int("score", e.Score),
			zap.Int("observations", e.ObservationCount),
			zap.Strings("sources", e.Sources),
		)
	}
}
