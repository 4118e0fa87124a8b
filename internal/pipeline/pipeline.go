// Package pipeline orchestrates one scan run: collect from every source
// adapter concurrently, fold the observations into ranked entities, then
// persist, publish, and report the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/aggregate"
	"github.com/signalfold/signalfold/internal/intel"
	"github.com/signalfold/signalfold/internal/metrics"
	"github.com/signalfold/signalfold/internal/report"
)

// Pipeline wires adapters to the aggregator and the optional sinks.
type Pipeline struct {
	adapters  []intel.SourceAdapter
	agg       *aggregate.Aggregator
	ids       intel.IDGenerator
	clock     intel.Clock
	logger    *zap.Logger
	store     intel.EntityStore
	publisher intel.Publisher
	topic     string
	reporter  *report.Writer
}

// Option customizes a Pipeline beyond its required collaborators.
type Option func(*Pipeline)

// WithStore persists each run's summary and entities.
func WithStore(store intel.EntityStore) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithPublisher announces run completion on the given topic.
func WithPublisher(pub intel.Publisher, topic string) Option {
	return func(p *Pipeline) {
		p.publisher = pub
		p.topic = topic
	}
}

// WithReporter writes a JSON report per run.
func WithReporter(w *report.Writer) Option {
	return func(p *Pipeline) { p.reporter = w }
}

// New builds a Pipeline over the given adapters.
func New(
	adapters []intel.SourceAdapter,
	agg *aggregate.Aggregator,
	ids intel.IDGenerator,
	clk intel.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	p := &Pipeline{
		adapters: adapters,
		agg:      agg,
		ids:      ids,
		clock:    clk,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the outcome of one run. It is populated even when Run also
// returns an error: a run always yields a ranked inventory, and the error
// aggregates side-effect failures (persist, publish, report) plus failed
// sources.
type Result struct {
	Summary    intel.RunSummary
	Inventory  *aggregate.Inventory
	ReportPath string
}

type collectResult struct {
	observations []intel.Observation
	err          error
}

// Run executes one full scan.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	started := p.clock.Now()
	runID, err := p.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	p.logger.Info("scan started",
		zap.String("run_id", runID),
		zap.Int("sources", len(p.adapters)),
	)

	results := p.collect(ctx)

	var (
		observations []intel.Observation
		sources      []string
		failed       []string
	)
	for i, adapter := range p.adapters {
		sources = append(sources, adapter.Name())
		if results[i].err != nil {
			p.logger.Warn("source failed",
				zap.String("source", adapter.Name()),
				zap.Error(results[i].err),
			)
			failed = append(failed, adapter.Name())
			continue
		}
		observations = append(observations, results[i].observations...)
	}

	// Collection order is nondeterministic across adapters; fix it before
	// folding so equal inputs always rank identically.
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].ObservedAt.Before(observations[j].ObservedAt)
	})

	records := p.agg.Fold(observations)
	inventory := aggregate.NewInventory(records, len(observations))
	metrics.SetEntitiesDiscovered(len(records))

	summary := intel.RunSummary{
		RunID:         runID,
		Started:       started,
		Finished:      p.clock.Now(),
		Sources:       sources,
		RawCount:      len(observations),
		EntityCount:   len(records),
		FailedSources: failed,
	}

	result := Result{Summary: summary, Inventory: inventory}
	var sideErrs []error
	if len(failed) > 0 {
		sideErrs = append(sideErrs, fmt.Errorf("%d of %d sources failed", len(failed), len(sources)))
	}
	sideErrs = append(sideErrs, p.deliver(ctx, &result, records)...)

	status := "ok"
	if len(sideErrs) > 0 {
		status = "partial"
	}
	metrics.ObserveRun(status)
	p.logger.Info("scan finished",
		zap.String("run_id", runID),
		zap.String("status", status),
		zap.Int("raw_observations", summary.RawCount),
		zap.Int("entities", summary.EntityCount),
		zap.Strings("failed_sources", failed),
	)
	return result, errors.Join(sideErrs...)
}

// collect runs every adapter concurrently with panic isolation, keeping
// results in adapter order.
func (p *Pipeline) collect(ctx context.Context) []collectResult {
	results := make([]collectResult, len(p.adapters))
	var wg sync.WaitGroup
	for i, adapter := range p.adapters {
		wg.Add(1)
		go func(i int, adapter intel.SourceAdapter) {
			defer wg.Done()
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					results[i] = collectResult{err: fmt.Errorf("adapter panic: %v", r)}
				}
				metrics.ObserveSource(adapter.Name(), len(results[i].observations), time.Since(start))
			}()
			obs, err := adapter.Collect(ctx)
			results[i] = collectResult{observations: obs, err: err}
		}(i, adapter)
	}
	wg.Wait()
	return results
}

func (p *Pipeline) deliver(ctx context.Context, result *Result, records []intel.EntityRecord) []error {
	var errs []error
	if p.store != nil {
		if err := p.store.StoreRun(ctx, result.Summary, records); err != nil {
			p.logger.Error("persist run failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("persist run: %w", err))
		}
	}
	if p.publisher != nil {
		if _, err := p.publisher.Publish(ctx, p.topic, result.Summary); err != nil {
			p.logger.Error("publish run failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("publish run: %w", err))
		}
	}
	if p.reporter != nil {
		path, err := p.reporter.Write(result.Summary, records)
		if err != nil {
			p.logger.Error("write report failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("write report: %w", err))
		} else {
			result.ReportPath = path
		}
	}
	return errs
}
