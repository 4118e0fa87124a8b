// Package postgres provides Postgres-backed persistence for run results.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalfold/signalfold/internal/intel"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// EntityStoreConfig controls the Postgres connection pool used for run rows.
type EntityStoreConfig struct {
	DSN             string
	RunsTable       string
	EntitiesTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// EntityStore writes run summaries and their ranked entities into
// Postgres. It implements intel.EntityStore.
type EntityStore struct {
	pool          execCloser
	runsTable     string
	entitiesTable string
}

// NewEntityStore creates a Postgres-backed EntityStore using the provided
// config.
func NewEntityStore(ctx context.Context, cfg EntityStoreConfig) (*EntityStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newWithPool(pool, cfg.RunsTable, cfg.EntitiesTable)
}

// NewEntityStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewEntityStoreWithPool(pool execCloser, runsTable, entitiesTable string) (*EntityStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newWithPool(pool, runsTable, entitiesTable)
}

func newWithPool(pool execCloser, runsTable, entitiesTable string) (*EntityStore, error) {
	if runsTable == "" {
		runsTable = "runs"
	}
	if entitiesTable == "" {
		entitiesTable = "run_entities"
	}
	for _, table := range []string{runsTable, entitiesTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &EntityStore{
		pool:          pool,
		runsTable:     runsTable,
		entitiesTable: entitiesTable,
	}, nil
}

// Close releases the underlying pool resources.
func (s *EntityStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRun inserts the run summary row followed by one row per entity.
func (s *EntityStore) StoreRun(ctx context.Context, summary intel.RunSummary, entities []intel.EntityRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("entity store is not configured")
	}
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	sources, err := json.Marshal(summary.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	failed, err := json.Marshal(summary.FailedSources)
	if err != nil {
		return fmt.Errorf("marshal failed sources: %w", err)
	}

	runQuery := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	started_at,
	finished_at,
	sources,
	failed_sources,
	raw_observation_count,
	entity_count
) VALUES ($1,$2,$3,$4,$5,$6,$7)`, s.runsTable)

	if _, err := s.pool.Exec(ctx, runQuery,
		summary.RunID,
		summary.Started,
		summary.Finished,
		sources,
		failed,
		summary.RawCount,
		summary.EntityCount,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	entityQuery := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	canonical_key,
	display_name,
	region,
	attributes,
	categories,
	evidence_kinds,
	observation_sources,
	observation_count,
	best_confidence,
	corroboration_score
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, s.entitiesTable)

	for _, entity := range entities {
		attrs, err := json.Marshal(entity.Attributes)
		if err != nil {
			return fmt.Errorf("marshal attributes: %w", err)
		}
		categories, err := json.Marshal(entity.Categories)
		if err != nil {
			return fmt.Errorf("marshal categories: %w", err)
		}
		kinds, err := json.Marshal(entity.EvidenceKinds)
		if err != nil {
			return fmt.Errorf("marshal evidence kinds: %w", err)
		}
		obsSources, err := json.Marshal(entity.Sources)
		if err != nil {
			return fmt.Errorf("marshal entity sources: %w", err)
		}
		if _, err := s.pool.Exec(ctx, entityQuery,
			summary.RunID,
			entity.CanonicalKey,
			entity.DisplayName,
			entity.Region,
			attrs,
			categories,
			kinds,
			obsSources,
			entity.ObservationCount,
			string(entity.BestConfidence),
			entity.Score,
		); err != nil {
			return fmt.Errorf("insert entity %q: %w", entity.CanonicalKey, err)
		}
	}
	return nil
}
