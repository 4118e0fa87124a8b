package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/signalfold/signalfold/internal/intel"
)

func TestStoreRunInsertsSummaryAndEntities(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEntityStoreWithPool(mock, "runs", "run_entities")
	require.NoError(t, err)

	started := time.Unix(1750000000, 0).UTC()
	summary := intel.RunSummary{
		RunID:       "run-7",
		Started:     started,
		Finished:    started.Add(2 * time.Minute),
		Sources:     []string{"seed", "press"},
		RawCount:    12,
		EntityCount: 1,
	}
	entity := intel.EntityRecord{
		CanonicalKey:     "acme energy",
		DisplayName:      "Acme Energy",
		Region:           "Qatar",
		Attributes:       []string{"Meridian Core"},
		Categories:       []string{"Energy"},
		EvidenceKinds:    []intel.EvidenceKind{intel.KindReference, intel.KindAnnouncement},
		Sources:          []string{"Curated Seed List", "Press Release"},
		ObservationCount: 3,
		BestConfidence:   intel.ConfidenceHigh,
		Score:            2,
	}

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(
			summary.RunID,
			summary.Started,
			summary.Finished,
			[]byte(`["seed","press"]`),
			[]byte(`null`),
			summary.RawCount,
			summary.EntityCount,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO run_entities").
		WithArgs(
			summary.RunID,
			entity.CanonicalKey,
			entity.DisplayName,
			entity.Region,
			[]byte(`["Meridian Core"]`),
			[]byte(`["Energy"]`),
			[]byte(`["reference","announcement"]`),
			[]byte(`["Curated Seed List","Press Release"]`),
			entity.ObservationCount,
			"High",
			entity.Score,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.StoreRun(context.Background(), summary, []intel.EntityRecord{entity})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRunRequiresRunID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEntityStoreWithPool(mock, "", "")
	require.NoError(t, err)

	err = store.StoreRun(context.Background(), intel.RunSummary{}, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewEntityStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewEntityStoreWithPool(nil, "runs", "run_entities")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewEntityStoreWithPool(mock, "runs; drop table", "run_entities")
	require.Error(t, err)
}
