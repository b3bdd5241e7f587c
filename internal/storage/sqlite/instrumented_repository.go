package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/torrent_feeder/internal/storage"
	"github.com/italolelis/torrent_feeder/internal/telemetry"
)

// InstrumentedHistoryRepository wraps HistoryRepository with telemetry.
type InstrumentedHistoryRepository struct {
	repo      *HistoryRepository
	telemetry *telemetry.Telemetry
}

var _ storage.HistoryRepository = (*InstrumentedHistoryRepository)(nil)

func NewInstrumentedHistoryRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedHistoryRepository {
	return &InstrumentedHistoryRepository{
		repo:      NewHistoryRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedHistoryRepository) TrackJob(ctx context.Context, rec storage.HistoryRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "track_job", func(ctx context.Context) error {
		return r.repo.TrackJob(ctx, rec)
	})
}

func (r *InstrumentedHistoryRepository) ListHistory(ctx context.Context, limit int) ([]storage.HistoryRecord, error) {
	var result []storage.HistoryRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "list_history", func(ctx context.Context) error {
		var err error
		result, err = r.repo.ListHistory(ctx, limit)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *InstrumentedHistoryRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64

	err := r.telemetry.InstrumentDBOperation(ctx, "delete_older_than", func(ctx context.Context) error {
		var err error
		deleted, err = r.repo.DeleteOlderThan(ctx, before)

		return err
	})

	return deleted, err
}
