package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/italolelis/torrent_feeder/internal/storage"
)

const defaultListLimit = 50

type HistoryRepository struct {
	db *sql.DB
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

func NewHistoryRepository(dbConn *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: dbConn}
}

func (r *HistoryRepository) TrackJob(ctx context.Context, rec storage.HistoryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO history (torrent_id, title, task, outcome, reason, label, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TorrentID, rec.Title, rec.Task, rec.Outcome,
		nullString(rec.Reason), nullString(rec.Label), nullString(rec.Path),
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to track job: %w", err)
	}

	return nil
}

// ListHistory returns the most recent records first. A limit <= 0 uses the
// default page size.
func (r *HistoryRepository) ListHistory(ctx context.Context, limit int) ([]storage.HistoryRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, torrent_id, title, task, outcome, reason, label, path, created_at
		FROM history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []storage.HistoryRecord

	for rows.Next() {
		var (
			rec                 storage.HistoryRecord
			reason, label, path sql.NullString
		)

		if err := rows.Scan(&rec.ID, &rec.TorrentID, &rec.Title, &rec.Task, &rec.Outcome, &reason, &label, &path, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}

		rec.Reason, rec.Label, rec.Path = reason.String, label.String, path.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *HistoryRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
