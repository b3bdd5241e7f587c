package storage

import (
	"context"
	"time"
)

// Outcomes recorded for a job.
const (
	OutcomeAdded    = "added"
	OutcomeModified = "modified"
	OutcomeFailed   = "failed"
)

// HistoryRecord is one job submitted to a daemon.
type HistoryRecord struct {
	ID        int64     `json:"id"`
	TorrentID string    `json:"torrent_id"`
	Title     string    `json:"title"`
	Task      string    `json:"task"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Label     string    `json:"label,omitempty"`
	Path      string    `json:"path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryReadRepository interface {
	ListHistory(ctx context.Context, limit int) ([]HistoryRecord, error)
}

type HistoryWriteRepository interface {
	TrackJob(ctx context.Context, rec HistoryRecord) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// HistoryRepository reads and writes job history.
type HistoryRepository interface {
	HistoryReadRepository
	HistoryWriteRepository
}
