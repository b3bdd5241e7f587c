package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/italolelis/torrent_feeder/internal/download"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/task"
)

// RemoveTempFiles deletes the temp file of every entry and drops the entry's
// file field. Missing files are ignored.
func RemoveTempFiles(ctx context.Context, entries []*task.Entry) {
	logger := logctx.LoggerFromContext(ctx)

	for _, e := range entries {
		path := e.GetString(download.FileField)
		if path == "" {
			continue
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("failed to remove temp file", "title", e.Title(), "file", path, "err", err)

			continue
		}

		logger.Debug("removed temp file", "title", e.Title(), "file", path)
		e.Delete(download.FileField)
	}
}

// DeleteExpiredTempFiles removes .torrent files in dir whose modification
// time is older than keep. It returns the number of files removed.
func DeleteExpiredTempFiles(ctx context.Context, dir string, keep time.Duration) (int, error) {
	logger := logctx.LoggerFromContext(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read temp directory: %w", err)
	}

	now := time.Now()
	removed := 0

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".torrent") {
			continue
		}

		info, err := de.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // already deleted
			}

			return removed, fmt.Errorf("failed to stat %s: %w", de.Name(), err)
		}

		if now.Sub(info.ModTime()) <= keep {
			continue
		}

		path := filepath.Join(dir, de.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("failed to delete expired temp file", "file", path, "err", err)

			return removed, fmt.Errorf("failed to delete %s: %w", path, err)
		}

		logger.Info("deleted expired temp file", "file", path)

		removed++
	}

	return removed, nil
}
