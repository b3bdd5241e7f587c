package builtin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/italolelis/torrent_feeder/internal/download"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/task"
)

const DownloadName = "download"

type downloadConfig struct {
	Path string `yaml:"path"`
}

// Download fetches the url of every accepted entry into a directory and
// keeps the files. Output plugins leave its files alone.
type Download struct {
	HTTPClient *http.Client
}

func (d *Download) Name() string { return DownloadName }

func (d *Download) OnTaskDownload(ctx context.Context, t *task.Task, cfg *task.PluginConfig) error {
	logger := logctx.LoggerFromContext(ctx).With("plugin", DownloadName)

	var c downloadConfig

	if path, ok := cfg.Scalar(); ok {
		c.Path = path
	} else if err := cfg.Decode(&c); err != nil {
		return &task.PluginError{Plugin: DownloadName, Message: "invalid config", Err: err}
	}

	if c.Path == "" {
		return &task.PluginError{Plugin: DownloadName, Message: "path is required"}
	}

	fetcher := download.NewFetcher(task.ExpandUser(c.Path), d.HTTPClient)

	for _, e := range t.Accepted() {
		if e.Has(download.FileField) {
			continue
		}

		err := fetcher.FetchEntry(ctx, e)

		switch {
		case errors.Is(err, download.ErrMagnet):
			continue
		case err != nil:
			logger.Error("failed to download", "title", e.Title(), "err", err)
			t.Fail(e, DownloadName, fmt.Sprintf("Failed to download: %v", err))
		}
	}

	return nil
}
