package deluge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/italolelis/torrent_feeder/internal/cleanup"
	"github.com/italolelis/torrent_feeder/internal/dc"
	"github.com/italolelis/torrent_feeder/internal/download"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/notifier"
	"github.com/italolelis/torrent_feeder/internal/storage"
	"github.com/italolelis/torrent_feeder/internal/task"
	"github.com/italolelis/torrent_feeder/internal/telemetry"
	"github.com/italolelis/torrent_feeder/internal/torrent"
)

const (
	OutputName = "deluge"

	// DownloadPluginName is the plugin that owns temp files when a task
	// configures it.
	DownloadPluginName = "download"

	DefaultBatchTimeout = 30 * time.Second
	DefaultMaxParallel  = 5

	disconnectTimeout = 5 * time.Second
)

// addOptions maps config keys to the daemon's add-torrent option names.
var addOptions = []struct{ key, option string }{
	{"maxupspeed", "max_upload_speed"},
	{"maxdownspeed", "max_download_speed"},
	{"maxconnections", "max_connections"},
	{"maxupslots", "max_upload_slots"},
	{"automanaged", "auto_managed"},
	{"ratio", "stop_ratio"},
	{"removeatratio", "remove_at_ratio"},
	{"addpaused", "add_paused"},
	{"compact", "compact_allocation"},
}

type outputConfig struct {
	connectionConfig `yaml:",inline"`

	Enabled         *bool    `yaml:"enabled"`
	Path            string   `yaml:"path"`
	Movedone        string   `yaml:"movedone"`
	Label           string   `yaml:"label"`
	QueueToTop      *bool    `yaml:"queuetotop"`
	AutoManaged     *bool    `yaml:"automanaged"`
	MaxUpSpeed      *float64 `yaml:"maxupspeed"`
	MaxDownSpeed    *float64 `yaml:"maxdownspeed"`
	MaxConnections  *int     `yaml:"maxconnections"`
	MaxUpSlots      *int     `yaml:"maxupslots"`
	Ratio           *float64 `yaml:"ratio"`
	RemoveAtRatio   *bool    `yaml:"removeatratio"`
	AddPaused       *bool    `yaml:"addpaused"`
	Compact         *bool    `yaml:"compact"`
	ContentFilename string   `yaml:"content_filename"`
	MainFileOnly    *bool    `yaml:"main_file_only"`
}

// value returns the configured value of an overridable key.
func (c *outputConfig) value(key string) (any, bool) {
	var v any

	switch key {
	case "path":
		return c.Path, true
	case "movedone":
		return c.Movedone, true
	case "label":
		return c.Label, true
	case "content_filename":
		return c.ContentFilename, true
	case "queuetotop":
		v = c.QueueToTop
	case "automanaged":
		v = c.AutoManaged
	case "maxupspeed":
		v = c.MaxUpSpeed
	case "maxdownspeed":
		v = c.MaxDownSpeed
	case "maxconnections":
		v = c.MaxConnections
	case "maxupslots":
		v = c.MaxUpSlots
	case "ratio":
		v = c.Ratio
	case "removeatratio":
		v = c.RemoveAtRatio
	case "addpaused":
		v = c.AddPaused
	case "compact":
		v = c.Compact
	case "main_file_only":
		v = c.MainFileOnly
	}

	return deref(v)
}

func deref(v any) (any, bool) {
	switch p := v.(type) {
	case *bool:
		if p != nil {
			return *p, true
		}
	case *int:
		if p != nil {
			return *p, true
		}
	case *float64:
		if p != nil {
			return *p, true
		}
	}

	return nil, false
}

// setting resolves key for an entry: an entry field of the same name wins
// over the task config.
func (c *outputConfig) setting(e *task.Entry, key string) (any, bool) {
	if v, ok := e.Get(key); ok && v != nil {
		return v, true
	}

	return c.value(key)
}

// OutputPlugin adds accepted entries to the daemon.
type OutputPlugin struct {
	connector

	fetcher      *download.Fetcher
	history      storage.HistoryWriteRepository
	notifier     notifier.Notifier
	telemetry    *telemetry.Telemetry
	batchTimeout time.Duration
	maxParallel  int
}

// OutputOption customises an OutputPlugin.
type OutputOption func(*OutputPlugin)

func WithFetcher(f *download.Fetcher) OutputOption {
	return func(p *OutputPlugin) { p.fetcher = f }
}

func WithHistory(h storage.HistoryWriteRepository) OutputOption {
	return func(p *OutputPlugin) { p.history = h }
}

func WithNotifier(n notifier.Notifier) OutputOption {
	return func(p *OutputPlugin) { p.notifier = n }
}

func WithTelemetry(t *telemetry.Telemetry) OutputOption {
	return func(p *OutputPlugin) { p.telemetry = t }
}

// WithBatchTimeout bounds one batch against the daemon.
func WithBatchTimeout(d time.Duration) OutputOption {
	return func(p *OutputPlugin) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}

// WithMaxParallel bounds how many jobs are sent to the daemon at once.
func WithMaxParallel(n int) OutputOption {
	return func(p *OutputPlugin) {
		if n > 0 {
			p.maxParallel = n
		}
	}
}

func NewOutputPlugin(dialer dc.Dialer, defaults dc.ConnectionInfo, opts ...OutputOption) *OutputPlugin {
	p := &OutputPlugin{
		connector:    connector{name: OutputName, dialer: dialer, defaults: defaults},
		batchTimeout: DefaultBatchTimeout,
		maxParallel:  DefaultMaxParallel,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.fetcher == nil {
		p.fetcher = download.NewFetcher(os.TempDir(), nil)
	}

	return p
}

func (p *OutputPlugin) Priority(phase task.Phase) int {
	switch phase {
	case task.PhaseDownload:
		return 120
	case task.PhaseOutput:
		return 135
	default:
		return task.DefaultPriority
	}
}

func (p *OutputPlugin) prepareConfig(cfg *task.PluginConfig) (*outputConfig, error) {
	c := &outputConfig{}

	if b, ok := cfg.Bool(); ok {
		c.Enabled = &b
	} else if err := cfg.Decode(c); err != nil {
		return nil, err
	}

	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}

	return c, nil
}

// OnTaskDownload fetches temp .torrent files when no download plugin does,
// then fails entries whose file is not valid metainfo.
func (p *OutputPlugin) OnTaskDownload(ctx context.Context, t *task.Task, cfg *task.PluginConfig) error {
	logger := logctx.LoggerFromContext(ctx).With("plugin", OutputName)

	c, err := p.prepareConfig(cfg)
	if err != nil {
		return &task.PluginError{Plugin: OutputName, Message: "invalid config", Err: err}
	}

	if !*c.Enabled {
		return nil
	}

	if !t.HasPlugin(DownloadPluginName) {
		for _, e := range t.Accepted() {
			if e.GetString("deluge_id") != "" || download.IsMagnet(e.URL()) {
				continue
			}

			if err := p.fetcher.FetchEntry(ctx, e); err != nil {
				logger.Error("failed to fetch torrent", "title", e.Title(), "url", e.URL(), "err", err)
				t.Fail(e, OutputName, fmt.Sprintf("Failed to download torrent: %v", err))
			}
		}
	}

	for _, e := range t.Accepted() {
		file := e.GetString(download.FileField)
		if file == "" {
			continue
		}

		if _, err := os.Stat(file); err != nil {
			continue
		}

		if err := torrent.Validate(file); err != nil {
			logger.Error("torrent file appears invalid", "title", e.Title(), "err", err)
			t.Fail(e, OutputName, "Invalid torrent file")
		}
	}

	return nil
}

func (p *OutputPlugin) OnTaskOutput(ctx context.Context, t *task.Task, cfg *task.PluginConfig) error {
	logger := logctx.LoggerFromContext(ctx).With("plugin", OutputName)

	c, err := p.prepareConfig(cfg)
	if err != nil {
		return &task.PluginError{Plugin: OutputName, Message: "invalid config", Err: err}
	}

	if t.Options.Learn {
		return nil
	}

	if !*c.Enabled || (len(t.Accepted()) == 0 && !t.Options.Test) {
		return nil
	}

	err = p.telemetry.InstrumentBatch(ctx, OutputName, func(ctx context.Context) error {
		return p.runBatch(ctx, t, c)
	})

	var pluginErr *task.PluginError

	switch {
	case errors.As(err, &pluginErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("Timed out while adding torrents to deluge.", "timeout", p.batchTimeout)
	case err != nil:
		return err
	}

	if !t.HasPlugin(DownloadPluginName) {
		cleanup.RemoveTempFiles(ctx, append(t.Accepted(), t.Failed()...))
	}

	return nil
}

// OnTaskExit removes temp files left behind when no download plugin owns them.
func (p *OutputPlugin) OnTaskExit(ctx context.Context, t *task.Task, cfg *task.PluginConfig) error {
	if !t.HasPlugin(DownloadPluginName) {
		cleanup.RemoveTempFiles(ctx, t.AllEntries())
	}

	return nil
}

func (p *OutputPlugin) OnTaskAbort(ctx context.Context, t *task.Task, cfg *task.PluginConfig) {
	_ = p.OnTaskExit(ctx, t, cfg)
}
