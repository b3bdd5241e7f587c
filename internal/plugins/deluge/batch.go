package deluge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/italolelis/torrent_feeder/internal/dc"
	delugeclient "github.com/italolelis/torrent_feeder/internal/dc/deluge"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/notifier"
	"github.com/italolelis/torrent_feeder/internal/storage"
	"github.com/italolelis/torrent_feeder/internal/task"
	"golang.org/x/sync/errgroup"
)

const labelPlugin = "Label"

// batch is one run of the output plugin against a connected daemon.
type batch struct {
	plugin *OutputPlugin
	task   *task.Task
	cfg    *outputConfig
	sess   dc.Session

	caps        dc.Capabilities
	labelsReady bool

	mu     sync.Mutex
	added  []string
	failed []string
}

// runBatch connects, syncs labels, resolves daemon capabilities, reads the
// session and then adds or modifies one job per accepted entry. The whole
// batch shares one deadline.
func (p *OutputPlugin) runBatch(ctx context.Context, t *task.Task, c *outputConfig) error {
	ctx, cancel := context.WithTimeout(ctx, p.batchTimeout)
	defer cancel()

	logger := logctx.LoggerFromContext(ctx).With("plugin", OutputName)

	sess, err := p.connect(ctx, c.info(p.defaults))
	if err != nil {
		return err
	}

	defer closeSession(ctx, sess)

	if t.Options.Test {
		logger.Info("test connection to deluge daemon successful")

		return nil
	}

	b := &batch{plugin: p, task: t, cfg: c, sess: sess}
	b.labelsReady = b.syncLabels(ctx)
	b.caps = b.fetchCapabilities(ctx)

	ids, err := sess.SessionState(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("failed to fetch deluge session: %w", ctxErr)
		}

		return &task.PluginError{Plugin: OutputName, Message: "Could not fetch the deluge session", Err: err}
	}

	inSession := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSession[strings.ToLower(id)] = true
	}

	var g errgroup.Group
	g.SetLimit(p.maxParallel)

	for _, e := range t.Accepted() {
		g.Go(func() error {
			return b.processEntry(ctx, e, inSession)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("deluge batch interrupted: %w", err)
	}

	b.notify(ctx)

	return nil
}

// syncLabels makes sure the label plugin is enabled and every label the batch
// uses exists. It reports whether labels can be applied to jobs.
func (b *batch) syncLabels(ctx context.Context) bool {
	logger := logctx.LoggerFromContext(ctx)

	wanted := map[string]bool{}

	for _, e := range b.task.Accepted() {
		if l := e.GetString("label"); l != "" {
			wanted[FormatLabel(l)] = true
		}
	}

	if b.cfg.Label != "" {
		wanted[FormatLabel(b.cfg.Label)] = true
	}

	if len(wanted) == 0 {
		return true
	}

	enabled, err := b.sess.EnabledPlugins(ctx)
	if err != nil {
		logger.Error("failed to list enabled deluge plugins", "err", err)

		return false
	}

	if !slices.Contains(enabled, labelPlugin) {
		available, err := b.sess.AvailablePlugins(ctx)
		if err != nil {
			logger.Error("failed to list available deluge plugins", "err", err)

			return false
		}

		if !slices.Contains(available, labelPlugin) {
			logger.Error("Label plugin is not installed in deluge")

			return false
		}

		logger.Debug("enabling label plugin in deluge")

		if err := b.sess.EnablePlugin(ctx, labelPlugin); err != nil {
			logger.Error("failed to enable label plugin", "err", err)

			return false
		}
	}

	existing, err := b.sess.Labels(ctx)
	if err != nil {
		logger.Error("failed to list deluge labels", "err", err)

		return false
	}

	missing := make([]string, 0, len(wanted))

	for l := range wanted {
		if !slices.Contains(existing, l) {
			missing = append(missing, l)
		}
	}

	sort.Strings(missing)

	for _, l := range missing {
		logger.Debug("adding label to deluge", "label", l)

		if err := b.sess.AddLabel(ctx, l); err != nil {
			logger.Warn("failed to add label", "label", l, "err", err)
		}
	}

	return true
}

func (b *batch) fetchCapabilities(ctx context.Context) dc.Capabilities {
	logger := logctx.LoggerFromContext(ctx)

	version, err := b.sess.DaemonVersion(ctx)
	if err != nil {
		logger.Warn("failed to fetch deluge version", "err", err)
	}

	logger.Debug("deluge version", "version", version)

	return delugeclient.CapabilitiesFor(version)
}

func (b *batch) recordResult(ctx context.Context, e *task.Entry, id, outcome, reason, path, label string) {
	logger := logctx.LoggerFromContext(ctx)

	b.mu.Lock()
	switch outcome {
	case storage.OutcomeAdded:
		b.added = append(b.added, e.Title())
	case storage.OutcomeFailed:
		b.failed = append(b.failed, e.Title())
	}
	b.mu.Unlock()

	b.plugin.telemetry.RecordEntry(ctx, OutputName, outcome)

	if b.plugin.history == nil {
		return
	}

	rec := storage.HistoryRecord{
		TorrentID: id,
		Title:     e.Title(),
		Task:      b.task.Name,
		Outcome:   outcome,
		Reason:    reason,
		Label:     label,
		Path:      path,
	}

	if err := b.plugin.history.TrackJob(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record job history", "title", e.Title(), "err", err)
	}
}

func (b *batch) notify(ctx context.Context) {
	if b.plugin.notifier == nil || (len(b.added) == 0 && len(b.failed) == 0) {
		return
	}

	var msg strings.Builder

	fmt.Fprintf(&msg, "**%s**: %d added to deluge", b.task.Name, len(b.added))

	if len(b.failed) > 0 {
		fmt.Fprintf(&msg, ", %d failed", len(b.failed))
	}

	for _, title := range b.added {
		fmt.Fprintf(&msg, "\n+ %s", title)
	}

	for _, title := range b.failed {
		fmt.Fprintf(&msg, "\n- %s", title)
	}

	if err := b.plugin.notifier.Notify(ctx, msg.String()); err != nil && !errors.Is(err, notifier.ErrNoWebhook) {
		logctx.LoggerFromContext(ctx).Warn("failed to send notification", "err", err)
	}
}
