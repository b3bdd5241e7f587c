package deluge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/torrent_feeder/internal/dc"
	"github.com/italolelis/torrent_feeder/internal/download"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/storage"
	"github.com/italolelis/torrent_feeder/internal/task"
)

// mainFileShare is the share of a torrent's total size a file must exceed to
// count as its main file.
const mainFileShare = 0.9

// jobFailure fails one entry without affecting the rest of the batch.
type jobFailure struct {
	reason string
	err    error
}

func (f *jobFailure) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%s: %v", f.reason, f.err)
	}

	return f.reason
}

func (f *jobFailure) Unwrap() error { return f.err }

// modifyOptions are applied after a job is in the session.
type modifyOptions struct {
	path            string
	movedone        string
	label           string
	queueToTop      *bool
	contentFilename string
	mainFileOnly    bool
}

// processEntry adds the entry's torrent to the daemon, or updates the job
// when it is already in the session. Only an expired batch context is
// returned as an error.
func (b *batch) processEntry(ctx context.Context, e *task.Entry, inSession map[string]bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := logctx.LoggerFromContext(ctx).With("title", e.Title())

	addOpts := b.addOptions(ctx, e)
	mod := b.modifyOptions(ctx, e)

	id := e.GetString("deluge_id")
	if id == "" {
		id = e.GetString("torrent_info_hash")
	}

	id = strings.ToLower(id)

	if id != "" && inSession[id] {
		logger.Info("torrent is already loaded in deluge, setting options", "torrent_id", id)

		if loc, ok := addOpts["download_location"].(string); ok {
			mod.path = loc
			delete(addOpts, "download_location")
		}

		b.applySettings(ctx, id, e, mod)

		if err := b.sess.SetTorrentOptions(ctx, []string{id}, addOpts); err != nil {
			logger.Warn("failed to set torrent options", "torrent_id", id, "err", err)
		}

		b.recordResult(ctx, e, id, storage.OutcomeModified, "", mod.path, mod.label)

		return ctx.Err()
	}

	newID, err := b.add(ctx, e, addOpts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var failure *jobFailure
		if !errors.As(err, &failure) {
			failure = &jobFailure{reason: "Could not be added to deluge", err: err}
		}

		logger.Info("torrent was not added to deluge", "err", err)
		b.task.Fail(e, OutputName, failure.reason)
		b.recordResult(ctx, e, id, storage.OutcomeFailed, failure.reason, "", "")

		return nil
	}

	logger.Info("torrent successfully added to deluge", "torrent_id", newID)
	e.Set("deluge_id", newID)

	loc, _ := addOpts["download_location"].(string)
	b.recordResult(ctx, e, newID, storage.OutcomeAdded, "", loc, mod.label)

	b.applySettings(ctx, newID, e, mod)

	return ctx.Err()
}

// add submits a magnet URI or the entry's temp .torrent file.
func (b *batch) add(ctx context.Context, e *task.Entry, opts dc.Options) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	var (
		id  string
		err error
	)

	if url := e.URL(); download.IsMagnet(url) {
		logger.Debug("adding magnet to deluge", "title", e.Title())

		id, err = b.sess.AddTorrentMagnet(ctx, url, opts)
	} else {
		file := e.GetString(download.FileField)

		if _, statErr := os.Stat(file); file == "" || statErr != nil {
			e.Delete(download.FileField)

			return "", &jobFailure{reason: fmt.Sprintf("Downloaded temp file '%s' doesn't exist!", file)}
		}

		content, readErr := os.ReadFile(file)
		if readErr != nil {
			return "", &jobFailure{reason: "Could not read temp file", err: readErr}
		}

		logger.Debug("adding torrent to deluge", "title", e.Title(), "size", humanize.Bytes(uint64(len(content))))

		id, err = b.sess.AddTorrentFile(ctx, e.Title(), content, opts)
	}

	if err != nil {
		return "", err
	}

	if id == "" {
		return "", &jobFailure{reason: "Could not be added to deluge", err: errors.New("daemon returned no torrent id")}
	}

	return id, nil
}

// addOptions builds the option map sent with the add call.
func (b *batch) addOptions(ctx context.Context, e *task.Entry) dc.Options {
	opts := dc.Options{}

	if p := b.renderSetting(ctx, e, "path"); p != "" {
		opts["download_location"] = task.MakeValidPath(task.ExpandUser(p))
	}

	for _, o := range addOptions {
		v, ok := b.cfg.setting(e, o.key)
		if !ok {
			continue
		}

		opts[o.option] = v

		if o.key == "ratio" {
			opts["stop_at_ratio"] = true
		}
	}

	return opts
}

func (b *batch) modifyOptions(ctx context.Context, e *task.Entry) modifyOptions {
	mod := modifyOptions{
		label:           FormatLabel(b.stringSetting(e, "label")),
		contentFilename: b.renderSetting(ctx, e, "content_filename"),
	}

	if movedone := b.renderSetting(ctx, e, "movedone"); movedone != "" {
		mod.movedone = task.MakeValidPath(task.ExpandUser(movedone))
	}

	if v, ok := b.cfg.setting(e, "queuetotop"); ok {
		if top, ok := v.(bool); ok {
			mod.queueToTop = &top
		}
	}

	if v, ok := b.cfg.setting(e, "main_file_only"); ok {
		mod.mainFileOnly, _ = v.(bool)
	}

	return mod
}

func (b *batch) stringSetting(e *task.Entry, key string) string {
	v, ok := b.cfg.setting(e, key)
	if !ok || v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

// renderSetting renders a templated setting against the entry. On failure the
// raw value is used.
func (b *batch) renderSetting(ctx context.Context, e *task.Entry, key string) string {
	raw := b.stringSetting(e, key)

	out, err := task.Render(raw, e)
	if err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to render setting", "title", e.Title(), "setting", key, "err", err)

		return raw
	}

	return out
}

// applySettings runs the post-add mutators for a job. Failures are logged
// and do not fail the entry.
func (b *batch) applySettings(ctx context.Context, id string, e *task.Entry, mod modifyOptions) {
	logger := logctx.LoggerFromContext(ctx).With("title", e.Title(), "torrent_id", id)

	if mod.path != "" {
		b.ensureDir(ctx, mod.path)
		logger.Debug("moving storage", "path", mod.path)

		if err := b.sess.MoveStorage(ctx, []string{id}, mod.path); err != nil {
			logger.Warn("failed to move storage", "path", mod.path, "err", err)
		}
	}

	if mod.movedone != "" {
		b.ensureDir(ctx, mod.movedone)
		logger.Debug("setting move on complete", "path", mod.movedone)

		if err := b.sess.SetMoveCompleted(ctx, id, mod.movedone); err != nil {
			logger.Warn("failed to set move on complete", "path", mod.movedone, "err", err)
		}
	}

	if mod.label != "" && b.labelsReady {
		if err := b.sess.SetTorrentLabel(ctx, id, mod.label); err != nil {
			logger.Warn("failed to set label", "label", mod.label, "err", err)
		}
	}

	if mod.queueToTop != nil {
		var err error

		if *mod.queueToTop {
			logger.Debug("moving to top of queue")
			err = b.sess.QueueTop(ctx, []string{id})
		} else {
			logger.Debug("moving to bottom of queue")
			err = b.sess.QueueBottom(ctx, []string{id})
		}

		if err != nil {
			logger.Warn("failed to change queue position", "err", err)
		}
	}

	if mod.contentFilename != "" || mod.mainFileOnly {
		b.handleMainFile(ctx, id, e, mod)
	}
}

// ensureDir creates dir for daemons that will not create it themselves.
// It can only do so when the daemon shares this machine.
func (b *batch) ensureDir(ctx context.Context, dir string) {
	if b.caps.CreatesMoveDirs {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	if !b.sess.IsLocalhost() {
		logger.Warn("if the path does not exist on the machine running the daemon, the move will fail", "path", dir)

		return
	}

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return
	}

	logger.Debug("path doesn't exist, creating", "path", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("failed to create path", "path", dir, "err", err)
	}
}

// handleMainFile renames and/or isolates the file holding most of the
// torrent's content.
func (b *batch) handleMainFile(ctx context.Context, id string, e *task.Entry, mod modifyOptions) {
	logger := logctx.LoggerFromContext(ctx).With("title", e.Title(), "torrent_id", id)

	status, err := b.sess.TorrentStatus(ctx, id)
	if err != nil {
		logger.Warn("failed to fetch torrent status", "err", err)

		return
	}

	main, ok := MainFile(status)
	if !ok {
		logger.Warn("no file is over 90% of the content size, no files renamed", "total_size", humanize.Bytes(uint64(max(status.TotalSize, 0))))

		return
	}

	if mod.contentFilename != "" {
		name := b.uniqueFilename(ctx, status, mod.contentFilename, path.Ext(main.Path))
		logger.Debug("renaming main file", "from", main.Path, "to", name)

		if err := b.sess.RenameFiles(ctx, id, []dc.FileRename{{Index: main.Index, Name: name}}); err != nil {
			logger.Warn("failed to rename file", "file", main.Path, "err", err)
		}
	}

	if mod.mainFileOnly {
		priorities := make([]int, len(status.Files))
		for i, f := range status.Files {
			if f.Index == main.Index {
				priorities[i] = 1
			}
		}

		if err := b.sess.SetFilePriorities(ctx, id, priorities); err != nil {
			logger.Warn("failed to set file priorities", "err", err)
		}
	}
}

// MainFile returns the first file larger than 90% of the torrent's total size.
func MainFile(status *dc.TorrentStatus) (dc.File, bool) {
	for _, f := range status.Files {
		if float64(f.Size) > float64(status.TotalSize)*mainFileShare {
			return f, true
		}
	}

	return dc.File{}, false
}

// uniqueFilename appends (N) to base until no file with that name exists in
// the save path or the move-on-complete path. Uniqueness can only be checked
// when the daemon is local.
func (b *batch) uniqueFilename(ctx context.Context, status *dc.TorrentStatus, base, ext string) string {
	name := base + ext

	if !b.sess.IsLocalhost() {
		logctx.LoggerFromContext(ctx).Debug("cannot ensure content_filename is unique on a remote deluge daemon")

		return name
	}

	exists := func(name string) bool {
		if _, err := os.Stat(filepath.Join(status.SavePath, name)); err == nil {
			return true
		}

		if status.MoveOnCompleted && status.MoveOnCompletedPath != "" {
			if _, err := os.Stat(filepath.Join(status.MoveOnCompletedPath, name)); err == nil {
				return true
			}
		}

		return false
	}

	for counter := 1; exists(name); counter++ {
		name = fmt.Sprintf("%s(%d)%s", base, counter, ext)
	}

	return name
}
