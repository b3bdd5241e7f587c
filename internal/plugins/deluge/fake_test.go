package deluge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/italolelis/torrent_feeder/internal/dc"
)

type call struct {
	method string
	args   []any
}

// fakeSession is an in-memory daemon session that records every call.
type fakeSession struct {
	mu sync.Mutex

	calls  []call
	closed bool

	version   string
	session   []string
	torrents  map[string]map[string]any
	status    map[string]*dc.TorrentStatus
	enabled   []string
	available []string
	labels    []string
	local     bool

	addID   string
	emptyID bool
	addErr  error
	failOn  map[string]error
	blockOn string // method that blocks until the context is done
	nextID  int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		version:   "2.1.1",
		enabled:   []string{"Label"},
		available: []string{"Label"},
		failOn:    map[string]error{},
		status:    map[string]*dc.TorrentStatus{},
	}
}

func (f *fakeSession) record(ctx context.Context, method string, args ...any) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: method, args: args})
	err := f.failOn[method]
	block := f.blockOn == method
	f.mu.Unlock()

	if block {
		<-ctx.Done()

		return ctx.Err()
	}

	return err
}

func (f *fakeSession) callsTo(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []call

	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}

	return out
}

func (f *fakeSession) DaemonVersion(ctx context.Context) (string, error) {
	return f.version, f.record(ctx, "daemon.info")
}

func (f *fakeSession) SessionState(ctx context.Context) ([]string, error) {
	return f.session, f.record(ctx, "core.get_session_state")
}

func (f *fakeSession) TorrentsStatus(ctx context.Context, filter map[string]any, keys []string) (map[string]map[string]any, error) {
	return f.torrents, f.record(ctx, "core.get_torrents_status", filter, keys)
}

func (f *fakeSession) TorrentStatus(ctx context.Context, id string) (*dc.TorrentStatus, error) {
	if err := f.record(ctx, "core.get_torrent_status", id); err != nil {
		return nil, err
	}

	st, ok := f.status[id]
	if !ok {
		return nil, errors.New("unknown torrent")
	}

	return st, nil
}

func (f *fakeSession) newID(ctx context.Context, method string, args ...any) (string, error) {
	if err := f.record(ctx, method, args...); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.addErr != nil {
		return "", f.addErr
	}

	if f.emptyID {
		return "", nil
	}

	if f.addID != "" {
		return f.addID, nil
	}

	f.nextID++

	return fmt.Sprintf("id%d", f.nextID), nil
}

func (f *fakeSession) AddTorrentFile(ctx context.Context, filename string, content []byte, opts dc.Options) (string, error) {
	return f.newID(ctx, "core.add_torrent_file", filename, string(content), opts)
}

func (f *fakeSession) AddTorrentMagnet(ctx context.Context, uri string, opts dc.Options) (string, error) {
	return f.newID(ctx, "core.add_torrent_magnet", uri, opts)
}

func (f *fakeSession) SetTorrentOptions(ctx context.Context, ids []string, opts dc.Options) error {
	return f.record(ctx, "core.set_torrent_options", ids, opts)
}

func (f *fakeSession) MoveStorage(ctx context.Context, ids []string, dest string) error {
	return f.record(ctx, "core.move_storage", ids, dest)
}

func (f *fakeSession) SetMoveCompleted(ctx context.Context, id string, path string) error {
	return f.record(ctx, "set_move_completed", id, path)
}

func (f *fakeSession) QueueTop(ctx context.Context, ids []string) error {
	return f.record(ctx, "core.queue_top", ids)
}

func (f *fakeSession) QueueBottom(ctx context.Context, ids []string) error {
	return f.record(ctx, "core.queue_bottom", ids)
}

func (f *fakeSession) RenameFiles(ctx context.Context, id string, renames []dc.FileRename) error {
	return f.record(ctx, "core.rename_files", id, renames)
}

func (f *fakeSession) SetFilePriorities(ctx context.Context, id string, priorities []int) error {
	return f.record(ctx, "set_file_priorities", id, priorities)
}

func (f *fakeSession) EnabledPlugins(ctx context.Context) ([]string, error) {
	return f.enabled, f.record(ctx, "core.get_enabled_plugins")
}

func (f *fakeSession) AvailablePlugins(ctx context.Context) ([]string, error) {
	return f.available, f.record(ctx, "core.get_available_plugins")
}

func (f *fakeSession) EnablePlugin(ctx context.Context, name string) error {
	return f.record(ctx, "core.enable_plugin", name)
}

func (f *fakeSession) Labels(ctx context.Context) ([]string, error) {
	return f.labels, f.record(ctx, "label.get_labels")
}

func (f *fakeSession) AddLabel(ctx context.Context, label string) error {
	return f.record(ctx, "label.add", label)
}

func (f *fakeSession) SetTorrentLabel(ctx context.Context, id, label string) error {
	return f.record(ctx, "label.set_torrent", id, label)
}

func (f *fakeSession) IsLocalhost() bool { return f.local }

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

type fakeDialer struct {
	sess *fakeSession
	err  error
	info dc.ConnectionInfo

	block bool // wait for the context to be done before failing
}

func (d *fakeDialer) Dial(ctx context.Context, info dc.ConnectionInfo) (dc.Session, error) {
	d.info = info
	if d.block {
		<-ctx.Done()

		return nil, fmt.Errorf("dial: %w", ctx.Err())
	}

	if d.err != nil {
		return nil, d.err
	}

	return d.sess, nil
}
