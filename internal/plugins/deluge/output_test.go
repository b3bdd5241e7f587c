package deluge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/italolelis/torrent_feeder/internal/dc"
	"github.com/italolelis/torrent_feeder/internal/download"
	"github.com/italolelis/torrent_feeder/internal/storage"
	"github.com/italolelis/torrent_feeder/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validTorrent = "d8:announce3:url4:infod4:name4:testee"

func pluginConfig(t *testing.T, name, doc string) *task.PluginConfig {
	t.Helper()

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &node))

	return task.NewPluginConfig(name, node.Content[0])
}

type fakeHistory struct {
	mu      sync.Mutex
	records []storage.HistoryRecord
}

func (h *fakeHistory) TrackJob(ctx context.Context, rec storage.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)

	return nil
}

func (h *fakeHistory) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(ctx context.Context, content string) error {
	n.messages = append(n.messages, content)

	return nil
}

type harness struct {
	sess    *fakeSession
	dialer  *fakeDialer
	plugin  *OutputPlugin
	history *fakeHistory
	notify  *fakeNotifier
	tempDir string
}

func newHarness(t *testing.T, opts ...OutputOption) *harness {
	t.Helper()

	h := &harness{
		sess:    newFakeSession(),
		history: &fakeHistory{},
		notify:  &fakeNotifier{},
		tempDir: filepath.Join(t.TempDir(), "temp"),
	}
	h.dialer = &fakeDialer{sess: h.sess}

	opts = append([]OutputOption{
		WithHistory(h.history),
		WithNotifier(h.notify),
		WithFetcher(download.NewFetcher(h.tempDir, nil)),
	}, opts...)

	h.plugin = NewOutputPlugin(h.dialer, dc.ConnectionInfo{Host: "seedbox", Port: 8112}, opts...)

	return h
}

func newTask(t *testing.T, opts task.Options, cfg *task.PluginConfig, entries ...*task.Entry) *task.Task {
	t.Helper()

	tk := task.New("tv", []*task.PluginConfig{cfg}, opts)
	tk.AddEntries(entries...)

	for _, e := range entries {
		tk.Accept(e, "test", "")
	}

	return tk
}

func writeTorrent(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "job.torrent")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFormatLabel(t *testing.T) {
	tests := map[string]string{
		"TV":          "tv",
		"TV Shows":    "tv_shows",
		"Movies--HD!": "movies_hd_",
		"a  &  b":     "a_b",
		"already_ok":  "already_ok",
	}

	for in, want := range tests {
		assert.Equal(t, want, FormatLabel(in), in)
	}
}

func TestOnProcessStartWithoutDialer(t *testing.T) {
	p := NewOutputPlugin(nil, dc.ConnectionInfo{})

	err := p.OnProcessStart(context.Background(), task.New("tv", nil, task.Options{}), nil)

	var depErr *task.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, OutputName, depErr.Plugin)
}

func TestMagnetNeverTouchesFilesystem(t *testing.T) {
	h := newHarness(t)

	e := task.NewEntry("Show.S01E01", "magnet:?xt=urn:btih:abc")
	tk := newTask(t, task.Options{}, pluginConfig(t, OutputName, "label: TV"), e)
	cfg := tk.PluginConfig(OutputName)

	require.NoError(t, h.plugin.OnTaskDownload(context.Background(), tk, cfg))
	require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

	adds := h.sess.callsTo("core.add_torrent_magnet")
	require.Len(t, adds, 1)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", adds[0].args[0])
	assert.Empty(t, h.sess.callsTo("core.add_torrent_file"))

	assert.Equal(t, task.Accepted, e.State())
	assert.Equal(t, "id1", e.GetString("deluge_id"))
	assert.False(t, e.Has(download.FileField))
	assert.NoDirExists(t, h.tempDir)
	assert.True(t, h.sess.closed)
}

func TestMissingTempFileFailsJob(t *testing.T) {
	h := newHarness(t)

	missing := filepath.Join(t.TempDir(), "gone.torrent")

	e := task.NewEntry("Show.S01E02", "http://example.com/2.torrent")
	e.Set(download.FileField, missing)

	ok := task.NewEntry("Show.S01E03", "magnet:?xt=urn:btih:def")

	tk := newTask(t, task.Options{}, pluginConfig(t, OutputName, "enabled: true"), e, ok)

	require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName)))

	assert.Equal(t, task.Failed, e.State())
	assert.Equal(t, "Downloaded temp file '"+missing+"' doesn't exist!", e.Reason())
	assert.False(t, e.Has(download.FileField))
	assert.Empty(t, h.sess.callsTo("core.add_torrent_file"))

	assert.Equal(t, task.Accepted, ok.State())
	require.Len(t, h.notify.messages, 1)
	assert.Contains(t, h.notify.messages[0], "1 added to deluge, 1 failed")
}

func TestAddTorrentFile(t *testing.T) {
	h := newHarness(t)

	file := writeTorrent(t, validTorrent)

	e := task.NewEntry("Show.S01E01", "http://example.com/1.torrent")
	e.Set(download.FileField, file)
	e.Set("series_name", "Show")
	e.Set("maxupspeed", 50)

	cfg := pluginConfig(t, OutputName, `
path: ~/tv/{{.series_name}}
maxupspeed: 100
maxconnections: 20
ratio: 1.5
addpaused: true
compact: false
`)
	tk := newTask(t, task.Options{}, cfg, e)

	require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

	adds := h.sess.callsTo("core.add_torrent_file")
	require.Len(t, adds, 1)
	assert.Equal(t, "Show.S01E01", adds[0].args[0])
	assert.Equal(t, validTorrent, adds[0].args[1])

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, dc.Options{
		"download_location":  filepath.Join(home, "tv", "Show"),
		"max_upload_speed":   50,
		"max_connections":    20,
		"stop_ratio":         1.5,
		"stop_at_ratio":      true,
		"add_paused":         true,
		"compact_allocation": false,
	}, adds[0].args[2])

	assert.Equal(t, "id1", e.GetString("deluge_id"))
	assert.NoFileExists(t, file)
	assert.False(t, e.Has(download.FileField))

	// Options given at add time are not re-applied as mutators.
	assert.Empty(t, h.sess.callsTo("core.move_storage"))

	require.Len(t, h.history.records, 1)
	assert.Equal(t, storage.HistoryRecord{
		TorrentID: "id1",
		Title:     "Show.S01E01",
		Task:      "tv",
		Outcome:   storage.OutcomeAdded,
		Path:      filepath.Join(home, "tv", "Show"),
	}, h.history.records[0])
}

func TestDownloadPluginOwnsTempFiles(t *testing.T) {
	h := newHarness(t)

	file := writeTorrent(t, validTorrent)

	e := task.NewEntry("Show.S01E01", "http://example.com/1.torrent")
	e.Set(download.FileField, file)

	cfg := pluginConfig(t, OutputName, "enabled: true")
	tk := task.New("tv", []*task.PluginConfig{cfg, pluginConfig(t, DownloadPluginName, "path: /tmp")}, task.Options{})
	tk.AddEntries(e)
	tk.Accept(e, "test", "")

	require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))
	require.NoError(t, h.plugin.OnTaskExit(context.Background(), tk, cfg))

	assert.FileExists(t, file)
	assert.Equal(t, file, e.GetString(download.FileField))
}

func TestRejectedOrEmptyIDFailsJob(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeSession)
	}{
		{"daemon error", func(s *fakeSession) { s.addErr = errors.New("torrent already in session") }},
		{"empty id", func(s *fakeSession) { s.emptyID = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h.sess)

			e := task.NewEntry("Show.S01E01", "magnet:?xt=urn:btih:abc")
			e.Set("torrent_info_hash", "ABC")

			tk := newTask(t, task.Options{}, pluginConfig(t, OutputName, "enabled: true"), e)

			require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName)))

			assert.Equal(t, task.Failed, e.State())
			assert.Equal(t, "Could not be added to deluge", e.Reason())
			assert.False(t, e.Has("deluge_id"))

			require.Len(t, h.history.records, 1)
			assert.Equal(t, storage.OutcomeFailed, h.history.records[0].Outcome)
			assert.Equal(t, "abc", h.history.records[0].TorrentID)
		})
	}
}

func TestJobInSessionTakesModifyPath(t *testing.T) {
	h := newHarness(t)
	h.sess.session = []string{"abc"}

	e := task.NewEntry("Show.S01E01", "magnet:?xt=urn:btih:abc")
	e.Set("torrent_info_hash", "ABC")
	e.Set("queuetotop", false)

	cfg := pluginConfig(t, OutputName, `
path: /data/tv
movedone: /done/tv
maxupslots: 4
queuetotop: true
`)
	tk := newTask(t, task.Options{}, cfg, e)

	require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

	assert.Empty(t, h.sess.callsTo("core.add_torrent_magnet"))
	assert.Empty(t, h.sess.callsTo("core.add_torrent_file"))

	moves := h.sess.callsTo("core.move_storage")
	require.Len(t, moves, 1)
	assert.Equal(t, []any{[]string{"abc"}, "/data/tv"}, moves[0].args)

	opts := h.sess.callsTo("core.set_torrent_options")
	require.Len(t, opts, 1)
	assert.Equal(t, []any{[]string{"abc"}, dc.Options{"max_upload_slots": 4}}, opts[0].args)

	done := h.sess.callsTo("set_move_completed")
	require.Len(t, done, 1)
	assert.Equal(t, []any{"abc", "/done/tv"}, done[0].args)

	assert.Len(t, h.sess.callsTo("core.queue_bottom"), 1)
	assert.Empty(t, h.sess.callsTo("core.queue_top"))

	assert.Equal(t, task.Accepted, e.State())
	require.Len(t, h.history.records, 1)
	assert.Equal(t, storage.OutcomeModified, h.history.records[0].Outcome)
}

func TestLabelSync(t *testing.T) {
	t.Run("enables plugin and adds missing labels", func(t *testing.T) {
		h := newHarness(t)
		h.sess.enabled = nil
		h.sess.labels = []string{"movies"}

		e := task.NewEntry("Show.S01E01", "magnet:?xt=urn:btih:abc")
		e.Set("label", "TV Shows")

		cfg := pluginConfig(t, OutputName, "label: Movies")
		tk := newTask(t, task.Options{}, cfg, e)

		require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

		enables := h.sess.callsTo("core.enable_plugin")
		require.Len(t, enables, 1)
		assert.Equal(t, "Label", enables[0].args[0])

		added := h.sess.callsTo("label.add")
		require.Len(t, added, 1)
		assert.Equal(t, "tv_shows", added[0].args[0])

		set := h.sess.callsTo("label.set_torrent")
		require.Len(t, set, 1)
		assert.Equal(t, []any{"id1", "tv_shows"}, set[0].args)
	})

	t.Run("label plugin missing", func(t *testing.T) {
		h := newHarness(t)
		h.sess.enabled = nil
		h.sess.available = []string{"Scheduler"}

		e := task.NewEntry("Show.S01E01", "magnet:?xt=urn:btih:abc")

		cfg := pluginConfig(t, OutputName, "label: tv")
		tk := newTask(t, task.Options{}, cfg, e)

		require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

		assert.Empty(t, h.sess.callsTo("core.enable_plugin"))
		assert.Empty(t, h.sess.callsTo("label.set_torrent"))
		assert.Equal(t, task.Accepted, e.State())
	})

	t.Run("no labels skips label plugin", func(t *testing.T) {
		h := newHarness(t)

		e := task.NewEntry("Show.S01E01", "magnet:?xt=urn:btih:abc")
		tk := newTask(t, task.Options{}, pluginConfig(t, OutputName, "enabled: true"), e)

		require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName)))

		assert.Empty(t, h.sess.callsTo("core.get_enabled_plugins"))
	})
}

func TestMainFileHandling(t *testing.T) {
	tests := []struct {
		name           string
		files          []dc.File
		cfg            string
		wantRename     []dc.FileRename
		wantPriorities []int
	}{
		{
			name:           "rename and isolate main file",
			files:          []dc.File{{Index: 0, Path: "Show/sample.mkv", Size: 40}, {Index: 1, Path: "Show/show.mkv", Size: 950}, {Index: 2, Path: "Show/show.nfo", Size: 10}},
			cfg:            "content_filename: \"{{.series_name}} - S01E01\"\nmain_file_only: true",
			wantRename:     []dc.FileRename{{Index: 1, Name: "Show - S01E01.mkv"}},
			wantPriorities: []int{0, 1, 0},
		},
		{
			name:  "no file over 90 percent",
			files: []dc.File{{Index: 0, Path: "a.mkv", Size: 500}, {Index: 1, Path: "b.mkv", Size: 500}},
			cfg:   "content_filename: Show\nmain_file_only: true",
		},
		{
			name:  "exactly 90 percent is not enough",
			files: []dc.File{{Index: 0, Path: "a.mkv", Size: 900}, {Index: 1, Path: "b.nfo", Size: 100}},
			cfg:   "content_filename: Show",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.sess.status["id1"] = &dc.TorrentStatus{Files: tt.files, TotalSize: 1000, SavePath: "/remote"}

			e := task.NewEntry("Show.S01E01", "magnet:?xt=urn:btih:abc")
			e.Set("series_name", "Show")

			cfg := pluginConfig(t, OutputName, tt.cfg)
			tk := newTask(t, task.Options{}, cfg, e)

			require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

			renames := h.sess.callsTo("core.rename_files")
			if tt.wantRename == nil {
				assert.Empty(t, renames)
			} else {
				require.Len(t, renames, 1)
				assert.Equal(t, []any{"id1", tt.wantRename}, renames[0].args)
			}

			prios := h.sess.callsTo("set_file_priorities")
			if tt.wantPriorities == nil {
				assert.Empty(t, prios)
			} else {
				require.Len(t, prios, 1)
				assert.Equal(t, []any{"id1", tt.wantPriorities}, prios[0].args)
			}
		})
	}
}

func TestUniqueContentFilenameOnLocalDaemon(t *testing.T) {
	h := newHarness(t)
	h.sess.local = true

	save := t.TempDir()
	done := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(save, "Show.mkv"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(done, "Show(1).mkv"), nil, 0o600))

	h.sess.status["id1"] = &dc.TorrentStatus{
		Files:               []dc.File{{Index: 0, Path: "dir/x.mkv", Size: 1000}},
		TotalSize:           1000,
		SavePath:            save,
		MoveOnCompleted:     true,
		MoveOnCompletedPath: done,
	}

	e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
	cfg := pluginConfig(t, OutputName, "content_filename: Show")
	tk := newTask(t, task.Options{}, cfg, e)

	require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

	renames := h.sess.callsTo("core.rename_files")
	require.Len(t, renames, 1)
	assert.Equal(t, []dc.FileRename{{Index: 0, Name: "Show(2).mkv"}}, renames[0].args[1])
}

func TestOldDaemonGetsDirectoriesCreated(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		local      bool
		wantExists bool
	}{
		{"pre 1.3 local daemon", "1.2.3", true, true},
		{"pre 1.3 remote daemon", "1.2.3", false, false},
		{"modern daemon", "1.3.15", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.sess.version = tt.version
			h.sess.local = tt.local

			movedone := filepath.Join(t.TempDir(), "done", "tv")

			e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
			cfg := pluginConfig(t, OutputName, "movedone: "+movedone)
			tk := newTask(t, task.Options{}, cfg, e)

			require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))

			if tt.wantExists {
				assert.DirExists(t, movedone)
			} else {
				assert.NoDirExists(t, movedone)
			}

			assert.Len(t, h.sess.callsTo("set_move_completed"), 1)
		})
	}
}

func TestBatchTimeout(t *testing.T) {
	h := newHarness(t, WithBatchTimeout(50*time.Millisecond))
	h.sess.blockOn = "core.add_torrent_magnet"

	e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
	tk := newTask(t, task.Options{}, pluginConfig(t, OutputName, "enabled: true"), e)

	start := time.Now()
	require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName)))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, task.Accepted, e.State())
	assert.False(t, e.Has("deluge_id"))
	assert.True(t, h.sess.closed)
	assert.Empty(t, h.notify.messages)
}

func TestConnectionFailureAbortsTask(t *testing.T) {
	h := newHarness(t)
	h.dialer.err = errors.New("connection refused")

	e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
	cfg := pluginConfig(t, OutputName, "host: box\nport: 9000\nuser: me\npass: secret")
	tk := newTask(t, task.Options{}, cfg, e)

	err := h.plugin.OnTaskOutput(context.Background(), tk, cfg)

	var pluginErr *task.PluginError
	require.ErrorAs(t, err, &pluginErr)
	assert.Equal(t, "Could not connect to deluge daemon", pluginErr.Message)
	assert.Equal(t, dc.ConnectionInfo{Host: "box", Port: 9000, User: "me", Password: "secret"}, h.dialer.info)
}

func TestConnectTimeoutAbortsTask(t *testing.T) {
	h := newHarness(t, WithBatchTimeout(50*time.Millisecond))
	h.dialer.block = true

	e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
	tk := newTask(t, task.Options{}, pluginConfig(t, OutputName, "enabled: true"), e)

	err := h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName))

	var pluginErr *task.PluginError
	require.ErrorAs(t, err, &pluginErr)
	assert.Equal(t, "Could not connect to deluge daemon", pluginErr.Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, h.sess.calls)
}

func TestSessionFailureAbortsTask(t *testing.T) {
	h := newHarness(t)
	h.sess.failOn["core.get_session_state"] = errors.New("boom")

	e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
	tk := newTask(t, task.Options{}, pluginConfig(t, OutputName, "enabled: true"), e)

	err := h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName))

	var pluginErr *task.PluginError
	require.ErrorAs(t, err, &pluginErr)
	assert.True(t, h.sess.closed)
	assert.Empty(t, h.sess.callsTo("core.add_torrent_magnet"))
}

func TestOutputModes(t *testing.T) {
	t.Run("test mode only connects", func(t *testing.T) {
		h := newHarness(t)

		tk := task.New("tv", []*task.PluginConfig{pluginConfig(t, OutputName, "enabled: true")}, task.Options{Test: true})

		require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName)))

		assert.True(t, h.sess.closed)
		assert.Empty(t, h.sess.callsTo("core.get_session_state"))
	})

	t.Run("learn mode does nothing", func(t *testing.T) {
		h := newHarness(t)

		e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
		tk := newTask(t, task.Options{Learn: true}, pluginConfig(t, OutputName, "enabled: true"), e)

		require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName)))
		assert.False(t, h.sess.closed)
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t)

		cfg := pluginConfig(t, OutputName, "false")
		e := task.NewEntry("Show", "magnet:?xt=urn:btih:abc")
		tk := newTask(t, task.Options{}, cfg, e)

		require.NoError(t, h.plugin.OnTaskDownload(context.Background(), tk, cfg))
		require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, cfg))
		assert.False(t, h.sess.closed)
	})

	t.Run("nothing accepted", func(t *testing.T) {
		h := newHarness(t)

		tk := task.New("tv", []*task.PluginConfig{pluginConfig(t, OutputName, "enabled: true")}, task.Options{})

		require.NoError(t, h.plugin.OnTaskOutput(context.Background(), tk, tk.PluginConfig(OutputName)))
		assert.False(t, h.sess.closed)
	})
}

func TestDownloadPhase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.torrent":
			w.Write([]byte(validTorrent))
		case "/bad.torrent":
			w.Write([]byte("<html>not a torrent</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := newHarness(t)

	good := task.NewEntry("Good", srv.URL+"/good.torrent")
	bad := task.NewEntry("Bad", srv.URL+"/bad.torrent")
	missing := task.NewEntry("Missing", srv.URL+"/missing.torrent")
	magnet := task.NewEntry("Magnet", "magnet:?xt=urn:btih:abc")
	known := task.NewEntry("Known", srv.URL+"/good.torrent")
	known.Set("deluge_id", "abc")

	cfg := pluginConfig(t, OutputName, "enabled: true")
	tk := newTask(t, task.Options{}, cfg, good, bad, missing, magnet, known)

	require.NoError(t, h.plugin.OnTaskDownload(context.Background(), tk, cfg))

	assert.Equal(t, task.Accepted, good.State())
	assert.FileExists(t, good.GetString(download.FileField))

	assert.Equal(t, task.Failed, bad.State())
	assert.Equal(t, "Invalid torrent file", bad.Reason())

	assert.Equal(t, task.Failed, missing.State())

	assert.Equal(t, task.Accepted, magnet.State())
	assert.False(t, magnet.Has(download.FileField))
	assert.False(t, known.Has(download.FileField))

	require.NoError(t, h.plugin.OnTaskExit(context.Background(), tk, cfg))
	assert.False(t, good.Has(download.FileField))
	assert.False(t, bad.Has(download.FileField))
}

func TestPriorities(t *testing.T) {
	p := NewOutputPlugin(nil, dc.ConnectionInfo{})

	assert.Equal(t, 120, p.Priority(task.PhaseDownload))
	assert.Equal(t, 135, p.Priority(task.PhaseOutput))
	assert.Equal(t, task.DefaultPriority, p.Priority(task.PhaseExit))
}
