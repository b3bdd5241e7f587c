package dc

import (
	"context"
)

// ConnectionInfo locates and authenticates against a daemon.
type ConnectionInfo struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Options is the option map sent with add and set-options calls.
type Options map[string]any

// File is one file inside a torrent job.
type File struct {
	Index int
	Path  string
	Size  int64
}

// TorrentStatus is the subset of a job's status used to place and rename
// its content.
type TorrentStatus struct {
	Files               []File
	TotalSize           int64
	SavePath            string
	MoveOnCompleted     bool
	MoveOnCompletedPath string
}

// FileRename renames the file at Index to Name.
type FileRename struct {
	Index int
	Name  string
}

// Capabilities are version-dependent daemon behaviours resolved once per
// connection.
type Capabilities struct {
	// CreatesMoveDirs is false for daemons that will not create a missing
	// storage or move-on-complete directory themselves.
	CreatesMoveDirs bool
}

// Core is the job management surface of the daemon.
type Core interface {
	DaemonVersion(ctx context.Context) (string, error)
	SessionState(ctx context.Context) ([]string, error)
	TorrentsStatus(ctx context.Context, filter map[string]any, keys []string) (map[string]map[string]any, error)
	TorrentStatus(ctx context.Context, id string) (*TorrentStatus, error)

	AddTorrentFile(ctx context.Context, filename string, content []byte, opts Options) (string, error)
	AddTorrentMagnet(ctx context.Context, uri string, opts Options) (string, error)

	SetTorrentOptions(ctx context.Context, ids []string, opts Options) error
	MoveStorage(ctx context.Context, ids []string, dest string) error
	SetMoveCompleted(ctx context.Context, id string, path string) error
	QueueTop(ctx context.Context, ids []string) error
	QueueBottom(ctx context.Context, ids []string) error
	RenameFiles(ctx context.Context, id string, renames []FileRename) error
	SetFilePriorities(ctx context.Context, id string, priorities []int) error
}

// PluginManager enables daemon-side plugins.
type PluginManager interface {
	EnabledPlugins(ctx context.Context) ([]string, error)
	AvailablePlugins(ctx context.Context) ([]string, error)
	EnablePlugin(ctx context.Context, name string) error
}

// Labeler is the surface of the daemon's label plugin.
type Labeler interface {
	Labels(ctx context.Context) ([]string, error)
	AddLabel(ctx context.Context, label string) error
	SetTorrentLabel(ctx context.Context, id, label string) error
}

// Session is an open, authenticated connection to a daemon.
type Session interface {
	Core
	PluginManager
	Labeler

	// IsLocalhost reports whether the daemon shares this machine's filesystem.
	IsLocalhost() bool
	Close(ctx context.Context) error
}

// Dialer opens daemon sessions.
type Dialer interface {
	Dial(ctx context.Context, info ConnectionInfo) (Session, error)
}
