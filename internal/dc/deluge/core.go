package deluge

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/italolelis/torrent_feeder/internal/dc"
)

// statusKeys are the torrent status fields TorrentStatus asks for. Deluge 1.x
// names the move-on-complete fields move_on_completed*, 2.x move_completed*.
var statusKeys = []string{
	"files", "total_size", "save_path",
	"move_on_completed", "move_on_completed_path",
	"move_completed", "move_completed_path",
}

type rawFile struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
}

type rawStatus struct {
	Files               []rawFile `json:"files"`
	TotalSize           int64     `json:"total_size"`
	SavePath            string    `json:"save_path"`
	MoveOnCompleted     *bool     `json:"move_on_completed"`
	MoveOnCompletedPath *string   `json:"move_on_completed_path"`
	MoveCompleted       *bool     `json:"move_completed"`
	MoveCompletedPath   *string   `json:"move_completed_path"`
}

func (c *Client) DaemonVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.call(ctx, "daemon.info", nil, &version); err != nil {
		return "", err
	}

	return version, nil
}

func (c *Client) SessionState(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.call(ctx, "core.get_session_state", nil, &ids); err != nil {
		return nil, err
	}

	return ids, nil
}

func (c *Client) TorrentsStatus(ctx context.Context, filter map[string]any, keys []string) (map[string]map[string]any, error) {
	if filter == nil {
		filter = map[string]any{}
	}

	if keys == nil {
		keys = []string{}
	}

	var torrents map[string]map[string]any
	if err := c.call(ctx, "core.get_torrents_status", []any{filter, keys}, &torrents); err != nil {
		return nil, err
	}

	return torrents, nil
}

func (c *Client) TorrentStatus(ctx context.Context, id string) (*dc.TorrentStatus, error) {
	var raw rawStatus
	if err := c.call(ctx, "core.get_torrent_status", []any{id, statusKeys}, &raw); err != nil {
		return nil, err
	}

	status := &dc.TorrentStatus{
		TotalSize: raw.TotalSize,
		SavePath:  raw.SavePath,
	}

	for _, f := range raw.Files {
		status.Files = append(status.Files, dc.File{Index: f.Index, Path: f.Path, Size: f.Size})
	}

	switch {
	case raw.MoveCompleted != nil:
		status.MoveOnCompleted = *raw.MoveCompleted
	case raw.MoveOnCompleted != nil:
		status.MoveOnCompleted = *raw.MoveOnCompleted
	}

	switch {
	case raw.MoveCompletedPath != nil:
		status.MoveOnCompletedPath = *raw.MoveCompletedPath
	case raw.MoveOnCompletedPath != nil:
		status.MoveOnCompletedPath = *raw.MoveOnCompletedPath
	}

	return status, nil
}

// AddTorrentFile adds a torrent from its metainfo. The returned id is empty
// when the daemon refused the torrent.
func (c *Client) AddTorrentFile(ctx context.Context, filename string, content []byte, opts dc.Options) (string, error) {
	dump := base64.StdEncoding.EncodeToString(content)

	var id *string
	if err := c.call(ctx, "core.add_torrent_file", []any{filename, dump, optionsOrEmpty(opts)}, &id); err != nil {
		return "", err
	}

	if id == nil {
		return "", nil
	}

	return *id, nil
}

// AddTorrentMagnet adds a torrent from a magnet URI.
func (c *Client) AddTorrentMagnet(ctx context.Context, uri string, opts dc.Options) (string, error) {
	var id *string
	if err := c.call(ctx, "core.add_torrent_magnet", []any{uri, optionsOrEmpty(opts)}, &id); err != nil {
		return "", err
	}

	if id == nil {
		return "", nil
	}

	return *id, nil
}

func (c *Client) SetTorrentOptions(ctx context.Context, ids []string, opts dc.Options) error {
	return c.call(ctx, "core.set_torrent_options", []any{ids, optionsOrEmpty(opts)}, nil)
}

func (c *Client) MoveStorage(ctx context.Context, ids []string, dest string) error {
	return c.call(ctx, "core.move_storage", []any{ids, dest}, nil)
}

func (c *Client) SetMoveCompleted(ctx context.Context, id string, path string) error {
	return c.SetTorrentOptions(ctx, []string{id}, dc.Options{
		"move_completed":      true,
		"move_completed_path": path,
	})
}

func (c *Client) QueueTop(ctx context.Context, ids []string) error {
	return c.call(ctx, "core.queue_top", []any{ids}, nil)
}

func (c *Client) QueueBottom(ctx context.Context, ids []string) error {
	return c.call(ctx, "core.queue_bottom", []any{ids}, nil)
}

func (c *Client) RenameFiles(ctx context.Context, id string, renames []dc.FileRename) error {
	pairs := make([][]any, 0, len(renames))
	for _, r := range renames {
		pairs = append(pairs, []any{r.Index, r.Name})
	}

	return c.call(ctx, "core.rename_files", []any{id, pairs}, nil)
}

func (c *Client) SetFilePriorities(ctx context.Context, id string, priorities []int) error {
	return c.SetTorrentOptions(ctx, []string{id}, dc.Options{"file_priorities": priorities})
}

func (c *Client) EnabledPlugins(ctx context.Context) ([]string, error) {
	var plugins []string
	if err := c.call(ctx, "core.get_enabled_plugins", nil, &plugins); err != nil {
		return nil, err
	}

	return plugins, nil
}

func (c *Client) AvailablePlugins(ctx context.Context) ([]string, error) {
	var plugins []string
	if err := c.call(ctx, "core.get_available_plugins", nil, &plugins); err != nil {
		return nil, err
	}

	return plugins, nil
}

func (c *Client) EnablePlugin(ctx context.Context, name string) error {
	// 1.x returns nothing, 2.x a bool.
	var ok *bool
	if err := c.call(ctx, "core.enable_plugin", []any{name}, &ok); err != nil {
		return err
	}

	if ok != nil && !*ok {
		return fmt.Errorf("deluge refused to enable plugin %s", name)
	}

	return nil
}

func (c *Client) Labels(ctx context.Context) ([]string, error) {
	var labels []string
	if err := c.call(ctx, "label.get_labels", nil, &labels); err != nil {
		return nil, err
	}

	return labels, nil
}

func (c *Client) AddLabel(ctx context.Context, label string) error {
	return c.call(ctx, "label.add", []any{label}, nil)
}

func (c *Client) SetTorrentLabel(ctx context.Context, id, label string) error {
	return c.call(ctx, "label.set_torrent", []any{id, label}, nil)
}

func optionsOrEmpty(opts dc.Options) dc.Options {
	if opts == nil {
		return dc.Options{}
	}

	return opts
}
