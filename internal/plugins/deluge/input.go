package deluge

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/torrent_feeder/internal/dc"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/task"
)

const InputName = "input_deluge"

// statusFields maps daemon status keys to entry fields.
var statusFields = map[string]string{
	"name":                   "title",
	"hash":                   "torrent_info_hash",
	"num_peers":              "torrent_peers",
	"num_seeds":              "torrent_seeds",
	"private":                "deluge_private",
	"state":                  "deluge_state",
	"eta":                    "deluge_eta",
	"ratio":                  "deluge_ratio",
	"move_on_completed_path": "deluge_movedone",
	"save_path":              "deluge_path",
	"label":                  "deluge_label",
	"total_size":             "content_size",
	"files":                  "content_files",
}

var validStates = map[string]bool{
	"Active":      true,
	"Downloading": true,
	"Seeding":     true,
	"Queued":      true,
	"Paused":      true,
}

type inputFilter struct {
	Label string `yaml:"label"`
	State string `yaml:"state"`
}

type inputConfig struct {
	connectionConfig `yaml:",inline"`
	ConfigPath       string       `yaml:"config_path"`
	Filter           *inputFilter `yaml:"filter"`
}

// InputPlugin creates an entry for every torrent in the daemon session.
type InputPlugin struct {
	connector
}

func NewInputPlugin(dialer dc.Dialer, defaults dc.ConnectionInfo) *InputPlugin {
	return &InputPlugin{connector{name: InputName, dialer: dialer, defaults: defaults}}
}

func (p *InputPlugin) prepareConfig(cfg *task.PluginConfig) (*inputConfig, map[string]any, error) {
	var c inputConfig
	if err := cfg.Decode(&c); err != nil {
		return nil, nil, err
	}

	filter := map[string]any{}

	if c.Filter != nil {
		if c.Filter.Label != "" {
			filter["label"] = strings.ToLower(c.Filter.Label)
		}

		if c.Filter.State != "" {
			state := capitalize(c.Filter.State)
			if !validStates[state] {
				return nil, nil, fmt.Errorf("invalid %s config: state %q must be one of active, downloading, seeding, queued, paused", InputName, c.Filter.State)
			}

			filter["state"] = state
		}
	}

	return &c, filter, nil
}

func (p *InputPlugin) OnTaskInput(ctx context.Context, t *task.Task, cfg *task.PluginConfig) ([]*task.Entry, error) {
	logger := logctx.LoggerFromContext(ctx).With("plugin", InputName)

	c, filter, err := p.prepareConfig(cfg)
	if err != nil {
		return nil, &task.PluginError{Plugin: InputName, Message: "invalid config", Err: err}
	}

	sess, err := p.connect(ctx, c.info(p.defaults))
	if err != nil {
		return nil, err
	}

	defer closeSession(ctx, sess)

	keys := make([]string, 0, len(statusFields))
	for k := range statusFields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	torrents, err := sess.TorrentsStatus(ctx, filter, keys)
	if err != nil {
		return nil, &task.PluginError{Plugin: InputName, Message: "Could not list torrents in deluge", Err: err}
	}

	hashes := make([]string, 0, len(torrents))
	for hash := range torrents {
		hashes = append(hashes, hash)
	}

	sort.Strings(hashes)

	configPath := task.ExpandUser(c.ConfigPath)
	entries := make([]*task.Entry, 0, len(hashes))

	for _, hash := range hashes {
		e := task.NewEntry("", "")
		e.Set("deluge_id", hash)

		if configPath != "" {
			torrentPath := filepath.Join(configPath, "state", hash+".torrent")

			if info, err := os.Stat(torrentPath); err == nil && info.Mode().IsRegular() {
				e.Set("location", torrentPath)
				e.Set("url", fileURL(torrentPath))
			} else {
				logger.Warn("did not find torrent file", "path", torrentPath)
			}
		}

		for key, value := range torrents[hash] {
			field, ok := statusFields[key]
			if !ok {
				continue
			}

			switch key {
			case "total_size":
				e.Set(field, toInt64(value)/1024/1024)
			case "files":
				files := value
				e.SetLazy(field, func(*task.Entry) any { return baseNames(files) })
			default:
				e.Set(field, value)
			}
		}

		logger.Debug("found torrent in deluge",
			"title", e.Title(),
			"size", humanize.IBytes(uint64(max(toInt64(torrents[hash]["total_size"]), 0))),
		)

		entries = append(entries, e)
	}

	logger.Info("listed torrents in deluge", "count", len(entries))

	return entries, nil
}

func fileURL(p string) string {
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return "file://" + p
}

func baseNames(files any) []string {
	list, ok := files.([]any)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(list))

	for _, f := range list {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}

		p, _ := m["path"].(string)
		names = append(names, path.Base(filepath.ToSlash(p)))
	}

	return names
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	s = strings.ToLower(s)

	return strings.ToUpper(s[:1]) + s[1:]
}

func closeSession(ctx context.Context, sess dc.Session) {
	// The batch context may already be past its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()

	if err := sess.Close(ctx); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to disconnect from deluge", "err", err)
	}
}
