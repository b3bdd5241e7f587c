// Package deluge provides the input_deluge and deluge plugins, which read
// torrents from and submit torrents to a Deluge daemon.
package deluge

import (
	"context"
	"regexp"
	"strings"

	"github.com/italolelis/torrent_feeder/internal/dc"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/task"
)

// connectionConfig is the part of both plugin configs that locates the
// daemon. Zero values fall back to the process defaults.
type connectionConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

func (c connectionConfig) info(defaults dc.ConnectionInfo) dc.ConnectionInfo {
	info := defaults

	if c.Host != "" {
		info.Host = c.Host
	}

	if c.Port != 0 {
		info.Port = c.Port
	}

	if c.User != "" {
		info.User = c.User
	}

	if c.Pass != "" {
		info.Password = c.Pass
	}

	if info.Host == "" {
		info.Host = "localhost"
	}

	return info
}

// connector holds what both plugins need to reach a daemon.
type connector struct {
	name     string
	dialer   dc.Dialer
	defaults dc.ConnectionInfo
}

func (c *connector) Name() string { return c.name }

// OnProcessStart disables the plugin when no daemon client is available.
func (c *connector) OnProcessStart(ctx context.Context, t *task.Task, cfg *task.PluginConfig) error {
	if c.dialer == nil {
		return &task.DependencyError{
			Plugin:  c.name,
			Missing: "deluge client",
			Message: "no deluge RPC client is configured",
		}
	}

	logctx.LoggerFromContext(ctx).Debug("deluge client available", "plugin", c.name)

	return nil
}

func (c *connector) connect(ctx context.Context, info dc.ConnectionInfo) (dc.Session, error) {
	sess, err := c.dialer.Dial(ctx, info)
	if err != nil {
		return nil, &task.PluginError{Plugin: c.name, Message: "Could not connect to deluge daemon", Err: err}
	}

	return sess, nil
}

var nonWord = regexp.MustCompile(`\W+`)

// FormatLabel makes a label acceptable to the daemon's label plugin:
// lowercase with runs of non-word characters replaced by a single '_'.
func FormatLabel(label string) string {
	return nonWord.ReplaceAllString(strings.ToLower(label), "_")
}
