package dump

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/italolelis/torrent_feeder/internal/task"
)

const Name = "dump"

// Plugin prints the task's entries at the end of the output phase.
type Plugin struct {
	Out io.Writer
}

func New(out io.Writer) *Plugin {
	if out == nil {
		out = os.Stdout
	}

	return &Plugin{Out: out}
}

func (p *Plugin) Name() string { return Name }

// Priority places dump after every other output plugin.
func (p *Plugin) Priority(task.Phase) int { return 0 }

func (p *Plugin) OnTaskOutput(ctx context.Context, t *task.Task, cfg *task.PluginConfig) error {
	enabled, _ := cfg.Bool()
	if !enabled && t.Options.Dump == task.DumpOff {
		return nil
	}

	opts := Options{
		Debug:    t.Options.Debug,
		EvalLazy: t.Options.Dump == task.DumpEval,
		Trace:    t.Options.Dump == task.DumpTrace,
	}

	sections := []struct {
		header  string
		entries []*task.Entry
	}{
		{"-- Undecided: --------------------------", t.Undecided()},
		{"-- Accepted: ---------------------------", t.Accepted()},
		{"-- Rejected: ---------------------------", t.Rejected()},
	}

	for _, s := range sections {
		if len(s.entries) == 0 {
			continue
		}

		fmt.Fprintln(p.Out, s.header)
		Dump(p.Out, s.entries, opts)
	}

	return nil
}
