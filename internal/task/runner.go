package task

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/italolelis/torrent_feeder/internal/logctx"
)

// Phase is one step of a task run. Phases run in the order of Phases.
type Phase string

const (
	PhaseInput    Phase = "input"
	PhaseFilter   Phase = "filter"
	PhaseDownload Phase = "download"
	PhaseOutput   Phase = "output"
	PhaseExit     Phase = "exit"
)

// Phases lists the task phases in execution order.
var Phases = []Phase{PhaseInput, PhaseFilter, PhaseDownload, PhaseOutput, PhaseExit}

// DefaultPriority is used for plugins that do not implement Prioritizer.
const DefaultPriority = 128

type Plugin interface {
	Name() string
}

// Prioritizer orders plugins within a phase, higher runs first.
type Prioritizer interface {
	Priority(phase Phase) int
}

type ProcessStarter interface {
	OnProcessStart(ctx context.Context, t *Task, cfg *PluginConfig) error
}

type Inputter interface {
	OnTaskInput(ctx context.Context, t *Task, cfg *PluginConfig) ([]*Entry, error)
}

type Filterer interface {
	OnTaskFilter(ctx context.Context, t *Task, cfg *PluginConfig) error
}

type Downloader interface {
	OnTaskDownload(ctx context.Context, t *Task, cfg *PluginConfig) error
}

type Outputter interface {
	OnTaskOutput(ctx context.Context, t *Task, cfg *PluginConfig) error
}

type Exiter interface {
	OnTaskExit(ctx context.Context, t *Task, cfg *PluginConfig) error
}

type Aborter interface {
	OnTaskAbort(ctx context.Context, t *Task, cfg *PluginConfig)
}

type registration struct {
	plugin  Plugin
	builtin bool
}

// Runner executes tasks against a set of registered plugins.
type Runner struct {
	plugins map[string]registration
}

func NewRunner() *Runner {
	return &Runner{plugins: map[string]registration{}}
}

// Register adds a plugin. Builtin plugins take part in every task even when
// the task does not configure them; they receive an unset config.
func (r *Runner) Register(p Plugin, builtin bool) {
	r.plugins[p.Name()] = registration{plugin: p, builtin: builtin}
}

func (r *Runner) Lookup(name string) (Plugin, bool) {
	reg, ok := r.plugins[name]

	return reg.plugin, ok
}

type activePlugin struct {
	plugin Plugin
	cfg    *PluginConfig
	order  int
}

// Run executes every phase of t. A PluginError or any other plugin error
// aborts the task; aborting plugins get a chance to clean up.
func (r *Runner) Run(ctx context.Context, t *Task) error {
	ctx = logctx.WithTask(ctx, t.Name)
	logger := logctx.LoggerFromContext(ctx)

	active, err := r.resolve(t)
	if err != nil {
		return err
	}

	active = r.startProcess(ctx, t, active)

	for _, phase := range Phases {
		for _, ap := range sortForPhase(active, phase) {
			if err := r.runPhase(ctx, t, phase, ap); err != nil {
				logger.Error("task aborted", "phase", phase, "plugin", ap.plugin.Name(), "err", err)
				r.abort(ctx, t, active)

				return fmt.Errorf("task %s aborted in %s phase: %w", t.Name, phase, err)
			}
		}
	}

	logger.Info("task finished",
		"accepted", len(t.Accepted()),
		"rejected", len(t.Rejected()),
		"failed", len(t.Failed()),
		"undecided", len(t.Undecided()),
	)

	return nil
}

func (r *Runner) resolve(t *Task) ([]activePlugin, error) {
	var active []activePlugin

	seen := map[string]bool{}

	for i, cfg := range t.Plugins() {
		reg, ok := r.plugins[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("task %s: unknown plugin %q", t.Name, cfg.Name)
		}

		seen[cfg.Name] = true
		active = append(active, activePlugin{plugin: reg.plugin, cfg: cfg, order: i})
	}

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		reg := r.plugins[name]
		if reg.builtin && !seen[name] {
			active = append(active, activePlugin{
				plugin: reg.plugin,
				cfg:    NewPluginConfig(name, nil),
				order:  len(active),
			})
		}
	}

	return active, nil
}

// startProcess drops plugins whose dependencies are missing.
func (r *Runner) startProcess(ctx context.Context, t *Task, active []activePlugin) []activePlugin {
	logger := logctx.LoggerFromContext(ctx)
	kept := active[:0]

	for _, ap := range active {
		starter, ok := ap.plugin.(ProcessStarter)
		if !ok {
			kept = append(kept, ap)

			continue
		}

		if err := starter.OnProcessStart(ctx, t, ap.cfg); err != nil {
			var depErr *DependencyError
			if errors.As(err, &depErr) {
				logger.Warn("plugin disabled", "plugin", ap.plugin.Name(), "missing", depErr.Missing, "err", err)

				continue
			}

			logger.Error("plugin failed to start", "plugin", ap.plugin.Name(), "err", err)

			continue
		}

		kept = append(kept, ap)
	}

	return kept
}

func (r *Runner) runPhase(ctx context.Context, t *Task, phase Phase, ap activePlugin) error {
	switch phase {
	case PhaseInput:
		entries, err := ap.plugin.(Inputter).OnTaskInput(ctx, t, ap.cfg)
		if err != nil {
			return err
		}

		for _, e := range entries {
			e.AddTrace(ap.plugin.Name(), "", "created")
		}

		t.AddEntries(entries...)

		return nil
	case PhaseFilter:
		return ap.plugin.(Filterer).OnTaskFilter(ctx, t, ap.cfg)
	case PhaseDownload:
		return ap.plugin.(Downloader).OnTaskDownload(ctx, t, ap.cfg)
	case PhaseOutput:
		return ap.plugin.(Outputter).OnTaskOutput(ctx, t, ap.cfg)
	case PhaseExit:
		return ap.plugin.(Exiter).OnTaskExit(ctx, t, ap.cfg)
	}

	return fmt.Errorf("unknown phase %q", phase)
}

func (r *Runner) abort(ctx context.Context, t *Task, active []activePlugin) {
	for _, ap := range active {
		if a, ok := ap.plugin.(Aborter); ok {
			a.OnTaskAbort(ctx, t, ap.cfg)
		}
	}
}

func implements(p Plugin, phase Phase) bool {
	switch phase {
	case PhaseInput:
		_, ok := p.(Inputter)
		return ok
	case PhaseFilter:
		_, ok := p.(Filterer)
		return ok
	case PhaseDownload:
		_, ok := p.(Downloader)
		return ok
	case PhaseOutput:
		_, ok := p.(Outputter)
		return ok
	case PhaseExit:
		_, ok := p.(Exiter)
		return ok
	}

	return false
}

func priority(p Plugin, phase Phase) int {
	if pr, ok := p.(Prioritizer); ok {
		return pr.Priority(phase)
	}

	return DefaultPriority
}

func sortForPhase(active []activePlugin, phase Phase) []activePlugin {
	var out []activePlugin

	for _, ap := range active {
		if implements(ap.plugin, phase) {
			out = append(out, ap)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i].plugin, phase), priority(out[j].plugin, phase)
		if pi != pj {
			return pi > pj
		}

		return out[i].order < out[j].order
	})

	return out
}
