package builtin

import (
	"context"

	"github.com/italolelis/torrent_feeder/internal/task"
)

const AcceptAllName = "accept_all"

// AcceptAll accepts every undecided entry when its config is true.
type AcceptAll struct{}

func (AcceptAll) Name() string { return AcceptAllName }

func (AcceptAll) OnTaskFilter(ctx context.Context, t *task.Task, cfg *task.PluginConfig) error {
	if enabled, _ := cfg.Bool(); !enabled {
		return nil
	}

	for _, e := range t.Undecided() {
		t.Accept(e, AcceptAllName, "")
	}

	return nil
}
