// Package builtin holds the small host plugins that feed and filter tasks:
// mock, accept_all and download.
package builtin

import (
	"context"
	"fmt"

	"github.com/italolelis/torrent_feeder/internal/task"
)

const MockName = "mock"

// Mock creates entries straight from its config, a list of field maps with
// at least a title:
//
//	mock:
//	  - {title: Show.S01E01, url: "magnet:?xt=urn:btih:abc", label: tv}
type Mock struct{}

func (Mock) Name() string { return MockName }

func (Mock) OnTaskInput(ctx context.Context, t *task.Task, cfg *task.PluginConfig) ([]*task.Entry, error) {
	var items []map[string]any
	if err := cfg.DecodeValue(&items); err != nil {
		return nil, &task.PluginError{Plugin: MockName, Message: "invalid config", Err: err}
	}

	entries := make([]*task.Entry, 0, len(items))

	for i, item := range items {
		title, _ := item["title"].(string)
		if title == "" {
			return nil, &task.PluginError{Plugin: MockName, Message: fmt.Sprintf("item %d has no title", i)}
		}

		url, _ := item["url"].(string)
		if url == "" {
			url = "mock://localhost/mock/" + title
		}

		e := task.NewEntry(title, url)

		for k, v := range item {
			if k != "title" && k != "url" {
				e.Set(k, v)
			}
		}

		entries = append(entries, e)
	}

	return entries, nil
}
