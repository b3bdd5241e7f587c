package config

import (
	"fmt"
	"io"
	"os"

	"github.com/italolelis/torrent_feeder/internal/task"
	"gopkg.in/yaml.v3"
)

// TaskFile is a parsed task file. Tasks and their plugins keep the order in
// which they were written.
type TaskFile struct {
	Tasks []TaskConfig
}

// TaskConfig is the plugin configuration of one named task.
type TaskConfig struct {
	Name    string
	Plugins []*task.PluginConfig
}

// LoadTaskFile reads and parses the task file at path.
func LoadTaskFile(path string) (*TaskFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task file: %w", err)
	}
	defer f.Close()

	return ParseTaskFile(f)
}

// ParseTaskFile parses a document of the form
//
//	tasks:
//	  <task name>:
//	    <plugin name>: <plugin config>
func ParseTaskFile(r io.Reader) (*TaskFile, error) {
	var doc struct {
		Tasks yaml.Node `yaml:"tasks"`
	}

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("task file is empty")
		}

		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}

	if doc.Tasks.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("task file: 'tasks' must be a mapping of task names")
	}

	tf := &TaskFile{}

	for i := 0; i+1 < len(doc.Tasks.Content); i += 2 {
		name, body := doc.Tasks.Content[i].Value, doc.Tasks.Content[i+1]

		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("task %s (line %d): must be a mapping of plugin names", name, body.Line)
		}

		tc := TaskConfig{Name: name}

		for j := 0; j+1 < len(body.Content); j += 2 {
			tc.Plugins = append(tc.Plugins, task.NewPluginConfig(body.Content[j].Value, body.Content[j+1]))
		}

		tf.Tasks = append(tf.Tasks, tc)
	}

	return tf, nil
}

// Build creates tasks ready to run. When names is not empty only the named
// tasks are built; an unknown name is an error.
func (tf *TaskFile) Build(names []string, opts task.Options) ([]*task.Task, error) {
	if len(names) == 0 {
		tasks := make([]*task.Task, 0, len(tf.Tasks))
		for _, tc := range tf.Tasks {
			tasks = append(tasks, task.New(tc.Name, tc.Plugins, opts))
		}

		return tasks, nil
	}

	byName := make(map[string]TaskConfig, len(tf.Tasks))
	for _, tc := range tf.Tasks {
		byName[tc.Name] = tc
	}

	tasks := make([]*task.Task, 0, len(names))

	for _, name := range names {
		tc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown task %q", name)
		}

		tasks = append(tasks, task.New(tc.Name, tc.Plugins, opts))
	}

	return tasks, nil
}
