package task

import "fmt"

// PluginError aborts the task it was raised in.
type PluginError struct {
	Plugin  string
	Message string
	Err     error
}

func (e *PluginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Plugin, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Plugin, e.Message)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// DependencyError disables a plugin for the run because something it needs
// is not available.
type DependencyError struct {
	Plugin  string
	Missing string
	Message string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("plugin %s is missing dependency %s: %s", e.Plugin, e.Missing, e.Message)
}
