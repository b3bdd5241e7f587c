package task

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"text/template/parse"
)

// Render executes tmpl as a text/template over the entry fields, e.g.
// "/tv/{{.series_name}}". Strings without actions are returned unchanged.
// Referencing a missing field is an error.
func Render(tmpl string, e *Entry) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("field").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", tmpl, err)
	}

	refs := templateFields{}
	for _, tt := range t.Templates() {
		if tt.Tree != nil {
			refs.collect(tt.Tree.Root)
		}
	}

	// Only lazy fields the template reads are evaluated.
	data := e.Fields()

	keys := refs.keys
	if refs.dot {
		keys = e.Keys()
	}

	for _, k := range keys {
		if v, ok := e.Get(k); ok {
			data[k] = v
		}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %q for %s: %w", tmpl, e.Title(), err)
	}

	return buf.String(), nil
}

// templateFields records the top level fields a template refers to. dot is
// set when the data itself is handed to a function, e.g. {{index . "x"}}.
type templateFields struct {
	keys []string
	dot  bool
}

func (f *templateFields) collect(node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}

		for _, c := range n.Nodes {
			f.collect(c)
		}
	case *parse.ActionNode:
		f.collect(n.Pipe)
	case *parse.PipeNode:
		if n == nil {
			return
		}

		for _, c := range n.Cmds {
			f.collect(c)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			f.collect(arg)
		}
	case *parse.FieldNode:
		f.keys = append(f.keys, n.Ident[0])
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			f.keys = append(f.keys, n.Ident[1])
		} else if len(n.Ident) == 1 && n.Ident[0] == "$" {
			f.dot = true
		}
	case *parse.DotNode:
		f.dot = true
	case *parse.ChainNode:
		f.collect(n.Node)
	case *parse.IfNode:
		f.collectBranch(&n.BranchNode)
	case *parse.RangeNode:
		f.collectBranch(&n.BranchNode)
	case *parse.WithNode:
		f.collectBranch(&n.BranchNode)
	case *parse.TemplateNode:
		f.collect(n.Pipe)
	}
}

func (f *templateFields) collectBranch(b *parse.BranchNode) {
	f.collect(b.Pipe)
	f.collect(b.List)
	f.collect(b.ElseList)
}

// ExpandUser replaces a leading ~ with the current user's home directory.
func ExpandUser(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

var (
	windowsDrive   = regexp.MustCompile(`^[A-Za-z]:`)
	trailingPeriod = regexp.MustCompile(`([^./\\])\.+([/\\]|$)`)
)

// MakeValidPath strips characters that cannot appear in a path. Windows
// style paths (with a drive letter) also lose :<>*?"| and trailing dots.
func MakeValidPath(path string) string {
	path = strings.ReplaceAll(path, "\x00", "")

	drive := windowsDrive.FindString(path)
	if drive == "" {
		return path
	}

	rest := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:<>*?"|`, r) {
			return -1
		}

		return r
	}, path[len(drive):])
	rest = trailingPeriod.ReplaceAllString(rest, "$1$2")

	return drive + rest
}
