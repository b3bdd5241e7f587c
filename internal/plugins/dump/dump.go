// Package dump prints task entries to the console for debugging.
package dump

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/italolelis/torrent_feeder/internal/task"
)

const lazyPlaceholder = "<LazyField - value will be determined when it is accessed>"

// Options control how entries are printed.
type Options struct {
	Debug    bool // also print values that have no plain rendering
	EvalLazy bool // evaluate lazy fields instead of printing a placeholder
	Trace    bool // print each entry's processing trace
}

// pinned fields are printed first, in this order.
var pinned = map[string]int{"title": 0, "url": 1, "original_url": 2}

func sortFields(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		pi, iPinned := pinned[keys[i]]
		pj, jPinned := pinned[keys[j]]

		switch {
		case iPinned && jPinned:
			return pi < pj
		case iPinned != jPinned:
			return iPinned
		default:
			return keys[i] < keys[j]
		}
	})
}

// Dump writes entries to w, one field per line followed by a blank line.
func Dump(w io.Writer, entries []*task.Entry, opts Options) {
	for _, e := range entries {
		keys := e.Keys()
		sortFields(keys)

		for _, field := range keys {
			if e.IsLazy(field) && !opts.EvalLazy {
				fmt.Fprintf(w, "%-17s: %s\n", field, lazyPlaceholder)

				continue
			}

			value, _ := e.Get(field)
			writeField(w, field, value, opts.Debug)
		}

		if opts.Trace {
			fmt.Fprintln(w, "-- Processing trace:")

			for _, tr := range e.Traces() {
				fmt.Fprintf(w, "%-10s %-7s %s\n", tr.Plugin, tr.Action, tr.Message)
			}
		}

		fmt.Fprintln(w)
	}
}

func writeField(w io.Writer, field string, value any, debug bool) {
	if value == nil {
		fmt.Fprintf(w, "%-17s: %v\n", field, value)

		return
	}

	if s, ok := value.(string); ok {
		if !utf8.ValidString(s) {
			fmt.Fprintf(w, "%-17s: %q (warning: unable to print)\n", field, s)

			return
		}

		fmt.Fprintf(w, "%-17s: %s\n", field, strings.NewReplacer("\r", "", "\n", "").Replace(s))

		return
	}

	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]string, rv.Len())
		for i := range items {
			items[i] = fmt.Sprint(rv.Index(i).Interface())
		}

		fmt.Fprintf(w, "%-17s: [%s]\n", field, strings.Join(items, ", "))
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Map:
		fmt.Fprintf(w, "%-17s: %v\n", field, value)
	default:
		if debug {
			fmt.Fprintf(w, "%-17s: [not printable] (%#v)\n", field, value)
		}
	}
}
