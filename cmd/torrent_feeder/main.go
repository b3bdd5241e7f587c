package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/italolelis/torrent_feeder/internal/config"
	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/task"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runOptions are the command line switches shared by every command.
type runOptions struct {
	tasksFile string
	tasks     []string
	dump      string
	debug     bool
	test      bool
	learn     bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(&runOptions{}).ExecuteContext(ctx); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func newRootCommand(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "torrent_feeder",
		Short:         "Feed torrents from configured tasks into a Deluge daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addRunFlags(cmd.PersistentFlags(), opts)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "execute",
			Short: "Run every task once",
			Args:  opts.dumpArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := setup(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer app.Close()

				return app.Execute(app.ctx)
			},
		},
		&cobra.Command{
			Use:   "daemon",
			Short: "Run tasks periodically and serve the status API",
			Args:  opts.dumpArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := setup(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer app.Close()

				return app.Daemon(app.ctx)
			},
		},
	)

	return cmd
}

func addRunFlags(fs *pflag.FlagSet, o *runOptions) {
	fs.StringVar(&o.tasksFile, "tasks", "", "path to the task file (default $TASKS_FILE)")
	fs.StringArrayVar(&o.tasks, "task", nil, "run only the named task, may be repeated")
	fs.StringVar(&o.dump, "dump", "", "dump entries at the end of the output phase: bare, eval or trace")
	fs.Lookup("dump").NoOptDefVal = string(task.DumpPlain)
	fs.BoolVar(&o.debug, "debug", false, "debug logging and unprintable dump fields")
	fs.BoolVar(&o.test, "test", false, "connect to the daemon without adding anything")
	fs.BoolVar(&o.learn, "learn", false, "run tasks without producing output")
}

// dumpArgs accepts the space separated "--dump eval" and "--dump trace"
// forms. A bare --dump takes no value, so pflag leaves the mode as a
// positional argument. Any other positional argument is a usage error.
func (o *runOptions) dumpArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}

	if len(args) == 1 && cmd.Flags().Changed("dump") && o.dump == string(task.DumpPlain) {
		mode, err := task.ParseDumpMode(args[0])
		if err != nil {
			return err
		}

		if mode != task.DumpPlain {
			o.dump = string(mode)

			return nil
		}
	}

	return fmt.Errorf("unexpected arguments %q for %s", args, cmd.CommandPath())
}

func (o *runOptions) taskOptions() (task.Options, error) {
	mode, err := task.ParseDumpMode(o.dump)
	if err != nil {
		return task.Options{}, err
	}

	return task.Options{Dump: mode, Debug: o.debug, Test: o.test, Learn: o.learn}, nil
}

func newLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := cfg.SlogLevel()
	if debug {
		level = slog.LevelDebug
	}

	// Logs go to stderr so dump output on stdout stays readable.
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	return slog.New(logctx.NewTraceHandler(handler))
}
