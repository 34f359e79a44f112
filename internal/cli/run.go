package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/weft/internal/engine"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/store"
)

// DefaultEntry is the entry function run when --entry is not given.
const DefaultEntry = "main.main"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Entry        string
	Workers      int
	TraceDB      string
	IopTimeout   time.Duration
	PollInterval time.Duration

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunOutput is the JSON payload of a run.
type RunOutput struct {
	RunID  string `json:"run_id"`
	Entry  string `json:"entry"`
	Status string `json:"status"`
	Value  string `json:"value,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [program-dir...]",
		Short: "Run an entry function",
		Long: `Run an entry function on a pool of workers.

Programs are loaded from the given directories, or from program_dirs in
weft.toml when none are given. The entry call's result is printed on
success.

Exit codes:
  0 - The entry call returned a value
  1 - A failure propagated to the entry call, or its fiber was aborted
  2 - Command error (invalid paths, bad flags, etc.)
  3 - The entry function could not be resolved

Examples:
  weft run ./lib
  weft run ./lib --entry app.start --workers 4
  weft run ./lib --trace-db ./trace.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntry(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Entry, "entry", "e", DefaultEntry, "entry function (module.func)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "number of workers (default: config workers)")
	cmd.Flags().StringVar(&opts.TraceDB, "trace-db", "", "record the run into this SQLite trace database")
	cmd.Flags().DurationVar(&opts.IopTimeout, "iop-timeout", 0, "bound on each I/O operation (default: config iop.timeout)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 0, "longest single future poll (default: config iop.poll_interval)")

	return cmd
}

func runEntry(opts *RunOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.config()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	opts.setupLogging(cmd.ErrOrStderr(), cfg)

	module, fn, ok := strings.Cut(opts.Entry, ".")
	if !ok || module == "" || fn == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid entry %q: want module.func", opts.Entry))
	}

	dirs, err := programDirs(args, opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	lib, err := loadLibrary(dirs, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load programs", err)
	}

	engineOpts := []engine.Option{
		engine.WithWorkers(cfg.Workers),
		engine.WithIopTimeout(cfg.Iop.Timeout.Duration),
		engine.WithPollInterval(cfg.Iop.PollInterval.Duration),
	}
	if opts.Workers > 0 {
		engineOpts = append(engineOpts, engine.WithWorkers(opts.Workers))
	}
	if opts.IopTimeout > 0 {
		engineOpts = append(engineOpts, engine.WithIopTimeout(opts.IopTimeout))
	}
	if opts.PollInterval > 0 {
		engineOpts = append(engineOpts, engine.WithPollInterval(opts.PollInterval))
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	traceDB := opts.TraceDB
	if traceDB == "" {
		traceDB = cfg.Trace.DB
	}
	if traceDB != "" {
		st, err := store.Open(traceDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing trace database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithRecorder(st))
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	app := engine.NewApplication(lib, engineOpts...)
	app.PushCall(module, fn)
	if err := app.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}

	res, waitErr := app.Wait(ctx)
	if closeErr := app.Close(); closeErr != nil && waitErr == nil {
		waitErr = closeErr
	}
	if waitErr != nil {
		return WrapExitError(ExitFailure, "runtime error", waitErr)
	}

	return reportRun(opts, cmd, app.RunID(), res)
}

// reportRun prints the entry call's outcome and maps it to an exit code.
func reportRun(opts *RunOptions, cmd *cobra.Command, runID string, res engine.Result) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	out := RunOutput{RunID: runID, Entry: opts.Entry}

	if res.Err != nil {
		out.Status = "aborted"
		code := string(engine.ErrorCode(res.Err))
		if opts.Format == "json" {
			if err := formatter.JSON(CLIResponse{
				Status: "error",
				Data:   out,
				Error:  &CLIError{Code: code, Message: res.Err.Error()},
				RunID:  runID,
			}); err != nil {
				return err
			}
		}
		return WrapExitError(ExitFailure, "fiber aborted", res.Err)
	}

	out.Value = res.Value.String()
	status := res.Status()
	out.Status = status.String()
	formatter.VerboseLog("run %s finished: %s", runID, out.Status)

	if status == engine.StatusSuccess {
		if opts.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: out, RunID: runID})
		}
		if _, isVoid := res.Value.(ir.Void); !isVoid {
			fmt.Fprintln(cmd.OutOrStdout(), res.Value)
		}
		return nil
	}

	fail := res.Value.(ir.Failure)
	if opts.Format == "json" {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   out,
			Error:  &CLIError{Code: fail.Tag, Message: fail.Msg},
			RunID:  runID,
		}); err != nil {
			return err
		}
	}
	if status == engine.StatusNoMain {
		return NewExitError(ExitNoMain, fmt.Sprintf("no main: %s", fail.Msg))
	}
	return NewExitError(ExitFailure, fmt.Sprintf("uncaught failure: %s", fail))
}
