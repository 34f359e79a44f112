package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/queryir"
	"github.com/roach88/weft/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Kind     string   // optional - filter to one message kind
	Where    []string // optional - field=value or field>=n filters
	Limit    int
	List     bool
}

// TraceMessage is one recorded protocol message.
type TraceMessage struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Worker int64  `json:"worker"`
	Fiber  int64  `json:"fiber"`
	Func   string `json:"func"`
	Value  string `json:"value,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      ir.Run         `json:"run"`
	Messages []TraceMessage `json:"messages"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Total      int  `json:"total"`
	Spawns     int  `json:"spawns"`
	Requests   int  `json:"requests"`
	Results    int  `json:"results"`
	Aborts     int  `json:"aborts"`
	IsComplete bool `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show the recorded protocol messages of a run",
		Long: `Show the protocol messages a run exchanged between the Application
and its workers, ordered by sequence number.

Without a run id the most recent run is shown.

Examples:
  weft trace --db ./trace.db
  weft trace --db ./trace.db 0190c6f2-...
  weft trace --db ./trace.db --kind request_code
  weft trace --db ./trace.db --where module=prefab --where seq>=10
  weft trace --db ./trace.db --list
  weft trace --db ./trace.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one message kind")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter messages (field=value or field>=n, repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many messages")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs instead of showing one")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		w := cmd.OutOrStdout()
		for _, run := range runs {
			fmt.Fprintf(w, "%s  entry=%s workers=%d\n", run.ID, run.Entry, run.Workers)
		}
		return nil
	}

	var run ir.Run
	if runID == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, runID)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if outErr := formatter.Error("E_RUN_NOT_FOUND", err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	filter, err := traceFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	entries, err := st.ReadTrace(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	shown := entries
	if filter != nil || opts.Limit > 0 {
		shown, err = st.QueryTrace(ctx, queryir.Select{RunID: run.ID, Filter: filter, Limit: opts.Limit})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to query trace", err)
		}
	}

	result := buildTrace(run, entries, shown)
	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(cmd.OutOrStdout(), result)
	return nil
}

// traceFilter combines --kind and --where into one predicate. Returns nil
// when no filter was given.
func traceFilter(opts *TraceOptions) (queryir.Predicate, error) {
	var preds []queryir.Predicate
	if opts.Kind != "" {
		preds = append(preds, queryir.Equals{Field: "kind", Value: opts.Kind})
	}
	for _, expr := range opts.Where {
		p, err := queryir.ParseFilter(expr)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		return nil, nil
	}
	return queryir.And{Predicates: preds}, nil
}

// buildTrace lists shown as trace messages. Stats always cover every
// message of the run.
func buildTrace(run ir.Run, entries, shown []ir.TraceEntry) TraceResult {
	result := TraceResult{Run: run, Messages: make([]TraceMessage, 0, len(shown))}

	for _, e := range entries {
		switch e.Kind {
		case ir.TraceSpawn:
			result.Stats.Spawns++
		case ir.TraceRequestCode:
			result.Stats.Requests++
		case ir.TraceMainResult:
			result.Stats.Results++
		case ir.TraceFiberAborted:
			result.Stats.Aborts++
		}
		result.Stats.Total++
	}

	for _, e := range shown {
		msg := TraceMessage{
			Seq:    e.Seq,
			Kind:   e.Kind,
			Worker: e.WorkerID,
			Fiber:  e.FiberID,
			Func:   ir.QualifiedName(e.Module, e.Func),
			Detail: e.Detail,
		}
		if e.Value != nil {
			msg.Value = e.Value.String()
		}
		result.Messages = append(result.Messages, msg)
	}

	// Every spawned entry call ended with a result or an abort.
	result.Stats.IsComplete = result.Stats.Spawns > 0 &&
		result.Stats.Results+result.Stats.Aborts == result.Stats.Spawns
	return result
}

func outputTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Entry: %s  Workers: %d\n\n", result.Run.Entry, result.Run.Workers)

	for _, m := range result.Messages {
		fmt.Fprintf(w, "[%d] %-13s w%d f%d %s", m.Seq, m.Kind, m.Worker, m.Fiber, m.Func)
		if m.Detail != "" {
			fmt.Fprintf(w, " (%s)", m.Detail)
		}
		if m.Value != "" {
			fmt.Fprintf(w, " => %s", m.Value)
		}
		fmt.Fprintln(w)
	}

	status := "incomplete"
	if result.Stats.IsComplete {
		status = "complete"
	}
	fmt.Fprintf(w, "\n%d message(s), %d request(s), %s\n", result.Stats.Total, result.Stats.Requests, status)
}
