package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/weft/internal/ir"
)

// CheckIssue is one function that failed to compile.
type CheckIssue struct {
	Func  string `json:"func"`
	Error string `json:"error"`
}

// CheckReport holds check results.
type CheckReport struct {
	Valid        bool              `json:"valid"`
	Functions    int               `json:"functions"`
	Fingerprints map[string]string `json:"fingerprints"` // func -> code content hash
	Errors       []CheckIssue      `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var disasm bool

	cmd := &cobra.Command{
		Use:   "check [program-dir...]",
		Short: "Compile and validate every program function",
		Long: `Compile and validate every function in the program directories
without running anything.

Reports every invalid function rather than stopping at the first.

Exit codes:
  0 - Every function compiled
  1 - One or more functions are invalid
  2 - Command error (directory not found, CUE build errors, etc.)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, disasm, cmd)
		},
	}

	cmd.Flags().BoolVar(&disasm, "disasm", false, "print the bytecode of every valid function")

	return cmd
}

func runCheck(opts *RootOptions, args []string, disasm bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dirs, err := programDirs(args, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	lib, err := loadLibrary(dirs, io.Discard, io.Discard)
	if err != nil {
		if outErr := formatter.Error(loadErrorCode(err), err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to load programs", err)
	}

	report := CheckReport{Valid: true, Fingerprints: map[string]string{}}
	var listing strings.Builder
	for _, r := range lib.Check() {
		name := ir.QualifiedName(r.Module, r.Func)
		if r.Func == "" {
			name = r.Module
		}
		if r.Err != nil {
			report.Valid = false
			report.Errors = append(report.Errors, CheckIssue{Func: name, Error: r.Err.Error()})
			continue
		}
		fp, err := r.Code.Fingerprint()
		if err != nil {
			report.Valid = false
			report.Errors = append(report.Errors, CheckIssue{Func: name, Error: err.Error()})
			continue
		}
		report.Functions++
		report.Fingerprints[name] = fp
		formatter.VerboseLog("ok %s (%d ops) %s", name, len(r.Code.Ops()), fp)
		if disasm {
			fmt.Fprintf(&listing, "%s:\n%s", name, ir.Disassemble(r.Code.Ops()))
		}
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report}
		if !report.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_CHECK_FAILED",
				Message: fmt.Sprintf("%d function(s) invalid", len(report.Errors)),
			}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, issue := range report.Errors {
			fmt.Fprintf(w, "✗ %s\n  %s\n", issue.Func, issue.Error)
		}
		fmt.Fprint(w, listing.String())
		if report.Valid {
			fmt.Fprintf(w, "✓ %d function(s) valid\n", report.Functions)
		}
	}

	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d function(s) invalid", len(report.Errors)))
	}
	return nil
}
