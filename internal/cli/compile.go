package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/qtoken/internal/harness"
	"github.com/roach88/qtoken/internal/query"
)

// CompileResult is the output of the compile command. It has the shape of
// a harness snapshot.
type CompileResult harness.Snapshot

// RenderText implements TextRenderer.
func (r CompileResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", keyColor.Sprint(r.Root), subtleColor.Sprint(r.ID))
	fmt.Fprintf(w, "logical:  %s\n", r.Logical)
	fmt.Fprintf(w, "filtered: %s\n", r.Filtered)
	if r.Physical != "" {
		fmt.Fprintf(w, "physical: %s\n", r.Physical)
	}
	if len(r.Columns) > 0 {
		fmt.Fprintln(w, "columns:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, c := range r.Columns {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s", c.Name, keyColor.Sprint(c.Key), typeColor.Sprint(c.Type), c.DisplayName)
			if c.Deferred {
				fmt.Fprint(tw, "\tdeferred")
			}
			fmt.Fprintln(tw)
		}
		tw.Flush()
	}
	for _, warn := range r.Warnings {
		deniedColor.Fprintf(w, "warning: %s\n", warn)
	}
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <request.yaml>",
		Short: "Compile a query request",
		Long: `Compile a request file into its logical and filtered expressions, and the
physical projection in which deferred values are materialized as columns.

The request file has the layout of the "request" section of a scenario:

  root: Order
  columns:
    - {token: Number}
    - {token: Customer.Name, name: Customer}
  filters:
    - {token: Lines.Any.Quantity, op: GreaterThan, value: 5}
  orders:
    - {token: Date, descending: true}
  pagination: {firsts: 10}

Exit codes:
  0 - Request compiled
  1 - Request rejected (unknown token, type mismatch, ...)
  2 - Command error (request file, schema or configuration)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCompile(opts *RootOptions, requestFile string, cmd *cobra.Command) error {
	s, f, err := openSession(cmd, opts)
	if err != nil {
		return err
	}

	step, err := readRequest(requestFile)
	if err != nil {
		return reportError(f, err)
	}
	env, err := s.queryEnv()
	if err != nil {
		return reportError(f, err)
	}

	compiled, err := query.Compile(env, step.QueryRequest())
	if err != nil {
		return reportError(f, err)
	}
	result := &harness.Result{Pass: true, Compiled: compiled, Lint: query.Lint(compiled, env.Schema)}

	name := strings.TrimSuffix(filepath.Base(requestFile), filepath.Ext(requestFile))
	f.VerboseLog("Compiled %s as %s", name, compiled.ID)
	return f.Success(CompileResult(harness.NewSnapshot(name, result)))
}

func readRequest(path string) (*harness.RequestStep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &commandError{Code: ErrCodeRequestFile, Exit: ExitCommandError, Err: fmt.Errorf("failed to read request file: %w", err)}
	}
	step, err := harness.ParseRequest(data)
	if err != nil {
		return nil, &commandError{Code: ErrCodeRequestFile, Exit: ExitCommandError, Err: err}
	}
	return step, nil
}
