package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// ValidationResult summarises a loaded schema.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Source     string   `json:"source"`
	Files      int      `json:"files,omitempty"`
	Types      int      `json:"types"`
	Extensions int      `json:"extensions"`
	Visibility []string `json:"visibility"` // types with a visibility rule
	Catalog    string   `json:"catalog,omitempty"`
}

// RenderText implements TextRenderer.
func (r ValidationResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Source: %s\n", r.Source)
	if r.Files > 0 {
		fmt.Fprintf(w, "Files: %d\n", r.Files)
	}
	fmt.Fprintf(w, "Types: %d, extensions: %d, visibility rules: %d\n", r.Types, r.Extensions, len(r.Visibility))
	if r.Catalog != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, r.Catalog)
		fmt.Fprintln(w)
	}
	okColor.Fprintln(w, "✓ Schema valid")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configured schema",
		Long: `Load the configured schema source and compile every visibility rule.

With --verbose the catalog is printed.

Examples:
  qtoken validate --schema ./schema
  qtoken validate --sqlite shop.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	s, f, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	if _, err := s.queryEnv(); err != nil {
		return reportError(f, err)
	}

	if err := s.catalog.Visibility().Validate(s.catalog); err != nil {
		return reportError(f, &commandError{Code: ErrCodeVisibility, Exit: ExitFailure, Err: err})
	}

	visibility := s.catalog.Visibility().Types()
	sort.Strings(visibility)
	result := ValidationResult{
		Valid:      true,
		Source:     s.source,
		Files:      s.files,
		Types:      len(s.catalog.Types()),
		Extensions: s.extensions.Len(),
		Visibility: visibility,
	}
	if opts.Verbose {
		result.Catalog = s.catalog.Describe()
	}
	return f.Success(result)
}
