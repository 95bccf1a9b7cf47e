package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qtoken/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"; empty uses the configured format

	ConfigPath string // configuration file
	SchemaDir  string // CUE schema directory, overrides the configuration
	SQLite     string // SQLite catalog, overrides the configuration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qtoken CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qtoken",
		Short: "qtoken - query tokens and expression compilation",
		Long: `Resolve query tokens against an entity schema and compile requests
(columns, filters, orders, pagination) into expression trees with
row-level visibility filters injected.

The schema comes from a directory of CUE files (--schema) or from the
catalog of a SQLite database (--sqlite), or from qtoken.yaml.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "" && !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.SchemaDir != "" && opts.SQLite != "" {
				return fmt.Errorf("--schema and --sqlite are mutually exclusive")
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "", "output format (json|text), defaults to the configured format")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultFile, "configuration file")
	cmd.PersistentFlags().StringVar(&opts.SchemaDir, "schema", "", "directory of CUE schema files")
	cmd.PersistentFlags().StringVar(&opts.SQLite, "sqlite", "", "SQLite database to import the schema from")

	// Add subcommands
	cmd.AddCommand(NewTokensCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
