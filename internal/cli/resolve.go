package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/qtoken/internal/resolve"
)

// Resolution is the output of the resolve command.
type Resolution struct {
	Path  string      `json:"path"`
	Token string      `json:"token"`
	Chain []TokenInfo `json:"chain"` // root first
}

// RenderText implements TextRenderer.
func (r Resolution) RenderText(w io.Writer) {
	for i, t := range r.Chain {
		fmt.Fprintf(w, "%*s", 2*i, "")
		keyColor.Fprint(w, t.Key)
		fmt.Fprint(w, "  ")
		typeColor.Fprint(w, t.Type)
		fmt.Fprintf(w, "  %s", t.NiceName)
		if t.Format != "" || t.Unit != "" {
			subtleColor.Fprintf(w, "  [%s %s]", t.Format, t.Unit)
		}
		fmt.Fprintln(w)
	}
	okColor.Fprintf(w, "✓ %s\n", r.Token)
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <root> <path>",
		Short: "Resolve a token path",
		Long: `Resolve a dotted token path below a root entity type and print the
token chain.

Exit codes:
  0 - Path resolved
  1 - Unknown, denied or malformed path
  2 - Command error (schema or configuration)

Examples:
  qtoken resolve Order Customer.Name --schema ./schema
  qtoken resolve Order "Lines.Any().Quantity" --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runResolve(opts *RootOptions, rootName, path string, cmd *cobra.Command) error {
	s, f, err := openSession(cmd, opts)
	if err != nil {
		return err
	}

	root, env, err := s.root(rootName)
	if err != nil {
		return reportError(f, err)
	}
	tok, err := resolve.Parse(root, path, env.Options)
	if err != nil {
		return reportError(f, err)
	}

	chain := tok.Chain()
	out := Resolution{
		Path:  path,
		Token: tok.String(),
		Chain: make([]TokenInfo, len(chain)),
	}
	for i, t := range chain {
		out.Chain[i] = newTokenInfo(t)
	}
	return f.Success(out)
}
