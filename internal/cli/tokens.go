package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/qtoken/internal/resolve"
	"github.com/roach88/qtoken/internal/token"
)

// TokenInfo describes one token.
type TokenInfo struct {
	Key      string `json:"key"`
	FullKey  string `json:"full_key"`
	Kind     string `json:"kind"`
	Type     string `json:"type"`
	NiceName string `json:"nice_name"`
	Format   string `json:"format,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Denied   string `json:"denied,omitempty"` // reason the token may not be used
}

func newTokenInfo(t token.Token) TokenInfo {
	info := TokenInfo{
		Key:      t.Key(),
		FullKey:  t.FullKey(),
		Kind:     t.Kind().String(),
		NiceName: t.NiceName(),
		Format:   t.Format(),
		Unit:     t.Unit(),
		Denied:   t.IsAllowed(),
	}
	if typ := t.Type(); typ != nil {
		info.Type = typ.String()
	}
	return info
}

// TokenList is the output of the tokens command.
type TokenList struct {
	Parent string      `json:"parent"`
	Tokens []TokenInfo `json:"tokens"`
}

// RenderText implements TextRenderer.
func (l TokenList) RenderText(w io.Writer) {
	keyColor.Fprintln(w, l.Parent)
	if len(l.Tokens) == 0 {
		subtleColor.Fprintln(w, "  (no sub-tokens)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range l.Tokens {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s", keyColor.Sprint(t.Key), typeColor.Sprint(t.Type), t.NiceName, subtleColor.Sprint(t.Kind))
		if t.Denied != "" {
			fmt.Fprintf(tw, "\t%s", deniedColor.Sprintf("denied: %s", t.Denied))
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

// NewTokensCommand creates the tokens command.
func NewTokensCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens <root> [path]",
		Short: "List the sub-tokens of a token",
		Long: `List the sub-tokens offered below a root entity type or below a
token path, with their types and display names.

Denied tokens are listed with the reason.

Examples:
  qtoken tokens Order --schema ./schema
  qtoken tokens Order Lines.Any --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			return runTokens(rootOpts, args[0], path, cmd)
		},
	}
	return cmd
}

func runTokens(opts *RootOptions, rootName, path string, cmd *cobra.Command) error {
	s, f, err := openSession(cmd, opts)
	if err != nil {
		return err
	}

	root, env, err := s.root(rootName)
	if err != nil {
		return reportError(f, err)
	}
	parent := root
	if path != "" {
		parent, err = resolve.Parse(root, path, env.Options)
		if err != nil {
			return reportError(f, err)
		}
	}

	subs := parent.SubTokens(env.Options)
	list := TokenList{Parent: parent.String(), Tokens: make([]TokenInfo, 0, len(subs))}
	for _, t := range subs {
		list.Tokens = append(list.Tokens, newTokenInfo(t))
	}
	f.VerboseLog("%d sub-token(s) below %s", len(list.Tokens), list.Parent)
	return f.Success(list)
}
