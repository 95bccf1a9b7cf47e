package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/qtoken/internal/config"
	"github.com/roach88/qtoken/internal/cueschema"
	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/query"
	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/store"
	"github.com/roach88/qtoken/internal/token"
)

// session is the configuration and schema shared by one command run.
type session struct {
	cfg    *config.Config
	logger *slog.Logger

	// source names where the schema came from ("cue:<dir>" or
	// "sqlite:<path>"). Empty when no source is configured.
	source     string
	catalog    *schema.Catalog
	extensions *extension.Registry
	files      int // CUE files read
}

// openSession builds the output formatter and loads the configuration and
// schema. Load errors are written through the formatter and returned as an
// *ExitError.
//
// Flag values override the configuration file; the output format falls
// back to the configured one when --format is not given.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, *OutputFormatter, error) {
	format := opts.Format
	if format == "" {
		format = "text"
	}
	f := &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	s, err := loadSession(cmd.Context(), opts, f)
	if err != nil {
		return nil, f, reportError(f, err)
	}
	if opts.Format == "" {
		f.Format = s.cfg.Format
	}
	return s, f, nil
}

func loadSession(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*session, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &commandError{Code: ErrCodeConfig, Exit: ExitCommandError, Err: err}
	}
	if opts.SchemaDir != "" {
		cfg.SchemaDir, cfg.SQLite = opts.SchemaDir, ""
	}
	if opts.SQLite != "" {
		cfg.SQLite, cfg.SchemaDir = opts.SQLite, ""
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	s := &session{cfg: cfg, logger: cfg.Logger(f.GetErrWriter())}
	switch {
	case cfg.SchemaDir != "":
		f.VerboseLog("Loading CUE schema from %s", cfg.SchemaDir)
		res, err := cueschema.LoadDir(cfg.SchemaDir)
		if err != nil {
			return nil, err
		}
		s.source = "cue:" + cfg.SchemaDir
		s.catalog, s.extensions, s.files = res.Catalog, res.Extensions, res.FileCount
	case cfg.SQLite != "":
		f.VerboseLog("Importing schema from SQLite database %s", cfg.SQLite)
		if err := s.importSQLite(ctx, cfg.SQLite); err != nil {
			return nil, err
		}
	}
	if s.catalog != nil {
		s.catalog.Visibility().SetLogger(s.logger)
	}
	return s, nil
}

func (s *session) importSQLite(ctx context.Context, path string) error {
	// store.Open would create a missing database.
	if _, err := os.Stat(path); err != nil {
		return &commandError{
			Code: ErrCodeNotFound,
			Exit: ExitCommandError,
			Err:  fmt.Errorf("sqlite database not found: %s", path),
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	catalog, err := st.ImportCatalog(ctx)
	if err != nil {
		return err
	}
	// A SQLite catalog carries no extension definitions.
	extensions := extension.NewRegistry()
	extensions.Freeze()

	s.source = "sqlite:" + path
	s.catalog, s.extensions = catalog, extensions
	return nil
}

// queryEnv returns the compilation environment. It fails when no schema
// source is configured.
func (s *session) queryEnv() (*query.Env, error) {
	if s.catalog == nil {
		return nil, &commandError{
			Code: ErrCodeNoSchema,
			Exit: ExitCommandError,
			Err:  fmt.Errorf("no schema source: use --schema or --sqlite, or set schema_dir or sqlite in %s", config.DefaultFile),
		}
	}
	opts, err := s.cfg.TokenOptions()
	if err != nil {
		return nil, &commandError{Code: ErrCodeConfig, Exit: ExitCommandError, Err: err}
	}
	return &query.Env{
		Schema:     s.catalog,
		Auth:       s.cfg.Auth,
		Extensions: s.extensions,
		Options:    opts,
		Logger:     s.logger,
	}, nil
}

// root returns the root token of a fresh tree for the entity type name.
func (s *session) root(name string) (token.Token, *query.Env, error) {
	env, err := s.queryEnv()
	if err != nil {
		return token.Token{}, nil, err
	}
	t, ok := env.Schema.Type(name)
	if !ok || !t.IsEntity() {
		return token.Token{}, nil, &query.Error{
			Code:    query.ErrCodeUnknownType,
			Message: fmt.Sprintf("%q is not an entity type", name),
		}
	}
	tree := token.NewTree(&token.Env{Schema: env.Schema, Auth: env.Auth, Extensions: env.Extensions}, t)
	return tree.Root(), env, nil
}
