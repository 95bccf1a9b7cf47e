package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/qtoken/internal/cueschema"
	"github.com/roach88/qtoken/internal/extension"
	"github.com/roach88/qtoken/internal/query"
	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/testutil"
	"github.com/roach88/qtoken/internal/token"
)

// Harness runs scenarios with deterministic compilation ids.
type Harness struct {
	ids    *testutil.SequenceIDGenerator
	logger *slog.Logger

	// default schema for scenarios without a schema directory
	schema     schema.Provider
	extensions *extension.Registry
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to compilations.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithSchema sets the schema used by scenarios that name no schema
// directory, in place of the sample schema.
func WithSchema(p schema.Provider, extensions *extension.Registry) Option {
	return func(h *Harness) {
		h.schema = p
		h.extensions = extensions
	}
}

// New creates a harness. Ids restart at "test-0001" for every scenario.
func New(opts ...Option) *Harness {
	h := &Harness{
		ids:    testutil.NewSequenceIDGenerator("test"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(s *Scenario) (*Result, error) {
	return New().Run(s)
}

// Run compiles the scenario request and checks the expectations.
//
// The returned error reports a scenario that could not be executed, such
// as an unreadable schema. Failed expectations are recorded in the
// result.
//
// Execution flow:
//  1. Load the schema (CUE directory or the sample schema)
//  2. Compile the request with a fresh id sequence
//  3. Lint the compiled query
//  4. Evaluate expectations
func (h *Harness) Run(s *Scenario) (*Result, error) {
	env, err := h.env(s)
	if err != nil {
		return nil, err
	}
	h.ids.Reset()

	result := NewResult()
	compiled, err := query.Compile(env, s.Request.QueryRequest())
	if err != nil {
		result.Err = err
	} else {
		result.Compiled = compiled
		result.Lint = query.Lint(compiled, env.Schema)
	}

	for _, msg := range evaluate(s.Expect, result) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario executed",
		slog.String("scenario", s.Name),
		slog.Bool("pass", result.Pass),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (h *Harness) env(s *Scenario) (*query.Env, error) {
	opts, ok := token.ParseOptions(s.Options)
	if !ok {
		return nil, fmt.Errorf("scenario %s: unknown option in %v", s.Name, s.Options)
	}
	env := &query.Env{
		Auth:    s.Auth,
		Options: opts,
		IDs:     h.ids,
		Logger:  h.logger,
	}
	if s.Schema == "" && h.schema != nil {
		env.Schema = h.schema
		env.Extensions = h.extensions
		return env, nil
	}
	if s.Schema == "" {
		sample := testutil.SampleSchema()
		env.Schema = sample.Catalog
		env.Extensions = sample.Extensions
		return env, nil
	}
	res, err := cueschema.LoadDir(s.Schema)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: load schema: %w", s.Name, err)
	}
	env.Schema = res.Catalog
	env.Extensions = res.Extensions
	return env, nil
}
