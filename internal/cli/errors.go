package cli

import (
	"errors"

	"github.com/roach88/qtoken/internal/cueschema"
	"github.com/roach88/qtoken/internal/query"
	"github.com/roach88/qtoken/internal/resolve"
	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/store"
)

// Error codes reported by the CLI. Schema load failures keep the codes of
// cueschema.LoadError (E001-E006, E101-E105).
const (
	ErrCodeGeneric     = cueschema.ErrCodeGeneric
	ErrCodeNotFound    = cueschema.ErrCodeNotFound
	ErrCodeRequestFile = "E007" // Request file unreadable or malformed
	ErrCodeConfig      = "E008" // Invalid configuration
	ErrCodeNoSchema    = "E009" // No schema source configured
	ErrCodeImport      = "E010" // SQLite catalog cannot be imported
	ErrCodeVisibility  = "E011" // Visibility rule does not compile

	ErrCodeUnknownToken = "E201" // Path segment is not a sub-token
	ErrCodeNotAllowed   = "E202" // Token denied by the authorizer
	ErrCodeSyntax       = "E203" // Malformed token path
	ErrCodeQuery        = "E210" // Request rejected by the compiler

	ErrCodeTestFailed = "E_TEST_FAILED"
)

// commandError is a failure raised by the CLI itself, with its code.
type commandError struct {
	Code string
	Exit int
	Err  error
}

func (e *commandError) Error() string { return e.Err.Error() }

func (e *commandError) Unwrap() error { return e.Err }

// TokenErrorDetails is the detail payload of token errors.
type TokenErrorDetails struct {
	Reason     string `json:"reason"`
	Path       string `json:"path,omitempty"`
	Segment    string `json:"segment,omitempty"`
	Parent     string `json:"parent,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// QueryErrorDetails is the detail payload of compile errors.
type QueryErrorDetails struct {
	Reason string `json:"reason"`
	Token  string `json:"token,omitempty"`
}

// LoadErrorDetails is the detail payload of schema load errors.
type LoadErrorDetails struct {
	Field string `json:"field,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// reportError writes err through the formatter and returns the matching
// *ExitError.
func reportError(f *OutputFormatter, err error) error {
	code, exit, details := classify(err)
	if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, code, err)
}

// classify maps err onto an output code, an exit code and details.
// Rejected user input exits with ExitFailure; everything that prevents
// the command from running exits with ExitCommandError.
func classify(err error) (string, int, any) {
	var (
		ce *commandError
		le *cueschema.LoadError
		ie *store.ImportError
		re *resolve.Error
		qe *query.Error
		xe *schema.ExpressionError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Code, ce.Exit, nil
	case errors.As(err, &le):
		d := LoadErrorDetails{Field: le.Field}
		if le.Pos.IsValid() {
			d.File, d.Line = le.Pos.Filename(), le.Pos.Line()
		}
		return le.Code, ExitCommandError, d
	case errors.As(err, &ie):
		return ErrCodeImport, ExitCommandError, map[string]string{"table": ie.Table}
	case errors.As(err, &xe):
		return ErrCodeVisibility, ExitCommandError, nil
	case errors.As(err, &re):
		// Checked before query.Error, which wraps resolution failures.
		return resolveCode(re.Code), ExitFailure, TokenErrorDetails{
			Reason:     string(re.Code),
			Path:       re.Path,
			Segment:    re.Segment,
			Parent:     re.Parent,
			Suggestion: re.Suggestion,
		}
	case errors.As(err, &qe):
		return ErrCodeQuery, ExitFailure, QueryErrorDetails{Reason: string(qe.Code), Token: qe.Token}
	default:
		return ErrCodeGeneric, ExitCommandError, nil
	}
}

func resolveCode(c resolve.ErrorCode) string {
	switch c {
	case resolve.ErrCodeUnknownToken:
		return ErrCodeUnknownToken
	case resolve.ErrCodeNotAllowed:
		return ErrCodeNotAllowed
	case resolve.ErrCodeSyntax:
		return ErrCodeSyntax
	default:
		return ErrCodeGeneric
	}
}
