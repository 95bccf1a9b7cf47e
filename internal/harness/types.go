package harness

import (
	"github.com/roach88/qtoken/internal/query"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation matches.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Compiled is the compilation output. Nil when compilation failed.
	Compiled *query.Compiled `json:"-"`

	// Lint holds the warnings of a successful compilation.
	Lint query.LintResult `json:"-"`

	// Err is the compilation error, expected or not.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
