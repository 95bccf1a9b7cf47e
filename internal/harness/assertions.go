package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/qtoken/internal/expr"
	"github.com/roach88/qtoken/internal/query"
	"github.com/roach88/qtoken/internal/resolve"
)

// ExpectationError is a failed expectation.
type ExpectationError struct {
	Field    string // expectation that failed: error, logical, filtered, physical, columns, warnings
	Expected string
	Actual   string
	Diff     string // go-cmp diff (-expected +actual), if any
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "expectation failed: %s\n", e.Field)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "  diff (-expected +actual):\n%s", e.Diff)
		return buf.String()
	}
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// evaluate checks r against x and returns one message per failure.
func evaluate(x Expect, r *Result) []string {
	var errs []error

	if x.Error != "" {
		if err := expectError(x.Error, r.Err); err != nil {
			errs = append(errs, err)
		}
	} else if r.Err != nil {
		errs = append(errs, &ExpectationError{Field: "error", Expected: "success", Actual: r.Err.Error()})
	}

	if r.Compiled != nil {
		if x.Logical != "" {
			errs = appendIf(errs, compareText("logical", x.Logical, expr.String(r.Compiled.Logical)))
		}
		if x.Filtered != "" {
			errs = appendIf(errs, compareText("filtered", x.Filtered, expr.String(r.Compiled.Filtered)))
		}
		if x.Physical != "" {
			errs = appendIf(errs, compareText("physical", x.Physical, expr.String(r.Compiled.Physical)))
		}
		if len(x.Columns) > 0 {
			keys := make([]string, len(r.Compiled.Columns))
			for i, c := range r.Compiled.Columns {
				keys[i] = c.Key
			}
			errs = appendIf(errs, compareList("columns", x.Columns, keys))
		}
		if x.Warnings != nil {
			errs = appendIf(errs, compareList("warnings", x.Warnings, r.Lint.Warnings))
		}
	}

	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

func appendIf(errs []error, err error) []error {
	if err == nil {
		return errs
	}
	return append(errs, err)
}

// ErrorCode returns the stable code of a compilation error: the
// resolver's code for token errors, the query code otherwise.
func ErrorCode(err error) string {
	var re *resolve.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	var qe *query.Error
	if errors.As(err, &qe) {
		return string(qe.Code)
	}
	return ""
}

// expectError accepts either the query code or the wrapped resolver code.
func expectError(code string, err error) error {
	if err == nil {
		return &ExpectationError{Field: "error", Expected: code, Actual: "success"}
	}
	var qe *query.Error
	if errors.As(err, &qe) && string(qe.Code) == code {
		return nil
	}
	if ErrorCode(err) == code {
		return nil
	}
	return &ExpectationError{Field: "error", Expected: code, Actual: err.Error()}
}

func compareText(field, want, got string) error {
	if want == got {
		return nil
	}
	return &ExpectationError{Field: field, Expected: want, Actual: got}
}

func compareList(field string, want, got []string) error {
	if got == nil {
		got = []string{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return &ExpectationError{Field: field, Diff: diff}
	}
	return nil
}
