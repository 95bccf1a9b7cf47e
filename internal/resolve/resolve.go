// Package resolve parses token paths such as "Lines.Any().Quantity" into
// tokens by walking sub-token enumeration from a root.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/qtoken/internal/ir"
	"github.com/roach88/qtoken/internal/token"
)

// ErrorCode categorizes resolution errors.
type ErrorCode string

const (
	// ErrCodeSyntax indicates a malformed path (empty segment, unbalanced
	// parentheses).
	ErrCodeSyntax ErrorCode = "SYNTAX"

	// ErrCodeUnknownToken indicates a segment that is not offered as a
	// sub-token under the given options.
	ErrCodeUnknownToken ErrorCode = "UNKNOWN_TOKEN"

	// ErrCodeNotAllowed indicates a token the caller may not use.
	ErrCodeNotAllowed ErrorCode = "NOT_ALLOWED"
)

// Error is a resolution failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Path is the input path.
	Path string

	// Segment is the offending segment, if any.
	Segment string

	// Parent is the token under which Segment was looked up.
	Parent string

	// Suggestion is a sub-token key that matches Segment ignoring case.
	Suggestion string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// IsUnknownToken returns true if err is an unknown token error.
// Uses errors.As to handle wrapped errors.
func IsUnknownToken(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == ErrCodeUnknownToken
}

// IsNotAllowed returns true if err is a not-allowed error.
// Uses errors.As to handle wrapped errors.
func IsNotAllowed(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == ErrCodeNotAllowed
}

// Parse resolves path below root. Segments are separated by dots; casts
// keep their parentheses ("Owner.(Person).Name") and a trailing "()" is
// ignored, so "Any()" and "Any" are the same segment. The path may start
// with the root key. Input is NFC-normalised before matching.
//
// The resolved token must be allowed; otherwise an ErrCodeNotAllowed
// error carrying the reason is returned.
func Parse(root token.Token, path string, opts token.Options) (token.Token, error) {
	path = ir.NormalizeKey(strings.TrimSpace(path))
	segments, err := Split(path)
	if err != nil {
		return token.Token{}, err
	}
	if len(segments) > 0 && segments[0] == root.Key() {
		if _, ok := root.SubToken(segments[0], opts); !ok {
			segments = segments[1:]
		}
	}

	cur := root
	for _, seg := range segments {
		next, ok := cur.SubToken(seg, opts)
		if !ok {
			return token.Token{}, &Error{
				Code:       ErrCodeUnknownToken,
				Path:       path,
				Segment:    seg,
				Parent:     cur.String(),
				Suggestion: suggest(cur, seg, opts),
				Message:    fmt.Sprintf("%s has no sub-token %q", cur, seg),
			}
		}
		cur = next
	}

	if reason := cur.IsAllowed(); reason != "" {
		return token.Token{}, &Error{
			Code:    ErrCodeNotAllowed,
			Path:    path,
			Parent:  cur.String(),
			Message: fmt.Sprintf("%s is not allowed: %s", cur, reason),
		}
	}
	return cur, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or static setup.
func MustParse(root token.Token, path string, opts token.Options) token.Token {
	tok, err := Parse(root, path, opts)
	if err != nil {
		panic(err)
	}
	return tok
}

// Split breaks path into segments. Dots inside parentheses do not split
// and a trailing "()" on a segment is dropped.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	var (
		segs  []string
		depth int
		start int
	)
	flush := func(end int) error {
		seg := strings.TrimSuffix(path[start:end], "()")
		if seg == "" {
			return &Error{Code: ErrCodeSyntax, Path: path, Message: fmt.Sprintf("empty segment at offset %d", start)}
		}
		segs = append(segs, seg)
		return nil
	}
	for i, r := range path {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, &Error{Code: ErrCodeSyntax, Path: path, Message: fmt.Sprintf("unbalanced ')' at offset %d", i)}
			}
		case '.':
			if depth > 0 {
				continue
			}
			if err := flush(i); err != nil {
				return nil, err
			}
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, &Error{Code: ErrCodeSyntax, Path: path, Message: "unbalanced '('"}
	}
	if err := flush(len(path)); err != nil {
		return nil, err
	}
	return segs, nil
}

// suggest returns the sub-token key of parent equal to seg under Unicode
// case folding.
func suggest(parent token.Token, seg string, opts token.Options) string {
	fold := cases.Fold()
	want := fold.String(seg)
	for _, s := range parent.SubTokens(opts) {
		if fold.String(s.Key()) == want {
			return s.Key()
		}
	}
	return ""
}
