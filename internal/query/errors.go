package query

import (
	"errors"
	"fmt"
)

// Error is a request that cannot be compiled.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Token is the offending token path, if any.
	Token string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// ErrorCode categorizes request errors.
type ErrorCode string

const (
	// ErrCodeUnknownType indicates a root that is not a known entity type.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// ErrCodeInvalidToken indicates a token path that does not resolve or
	// is not allowed. Err holds the *resolve.Error.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// ErrCodeQuantifierNotAllowed indicates a column or order through a
	// collection quantifier.
	ErrCodeQuantifierNotAllowed ErrorCode = "QUANTIFIER_NOT_ALLOWED"

	// ErrCodeTypeMismatch indicates a filter value that cannot be
	// converted to the token type, or an operation the type does not
	// support.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeInvalidOperation indicates an unknown filter operation.
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// ErrCodeInvalidGroup indicates a group prefix that is not a
	// quantifier.
	ErrCodeInvalidGroup ErrorCode = "INVALID_GROUP"

	// ErrCodeInvalidPagination indicates non-positive page sizes or
	// numbers.
	ErrCodeInvalidPagination ErrorCode = "INVALID_PAGINATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Token != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Code, e.Token, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// IsQuantifierNotAllowed returns true if err is a quantifier error.
// Uses errors.As to handle wrapped errors.
func IsQuantifierNotAllowed(err error) bool {
	return hasCode(err, ErrCodeQuantifierNotAllowed)
}

// IsTypeMismatch returns true if err is a type mismatch error.
// Uses errors.As to handle wrapped errors.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

// IsInvalidToken returns true if err is an invalid token error.
// Uses errors.As to handle wrapped errors.
func IsInvalidToken(err error) bool {
	return hasCode(err, ErrCodeInvalidToken)
}

func hasCode(err error, code ErrorCode) bool {
	var qe *Error
	return errors.As(err, &qe) && qe.Code == code
}
