package domain

import (
	"time"

	"github.com/samber/oops"
)

// Error codes surfaced at the HTTP boundary.
const (
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeValidation   = "VALIDATION"
	CodeRateLimited  = "RATE_LIMITED"
)

// ErrConflict reports a duplicate unique key.
func ErrConflict(message string) error {
	return oops.Code(CodeConflict).Errorf("%s", message)
}

// ErrUnauthorized reports missing or rejected credentials.
func ErrUnauthorized(message string) error {
	return oops.Code(CodeUnauthorized).Errorf("%s", message)
}

// ErrMissing reports that a referenced record does not exist.
func ErrMissing(message string) error {
	return oops.Code(CodeNotFound).Errorf("%s", message)
}

// ErrBadRequest reports a malformed or mismatched input.
func ErrBadRequest(message string) error {
	return oops.Code(CodeBadRequest).Errorf("%s", message)
}

// ErrRateLimited reports that the caller exceeded an attempt budget. The
// retry delay is attached as "retry_after_seconds".
func ErrRateLimited(message string, retryAfter time.Duration) error {
	return oops.Code(CodeRateLimited).
		With("retry_after_seconds", int(retryAfter.Seconds())).
		Errorf("%s", message)
}

// Code returns the oops code carried by err, or "" when it has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
