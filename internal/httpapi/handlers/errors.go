// Package handlers defines HTTP-layer error codes used across the ops API.
//
// These symbolic constants give clients a stable, machine-readable error
// taxonomy that supplements the human-readable message in each ErrorResponse.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeListFailed = "list_failed"
)
