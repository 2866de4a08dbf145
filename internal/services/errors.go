// Package services defines the business logic of the routing engine: thread
// lifecycle, reply resolution, admission control, blocking, conversation
// state, and the dispatcher that ties them together. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// All of these are recoverable: the dispatcher translates them into
// distinguishable user-visible rejections and leaves the store consistent.
// Fatal startup conditions (invalid configuration, lock conflicts) are plain
// errors surfaced from config and lockfile instead.
package services

import "errors"

var (
	// ErrRateLimited is returned when a user message fails either admission
	// check: the sliding-window cap or the minimum inter-message spacing.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBlocked is returned when the target responder has blocked the
	// sending user. Blocked sends are never persisted as forwarded.
	ErrBlocked = errors.New("blocked by responder")

	// ErrReplyNotFound is returned when every resolver tier fails to map a
	// reply reference onto a thread. The router rejects and mutates nothing.
	ErrReplyNotFound = errors.New("original message not found")

	// ErrForwardFailed wraps a transport failure. The message stays
	// persisted but undelivered; the sender must explicitly resend.
	ErrForwardFailed = errors.New("forward failed")

	// ErrUnknownResponder is returned when a selection does not name any
	// configured responder.
	ErrUnknownResponder = errors.New("unknown responder")

	// ErrEmptyMessage is returned for a whitespace-only outbound message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when an outbound message exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message too long")

	// ErrNoActiveThread is returned when an operation needs a selected
	// thread but the user's conversation state has none.
	ErrNoActiveThread = errors.New("no active thread")

	// ErrNotResponder is returned when a responder-only command arrives
	// from a sender that is not a configured responder identity.
	ErrNotResponder = errors.New("sender is not a responder")

	// ErrThreadNotFound is returned when a thread referenced by id or
	// prefix does not exist.
	ErrThreadNotFound = errors.New("thread not found")
)
