// Package services – ThreadService
//
// Owns the thread lifecycle: idempotent creation per (user, responder) pair,
// append-only message persistence, history, read tracking. This is the only
// mutation path into threads and messages besides the dispatcher's mapping
// writes; the ops API reads through it.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/repo"
)

// threadMarkerLen is how many leading chars of the thread uuid make up the
// embedded marker (and the /reply console prefix).
const threadMarkerLen = 8

// ThreadMarker returns the short marker embedded into every forwarded copy,
// e.g. "#3f2a9c1b". The resolver's marker tier parses it back out.
func ThreadMarker(threadID string) string {
	if len(threadID) < threadMarkerLen {
		return "#" + threadID
	}
	return "#" + threadID[:threadMarkerLen]
}

// ThreadService coordinates thread and message persistence.
type ThreadService struct {
	DB *gorm.DB

	// MaxMessageRunes caps outbound message length; 0 disables the check.
	MaxMessageRunes int
}

// EnsureThread returns the thread for the pair, creating or reactivating it.
// Idempotent: two consecutive calls return the same id.
func (s *ThreadService) EnsureThread(ctx context.Context, userID, responderID string) (*domain.Thread, error) {
	tr := otel.Tracer("services/ThreadService")
	ctx, span := tr.Start(ctx, "EnsureThread",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("responder.id", responderID),
		),
	)
	defer span.End()

	return repo.CreateThread(ctx, s.DB, userID, responderID)
}

// ActiveThread returns the pair's thread without creating one; ("" , nil)
// semantics are expressed as ErrThreadNotFound.
func (s *ThreadService) ActiveThread(ctx context.Context, userID, responderID string) (*domain.Thread, error) {
	t, err := repo.GetActiveThread(ctx, s.DB, userID, responderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	return t, err
}

// ValidateText normalizes and validates an outbound message body.
func (s *ThreadService) ValidateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return "", ErrTooLong
	}
	return text, nil
}

// Append persists one message into a thread and bumps its last_activity.
func (s *ThreadService) Append(ctx context.Context, threadID string, externalID int64, senderType, text string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, s.DB, threadID, externalID, senderType, text)
}

// History returns a thread's messages in send order, capped at limit.
func (s *ThreadService) History(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	return repo.ListThreadMessages(ctx, s.DB, threadID, limit)
}

// ThreadByPrefix resolves a short id prefix (as printed by ThreadMarker and
// the /threads console) to a thread, or ErrThreadNotFound.
func (s *ThreadService) ThreadByPrefix(ctx context.Context, prefix string) (*domain.Thread, error) {
	t, err := repo.GetThreadByPrefix(ctx, s.DB, strings.TrimPrefix(prefix, "#"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	return t, err
}

// RecentThreads lists the most recently active threads for the responder
// console and the ops API.
func (s *ThreadService) RecentThreads(ctx context.Context, limit int) ([]domain.Thread, error) {
	return repo.ListRecentThreads(ctx, s.DB, limit)
}

// MarkRead flips read flags for one sender type in a thread. The count of
// newly-read rows is returned.
func (s *ThreadService) MarkRead(ctx context.Context, threadID, senderType string) (int64, error) {
	return repo.MarkMessagesRead(ctx, s.DB, threadID, senderType)
}

// UnreadCount reports how many responder messages the user has not read yet.
func (s *ThreadService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountUnread(ctx, s.DB, userID)
}
