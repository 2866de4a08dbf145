// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Thread
// model, including the idempotent create that enforces the
// one-thread-per-(user, responder) invariant.
//
// Functions:
//
//   - GetActiveThread(ctx, db, userID, responderID) -> *domain.Thread, error
//     Most-recently-active thread for the pair, or ErrNotFound.
//
//   - CreateThread(ctx, db, userID, responderID) -> *domain.Thread, error
//     Idempotent: reuses the existing row for the pair (reactivating it and
//     bumping last_activity) or inserts a new one.
//
//   - TouchThread(ctx, db, id) -> error
//     Bumps last_activity to now.
//
//   - GetThread / ListUserThreads / ListResponderThreads / ListRecentThreads
//     Plain lookups used by the resolver, the responder console, and the
//     ops API.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// GetActiveThread returns the most-recently-active thread for the
// (user, responder) pair, or ErrNotFound when the pair has never talked.
func GetActiveThread(ctx context.Context, db *gorm.DB, userID, responderID string) (*domain.Thread, error) {
	var t domain.Thread
	err := db.WithContext(ctx).
		Where("user_id = ? AND responder_id = ?", userID, responderID).
		Order("last_activity desc").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateThread creates the thread for the pair, or reactivates the existing
// one. Calling it twice in a row yields the same thread id both times; the
// unique index on (user_id, responder_id) backs the invariant even under a
// racing insert.
func CreateThread(ctx context.Context, db *gorm.DB, userID, responderID string) (*domain.Thread, error) {
	now := time.Now().UTC()

	existing, err := GetActiveThread(ctx, db, userID, responderID)
	switch {
	case err == nil:
		updates := map[string]any{"active": true, "last_activity": now}
		if uerr := db.WithContext(ctx).Model(&domain.Thread{}).Where("id = ?", existing.ID).Updates(updates).Error; uerr != nil {
			return nil, uerr
		}
		existing.Active = true
		existing.LastActivity = now
		return existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to insert
	default:
		return nil, err
	}

	t := &domain.Thread{
		ID:           uuid.NewString(),
		UserID:       userID,
		ResponderID:  responderID,
		Active:       true,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		// Lost a race against a concurrent insert for the same pair: the
		// unique index rejected ours, so the row now exists. Re-read it.
		if t2, gerr := GetActiveThread(ctx, db, userID, responderID); gerr == nil {
			return t2, nil
		}
		return nil, err
	}
	return t, nil
}

// TouchThread bumps last_activity on a thread. ErrNotFound when missing.
func TouchThread(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("id = ?", id).
		Update("last_activity", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetThread fetches a thread by primary key, or ErrNotFound.
func GetThread(ctx context.Context, db *gorm.DB, id string) (*domain.Thread, error) {
	var t domain.Thread
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThreadByPrefix fetches the thread whose id starts with the given short
// prefix, or ErrNotFound. Used by the embedded thread marker and the
// responder /reply console, which address threads by an 8-char prefix.
func GetThreadByPrefix(ctx context.Context, db *gorm.DB, prefix string) (*domain.Thread, error) {
	if prefix == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var t domain.Thread
	err := db.WithContext(ctx).
		Where("id LIKE ?", prefix+"%").
		Order("last_activity desc").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListUserThreads returns all threads for a user, most recently active first.
func ListUserThreads(ctx context.Context, db *gorm.DB, userID string) ([]domain.Thread, error) {
	var out []domain.Thread
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity desc").
		Find(&out).Error
	return out, err
}

// LatestUserThread returns the user's most recently active thread, or
// ErrNotFound. Last-resort tier of the reply resolver.
func LatestUserThread(ctx context.Context, db *gorm.DB, userID string) (*domain.Thread, error) {
	var t domain.Thread
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity desc").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LatestResponderThread returns the most recently active thread assigned to
// the responder, or ErrNotFound.
func LatestResponderThread(ctx context.Context, db *gorm.DB, responderID string) (*domain.Thread, error) {
	var t domain.Thread
	err := db.WithContext(ctx).
		Where("responder_id = ?", responderID).
		Order("last_activity desc").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListRecentThreads returns the most recently active threads across all
// users, capped at limit. Used by the responder /threads console and the
// ops API.
func ListRecentThreads(ctx context.Context, db *gorm.DB, limit int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []domain.Thread
	err := db.WithContext(ctx).
		Order("last_activity desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
