// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertUser inserts or refreshes a user row keyed by the gateway chat id.
// Display identity fields are overwritten on every contact so the stored
// name tracks what the gateway last reported.
func UpsertUser(ctx context.Context, db *gorm.DB, chatID int64, username, firstName, lastName string) (*domain.User, error) {
	u := &domain.User{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "updated_at"}),
		}).
		Create(u).Error
	if err != nil {
		return nil, err
	}
	// Re-read so callers observe the canonical row id after a conflict update.
	return GetUserByChatID(ctx, db, chatID)
}

// GetUserByChatID fetches a user by the gateway chat id, or ErrNotFound.
func GetUserByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by primary key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
