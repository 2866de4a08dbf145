// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Responder
// model. Responders are seeded once at startup from the configured directory
// and treated as read-only afterwards.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// ReplaceResponders clears the responders table and inserts the given set.
// Seeding is replace-all so that renamed or removed roles do not linger
// between restarts. Existing threads keep pointing at stable responder ids
// when the role name and chat id are unchanged, because rows are matched back
// by role name before insertion.
func ReplaceResponders(ctx context.Context, db *gorm.DB, responders []domain.Responder) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []domain.Responder
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		byRole := make(map[string]string, len(existing))
		for _, r := range existing {
			byRole[r.RoleName] = r.ID
		}
		if err := tx.Where("1 = 1").Delete(&domain.Responder{}).Error; err != nil {
			return err
		}
		for i := range responders {
			r := responders[i]
			if id, ok := byRole[r.RoleName]; ok {
				r.ID = id // preserve thread FKs across reseeds
			} else if r.ID == "" {
				r.ID = uuid.NewString()
			}
			if r.CreatedAt.IsZero() {
				r.CreatedAt = time.Now().UTC()
			}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListResponders returns all configured responders ordered by role name.
func ListResponders(ctx context.Context, db *gorm.DB) ([]domain.Responder, error) {
	var out []domain.Responder
	err := db.WithContext(ctx).Order("role_name asc").Find(&out).Error
	return out, err
}

// GetResponder fetches a responder by primary key, or ErrNotFound.
func GetResponder(ctx context.Context, db *gorm.DB, id string) (*domain.Responder, error) {
	var r domain.Responder
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetResponderByChatID fetches the responder occupying the given gateway chat
// id, or ErrNotFound. Used to decide whether an inbound sender is a responder.
func GetResponderByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Responder, error) {
	var r domain.Responder
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}
