// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// MessageMapping model: the durable half of reply resolution.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// SaveMapping persists an external message id → thread id association. The
// external id is unique; re-saving repoints it (the gateway never reuses ids
// within a chat, so conflicts only occur on resend bookkeeping).
func SaveMapping(ctx context.Context, db *gorm.DB, externalID int64, threadID string) error {
	m := &domain.MessageMapping{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		ThreadID:   threadID,
		CreatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"thread_id", "created_at"}),
		}).
		Create(m).Error
}

// LookupMapping returns the thread id mapped to the external message id, or
// ErrNotFound. Resolver tier 2.
func LookupMapping(ctx context.Context, db *gorm.DB, externalID int64) (string, error) {
	var m domain.MessageMapping
	err := db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&m).Error
	if err != nil {
		return "", err
	}
	return m.ThreadID, nil
}

// LoadAllMappings streams every mapping row, newest first. Used once at
// startup to warm the in-memory cache.
func LoadAllMappings(ctx context.Context, db *gorm.DB) ([]domain.MessageMapping, error) {
	var out []domain.MessageMapping
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
