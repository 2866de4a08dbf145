// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Block
// model. Blocks are scoped per responder: the same user can be blocked by
// responder A and unblocked for responder B at the same time.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// UpsertBlock records that responderID has blocked userID, overwriting the
// stored reason if the pair is already blocked.
func UpsertBlock(ctx context.Context, db *gorm.DB, responderID, userID, reason string) error {
	b := &domain.Block{
		ID:          uuid.NewString(),
		ResponderID: responderID,
		UserID:      userID,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "responder_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "created_at"}),
		}).
		Create(b).Error
}

// DeleteBlock removes the block for the pair. Deleting a non-existent block
// is not an error; unblock is idempotent.
func DeleteBlock(ctx context.Context, db *gorm.DB, responderID, userID string) error {
	return db.WithContext(ctx).
		Where("responder_id = ? AND user_id = ?", responderID, userID).
		Delete(&domain.Block{}).Error
}

// IsBlocked reports whether responderID has blocked userID.
func IsBlocked(ctx context.Context, db *gorm.DB, responderID, userID string) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Block{}).
		Where("responder_id = ? AND user_id = ?", responderID, userID).
		Count(&total).Error
	return total > 0, err
}

// ListBlocks returns the users blocked by a responder, most recent first.
func ListBlocks(ctx context.Context, db *gorm.DB, responderID string) ([]domain.Block, error) {
	var out []domain.Block
	err := db.WithContext(ctx).
		Where("responder_id = ?", responderID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
