// Package services – BlockService
//
// Per-responder block registry over the blocks table. Enforcement points
// live in the dispatcher (before any forward in either direction); this
// service only answers membership questions and mutates the relationship.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/repo"
)

// BlockService manages the per-responder block relationship.
type BlockService struct {
	DB *gorm.DB
}

// Block records that the responder has blocked the user, with an optional
// reason. Re-blocking updates the reason.
func (s *BlockService) Block(ctx context.Context, responderID, userID, reason string) error {
	return repo.UpsertBlock(ctx, s.DB, responderID, userID, reason)
}

// Unblock removes the block; unblocking an unblocked user is a no-op.
func (s *BlockService) Unblock(ctx context.Context, responderID, userID string) error {
	return repo.DeleteBlock(ctx, s.DB, responderID, userID)
}

// IsBlocked reports whether the responder has blocked the user. The scope is
// strictly the given responder; other responders' blocks are invisible here.
func (s *BlockService) IsBlocked(ctx context.Context, responderID, userID string) (bool, error) {
	return repo.IsBlocked(ctx, s.DB, responderID, userID)
}

// List returns the users blocked by the responder, most recent first.
func (s *BlockService) List(ctx context.Context, responderID string) ([]domain.Block, error) {
	return repo.ListBlocks(ctx, s.DB, responderID)
}
