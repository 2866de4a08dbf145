// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Messages are append-only; only is_read is ever mutated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// CreateMessage appends a message row to a thread and bumps the thread's
// last_activity. senderType must be domain.SenderUser or domain.SenderResponder.
func CreateMessage(ctx context.Context, db *gorm.DB, threadID string, externalID int64, senderType, text string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		ExternalID: externalID,
		SenderType: senderType,
		Text:       text,
		SentAt:     time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Thread{}).
			Where("id = ?", threadID).
			Update("last_activity", m.SentAt).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListThreadMessages returns a thread's messages ordered deterministically
// (SentAt ASC, ID ASC). A limit <= 0 returns all of them.
func ListThreadMessages(ctx context.Context, db *gorm.DB, threadID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("sent_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// LatestMessageBySender returns the most recent message in the thread sent by
// the given sender type, or ErrNotFound. The dispatcher uses it to pick the
// reply-link target so forwarded chains stay visually threaded.
func LatestMessageBySender(ctx context.Context, db *gorm.DB, threadID, senderType string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("thread_id = ? AND sender_type = ?", threadID, senderType).
		Order("sent_at desc, id desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindThreadByExternalMessage returns the thread id of the message carrying
// the given gateway message id and sender type, or ErrNotFound. Resolver
// tiers 3 and 4.
func FindThreadByExternalMessage(ctx context.Context, db *gorm.DB, externalID int64, senderType string) (string, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Select("thread_id").
		Where("external_id = ? AND sender_type = ?", externalID, senderType).
		Order("sent_at desc").
		First(&m).Error
	if err != nil {
		return "", err
	}
	return m.ThreadID, nil
}

// MarkMessagesRead flips is_read on all messages in a thread sent by the
// given sender type. The count of updated rows is returned.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, threadID, senderType string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("thread_id = ? AND sender_type = ? AND is_read = ?", threadID, senderType, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// CountUnread returns how many responder-sent messages addressed to the user
// are still unread, across all of the user's threads.
func CountUnread(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Joins("JOIN threads ON threads.id = messages.thread_id").
		Where("threads.user_id = ? AND messages.sender_type = ? AND messages.is_read = ?",
			userID, domain.SenderResponder, false).
		Count(&total).Error
	return total, err
}

// CountThreadMessages uses a raw COUNT so a missing table surfaces as an error.
func CountThreadMessages(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE thread_id = ?", threadID).
		Scan(&total).Error
	return total, err
}
