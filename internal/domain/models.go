// Package domain defines the persistence models for users, responders,
// threads, messages, blocks, and message mappings. These types are mapped
// with GORM and form the core data layer of the relay backend.
package domain

import (
	"time"
)

// Sender types stored on Message rows.
const (
	SenderUser      = "user"
	SenderResponder = "responder"
)

// User represents an end user who has contacted the bot at least once.
// Rows are upserted on every inbound contact and never deleted.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ChatID: the gateway-assigned chat/user identifier; unique and indexed.
//   - Username / FirstName / LastName: last-seen display identity.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatID    int64     `json:"chat_id"    gorm:"not null;uniqueIndex:ux_users_chat"`
	Username  string    `json:"username"   gorm:"type:varchar(64)"`
	FirstName string    `json:"first_name" gorm:"type:varchar(128)"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Responder represents the human occupying a configured role. The set of
// responders is small, statically configured, and reseeded from the directory
// at every startup; the table is read-only at runtime.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - RoleName: human-readable role label, unique.
//   - ChatID: gateway identifier of the person occupying the role.
type Responder struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	RoleName  string    `json:"role_name" gorm:"type:varchar(128);not null;uniqueIndex:ux_responders_role"`
	ChatID    int64     `json:"chat_id"   gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Responder.
func (Responder) TableName() string { return "responders" }

// Thread is the durable conversation channel between one user and one
// responder. At most one thread exists per (user, responder) pair, enforced
// by a unique index; creation is idempotent and reactivates an existing row
// instead of inserting a duplicate. Threads are never deleted.
type Thread struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string    `json:"user_id"       gorm:"type:char(36);not null;uniqueIndex:ux_thread_pair,priority:1;index"`
	ResponderID  string    `json:"responder_id"  gorm:"type:char(36);not null;uniqueIndex:ux_thread_pair,priority:2;index"`
	Active       bool      `json:"active"        gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity" gorm:"index"`

	User      User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE"`
	Responder Responder `json:"-" gorm:"foreignKey:ResponderID;references:ID;constraint:OnUpdate:CASCADE"`
}

// TableName returns the database table name for Thread.
func (Thread) TableName() string { return "threads" }

// Message is a single utterance inside a thread, sent either by the user or
// by the responder. Messages are append-only; only IsRead is ever mutated.
//
// ExternalID is the gateway-assigned message id of the copy this row records
// (the inbound original for received messages, the forwarded copy for sent
// ones). It is indexed because reply resolution matches against it.
type Message struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ThreadID   string    `json:"thread_id"   gorm:"type:char(36);not null;index:idx_thread_msgs,priority:1"`
	ExternalID int64     `json:"external_id" gorm:"not null;index"`
	SenderType string    `json:"sender_type" gorm:"type:varchar(16);not null;check:sender_type IN ('user','responder')"`
	Text       string    `json:"text"        gorm:"type:text;not null"`
	SentAt     time.Time `json:"sent_at"     gorm:"index:idx_thread_msgs,priority:2"`
	IsRead     bool      `json:"is_read"     gorm:"not null;default:false"`

	Thread Thread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Block records that a responder has blocked a user. The relationship is
// scoped per responder: a block by responder A has no effect on responder B.
// One row per (responder, user) pair, enforced by a unique index; re-blocking
// upserts the reason.
type Block struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ResponderID string    `json:"responder_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_block_pair,priority:1"`
	UserID      string    `json:"user_id"      gorm:"type:char(36);not null;uniqueIndex:ux_block_pair,priority:2"`
	Reason      string    `json:"reason"       gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`

	Responder Responder `json:"-" gorm:"foreignKey:ResponderID;references:ID;constraint:OnUpdate:CASCADE"`
	User      User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE"`
}

// TableName returns the database table name for Block.
func (Block) TableName() string { return "blocks" }

// MessageMapping associates a gateway message id with the thread it belongs
// to. A row is written for every forwarded message so that a later reply
// referencing that id can be routed back to the right thread, across
// restarts. Mappings are mirrored into an in-memory cache at startup and
// never deleted.
type MessageMapping struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ExternalID int64     `json:"external_id" gorm:"not null;uniqueIndex:ux_mapping_external"`
	ThreadID   string    `json:"thread_id"   gorm:"type:char(36);not null;index"`
	CreatedAt  time.Time `json:"created_at"`

	Thread Thread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE"`
}

// TableName returns the database table name for MessageMapping.
func (MessageMapping) TableName() string { return "message_mappings" }
