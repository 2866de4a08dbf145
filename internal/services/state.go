// Package services – conversation state machine
//
// Per-user ephemeral selection/typing state. The machine has three stages:
//
//	idle ──/start──▶ Choosing ──select responder──▶ Choosing (attached)
//	                      │                              │ compose
//	                      ◀──────── back / menu ──── Composing
//
// State is process-local, keyed by the user's chat id, and lost on restart
// by design: no durable data depends on it. Selecting a responder re-checks
// the block registry; a rejected selection stays in Choosing.
package services

import (
	"sync"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// Stage is the user's position in the selection/typing flow.
type Stage int

const (
	// StageIdle: the user has no transient state (never started, or reset).
	StageIdle Stage = iota
	// StageChoosing: the responder menu is up; no text is accepted yet.
	StageChoosing
	// StageComposing: plain text is accepted and relayed to the selection.
	StageComposing
)

// String returns a stable label for logs.
func (s Stage) String() string {
	switch s {
	case StageChoosing:
		return "choosing"
	case StageComposing:
		return "composing"
	default:
		return "idle"
	}
}

// UserState is one user's transient conversation state.
type UserState struct {
	Stage     Stage
	Responder *domain.Responder // selected responder, nil while unselected
	ThreadID  string            // active thread for the selection, "" if none yet
}

// StateStore owns all per-user conversation state. Safe for concurrent use;
// in practice the dispatcher is the only writer.
type StateStore struct {
	mu    sync.Mutex
	users map[int64]*UserState
}

// NewStateStore returns an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{users: make(map[int64]*UserState)}
}

// Get returns a copy of the user's state; Stage is StageIdle when unknown.
func (s *StateStore) Get(chatID int64) UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[chatID]; ok {
		return *st
	}
	return UserState{Stage: StageIdle}
}

// BeginChoosing enters (or returns to) the responder menu, clearing any
// previous selection.
func (s *StateStore) BeginChoosing(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[chatID] = &UserState{Stage: StageChoosing}
}

// Select attaches a responder (and the pair's active thread id, if any) to
// the user's state. The stage stays Choosing: text is not accepted until the
// user explicitly asks to compose.
func (s *StateStore) Select(chatID int64, r *domain.Responder, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[chatID] = &UserState{Stage: StageChoosing, Responder: r, ThreadID: threadID}
}

// BeginComposing moves a user with a selection into the typing stage.
// Without a selection it is a no-op and the previous stage is returned.
func (s *StateStore) BeginComposing(chatID int64) Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[chatID]
	if !ok || st.Responder == nil {
		if !ok {
			return StageIdle
		}
		return st.Stage
	}
	st.Stage = StageComposing
	return st.Stage
}

// BackToChoosing leaves the typing stage but keeps the selection, so the
// user lands back on the responder view.
func (s *StateStore) BackToChoosing(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[chatID]; ok {
		st.Stage = StageChoosing
	}
}

// SetThread records the thread id attached to the current selection, once
// the first message creates it.
func (s *StateStore) SetThread(chatID int64, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[chatID]; ok {
		st.ThreadID = threadID
	}
}

// Reset clears the user's transient state entirely.
func (s *StateStore) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, chatID)
}
