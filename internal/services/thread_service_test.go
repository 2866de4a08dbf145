package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/repo"
)

func TestThreadMarker(t *testing.T) {
	if got := ThreadMarker("3f2a9c1b-0000-0000-0000-000000000000"); got != "#3f2a9c1b" {
		t.Errorf("marker = %q", got)
	}
	if got := ThreadMarker("abc"); got != "#abc" {
		t.Errorf("short id marker = %q", got)
	}
}

func TestValidateText(t *testing.T) {
	s := &ThreadService{MaxMessageRunes: 10}

	if _, err := s.ValidateText("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank text err = %v", err)
	}
	if _, err := s.ValidateText(strings.Repeat("a", 11)); !errors.Is(err, ErrTooLong) {
		t.Errorf("oversized text err = %v", err)
	}

	got, err := s.ValidateText("  hello  ")
	if err != nil || got != "hello" {
		t.Errorf("ValidateText = (%q, %v)", got, err)
	}

	// Rune count, not byte count.
	if _, err := s.ValidateText("héllöwörld"); err != nil {
		t.Errorf("13-byte 10-rune text rejected: %v", err)
	}

	s.MaxMessageRunes = 0
	if _, err := s.ValidateText(strings.Repeat("a", 100000)); err != nil {
		t.Errorf("zero cap should disable the length check: %v", err)
	}
}

func TestActiveThread_NotFound(t *testing.T) {
	db := openServiceDB(t)
	s := &ThreadService{DB: db}

	_, err := s.ActiveThread(context.Background(), "u-missing", "r-missing")
	if !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("err = %v, want ErrThreadNotFound", err)
	}
}

func TestThreadByPrefix_StripsMarkerHash(t *testing.T) {
	db := openServiceDB(t)
	ctx := context.Background()
	s := &ThreadService{DB: db}

	u, err := repo.UpsertUser(ctx, db, 1001, "", "Ada", "")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := repo.ReplaceResponders(ctx, db, []domain.Responder{{RoleName: "Mayor", ChatID: 2001}}); err != nil {
		t.Fatalf("ReplaceResponders: %v", err)
	}
	r, _ := repo.GetResponderByChatID(ctx, db, 2001)
	th, err := s.EnsureThread(ctx, u.ID, r.ID)
	if err != nil {
		t.Fatalf("EnsureThread: %v", err)
	}

	got, err := s.ThreadByPrefix(ctx, ThreadMarker(th.ID))
	if err != nil || got.ID != th.ID {
		t.Errorf("ThreadByPrefix with # = (%v, %v)", got, err)
	}

	if _, err := s.ThreadByPrefix(ctx, "#ffffffff"); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("unknown prefix err = %v", err)
	}
}

// TestValidateTextRuneBoundary pins rune-cap behavior at exactly the cap.
func TestValidateTextRuneBoundary(t *testing.T) {
	s := &ThreadService{MaxMessageRunes: 4}
	if _, err := s.ValidateText("äöüß"); err != nil {
		t.Errorf("text at the cap rejected: %v", err)
	}
	if _, err := s.ValidateText("äöüßx"); !errors.Is(err, ErrTooLong) {
		t.Errorf("text over the cap accepted")
	}
}
