package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

func TestCreateThread_IdempotentPerPair(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, r := seedPair(t, db)

	t1, err := CreateThread(ctx, db, u.ID, r.ID)
	if err != nil {
		t.Fatalf("first CreateThread: %v", err)
	}
	t2, err := CreateThread(ctx, db, u.ID, r.ID)
	if err != nil {
		t.Fatalf("second CreateThread: %v", err)
	}
	if t1.ID != t2.ID {
		t.Fatalf("pair got two threads: %s and %s", t1.ID, t2.ID)
	}

	var count int64
	if err := db.Model(&domain.Thread{}).Count(&count).Error; err != nil {
		t.Fatalf("count threads: %v", err)
	}
	if count != 1 {
		t.Fatalf("thread rows = %d, want 1", count)
	}
}

func TestCreateThread_ReactivatesAndBumpsActivity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, r := seedPair(t, db)

	t1, err := CreateThread(ctx, db, u.ID, r.ID)
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	// Deactivate and age the thread, then recreate.
	old := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&domain.Thread{}).Where("id = ?", t1.ID).
		Updates(map[string]any{"active": false, "last_activity": old}).Error; err != nil {
		t.Fatalf("age thread: %v", err)
	}

	t2, err := CreateThread(ctx, db, u.ID, r.ID)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if t2.ID != t1.ID {
		t.Fatalf("recreate produced new thread")
	}
	if !t2.Active {
		t.Errorf("thread not reactivated")
	}
	if !t2.LastActivity.After(old) {
		t.Errorf("last_activity not bumped: %v", t2.LastActivity)
	}
}

func TestCreateThread_DistinctPairsGetDistinctThreads(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, _ := seedPair(t, db)

	if err := ReplaceResponders(ctx, db, []domain.Responder{
		{RoleName: "Mayor", ChatID: 2001},
		{RoleName: "Clerk", ChatID: 2002},
	}); err != nil {
		t.Fatalf("ReplaceResponders: %v", err)
	}
	mayor, _ := GetResponderByChatID(ctx, db, 2001)
	clerk, _ := GetResponderByChatID(ctx, db, 2002)

	t1, err := CreateThread(ctx, db, u.ID, mayor.ID)
	if err != nil {
		t.Fatalf("CreateThread mayor: %v", err)
	}
	t2, err := CreateThread(ctx, db, u.ID, clerk.ID)
	if err != nil {
		t.Fatalf("CreateThread clerk: %v", err)
	}
	if t1.ID == t2.ID {
		t.Fatalf("different responders shared one thread")
	}
}

func TestGetThreadByPrefix(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, r := seedPair(t, db)

	th, err := CreateThread(ctx, db, u.ID, r.ID)
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	got, err := GetThreadByPrefix(ctx, db, th.ID[:8])
	if err != nil {
		t.Fatalf("GetThreadByPrefix: %v", err)
	}
	if got.ID != th.ID {
		t.Errorf("prefix resolved to %s, want %s", got.ID, th.ID)
	}

	if _, err := GetThreadByPrefix(ctx, db, "ffffffff"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("unknown prefix error = %v, want ErrRecordNotFound", err)
	}
	if _, err := GetThreadByPrefix(ctx, db, ""); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("empty prefix error = %v, want ErrRecordNotFound", err)
	}
}

func TestTouchThread(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, r := seedPair(t, db)

	th, _ := CreateThread(ctx, db, u.ID, r.ID)
	old := time.Now().UTC().Add(-time.Minute)
	db.Model(&domain.Thread{}).Where("id = ?", th.ID).Update("last_activity", old)

	if err := TouchThread(ctx, db, th.ID); err != nil {
		t.Fatalf("TouchThread: %v", err)
	}
	got, _ := GetThread(ctx, db, th.ID)
	if !got.LastActivity.After(old) {
		t.Errorf("last_activity not bumped")
	}

	if err := TouchThread(ctx, db, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("missing thread error = %v, want ErrRecordNotFound", err)
	}
}

func TestListRecentThreads_OrderAndLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, _ = seedPair(t, db)

	if err := ReplaceResponders(ctx, db, []domain.Responder{{RoleName: "Mayor", ChatID: 2001}}); err != nil {
		t.Fatalf("ReplaceResponders: %v", err)
	}
	r, _ := GetResponderByChatID(ctx, db, 2001)

	var ids []string
	for i := 0; i < 3; i++ {
		u, err := UpsertUser(ctx, db, int64(3000+i), "", "U", "")
		if err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		th, err := CreateThread(ctx, db, u.ID, r.ID)
		if err != nil {
			t.Fatalf("CreateThread: %v", err)
		}
		// Spread activity so ordering is deterministic.
		ts := time.Now().UTC().Add(time.Duration(i) * time.Minute)
		db.Model(&domain.Thread{}).Where("id = ?", th.ID).Update("last_activity", ts)
		ids = append(ids, th.ID)
	}

	out, err := ListRecentThreads(ctx, db, 2)
	if err != nil {
		t.Fatalf("ListRecentThreads: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d threads, want 2", len(out))
	}
	if out[0].ID != ids[2] || out[1].ID != ids[1] {
		t.Errorf("unexpected order: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestLatestUserAndResponderThread(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, r := seedPair(t, db)

	if _, err := LatestUserThread(ctx, db, u.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound before any thread, got %v", err)
	}

	th, _ := CreateThread(ctx, db, u.ID, r.ID)

	got, err := LatestUserThread(ctx, db, u.ID)
	if err != nil || got.ID != th.ID {
		t.Errorf("LatestUserThread = %v, %v", got, err)
	}
	got, err = LatestResponderThread(ctx, db, r.ID)
	if err != nil || got.ID != th.ID {
		t.Errorf("LatestResponderThread = %v, %v", got, err)
	}
}
