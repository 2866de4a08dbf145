package repo

import (
	"context"
	"testing"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

func TestBlockLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, r := seedPair(t, db)

	blocked, err := IsBlocked(ctx, db, r.ID, u.ID)
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if blocked {
		t.Fatalf("fresh pair reported blocked")
	}

	if err := UpsertBlock(ctx, db, r.ID, u.ID, "spam"); err != nil {
		t.Fatalf("UpsertBlock: %v", err)
	}
	blocked, _ = IsBlocked(ctx, db, r.ID, u.ID)
	if !blocked {
		t.Fatalf("pair not blocked after UpsertBlock")
	}

	if err := DeleteBlock(ctx, db, r.ID, u.ID); err != nil {
		t.Fatalf("DeleteBlock: %v", err)
	}
	blocked, _ = IsBlocked(ctx, db, r.ID, u.ID)
	if blocked {
		t.Fatalf("pair still blocked after DeleteBlock")
	}

	// Unblocking again is a no-op, not an error.
	if err := DeleteBlock(ctx, db, r.ID, u.ID); err != nil {
		t.Errorf("repeat DeleteBlock: %v", err)
	}
}

func TestUpsertBlock_OverwritesReason(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, r := seedPair(t, db)

	UpsertBlock(ctx, db, r.ID, u.ID, "first")
	if err := UpsertBlock(ctx, db, r.ID, u.ID, "second"); err != nil {
		t.Fatalf("repeat UpsertBlock: %v", err)
	}

	blocks, err := ListBlocks(ctx, db, r.ID)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("block rows = %d, want 1", len(blocks))
	}
	if blocks[0].Reason != "second" {
		t.Errorf("reason = %q, want %q", blocks[0].Reason, "second")
	}
}

func TestBlocksAreScopedPerResponder(t *testing.T) {
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

	if err := UpsertBlock(ctx, db, mayor.ID, u.ID, ""); err != nil {
		t.Fatalf("UpsertBlock: %v", err)
	}

	blocked, _ := IsBlocked(ctx, db, mayor.ID, u.ID)
	if !blocked {
		t.Errorf("mayor block missing")
	}
	blocked, _ = IsBlocked(ctx, db, clerk.ID, u.ID)
	if blocked {
		t.Errorf("block leaked to another responder")
	}
}
