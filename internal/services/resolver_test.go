package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/repo"
)

func newResolver(t *testing.T) (*ReplyResolver, *resolverFixture) {
	t.Helper()
	db := openServiceDB(t)
	ctx := context.Background()

	u, err := repo.UpsertUser(ctx, db, 1001, "ada", "Ada", "")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := repo.ReplaceResponders(ctx, db, []domain.Responder{{RoleName: "Mayor", ChatID: 2001}}); err != nil {
		t.Fatalf("ReplaceResponders: %v", err)
	}
	r, err := repo.GetResponderByChatID(ctx, db, 2001)
	if err != nil {
		t.Fatalf("GetResponderByChatID: %v", err)
	}
	th, err := repo.CreateThread(ctx, db, u.ID, r.ID)
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	res := &ReplyResolver{DB: db, Cache: NewMappingCache()}
	return res, &resolverFixture{user: u, responder: r, thread: th}
}

type resolverFixture struct {
	user      *domain.User
	responder *domain.Responder
	thread    *domain.Thread
}

func TestResolve_CacheTier(t *testing.T) {
	res, fx := newResolver(t)
	res.Cache.Put(100, fx.thread.ID)

	id, tier, err := res.Resolve(context.Background(), ResolveRequest{ExternalID: 100})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != fx.thread.ID || tier != TierCache {
		t.Errorf("got (%s, %v), want (%s, cache)", id, tier, fx.thread.ID)
	}
}

func TestResolve_MappingTableBackfillsCache(t *testing.T) {
	res, fx := newResolver(t)
	ctx := context.Background()

	if err := repo.SaveMapping(ctx, res.DB, 200, fx.thread.ID); err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}

	id, tier, err := res.Resolve(ctx, ResolveRequest{ExternalID: 200})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tier != TierMappingTable {
		t.Errorf("tier = %v, want mapping_table", tier)
	}
	if cached, ok := res.Cache.Get(200); !ok || cached != id {
		t.Errorf("cache not backfilled after table hit")
	}

	// A second resolve for the same id now hits the cache.
	_, tier, _ = res.Resolve(ctx, ResolveRequest{ExternalID: 200})
	if tier != TierCache {
		t.Errorf("warm tier = %v, want cache", tier)
	}
}

func TestResolve_MessageTiers(t *testing.T) {
	res, fx := newResolver(t)
	ctx := context.Background()

	if _, err := repo.CreateMessage(ctx, res.DB, fx.thread.ID, 301, domain.SenderResponder, "copy"); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := repo.CreateMessage(ctx, res.DB, fx.thread.ID, 302, domain.SenderUser, "orig"); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	_, tier, err := res.Resolve(ctx, ResolveRequest{ExternalID: 301})
	if err != nil || tier != TierResponderMessage {
		t.Errorf("responder row: tier = %v, err = %v", tier, err)
	}
	_, tier, err = res.Resolve(ctx, ResolveRequest{ExternalID: 302})
	if err != nil || tier != TierUserMessage {
		t.Errorf("user row: tier = %v, err = %v", tier, err)
	}
}

func TestResolve_MarkerTier(t *testing.T) {
	res, fx := newResolver(t)
	quoted := fmt.Sprintf("New message #%s from Ada:\nhello", fx.thread.ID[:8])

	id, tier, err := res.Resolve(context.Background(), ResolveRequest{
		ExternalID:  999,
		ReplyToText: quoted,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != fx.thread.ID || tier != TierMarker {
		t.Errorf("got (%s, %v), want marker hit on %s", id, tier, fx.thread.ID)
	}
}

func TestResolve_LastActiveTier(t *testing.T) {
	res, fx := newResolver(t)
	ctx := context.Background()

	id, tier, err := res.Resolve(ctx, ResolveRequest{
		ExternalID:        888,
		SenderResponderID: fx.responder.ID,
	})
	if err != nil {
		t.Fatalf("responder fallback: %v", err)
	}
	if id != fx.thread.ID || tier != TierLastActive {
		t.Errorf("responder fallback = (%s, %v)", id, tier)
	}

	id, tier, err = res.Resolve(ctx, ResolveRequest{
		ExternalID:   887,
		SenderUserID: fx.user.ID,
	})
	if err != nil {
		t.Fatalf("user fallback: %v", err)
	}
	if id != fx.thread.ID || tier != TierLastActive {
		t.Errorf("user fallback = (%s, %v)", id, tier)
	}
}

func TestResolve_TotalMiss(t *testing.T) {
	res, _ := newResolver(t)

	_, _, err := res.Resolve(context.Background(), ResolveRequest{ExternalID: 777})
	if !errors.Is(err, ErrReplyNotFound) {
		t.Errorf("err = %v, want ErrReplyNotFound", err)
	}
}

func TestMappingCache_Warm(t *testing.T) {
	res, fx := newResolver(t)
	ctx := context.Background()

	repo.SaveMapping(ctx, res.DB, 10, fx.thread.ID)
	repo.SaveMapping(ctx, res.DB, 11, fx.thread.ID)

	fresh := NewMappingCache()
	n, err := fresh.Warm(ctx, res.DB)
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if n != 2 || fresh.Len() != 2 {
		t.Errorf("warmed %d entries, cache holds %d, want 2", n, fresh.Len())
	}
	if id, ok := fresh.Get(10); !ok || id != fx.thread.ID {
		t.Errorf("warmed entry missing")
	}
}
