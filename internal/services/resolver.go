// Package services – ReplyResolver
//
// Turns "this inbound message replies to external id E" into the owning
// thread id. Resolution runs through an ordered chain of tiers, strongest
// signal first; the first hit wins and any hit below the cache backfills it.
// A total miss is ErrReplyNotFound and the router must mutate nothing.
package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/repo"
)

// Tier identifies which resolver stage produced a thread id. The ordering of
// the constants is the order the stages run in.
type Tier int

const (
	// TierCache: in-memory mapping cache, warmed at startup and updated on
	// every forward.
	TierCache Tier = iota + 1
	// TierMappingTable: the durable message_mappings table; covers cold
	// cache and cross-restart gaps.
	TierMappingTable
	// TierResponderMessage: messages table, matching responder-sent rows.
	TierResponderMessage
	// TierUserMessage: messages table, matching user-sent rows.
	TierUserMessage
	// TierMarker: thread marker parsed out of the quoted original text.
	TierMarker
	// TierLastActive: the replying party's most recently active thread.
	TierLastActive
)

// String returns a stable label for logs and metrics.
func (t Tier) String() string {
	switch t {
	case TierCache:
		return "cache"
	case TierMappingTable:
		return "mapping_table"
	case TierResponderMessage:
		return "responder_message"
	case TierUserMessage:
		return "user_message"
	case TierMarker:
		return "marker"
	case TierLastActive:
		return "last_active"
	default:
		return "unknown"
	}
}

// markerRE matches the thread marker embedded in every forwarded copy:
// a '#' followed by the first 8 hex chars of the thread uuid.
var markerRE = regexp.MustCompile(`#([0-9a-f]{8})\b`)

// MappingCache is the in-memory mirror of the message_mappings table.
// Reads vastly outnumber writes; a plain RWMutex map is enough at this scale.
type MappingCache struct {
	mu sync.RWMutex
	m  map[int64]string
}

// NewMappingCache returns an empty cache.
func NewMappingCache() *MappingCache {
	return &MappingCache{m: make(map[int64]string)}
}

// Warm loads every persisted mapping into the cache. Called once at startup.
func (c *MappingCache) Warm(ctx context.Context, db *gorm.DB) (int, error) {
	rows, err := repo.LoadAllMappings(ctx, db)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range rows {
		c.m[m.ExternalID] = m.ThreadID
	}
	return len(rows), nil
}

// Put records an external id → thread id association.
func (c *MappingCache) Put(externalID int64, threadID string) {
	c.mu.Lock()
	c.m[externalID] = threadID
	c.mu.Unlock()
}

// Get returns the cached thread id for the external id, if present.
func (c *MappingCache) Get(externalID int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.m[externalID]
	return id, ok
}

// Len reports the number of cached associations.
func (c *MappingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// ResolveRequest carries everything the resolver may consult: the replied-to
// external id, the quoted original text (for the marker tier), and the
// replying party's identity (for the last-resort tier). Exactly one of
// SenderUserID / SenderResponderID should be set.
type ResolveRequest struct {
	ExternalID        int64
	ReplyToText       string
	SenderUserID      string
	SenderResponderID string
}

// ReplyResolver resolves reply references against the cache and the store.
type ReplyResolver struct {
	DB    *gorm.DB
	Cache *MappingCache
}

// Resolve walks the tier chain and returns the owning thread id together
// with the tier that produced it. Tiers 2–6 backfill the cache before
// returning. A total miss returns ErrReplyNotFound.
func (r *ReplyResolver) Resolve(ctx context.Context, req ResolveRequest) (string, Tier, error) {
	tr := otel.Tracer("services/ReplyResolver")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("reply.external_id", strconv.FormatInt(req.ExternalID, 10)),
		),
	)
	defer span.End()

	threadID, tier, err := r.resolve(ctx, req)
	if err != nil {
		return "", 0, err
	}
	if tier > TierCache {
		r.Cache.Put(req.ExternalID, threadID)
	}
	span.SetAttributes(attribute.String("reply.tier", tier.String()))
	resolverHits.WithLabelValues(tier.String()).Inc()
	return threadID, tier, nil
}

func (r *ReplyResolver) resolve(ctx context.Context, req ResolveRequest) (string, Tier, error) {
	// 1) warm cache
	if id, ok := r.Cache.Get(req.ExternalID); ok {
		return id, TierCache, nil
	}

	// 2) durable mapping table
	id, err := repo.LookupMapping(ctx, r.DB, req.ExternalID)
	switch {
	case err == nil:
		return id, TierMappingTable, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", 0, err
	}

	// 3) responder-sent message rows
	id, err = repo.FindThreadByExternalMessage(ctx, r.DB, req.ExternalID, domain.SenderResponder)
	switch {
	case err == nil:
		return id, TierResponderMessage, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", 0, err
	}

	// 4) user-sent message rows
	id, err = repo.FindThreadByExternalMessage(ctx, r.DB, req.ExternalID, domain.SenderUser)
	switch {
	case err == nil:
		return id, TierUserMessage, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", 0, err
	}

	// 5) thread marker inside the quoted original
	if m := markerRE.FindStringSubmatch(req.ReplyToText); m != nil {
		t, err := repo.GetThreadByPrefix(ctx, r.DB, m[1])
		switch {
		case err == nil:
			return t.ID, TierMarker, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", 0, err
		}
	}

	// 6) last resort: the replying party's most recently active thread
	var t *domain.Thread
	switch {
	case req.SenderResponderID != "":
		t, err = repo.LatestResponderThread(ctx, r.DB, req.SenderResponderID)
	case req.SenderUserID != "":
		t, err = repo.LatestUserThread(ctx, r.DB, req.SenderUserID)
	default:
		return "", 0, ErrReplyNotFound
	}
	switch {
	case err == nil:
		return t.ID, TierLastActive, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", 0, ErrReplyNotFound
	default:
		return "", 0, err
	}
}
