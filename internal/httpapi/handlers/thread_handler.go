// Thread HTTP handlers.
//
// This file exposes read-only ops endpoints for conversation threads:
//   - GET /threads               (recent threads)
//   - GET /threads/{id}/messages (messages of one thread)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The ops API never mutates relay
// state; all writes flow through the dispatcher.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ThreadService defines the thread read operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ThreadService interface {
	// RecentThreads returns the most recently active threads.
	RecentThreads(ctx context.Context, limit int) ([]domain.Thread, error)
	// ThreadByPrefix resolves a thread by its full id or short id prefix.
	ThreadByPrefix(ctx context.Context, prefix string) (*domain.Thread, error)
	// History returns a thread's messages in send order.
	History(ctx context.Context, threadID string, limit int) ([]domain.Message, error)
}

//
// Handler wiring
//

// Handlers groups the ops HTTP endpoints for threads, responders, and blocks.
// It depends on abstract service interfaces to keep transport concerns
// separate from routing logic.
type Handlers struct {
	threadSvc ThreadService
	respSvc   ResponderService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(threadSvc ThreadService, respSvc ResponderService) *Handlers {
	return &Handlers{threadSvc: threadSvc, respSvc: respSvc}
}

//
// DTOs
//

// ListThreadsResponse wraps the recent-threads listing.
type ListThreadsResponse struct {
	Threads []domain.Thread `json:"threads"`
	Count   int             `json:"count"`
}

// ThreadMessagesResponse wraps one thread's message history.
type ThreadMessagesResponse struct {
	ThreadID string           `json:"thread_id"`
	Messages []domain.Message `json:"messages"`
	Count    int              `json:"count"`
}

//
// Helpers
//

// clampLimit parses and bounds the limit query param.
func clampLimit(c *gin.Context) int {
	const (
		defaultLimit = 20
		maxLimit     = 100
	)
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

//
// Handlers
//

// ListThreads godoc
// @ID          listThreads
// @Summary     List recent threads
// @Description Returns the most recently active conversation threads.
// @Tags        Threads
// @Produce     json
//
// @Param       limit  query  int  false  "Max threads to return"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListThreadsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads [get]
func (h *Handlers) ListThreads(c *gin.Context) {
	threads, err := h.threadSvc.RecentThreads(c.Request.Context(), clampLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListThreadsResponse{Threads: threads, Count: len(threads)})
}

// ListThreadMessages godoc
// @ID          listThreadMessages
// @Summary     List messages of a thread
// @Description Returns a thread's messages in send order. The id may be a full thread id or its short prefix.
// @Tags        Threads
// @Produce     json
//
// @Param       id     path   string  true   "Thread id or short prefix"
// @Param       limit  query  int     false  "Max messages to return"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ThreadMessagesResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Thread not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /threads/{id}/messages [get]
func (h *Handlers) ListThreadMessages(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := h.threadSvc.ThreadByPrefix(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrThreadNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	msgs, err := h.threadSvc.History(ctx, t.ID, clampLimit(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ThreadMessagesResponse{ThreadID: t.ID, Messages: msgs, Count: len(msgs)})
}
