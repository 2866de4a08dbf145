// Responder and block HTTP handlers.
//
// This file exposes read-only ops endpoints for the responder roster and
// per-responder block registries:
//   - GET /responders
//   - GET /responders/{id}/blocks
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/councilbot/go-relay-backend/internal/domain"
)

// ResponderService defines the responder read operations consumed by HTTP
// handlers.
type ResponderService interface {
	// List returns the configured responder roster.
	List(ctx context.Context) ([]domain.Responder, error)
	// Blocks returns one responder's block registry entries.
	Blocks(ctx context.Context, responderID string) ([]domain.Block, error)
}

// ListRespondersResponse wraps the responder roster listing.
type ListRespondersResponse struct {
	Responders []domain.Responder `json:"responders"`
	Count      int                `json:"count"`
}

// ListBlocksResponse wraps one responder's block registry.
type ListBlocksResponse struct {
	ResponderID string         `json:"responder_id"`
	Blocks      []domain.Block `json:"blocks"`
	Count       int            `json:"count"`
}

// ListResponders godoc
// @ID          listResponders
// @Summary     List responders
// @Description Returns the configured responder roster.
// @Tags        Responders
// @Produce     json
//
// @Success     200  {object}  handlers.ListRespondersResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /responders [get]
func (h *Handlers) ListResponders(c *gin.Context) {
	responders, err := h.respSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListRespondersResponse{Responders: responders, Count: len(responders)})
}

// ListResponderBlocks godoc
// @ID          listResponderBlocks
// @Summary     List a responder's blocks
// @Description Returns the block registry entries of one responder.
// @Tags        Responders
// @Produce     json
//
// @Param       id  path  string  true  "Responder id"
//
// @Success     200  {object}  handlers.ListBlocksResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Responder not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /responders/{id}/blocks [get]
func (h *Handlers) ListResponderBlocks(c *gin.Context) {
	id := c.Param("id")
	blocks, err := h.respSvc.Blocks(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "responder not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListBlocksResponse{ResponderID: id, Blocks: blocks, Count: len(blocks)})
}
