package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lessonforge/backend/internal/services"
)

type SessionHandler struct {
	store    services.SessionStore
	delivery services.LogDeliveryService
}

func NewSessionHandler(store services.SessionStore, delivery services.LogDeliveryService) *SessionHandler {
	return &SessionHandler{store: store, delivery: delivery}
}

// POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	id := h.store.Create()
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	snap, err := h.store.Get(c.Param("id"))
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, snap)
}

// DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/sessions/:id/logs?after=N
//
// after is the count of records the client has already seen. Polling with the
// same after twice returns the same records.
func (h *SessionHandler) Poll(c *gin.Context) {
	after := 0
	if raw := c.Query("after"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_argument", err)
			return
		}
		after = parsed
	}

	res, err := h.delivery.PollFrom(c.Param("id"), after)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, res)
}
