package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lessonforge/backend/internal/services"
	"github.com/lessonforge/backend/internal/sse"
)

type LogStreamHandler struct {
	hub   *sse.Hub
	store services.SessionStore
}

func NewLogStreamHandler(hub *sse.Hub, store services.SessionStore) *LogStreamHandler {
	return &LogStreamHandler{hub: hub, store: store}
}

// GET /api/sessions/:id/stream
//
// Streams log and status events for the session until it reaches a terminal
// status, expires, or the client disconnects. A session already finished gets
// the connected event and an immediate close; catch-up happens over the poll
// endpoint, not the stream.
func (h *LogStreamHandler) Stream(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.store.Get(sessionID); err != nil {
		RespondMapped(c, err)
		return
	}

	client := h.hub.NewClient()
	h.hub.AddChannel(client, sessionID)
	defer h.hub.CloseClient(client)

	// The status is re-read after subscribing: a terminal transition between
	// the existence check and AddChannel has already fired its channel close
	// with no subscribers registered, so this client would otherwise idle on
	// heartbeats until session expiry.
	if snap, err := h.store.Get(sessionID); err != nil || snap.Status.Terminal() {
		h.hub.CloseChannel(sessionID)
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
