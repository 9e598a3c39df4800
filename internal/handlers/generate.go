package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lessonforge/backend/internal/services"
	"github.com/lessonforge/backend/internal/types"
)

type GenerateHandler struct {
	orchestrator services.BatchOrchestrator
	store        services.SessionStore
}

func NewGenerateHandler(orchestrator services.BatchOrchestrator, store services.SessionStore) *GenerateHandler {
	return &GenerateHandler{orchestrator: orchestrator, store: store}
}

type generateRequest struct {
	SessionID   string              `json:"session_id"`
	APIKey      string              `json:"api_key"`
	Profile     types.CourseProfile `json:"course_profile"`
	LessonIndex int                 `json:"lesson_index"`
	Lesson      types.LessonInput   `json:"lesson"`
}

// POST /api/generate
//
// Generates a single lesson plan. An empty session_id gets a fresh session so
// fire-and-forget callers still get progress polling.
func (h *GenerateHandler) GenerateOne(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = h.store.Create()
	}

	res, err := h.orchestrator.GenerateOne(c.Request.Context(), req.SessionID, req.APIKey, req.Profile, req.LessonIndex, req.Lesson)
	if err != nil {
		if res != nil {
			// Partial state exists: surface it alongside the error status.
			c.JSON(statusForError(err), gin.H{"result": res, "error": err.Error()})
			return
		}
		RespondMapped(c, err)
		return
	}
	RespondOK(c, res)
}

// POST /api/batch-generate
func (h *GenerateHandler) BatchGenerate(c *gin.Context) {
	var req services.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = h.store.Create()
	}

	res, err := h.orchestrator.Run(c.Request.Context(), req)
	if err != nil {
		if res != nil {
			c.JSON(statusForError(err), gin.H{"result": res, "error": err.Error()})
			return
		}
		RespondMapped(c, err)
		return
	}
	RespondOK(c, res)
}
