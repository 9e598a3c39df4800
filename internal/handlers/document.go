package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lessonforge/backend/internal/services"
)

type DocumentHandler struct {
	docs services.DocumentStore
}

func NewDocumentHandler(docs services.DocumentStore) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// POST /api/lessons/:lessonId/documents  (multipart field "file")
func (h *DocumentHandler) Upload(c *gin.Context) {
	lessonID := c.Param("lessonId")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", fmt.Errorf("missing file field: %w", err))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		return
	}
	defer f.Close()

	doc, err := h.docs.Store(c.Request.Context(), lessonID, fileHeader.Filename, fileHeader.Size, f)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// GET /api/lessons/:lessonId/documents
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context(), c.Param("lessonId"))
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

// DELETE /api/lessons/:lessonId/documents/:filename
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.docs.Delete(c.Request.Context(), c.Param("lessonId"), c.Param("filename")); err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
