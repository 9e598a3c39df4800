package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

type DownloadHandler struct {
	outputDir string
}

func NewDownloadHandler(outputDir string) *DownloadHandler {
	return &DownloadHandler{outputDir: outputDir}
}

// GET /download/:filename
//
// Serves a rendered lesson-plan document. The filename is flattened to its
// base so the route cannot reach outside the output directory.
func (h *DownloadHandler) Download(c *gin.Context) {
	name := filepath.Base(c.Param("filename"))
	if name == "." || name == string(filepath.Separator) {
		RespondError(c, http.StatusBadRequest, "invalid_argument", fmt.Errorf("invalid filename"))
		return
	}

	path := filepath.Join(h.outputDir, name)
	if _, err := os.Stat(path); err != nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("no such document: %s", name))
		return
	}
	c.FileAttachment(path, name)
}
