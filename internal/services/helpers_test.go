package services

import (
	"encoding/json"
	"net/http"

	"github.com/lessonforge/backend/internal/logger"
)

func testLogger() (*logger.Logger, error) {
	return logger.New("development")
}

func jsonQuote(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
