package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lessonforge/backend/internal/logger"
	pkgerrors "github.com/lessonforge/backend/internal/pkg/errors"
	"github.com/lessonforge/backend/internal/services"
	"github.com/lessonforge/backend/internal/types"
)

type stubOrchestrator struct {
	err error
	res *services.BatchResult
}

func (o *stubOrchestrator) Run(ctx context.Context, req services.BatchRequest) (*services.BatchResult, error) {
	return o.res, o.err
}

func (o *stubOrchestrator) GenerateOne(ctx context.Context, sessionID, credential string, profile types.CourseProfile, lessonIndex int, lesson types.LessonInput) (*services.BatchResult, error) {
	return o.res, o.err
}

func newGenerateRouter(t *testing.T, orch services.BatchOrchestrator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	store := services.NewSessionStore(log)
	h := NewGenerateHandler(orch, store)

	router := gin.New()
	router.POST("/api/batch-generate", h.BatchGenerate)
	router.POST("/api/generate", h.GenerateOne)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateHandler_CredentialErrorMapsTo401(t *testing.T) {
	orch := &stubOrchestrator{err: fmt.Errorf("missing api key: %w", pkgerrors.ErrInvalidCredential)}
	router := newGenerateRouter(t, orch)

	w := postJSON(router, "/api/batch-generate", `{"session_id": "s1", "lessons": [{"topic": "A"}]}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_api_key" {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestGenerateHandler_ConflictMapsTo409(t *testing.T) {
	orch := &stubOrchestrator{err: fmt.Errorf("session busy: %w", pkgerrors.ErrConflict)}
	router := newGenerateRouter(t, orch)

	w := postJSON(router, "/api/batch-generate", `{"session_id": "s1", "api_key": "k", "lessons": [{"topic": "A"}]}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestGenerateHandler_PartialResultReturnedWithError(t *testing.T) {
	orch := &stubOrchestrator{
		err: fmt.Errorf("lesson 2: %w", pkgerrors.ErrInvalidCredential),
		res: &services.BatchResult{
			SessionID: "s1",
			Status:    types.SessionError,
			Results: []types.LessonResult{
				{Topic: "A", Status: types.ResultSuccess},
				{Topic: "B", Status: types.ResultFailure},
			},
		},
	}
	router := newGenerateRouter(t, orch)

	w := postJSON(router, "/api/batch-generate", `{"session_id": "s1", "api_key": "k", "lessons": [{"topic": "A"}, {"topic": "B"}]}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var body struct {
		Result services.BatchResult `json:"result"`
		Error  string               `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Result.Results) != 2 || body.Error == "" {
		t.Fatalf("partial result not surfaced: %+v", body)
	}
}

func TestGenerateHandler_MalformedJSON(t *testing.T) {
	router := newGenerateRouter(t, &stubOrchestrator{})
	w := postJSON(router, "/api/batch-generate", `{"lessons": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGenerateHandler_SuccessPassthrough(t *testing.T) {
	orch := &stubOrchestrator{res: &services.BatchResult{
		SessionID: "s1",
		Status:    types.SessionCompleted,
		Results:   []types.LessonResult{{Topic: "A", Status: types.ResultSuccess, FileURL: "/download/01_A.md"}},
	}}
	router := newGenerateRouter(t, orch)

	w := postJSON(router, "/api/generate", `{"session_id": "s1", "api_key": "k", "lesson": {"topic": "A"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res services.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Status != types.SessionCompleted {
		t.Fatalf("status = %s", res.Status)
	}
}
