package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lessonforge/backend/internal/logger"
	pkgerrors "github.com/lessonforge/backend/internal/pkg/errors"
	"github.com/lessonforge/backend/internal/types"
)

// Reference material beyond this length is cut before prompt composition so a
// single oversized document cannot starve the rest of the prompt.
const maxDocumentPromptChars = 30000

// BatchRequest is a full generation run: a shared course profile, the lessons
// to generate in order, and the credential for the text generator.
type BatchRequest struct {
	SessionID  string              `json:"session_id"`
	Credential string              `json:"api_key"`
	Profile    types.CourseProfile `json:"course_profile"`
	Lessons    []types.LessonInput `json:"lessons"`
}

// BatchResult summarizes a finished run. Results holds one entry per lesson
// the orchestrator reached, in submission order.
type BatchResult struct {
	SessionID string               `json:"session_id"`
	Status    types.SessionStatus  `json:"status"`
	Results   []types.LessonResult `json:"results"`
}

// BatchOrchestrator drives generation runs against a session: it validates the
// request, claims the session, works through the lessons sequentially, and
// records progress and outcomes where pollers and stream subscribers can see
// them. A lesson-local failure is recorded and the run continues; a credential
// failure aborts the whole run.
type BatchOrchestrator interface {
	Run(ctx context.Context, req BatchRequest) (*BatchResult, error)
	GenerateOne(ctx context.Context, sessionID, credential string, profile types.CourseProfile, lessonIndex int, lesson types.LessonInput) (*BatchResult, error)
}

type batchOrchestrator struct {
	log       *logger.Logger
	store     SessionStore
	notifier  SessionNotifier
	docs      DocumentStore
	generator TextGenerator
	renderer  DocumentRenderer
	defaults  types.CourseProfile
	auditDir  string
}

func NewBatchOrchestrator(
	baseLog *logger.Logger,
	store SessionStore,
	notifier SessionNotifier,
	docs DocumentStore,
	generator TextGenerator,
	renderer DocumentRenderer,
	defaults types.CourseProfile,
	auditDir string,
) BatchOrchestrator {
	return &batchOrchestrator{
		log:       baseLog.With("service", "BatchOrchestrator"),
		store:     store,
		notifier:  notifier,
		docs:      docs,
		generator: generator,
		renderer:  renderer,
		defaults:  defaults,
		auditDir:  auditDir,
	}
}

func (o *batchOrchestrator) Run(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	// Claim the session before touching any of its state. A concurrent run
	// against the same session loses here and mutates nothing.
	if err := o.store.Begin(req.SessionID); err != nil {
		return nil, err
	}

	profile := o.defaults.Merge(req.Profile)

	o.logf(req.SessionID, "Starting batch generation: %d lesson(s)", len(req.Lessons))

	var runErr error
	for i, lesson := range req.Lessons {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}

		fatal, err := o.generateLesson(ctx, req.SessionID, req.Credential, profile, i+1, len(req.Lessons), lesson)
		if fatal {
			runErr = err
			break
		}
	}

	if runErr != nil {
		if err := o.setStatus(req.SessionID, types.SessionError, ""); err != nil {
			o.log.Error("could not mark session failed", "session_id", req.SessionID, "error", err)
		}
		res, _ := o.result(req.SessionID)
		return res, runErr
	}

	o.logf(req.SessionID, "Batch generation finished")
	if err := o.setStatus(req.SessionID, types.SessionCompleted, ""); err != nil {
		o.log.Error("could not mark session completed", "session_id", req.SessionID, "error", err)
	}
	return o.result(req.SessionID)
}

func (o *batchOrchestrator) GenerateOne(ctx context.Context, sessionID, credential string, profile types.CourseProfile, lessonIndex int, lesson types.LessonInput) (*BatchResult, error) {
	if lessonIndex < 1 {
		lessonIndex = 1
	}
	req := BatchRequest{
		SessionID:  sessionID,
		Credential: credential,
		Profile:    profile,
		Lessons:    []types.LessonInput{lesson},
	}
	if err := o.validate(req); err != nil {
		return nil, err
	}
	if err := o.store.Begin(sessionID); err != nil {
		return nil, err
	}

	merged := o.defaults.Merge(profile)
	o.logf(sessionID, "Starting generation for lesson %d: %s", lessonIndex, lesson.Topic)

	fatal, genErr := o.generateLesson(ctx, sessionID, credential, merged, lessonIndex, 1, lesson)
	if fatal || genErr != nil {
		if err := o.setStatus(sessionID, types.SessionError, ""); err != nil {
			o.log.Error("could not mark session failed", "session_id", sessionID, "error", err)
		}
		res, _ := o.result(sessionID)
		return res, genErr
	}

	if err := o.setStatus(sessionID, types.SessionCompleted, ""); err != nil {
		o.log.Error("could not mark session completed", "session_id", sessionID, "error", err)
	}
	return o.result(sessionID)
}

// validate rejects a request before any session state changes. A rejected
// request leaves the session exactly as it was.
func (o *batchOrchestrator) validate(req BatchRequest) error {
	if strings.TrimSpace(req.SessionID) == "" {
		return fmt.Errorf("missing session id: %w", pkgerrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Credential) == "" {
		return fmt.Errorf("missing api key: %w", pkgerrors.ErrInvalidCredential)
	}
	if len(req.Lessons) == 0 {
		return fmt.Errorf("no lessons submitted: %w", pkgerrors.ErrInvalidArgument)
	}
	for i, lesson := range req.Lessons {
		for _, field := range []struct {
			name, value string
		}{
			{"topic", lesson.Topic},
			{"location", lesson.Location},
			{"time", lesson.Time},
			{"duration", lesson.DurationLabel},
			{"type", lesson.TypeLabel},
		} {
			if strings.TrimSpace(field.value) == "" {
				return fmt.Errorf("lesson %d has no %s: %w", i+1, field.name, pkgerrors.ErrInvalidArgument)
			}
		}
	}
	return nil
}

// generateLesson runs one lesson end to end and appends exactly one
// LessonResult for it. The bool return marks a batch-fatal failure; the run
// stops there and no later lesson gets a result.
func (o *batchOrchestrator) generateLesson(ctx context.Context, sessionID, credential string, profile types.CourseProfile, index, total int, lesson types.LessonInput) (bool, error) {
	if err := o.setStatus(sessionID, types.SessionGenerating, lesson.Topic); err != nil {
		return true, err
	}

	o.logf(sessionID, "[%d/%d] Preparing parameters for %q", index, total, lesson.Topic)

	var docSections []string
	if o.docs != nil && lesson.ID != "" {
		o.logf(sessionID, "[%d/%d] Analyzing reference documents", index, total)
		refs, err := o.docs.List(ctx, lesson.ID)
		if err != nil {
			o.log.Warn("reference document lookup failed", "session_id", sessionID, "lesson_id", lesson.ID, "error", err)
		}
		for _, ref := range refs {
			docSections = append(docSections, formatReferenceDocument(ref))
		}
		if len(refs) > 0 {
			o.logf(sessionID, "[%d/%d] Folded %d reference document(s) into the prompt", index, total, len(refs))
		}
	}

	o.logf(sessionID, "[%d/%d] Composing prompt", index, total)
	prompt := BuildLessonPrompt(profile, lesson, docSections)
	o.auditPrompt(sessionID, index, lesson.Topic, prompt)

	o.logf(sessionID, "[%d/%d] Invoking text generator", index, total)
	plan, err := o.generator.GenerateLessonPlan(ctx, prompt, credential)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidCredential) {
			o.logf(sessionID, "[%d/%d] API key rejected, aborting batch: %v", index, total, err)
			o.appendResult(sessionID, types.LessonResult{
				Topic:   lesson.Topic,
				Status:  types.ResultFailure,
				Message: "invalid API key",
			})
			return true, fmt.Errorf("lesson %d (%s): %w", index, lesson.Topic, err)
		}
		o.logf(sessionID, "[%d/%d] Generation failed for %q: %v", index, total, lesson.Topic, err)
		o.appendResult(sessionID, types.LessonResult{
			Topic:   lesson.Topic,
			Status:  types.ResultFailure,
			Message: err.Error(),
		})
		return false, nil
	}

	o.logf(sessionID, "[%d/%d] Rendering document", index, total)
	rendered, err := o.renderer.Render(index, profile, lesson, plan)
	if err != nil {
		o.logf(sessionID, "[%d/%d] Rendering failed for %q: %v", index, total, lesson.Topic, err)
		o.appendResult(sessionID, types.LessonResult{
			Topic:   lesson.Topic,
			Status:  types.ResultFailure,
			Message: err.Error(),
		})
		return false, nil
	}

	o.logf(sessionID, "[%d/%d] Finished %q -> %s", index, total, lesson.Topic, rendered.FileName)
	o.appendResult(sessionID, types.LessonResult{
		Topic:    lesson.Topic,
		Status:   types.ResultSuccess,
		FileURL:  rendered.FileURL,
		FileName: rendered.FileName,
	})
	return false, nil
}

func (o *batchOrchestrator) result(sessionID string) (*BatchResult, error) {
	snap, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return &BatchResult{
		SessionID: snap.ID,
		Status:    snap.Status,
		Results:   snap.Results,
	}, nil
}

func (o *batchOrchestrator) logf(sessionID, format string, args ...any) {
	rec := types.LogRecord{
		Time:    time.Now().Format("15:04:05"),
		Message: fmt.Sprintf(format, args...),
	}
	idx, err := o.store.AppendLog(sessionID, rec)
	if err != nil {
		o.log.Warn("could not append session log", "session_id", sessionID, "error", err)
		return
	}
	if o.notifier != nil {
		o.notifier.LogAppended(sessionID, idx, rec)
	}
}

func (o *batchOrchestrator) appendResult(sessionID string, res types.LessonResult) {
	if err := o.store.AppendResult(sessionID, res); err != nil {
		o.log.Warn("could not append lesson result", "session_id", sessionID, "error", err)
	}
}

func (o *batchOrchestrator) setStatus(sessionID string, status types.SessionStatus, topic string) error {
	if err := o.store.SetStatus(sessionID, status, topic); err != nil {
		return err
	}
	if o.notifier != nil {
		o.notifier.StatusChanged(sessionID, status, topic)
	}
	return nil
}

// auditPrompt saves the exact prompt sent to the generator. Audit failures are
// logged and otherwise ignored; they never fail a lesson.
func (o *batchOrchestrator) auditPrompt(sessionID string, index int, topic, prompt string) {
	if o.auditDir == "" {
		return
	}
	if err := os.MkdirAll(o.auditDir, 0o755); err != nil {
		o.log.Warn("could not create prompt audit dir", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%02d_%s_prompt.txt", sessionID, index, SanitizeTopic(topic))
	if err := os.WriteFile(filepath.Join(o.auditDir, name), []byte(prompt), 0o644); err != nil {
		o.log.Warn("could not write prompt audit", "session_id", sessionID, "error", err)
	}
}

func formatReferenceDocument(ref *types.ReferenceDocument) string {
	content := ref.Content
	if len([]rune(content)) > maxDocumentPromptChars {
		content = string([]rune(content)[:maxDocumentPromptChars]) + "\n...(truncated)"
	}
	return fmt.Sprintf("=== Reference document: %s ===\n%s", ref.Filename, content)
}

// BuildLessonPrompt composes the generator prompt for one lesson: course
// profile, lesson details, any extra instruction from the caller, reference
// material, and the required JSON response shape.
func BuildLessonPrompt(profile types.CourseProfile, lesson types.LessonInput, docSections []string) string {
	var b strings.Builder

	b.WriteString("You are an experienced vocational-education instructor writing a detailed lesson plan.\n\n")

	b.WriteString("Course information:\n")
	b.WriteString(fmt.Sprintf("- Course name: %s\n", profile.CourseName))
	b.WriteString(fmt.Sprintf("- Program: %s\n", profile.Program))
	b.WriteString(fmt.Sprintf("- Class: %s\n", profile.ClassName))
	b.WriteString(fmt.Sprintf("- Teacher: %s\n", profile.Teacher))
	b.WriteString(fmt.Sprintf("- Term: %s\n\n", profile.Term))

	b.WriteString("Lesson details:\n")
	b.WriteString(fmt.Sprintf("- Topic: %s\n", lesson.Topic))
	if lesson.Location != "" {
		b.WriteString(fmt.Sprintf("- Location: %s\n", lesson.Location))
	}
	if lesson.Time != "" {
		b.WriteString(fmt.Sprintf("- Scheduled time: %s\n", lesson.Time))
	}
	if lesson.DurationLabel != "" {
		b.WriteString(fmt.Sprintf("- Duration: %s\n", lesson.DurationLabel))
	}
	if lesson.TypeLabel != "" {
		b.WriteString(fmt.Sprintf("- Lesson type: %s\n", lesson.TypeLabel))
	}
	b.WriteString("\n")

	if strings.TrimSpace(lesson.UserDescription) != "" {
		b.WriteString("Additional instructions from the teacher:\n")
		b.WriteString(lesson.UserDescription)
		b.WriteString("\n\n")
	}

	if len(docSections) > 0 {
		b.WriteString("Use the following reference material where relevant:\n\n")
		for _, section := range docSections {
			b.WriteString(section)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Respond with a single JSON object only, no surrounding prose, matching exactly this shape:\n")
	b.WriteString(lessonPlanJSONShape)
	b.WriteString("\nEvery field must be filled with concrete, topic-specific content. ")
	b.WriteString("teaching_process must contain at least four phases whose durations add up to the lesson duration.\n")
	return b.String()
}

const lessonPlanJSONShape = `{
  "content_analysis": {"teaching_content": "...", "learner_analysis": "..."},
  "objectives": {"knowledge": "...", "ability": "...", "quality": "..."},
  "key_points": ["..."],
  "difficulties": ["..."],
  "methods_resources": {"methods": "...", "resources": "..."},
  "values_elements": ["..."],
  "teaching_process": [
    {"phase": "...", "duration": "...", "content": "...", "teacher_activity": "...", "student_activity": "..."}
  ],
  "homework": {"basic": "...", "advanced": "...", "preview": "..."}
}`
