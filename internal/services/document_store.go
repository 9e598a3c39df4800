package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lessonforge/backend/internal/logger"
	pkgerrors "github.com/lessonforge/backend/internal/pkg/errors"
	"github.com/lessonforge/backend/internal/repos"
	"github.com/lessonforge/backend/internal/types"
)

const (
	// Uploaded reference material is capped so a single document cannot blow
	// out prompts or the catalog.
	maxUploadBytes   = 10 << 20
	summaryMaxLength = 500
)

var allowedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// DocumentStore catalogs uploaded reference documents per lesson and hands
// their extracted text to the orchestrator for prompt composition.
type DocumentStore interface {
	Store(ctx context.Context, lessonID, filename string, size int64, r io.Reader) (*types.ReferenceDocument, error)
	List(ctx context.Context, lessonID string) ([]*types.ReferenceDocument, error)
	Delete(ctx context.Context, lessonID, filename string) error
}

type documentStore struct {
	db        *gorm.DB
	log       *logger.Logger
	repo      repos.ReferenceDocumentRepo
	uploadDir string
}

func NewDocumentStore(db *gorm.DB, baseLog *logger.Logger, repo repos.ReferenceDocumentRepo, uploadDir string) (DocumentStore, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &documentStore{
		db:        db,
		log:       baseLog.With("service", "DocumentStore"),
		repo:      repo,
		uploadDir: uploadDir,
	}, nil
}

func (s *documentStore) Store(ctx context.Context, lessonID, filename string, size int64, r io.Reader) (*types.ReferenceDocument, error) {
	lessonID = strings.TrimSpace(lessonID)
	if lessonID == "" {
		return nil, fmt.Errorf("missing lesson id: %w", pkgerrors.ErrInvalidArgument)
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, fmt.Errorf("missing filename: %w", pkgerrors.ErrInvalidArgument)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("unsupported document format %q: %w", ext, pkgerrors.ErrInvalidArgument)
	}
	if size > maxUploadBytes {
		return nil, fmt.Errorf("document exceeds %d bytes: %w", int64(maxUploadBytes), pkgerrors.ErrInvalidArgument)
	}

	storedName := fmt.Sprintf("%s_%d_%s", lessonID, time.Now().Unix(), filename)
	storagePath := filepath.Join(s.uploadDir, storedName)

	f, err := os.Create(storagePath)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(r, maxUploadBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(storagePath)
		return nil, fmt.Errorf("save upload: %w", err)
	}
	if written > maxUploadBytes {
		_ = os.Remove(storagePath)
		return nil, fmt.Errorf("document exceeds %d bytes: %w", int64(maxUploadBytes), pkgerrors.ErrInvalidArgument)
	}

	content, err := extractText(storagePath, ext)
	if err != nil {
		_ = os.Remove(storagePath)
		return nil, fmt.Errorf("extract document content: %w", err)
	}

	doc := &types.ReferenceDocument{
		ID:          uuid.New(),
		LessonID:    lessonID,
		Filename:    filename,
		StoragePath: storagePath,
		FileSize:    written,
		Content:     content,
		Summary:     summarize(content),
		Metadata:    datatypes.JSON([]byte(fmt.Sprintf(`{"extension":%q}`, ext))),
		UploadedAt:  time.Now(),
	}
	if _, err := s.repo.Create(ctx, nil, []*types.ReferenceDocument{doc}); err != nil {
		_ = os.Remove(storagePath)
		return nil, fmt.Errorf("catalog upload: %w", err)
	}

	s.log.Info("reference document stored",
		"lesson_id", lessonID,
		"filename", filename,
		"size", written,
		"content_chars", len(content),
	)
	return doc, nil
}

func (s *documentStore) List(ctx context.Context, lessonID string) ([]*types.ReferenceDocument, error) {
	return s.repo.GetByLessonID(ctx, nil, lessonID)
}

func (s *documentStore) Delete(ctx context.Context, lessonID, filename string) error {
	doc, err := s.repo.GetByLessonAndFilename(ctx, nil, lessonID, filepath.Base(filename))
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s for lesson %s: %w", filename, lessonID, pkgerrors.ErrNotFound)
	}
	if doc.StoragePath != "" {
		if rmErr := os.Remove(doc.StoragePath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warn("could not remove stored file", "path", doc.StoragePath, "error", rmErr)
		}
	}
	if _, err := s.repo.Delete(ctx, nil, lessonID, doc.Filename); err != nil {
		return err
	}
	return nil
}

// Plain-text formats only. Binary office formats need an extraction toolchain
// this service deliberately does not carry.
func extractText(path, ext string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryMaxLength {
		return content
	}
	return string(runes[:summaryMaxLength]) + "..."
}
