package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/lessonforge/backend/internal/logger"
	"github.com/lessonforge/backend/internal/types"
)

type ReferenceDocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, docs []*types.ReferenceDocument) ([]*types.ReferenceDocument, error)
	GetByLessonID(ctx context.Context, tx *gorm.DB, lessonID string) ([]*types.ReferenceDocument, error)
	GetByLessonAndFilename(ctx context.Context, tx *gorm.DB, lessonID, filename string) (*types.ReferenceDocument, error)
	Delete(ctx context.Context, tx *gorm.DB, lessonID, filename string) (int64, error)
}

type referenceDocumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferenceDocumentRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceDocumentRepo {
	return &referenceDocumentRepo{db: db, log: baseLog.With("repo", "ReferenceDocumentRepo")}
}

func (r *referenceDocumentRepo) Create(ctx context.Context, tx *gorm.DB, docs []*types.ReferenceDocument) ([]*types.ReferenceDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(docs) == 0 {
		return []*types.ReferenceDocument{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *referenceDocumentRepo) GetByLessonID(ctx context.Context, tx *gorm.DB, lessonID string) ([]*types.ReferenceDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var docs []*types.ReferenceDocument
	if err := transaction.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("uploaded_at asc").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *referenceDocumentRepo) GetByLessonAndFilename(ctx context.Context, tx *gorm.DB, lessonID, filename string) (*types.ReferenceDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var docs []*types.ReferenceDocument
	if err := transaction.WithContext(ctx).
		Where("lesson_id = ? AND filename = ?", lessonID, filename).
		Limit(1).
		Find(&docs).Error; err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (r *referenceDocumentRepo) Delete(ctx context.Context, tx *gorm.DB, lessonID, filename string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("lesson_id = ? AND filename = ?", lessonID, filename).
		Delete(&types.ReferenceDocument{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
