package repository

import (
	"errors"
	"time"

	docdomain "github.com/allan-cais/besunny-ai-sub007/internal/document/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentRepository defines storage access for workspace documents.
type DocumentRepository interface {
	// UpsertBySourceRef creates the document when no row exists for its
	// (user, source, source_ref) key. Returns (created, error); a replayed
	// change set hits the existing row and reports created=false.
	UpsertBySourceRef(doc *docdomain.Document) (bool, error)
	FindByID(id string) (*docdomain.Document, error)
	FindBySourceRef(userID string, source docdomain.Source, sourceRef string) (*docdomain.Document, error)
	ListByUser(userID string, limit, offset int) ([]*docdomain.Document, int64, error)
	UpdateStatus(id string, status docdomain.ClassificationStatus) error
	MarkSynced(id string, remoteModifiedAt time.Time) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) UpsertBySourceRef(doc *docdomain.Document) (bool, error) {
	existing, err := r.FindBySourceRef(doc.UserID, doc.Source, doc.SourceRef)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*doc = *existing
		return false, nil
	}

	now := time.Now()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = docdomain.ClassificationPending
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if err := r.db.Create(doc).Error; err != nil {
		// A concurrent invocation may have created the row between the
		// lookup and the insert; the unique index resolves the race.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if dup, findErr := r.FindBySourceRef(doc.UserID, doc.Source, doc.SourceRef); findErr == nil && dup != nil {
				*doc = *dup
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

func (r *documentRepository) FindByID(id string) (*docdomain.Document, error) {
	var doc docdomain.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindBySourceRef(userID string, source docdomain.Source, sourceRef string) (*docdomain.Document, error) {
	var doc docdomain.Document
	err := r.db.Where("user_id = ? AND source = ? AND source_ref = ?", userID, source, sourceRef).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListByUser(userID string, limit, offset int) ([]*docdomain.Document, int64, error) {
	var docs []*docdomain.Document
	var total int64

	query := r.db.Model(&docdomain.Document{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&docs).Error
	return docs, total, err
}

func (r *documentRepository) UpdateStatus(id string, status docdomain.ClassificationStatus) error {
	return r.db.Model(&docdomain.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"classification_status": status,
		"updated_at":            time.Now(),
	}).Error
}

func (r *documentRepository) MarkSynced(id string, remoteModifiedAt time.Time) error {
	return r.db.Model(&docdomain.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_synced_at": remoteModifiedAt,
		"updated_at":     time.Now(),
	}).Error
}
