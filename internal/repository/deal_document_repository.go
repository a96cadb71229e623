package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
)

// DealDocumentRepository handles both uploaded files and form drafts, which
// share the deal_documents table.
type DealDocumentRepository struct {
	db *gorm.DB
}

func NewDealDocumentRepository(db *gorm.DB) *DealDocumentRepository {
	return &DealDocumentRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *DealDocumentRepository) WithTx(tx *gorm.DB) *DealDocumentRepository {
	return &DealDocumentRepository{db: tx}
}

func (r *DealDocumentRepository) Create(ctx context.Context, doc *domain.DealDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DealDocumentRepository) Update(ctx context.Context, doc *domain.DealDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

func (r *DealDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.DealDocument{}, "id = ?", id).Error
}

// ofDeal restricts a query to documents attached to any version of dealID
func ofDeal(db *gorm.DB, dealID uuid.UUID) *gorm.DB {
	return db.Where("deal_version_id IN (SELECT id FROM deals WHERE deal_id = ?)", dealID)
}

// FindFile returns an uploaded file of the deal
func (r *DealDocumentRepository) FindFile(ctx context.Context, dealID, documentID uuid.UUID) (*domain.DealDocument, error) {
	var doc domain.DealDocument
	db := r.db.WithContext(ctx)
	err := ofDeal(db, dealID).
		Where("id = ? AND storage_key IS NOT NULL", documentID).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListFiles returns the uploaded files of all versions of a deal, newest first
func (r *DealDocumentRepository) ListFiles(ctx context.Context, dealID uuid.UUID) ([]domain.DealDocument, error) {
	var docs []domain.DealDocument
	db := r.db.WithContext(ctx)
	err := ofDeal(db, dealID).
		Where("storage_key IS NOT NULL").
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

// StorageKeys returns the object keys of files attached to the given version rows
func (r *DealDocumentRepository) StorageKeys(ctx context.Context, versionIDs []uuid.UUID) ([]string, error) {
	var keys []string
	if len(versionIDs) == 0 {
		return keys, nil
	}
	err := r.db.WithContext(ctx).
		Model(&domain.DealDocument{}).
		Where("deal_version_id IN ? AND storage_key IS NOT NULL", versionIDs).
		Pluck("storage_key", &keys).Error
	return keys, err
}

// FindNewestForm returns the most recently updated form of a type across all
// versions of the deal, optionally restricted to one form version.
func (r *DealDocumentRepository) FindNewestForm(ctx context.Context, dealID uuid.UUID, docType domain.DocumentType, formVersion *string) (*domain.DealDocument, error) {
	var doc domain.DealDocument
	db := r.db.WithContext(ctx)
	query := ofDeal(db, dealID).
		Where("storage_key IS NULL AND document_number = ? AND document_type = ?", domain.FormDocumentNumber, docType)
	if formVersion != nil {
		query = query.Where("document_version = ?", *formVersion)
	}
	err := query.Order("updated_at DESC, created_at DESC").First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindForm returns the form keyed by (version row, type, form version)
func (r *DealDocumentRepository) FindForm(ctx context.Context, versionID uuid.UUID, docType domain.DocumentType, formVersion string) (*domain.DealDocument, error) {
	var doc domain.DealDocument
	err := r.db.WithContext(ctx).
		Where("deal_version_id = ? AND document_type = ? AND document_version = ?", versionID, docType, formVersion).
		Where("storage_key IS NULL AND document_number = ?", domain.FormDocumentNumber).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
