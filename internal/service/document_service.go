package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/logger"
	"github.com/straye-as/deal-engine/internal/metrics"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentUpload describes a file attached to a deal
type DocumentUpload struct {
	DocumentType   string
	DocumentNumber string
	DocumentDate   *time.Time
	FileName       string
	ContentType    string
}

// DocumentService manages files attached to deals. Files always belong to
// the version that was latest when they were uploaded.
type DocumentService struct {
	deals     *repository.DealRepository
	documents *repository.DealDocumentRepository
	history   *HistoryRecorder
	access    *DealAccessService
	storage   storage.Storage
	cleanup   *ObjectCleanupService
	logger    *zap.Logger
	db        *gorm.DB
	now       func() time.Time
}

// NewDocumentService creates a new document service
func NewDocumentService(
	deals *repository.DealRepository,
	documents *repository.DealDocumentRepository,
	history *HistoryRecorder,
	access *DealAccessService,
	store storage.Storage,
	cleanup *ObjectCleanupService,
	logger *zap.Logger,
	db *gorm.DB,
) *DocumentService {
	return &DocumentService{
		deals:     deals,
		documents: documents,
		history:   history,
		access:    access,
		storage:   store,
		cleanup:   cleanup,
		logger:    logger,
		db:        db,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ObjectPrefix is the storage key prefix of a deal's files
func ObjectPrefix(dealID uuid.UUID) string {
	return "deals/" + dealID.String()
}

// Upload stores the file and records it on the latest version. The object is
// written first; if the metadata cannot be committed it is removed again.
func (s *DocumentService) Upload(ctx context.Context, dealID, actor uuid.UUID, meta DocumentUpload, data io.Reader) (*domain.DealDocument, error) {
	docType, ok := domain.ParseDocumentType(meta.DocumentType)
	if !ok {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, meta.DocumentType)
	}
	fileName := strings.TrimSpace(meta.FileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	number := strings.TrimSpace(meta.DocumentNumber)
	if number == "" {
		number = fileName
	}
	if number == domain.FormDocumentNumber {
		return nil, fmt.Errorf("%w: document number %q is reserved", ErrInvalidInput, number)
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.access.Require(ctx, dealID, actor); err != nil {
		return nil, err
	}

	key := storage.ObjectKey(ObjectPrefix(dealID), fileName)
	size, err := s.storage.Upload(ctx, key, contentType, data)
	metrics.StorageOperations.WithLabelValues("upload", metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Error("Failed to upload document", zap.String("deal_id", dealID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: upload failed", ErrStorage)
	}

	doc := &domain.DealDocument{
		DocumentType:        docType,
		DocumentNumber:      number,
		DocumentDate:        meta.DocumentDate,
		StorageKey:          &key,
		FileName:            fileName,
		ContentType:         contentType,
		Size:                size,
		UploadedByCompanyID: &actor,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.deals.WithTx(tx).FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}

		doc.DealVersionID = latest.ID
		if err := s.documents.WithTx(tx).Create(ctx, doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     latest,
			Actor:       actor,
			ChangeType:  domain.ChangeDocumentAdded,
			Description: fmt.Sprintf("%s %s uploaded", docType, number),
			New:         doc,
		})
	})
	if err != nil {
		s.cleanup.DeleteObjects(ctx, []string{key})
		return nil, err
	}

	logger.WithDeal(s.logger, dealID, actor).Info("Document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_type", string(docType)),
		zap.Int64("size", size),
	)
	return doc, nil
}

// List returns the files of all versions of a deal, newest first
func (s *DocumentService) List(ctx context.Context, dealID, companyID uuid.UUID) ([]domain.DealDocument, error) {
	if _, err := s.access.Require(ctx, dealID, companyID); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListFiles(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Download opens a stored file. The caller closes the reader.
func (s *DocumentService) Download(ctx context.Context, dealID, documentID, companyID uuid.UUID) (*domain.DealDocument, io.ReadCloser, error) {
	if _, err := s.access.Require(ctx, dealID, companyID); err != nil {
		return nil, nil, err
	}
	doc, err := s.documents.FindFile(ctx, dealID, documentID)
	if err != nil {
		return nil, nil, notFoundOr(err, "document")
	}

	body, err := s.storage.Download(ctx, *doc.StorageKey)
	metrics.StorageOperations.WithLabelValues("download", metrics.Result(err)).Inc()
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("Stored object missing for document",
			zap.String("document_id", documentID.String()),
			zap.String("storage_key", *doc.StorageKey),
		)
		return nil, nil, fmt.Errorf("%w: document content", ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: download failed", ErrStorage)
	}
	return doc, body, nil
}

// Delete removes the document row; the object is deleted after commit
func (s *DocumentService) Delete(ctx context.Context, dealID, documentID, actor uuid.UUID) error {
	var key string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.deals.WithTx(tx).FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}

		docRepo := s.documents.WithTx(tx)
		doc, err := docRepo.FindFile(ctx, dealID, documentID)
		if err != nil {
			return notFoundOr(err, "document")
		}
		if err := docRepo.Delete(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		key = *doc.StorageKey

		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     latest,
			Actor:       actor,
			ChangeType:  domain.ChangeDocumentDeleted,
			Description: fmt.Sprintf("%s %s deleted", doc.DocumentType, doc.DocumentNumber),
			Old:         doc,
		})
	})
	if err != nil {
		return err
	}

	s.cleanup.DeleteObjects(ctx, []string{key})
	return nil
}

// MarkSent flags a document as sent to the counterparty. Marking twice keeps
// the first timestamp.
func (s *DocumentService) MarkSent(ctx context.Context, dealID, documentID, actor uuid.UUID) (*domain.DealDocument, error) {
	var result *domain.DealDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.deals.WithTx(tx).FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}

		docRepo := s.documents.WithTx(tx)
		doc, err := docRepo.FindFile(ctx, dealID, documentID)
		if err != nil {
			return notFoundOr(err, "document")
		}
		result = doc
		if doc.Sent {
			return nil
		}

		now := s.now()
		doc.Sent = true
		doc.SentAt = &now
		if err := docRepo.Update(ctx, doc); err != nil {
			return fmt.Errorf("failed to mark document sent: %w", err)
		}
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     latest,
			Actor:       actor,
			ChangeType:  domain.ChangeDocumentSent,
			Description: fmt.Sprintf("%s %s sent", doc.DocumentType, doc.DocumentNumber),
			New:         domain.Fields{"documentId": doc.ID.String(), "sentAt": now.Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
