package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// emptyForm is returned for a form that was never saved
var emptyForm = json.RawMessage(`{}`)

// DocumentFormService stores JSON drafts of deal documents. There is at most
// one draft per (version row, document type, form version); saving replaces
// its content.
type DocumentFormService struct {
	deals     *repository.DealRepository
	documents *repository.DealDocumentRepository
	history   *HistoryRecorder
	access    *DealAccessService
	logger    *zap.Logger
	db        *gorm.DB
}

// NewDocumentFormService creates a new document form service
func NewDocumentFormService(
	deals *repository.DealRepository,
	documents *repository.DealDocumentRepository,
	history *HistoryRecorder,
	access *DealAccessService,
	logger *zap.Logger,
	db *gorm.DB,
) *DocumentFormService {
	return &DocumentFormService{
		deals:     deals,
		documents: documents,
		history:   history,
		access:    access,
		logger:    logger,
		db:        db,
	}
}

func parseFormArgs(rawType string, version *string) (domain.DocumentType, *string, error) {
	docType, ok := domain.ParseDocumentType(rawType)
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, rawType)
	}
	if version == nil {
		return docType, nil, nil
	}
	v := strings.TrimSpace(*version)
	if v == "" {
		return docType, nil, nil
	}
	if len(v) > 20 {
		return "", nil, fmt.Errorf("%w: form version is limited to 20 characters", ErrInvalidInput)
	}
	return docType, &v, nil
}

// Get returns the most recently saved form of the type across all versions
// of the deal, or an empty default when none exists.
func (s *DocumentFormService) Get(ctx context.Context, dealID, companyID uuid.UUID, rawType string, version *string) (*domain.DocumentFormDTO, error) {
	docType, formVersion, err := parseFormArgs(rawType, version)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Require(ctx, dealID, companyID); err != nil {
		return nil, err
	}

	doc, err := s.documents.FindNewestForm(ctx, dealID, docType, formVersion)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		v := domain.DefaultFormVersion
		if formVersion != nil {
			v = *formVersion
		}
		return &domain.DocumentFormDTO{
			DocumentType:    docType,
			DocumentVersion: v,
			Content:         emptyForm,
			Exists:          false,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form: %w", err)
	}
	return formDTO(doc), nil
}

// Save upserts the form on the latest version. Without a version the newest
// existing form version of that type is used, or the default for a new form.
// The payload is stored exactly as given.
func (s *DocumentFormService) Save(ctx context.Context, dealID, actor uuid.UUID, rawType string, payload []byte, version *string) (*domain.DocumentFormDTO, error) {
	docType, formVersion, err := parseFormArgs(rawType, version)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, fmt.Errorf("%w: form content must be valid JSON", ErrInvalidInput)
	}

	var saved *domain.DealDocument
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.deals.WithTx(tx).FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}
		if latest.IsRejected() {
			return fmt.Errorf("%w: version %d was rejected", ErrConflict, latest.Version)
		}

		docRepo := s.documents.WithTx(tx)
		v, err := s.resolveFormVersion(ctx, docRepo, dealID, docType, formVersion)
		if err != nil {
			return err
		}

		content := string(payload)
		doc, err := docRepo.FindForm(ctx, latest.ID, docType, v)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			doc = &domain.DealDocument{
				DealVersionID:      latest.ID,
				DocumentType:       docType,
				DocumentNumber:     domain.FormDocumentNumber,
				DocumentContent:    &content,
				DocumentVersion:    &v,
				UpdatedByCompanyID: &actor,
			}
			if err := docRepo.Create(ctx, doc); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: form was saved concurrently, try again", ErrConflict)
				}
				return fmt.Errorf("failed to create form: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to load form: %w", err)
		default:
			doc.DocumentContent = &content
			doc.UpdatedByCompanyID = &actor
			if err := docRepo.Update(ctx, doc); err != nil {
				return fmt.Errorf("failed to update form: %w", err)
			}
		}
		saved = doc

		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     latest,
			Actor:       actor,
			ChangeType:  domain.ChangeFormSaved,
			Description: fmt.Sprintf("%s form %s saved", docType, v),
			New: domain.Fields{
				"documentType":    string(docType),
				"documentVersion": v,
				"contentLength":   len(payload),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Form saved",
		zap.String("deal_id", dealID.String()),
		zap.String("document_type", string(docType)),
		zap.String("document_version", *saved.DocumentVersion),
	)
	return formDTO(saved), nil
}

func (s *DocumentFormService) resolveFormVersion(ctx context.Context, docRepo *repository.DealDocumentRepository, dealID uuid.UUID, docType domain.DocumentType, requested *string) (string, error) {
	if requested != nil {
		return *requested, nil
	}
	newest, err := docRepo.FindNewestForm(ctx, dealID, docType, nil)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultFormVersion, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve form version: %w", err)
	}
	if newest.DocumentVersion == nil || *newest.DocumentVersion == "" {
		return domain.DefaultFormVersion, nil
	}
	return *newest.DocumentVersion, nil
}

func formDTO(doc *domain.DealDocument) *domain.DocumentFormDTO {
	content := emptyForm
	if doc.DocumentContent != nil {
		content = json.RawMessage(*doc.DocumentContent)
	}
	v := domain.DefaultFormVersion
	if doc.DocumentVersion != nil {
		v = *doc.DocumentVersion
	}
	updatedAt := doc.UpdatedAt.UTC().Format(time.RFC3339)
	return &domain.DocumentFormDTO{
		DocumentType:       doc.DocumentType,
		DocumentVersion:    v,
		Content:            content,
		Exists:             true,
		UpdatedByCompanyID: doc.UpdatedByCompanyID,
		UpdatedAt:          &updatedAt,
	}
}
