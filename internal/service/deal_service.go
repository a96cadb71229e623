package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/mapper"
	"github.com/straye-as/deal-engine/internal/metrics"
	"github.com/straye-as/deal-engine/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultCurrency is used when an order does not name one
const DefaultCurrency = "NOK"

// DealService owns the lifecycle of deals and their versions. Every mutation
// runs in one transaction that also carries the history record.
type DealService struct {
	deals     *repository.DealRepository
	items     *repository.DealItemRepository
	documents *repository.DealDocumentRepository
	history   *HistoryRecorder
	numbers   *NumberSequenceService
	access    *DealAccessService
	catalog   ProductCatalog
	companies CompanyDirectory
	cleanup   *ObjectCleanupService
	retry     config.NegotiationConfig
	logger    *zap.Logger
	db        *gorm.DB
	now       func() time.Time
}

// NewDealService creates a new deal service
func NewDealService(
	deals *repository.DealRepository,
	items *repository.DealItemRepository,
	documents *repository.DealDocumentRepository,
	history *HistoryRecorder,
	numbers *NumberSequenceService,
	access *DealAccessService,
	catalog ProductCatalog,
	companies CompanyDirectory,
	cleanup *ObjectCleanupService,
	negotiation config.NegotiationConfig,
	logger *zap.Logger,
	db *gorm.DB,
) *DealService {
	return &DealService{
		deals:     deals,
		items:     items,
		documents: documents,
		history:   history,
		numbers:   numbers,
		access:    access,
		catalog:   catalog,
		companies: companies,
		cleanup:   cleanup,
		retry:     negotiation,
		logger:    logger,
		db:        db,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder places a new order as version 1. Both sides are stamped as
// accepted and no proposer is set, so the version is agreed immediately.
func (s *DealService) CreateOrder(ctx context.Context, actor uuid.UUID, req *domain.CreateDealRequest) (*domain.Deal, error) {
	if req.BuyerCompanyID == req.SellerCompanyID {
		return nil, fmt.Errorf("%w: buyer and seller must be different companies", ErrInvalidInput)
	}
	if actor != req.BuyerCompanyID && actor != req.SellerCompanyID {
		return nil, fmt.Errorf("%w: only the buyer or the seller can place an order", ErrForbidden)
	}
	for _, id := range []uuid.UUID{req.BuyerCompanyID, req.SellerCompanyID} {
		if _, err := s.companies.GetCompany(ctx, id); err != nil {
			if errors.Is(err, domain.ErrCompanyNotFound) {
				return nil, fmt.Errorf("%w: unknown company %s", ErrInvalidInput, id)
			}
			return nil, fmt.Errorf("failed to look up company: %w", err)
		}
	}

	items, itemsType, err := resolveItems(ctx, s.catalog, req.SellerCompanyID, req.Items)
	if err != nil {
		return nil, err
	}
	dealType := req.DealType
	if dealType == "" {
		dealType = itemsType
	}
	if err := checkDealType(dealType, itemsType); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	now := s.now()
	buyerAccepted, sellerAccepted := now, now
	deal := &domain.Deal{
		DealID:             uuid.New(),
		Version:            1,
		BuyerCompanyID:     req.BuyerCompanyID,
		SellerCompanyID:    req.SellerCompanyID,
		DealType:           dealType,
		Status:             domain.DealStatusActive,
		Currency:           currency,
		Comments:           req.Comments,
		DeliveryAddress:    req.DeliveryAddress,
		PaymentTerms:       req.PaymentTerms,
		DeliveryDate:       req.DeliveryDate,
		BuyerAcceptedAt:    &buyerAccepted,
		SellerAcceptedAt:   &sellerAccepted,
		CreatedByCompanyID: actor,
		Items:              items,
	}
	deal.RecalculateTotal()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		buyerNumber, err := s.numbers.Next(ctx, tx, deal.BuyerCompanyID, domain.SequenceBuyerOrder, now)
		if err != nil {
			return err
		}
		sellerNumber, err := s.numbers.Next(ctx, tx, deal.SellerCompanyID, domain.SequenceSellerOrder, now)
		if err != nil {
			return err
		}
		deal.BuyerOrderNumber = buyerNumber
		deal.SellerOrderNumber = sellerNumber

		if err := s.deals.WithTx(tx).Create(ctx, deal); err != nil {
			return fmt.Errorf("failed to create deal: %w", err)
		}
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     deal,
			Actor:       actor,
			ChangeType:  domain.ChangeCreated,
			Description: fmt.Sprintf("Order placed (buyer %s, seller %s)", buyerNumber, sellerNumber),
			New:         deal,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.DealsCreated.WithLabelValues(string(deal.DealType)).Inc()
	s.logger.Info("Deal created",
		zap.String("deal_id", deal.DealID.String()),
		zap.String("buyer_order_number", deal.BuyerOrderNumber),
		zap.String("seller_order_number", deal.SellerOrderNumber),
		zap.String("total_amount", deal.TotalAmount.StringFixed(2)),
	)
	return deal, nil
}

// UpdateLatestVersion edits the latest version in place. Unnegotiated
// versions are editable by either party and a pending proposal only by its
// proposer. Agreed and rejected versions must be superseded by a new version.
func (s *DealService) UpdateLatestVersion(ctx context.Context, dealID, actor uuid.UUID, patch *domain.DealPatch) (*domain.Deal, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	access, err := s.access.Require(ctx, dealID, actor)
	if err != nil {
		return nil, err
	}
	var newItems []domain.DealItem
	var newItemsType domain.DealType
	if patch.Items != nil {
		newItems, newItemsType, err = resolveItems(ctx, s.catalog, access.Latest.SellerCompanyID, *patch.Items)
		if err != nil {
			return nil, err
		}
	}

	var updated *domain.Deal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.deals.WithTx(tx).FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}
		if err := checkEditable(latest, actor); err != nil {
			return err
		}

		before := domain.Fields(latest.Snapshot())
		patch.ApplyScalars(latest)

		changeType := domain.ChangeUpdated
		if patch.Items != nil {
			if err := checkDealType(latest.DealType, newItemsType); err != nil {
				return err
			}
			if err := s.items.WithTx(tx).ReplaceAll(ctx, latest.ID, newItems); err != nil {
				return fmt.Errorf("failed to replace items: %w", err)
			}
			latest.Items = newItems
			changeType = domain.ChangeItemsReplaced
		} else if len(latest.Items) > 0 {
			if err := checkDealType(latest.DealType, latest.Items[0].ItemType); err != nil {
				return err
			}
		}
		latest.RecalculateTotal()

		if err := s.deals.WithTx(tx).Update(ctx, latest); err != nil {
			return fmt.Errorf("failed to update deal: %w", err)
		}
		updated = latest
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     latest,
			Actor:       actor,
			ChangeType:  changeType,
			Description: fmt.Sprintf("Version %d edited", latest.Version),
			Old:         before,
			New:         latest,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.VersionTransitions.WithLabelValues("updated").Inc()
	return updated, nil
}

// checkEditable enforces who may edit a version in place
func checkEditable(d *domain.Deal, actor uuid.UUID) error {
	switch d.State() {
	case domain.VersionStateRejected:
		return fmt.Errorf("%w: version %d was rejected", ErrConflict, d.Version)
	case domain.VersionStateAgreed:
		return fmt.Errorf("%w: version %d is agreed by both parties; create a new version", ErrConflict, d.Version)
	case domain.VersionStateProposed:
		if *d.ProposedByCompanyID != actor {
			return fmt.Errorf("%w: only the proposer can edit a pending proposal", ErrConflict)
		}
	}
	return nil
}

// DeleteDeal removes every version of a deal. Stored files are deleted after
// commit; failures there are queued and never undo the delete.
func (s *DealService) DeleteDeal(ctx context.Context, dealID, actor uuid.UUID) error {
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.deals.WithTx(tx)
		latest, err := dealRepo.FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}

		ids, err := dealRepo.VersionIDs(ctx, dealID)
		if err != nil {
			return fmt.Errorf("failed to list versions: %w", err)
		}
		keys, err = s.documents.WithTx(tx).StorageKeys(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to list stored documents: %w", err)
		}
		if err := dealRepo.DeleteVersions(ctx, ids); err != nil {
			return fmt.Errorf("failed to delete deal: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cleanup.DeleteObjects(ctx, keys)
	s.logger.Info("Deal deleted",
		zap.String("deal_id", dealID.String()),
		zap.String("actor_company_id", actor.String()),
		zap.Int("stored_documents", len(keys)),
	)
	return nil
}

// GetActive returns the highest agreed version
func (s *DealService) GetActive(ctx context.Context, dealID, companyID uuid.UUID) (*domain.Deal, error) {
	if _, err := s.access.Require(ctx, dealID, companyID); err != nil {
		return nil, err
	}
	deal, err := s.deals.FindActive(ctx, dealID)
	if err != nil {
		return nil, notFoundOr(err, "active version")
	}
	return deal, nil
}

// GetLatest returns the highest version regardless of agreement
func (s *DealService) GetLatest(ctx context.Context, dealID, companyID uuid.UUID) (*domain.Deal, error) {
	access, err := s.access.Require(ctx, dealID, companyID)
	if err != nil {
		return nil, err
	}
	return access.Latest, nil
}

// GetVersion returns one explicit version
func (s *DealService) GetVersion(ctx context.Context, dealID uuid.UUID, version int, companyID uuid.UUID) (*domain.Deal, error) {
	if _, err := s.access.Require(ctx, dealID, companyID); err != nil {
		return nil, err
	}
	deal, err := s.deals.FindVersion(ctx, dealID, version)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("version %d", version))
	}
	return deal, nil
}

// ListVersions returns all versions, newest first
func (s *DealService) ListVersions(ctx context.Context, dealID, companyID uuid.UUID) ([]domain.Deal, error) {
	if _, err := s.access.Require(ctx, dealID, companyID); err != nil {
		return nil, err
	}
	versions, err := s.deals.ListVersions(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// ListDeals returns the latest version of each deal the company is party to
func (s *DealService) ListDeals(ctx context.Context, companyID uuid.UUID, filters domain.DealListFilters, sort repository.SortConfig, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	deals, total, err := s.deals.ListLatestForCompany(ctx, companyID, filters, sort, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       mapper.ToDealDTOs(deals),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetHistory returns the audit trail of a deal for display
func (s *DealService) GetHistory(ctx context.Context, dealID, companyID uuid.UUID) ([]domain.DealHistory, error) {
	if _, err := s.access.Require(ctx, dealID, companyID); err != nil {
		return nil, err
	}
	entries, err := s.history.repo.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}
