package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// agreedCondition selects versions that are binding for both parties
const agreedCondition = "rejected_by_company_id IS NULL AND " +
	"(proposed_by_company_id IS NULL OR (buyer_accepted_at IS NOT NULL AND seller_accepted_at IS NOT NULL))"

// DealRepository stores deal versions. All lookups by business id return
// gorm.ErrRecordNotFound when no matching version exists.
type DealRepository struct {
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *DealRepository) WithTx(tx *gorm.DB) *DealRepository {
	return &DealRepository{db: tx}
}

// Create inserts a version together with its items
func (r *DealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	return r.db.WithContext(ctx).Create(deal).Error
}

// Update saves the scalar columns of a version. Items are managed by DealItemRepository.
func (r *DealRepository) Update(ctx context.Context, deal *domain.Deal) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(deal).Error
}

func (r *DealRepository) withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(q *gorm.DB) *gorm.DB {
		return q.Order("deal_items.position ASC")
	})
}

// FindLatest returns the highest version of a deal
func (r *DealRepository) FindLatest(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.withItems(r.db.WithContext(ctx)).
		Where("deal_id = ?", dealID).
		Order("version DESC").
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// FindLatestForUpdate locks the highest version row of a deal for the rest
// of the transaction and loads its items.
func (r *DealRepository) FindLatestForUpdate(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("deal_id = ?", dealID).
		Order("version DESC").
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	deal.Items, err = NewDealItemRepository(r.db).ListByVersion(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// FindVersionForUpdate locks one version row
func (r *DealRepository) FindVersionForUpdate(ctx context.Context, dealID uuid.UUID, version int) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("deal_id = ? AND version = ?", dealID, version).
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// FindVersion returns one explicit version
func (r *DealRepository) FindVersion(ctx context.Context, dealID uuid.UUID, version int) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.withItems(r.db.WithContext(ctx)).
		Where("deal_id = ? AND version = ?", dealID, version).
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// FindActive returns the highest agreed, non-rejected version
func (r *DealRepository) FindActive(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	err := r.withItems(r.db.WithContext(ctx)).
		Where("deal_id = ?", dealID).
		Where(agreedCondition).
		Order("version DESC").
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// ListVersions returns every version of a deal, newest first, without items
func (r *DealRepository) ListVersions(ctx context.Context, dealID uuid.UUID) ([]domain.Deal, error) {
	var versions []domain.Deal
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("version DESC").
		Find(&versions).Error
	return versions, err
}

// Exists reports whether any version of the deal exists, regardless of who asks
func (r *DealRepository) Exists(ctx context.Context, dealID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("deal_id = ?", dealID).
		Count(&count).Error
	return count > 0, err
}

// VersionIDs returns the row ids of every version of a deal
func (r *DealRepository) VersionIDs(ctx context.Context, dealID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("deal_id = ?", dealID).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteVersions removes version rows with their items, documents and history.
// Mirrors the ON DELETE CASCADE of the SQL schema for databases without
// enforced foreign keys.
func (r *DealRepository) DeleteVersions(ctx context.Context, versionIDs []uuid.UUID) error {
	if len(versionIDs) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("deal_version_id IN ?", versionIDs).Delete(&domain.DealItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("deal_version_id IN ?", versionIDs).Delete(&domain.DealDocument{}).Error; err != nil {
		return err
	}
	if err := db.Where("deal_version_id IN ?", versionIDs).Delete(&domain.DealHistory{}).Error; err != nil {
		return err
	}
	return db.Where("id IN ?", versionIDs).Delete(&domain.Deal{}).Error
}

var dealSortColumns = map[string]string{
	"createdAt":   "deals.created_at",
	"updatedAt":   "deals.updated_at",
	"totalAmount": "deals.total_amount",
	"version":     "deals.version",
}

// ListLatestForCompany returns the latest version of every deal the company
// is party to.
func (r *DealRepository) ListLatestForCompany(ctx context.Context, companyID uuid.UUID, filters domain.DealListFilters, sort SortConfig, page, pageSize int) ([]domain.Deal, int64, error) {
	var deals []domain.Deal
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Where("deals.version = (SELECT MAX(d2.version) FROM deals d2 WHERE d2.deal_id = deals.deal_id)")
	query = ApplyPartyScope(query, companyID, filters.Role)
	if filters.Status != nil {
		query = query.Where("deals.status = ?", *filters.Status)
	}
	if filters.DealType != nil {
		query = query.Where("deals.deal_type = ?", *filters.DealType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize = NormalizePage(page, pageSize)
	err := r.withItems(query).
		Order(BuildOrderClause(sort, dealSortColumns, "deals.updated_at")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&deals).Error
	return deals, total, err
}
