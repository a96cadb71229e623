package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name             string
		page, pageSize   int
		wantPage, wantPS int
	}{
		{"defaults", 0, 0, 1, 20},
		{"negative", -3, -1, 1, 20},
		{"kept", 4, 50, 4, 50},
		{"capped", 2, 1000, 2, repository.MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, pageSize := repository.NormalizePage(tt.page, tt.pageSize)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPS, pageSize)
		})
	}
}

func TestBuildOrderClause(t *testing.T) {
	columns := map[string]string{"createdAt": "deals.created_at"}

	assert.Equal(t, "deals.created_at ASC",
		repository.BuildOrderClause(repository.SortConfig{Field: "createdAt", Order: repository.SortOrderAsc}, columns, "deals.updated_at"))
	// unknown fields never reach SQL
	assert.Equal(t, "deals.updated_at DESC",
		repository.BuildOrderClause(repository.SortConfig{Field: "1; DROP TABLE deals", Order: repository.ParseSortOrder("")}, columns, "deals.updated_at"))
}

func TestApplyPartyScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	companyID := uuid.New()

	toSQL := func(role domain.PartyRole) string {
		return db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			return repository.ApplyPartyScope(tx.Model(&domain.Deal{}), companyID, role).Find(&[]domain.Deal{})
		})
	}

	buyer := toSQL(domain.PartyBuyer)
	assert.Contains(t, buyer, "buyer_company_id")
	assert.NotContains(t, buyer, "seller_company_id")

	seller := toSQL(domain.PartySeller)
	assert.Contains(t, seller, "seller_company_id")
	assert.NotContains(t, seller, "buyer_company_id")

	either := toSQL(domain.PartyNone)
	assert.Contains(t, either, "buyer_company_id")
	assert.Contains(t, either, "seller_company_id")
}

func insertVersion(t *testing.T, db *gorm.DB, dealID, buyer, seller uuid.UUID, version int) *domain.Deal {
	t.Helper()
	deal := &domain.Deal{
		DealID:             dealID,
		Version:            version,
		BuyerCompanyID:     buyer,
		SellerCompanyID:    seller,
		BuyerOrderNumber:   "00001",
		SellerOrderNumber:  "00001",
		DealType:           domain.DealTypeGoods,
		Status:             domain.DealStatusActive,
		TotalAmount:        decimal.NewFromInt(100),
		Currency:           "NOK",
		CreatedByCompanyID: buyer,
	}
	require.NoError(t, db.Create(deal).Error)
	return deal
}

func TestDealRepository_LatestAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDealRepository(db)
	ctx := context.Background()
	buyer, seller := uuid.New(), uuid.New()

	dealID := uuid.New()
	insertVersion(t, db, dealID, buyer, seller, 1)
	insertVersion(t, db, dealID, buyer, seller, 2)
	insertVersion(t, db, uuid.New(), seller, buyer, 1)

	latest, err := repo.FindLatest(ctx, dealID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	versions, err := repo.ListVersions(ctx, dealID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	deals, total, err := repo.ListLatestForCompany(ctx, buyer, domain.DealListFilters{}, repository.DefaultSortConfig(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, deals, 2)

	deals, total, err = repo.ListLatestForCompany(ctx, buyer, domain.DealListFilters{Role: domain.PartyBuyer}, repository.DefaultSortConfig(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, deals, 1)
	assert.Equal(t, dealID, deals[0].DealID)

	_, err = repo.FindLatest(ctx, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDealRepository_UniqueVersion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	buyer, seller := uuid.New(), uuid.New()
	dealID := uuid.New()
	insertVersion(t, db, dealID, buyer, seller, 1)

	duplicate := &domain.Deal{
		DealID: dealID, Version: 1, BuyerCompanyID: buyer, SellerCompanyID: seller,
		DealType: domain.DealTypeGoods, Status: domain.DealStatusActive, Currency: "NOK",
		CreatedByCompanyID: buyer,
	}
	assert.Error(t, db.Create(duplicate).Error)
}

func TestDealItemRepository_ReplaceAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	dealID := uuid.New()
	version := insertVersion(t, db, dealID, uuid.New(), uuid.New(), 1)

	item := func(name string, position int) domain.DealItem {
		return domain.DealItem{
			Name:      name,
			ItemType:  domain.DealTypeGoods,
			Quantity:  decimal.NewFromInt(1),
			Unit:      "pcs",
			UnitPrice: decimal.NewFromInt(10),
			Amount:    decimal.NewFromInt(10),
			Position:  position,
		}
	}

	items := repository.NewDealItemRepository(db)
	require.NoError(t, items.ReplaceAll(ctx, version.ID, []domain.DealItem{item("second", 2), item("first", 1)}))

	listed, err := items.ListByVersion(ctx, version.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "first", listed[0].Name)
	assert.Equal(t, "second", listed[1].Name)

	// the locked load of the latest version carries the same ordered items
	err = db.Transaction(func(tx *gorm.DB) error {
		latest, err := repository.NewDealRepository(db).WithTx(tx).FindLatestForUpdate(ctx, dealID)
		require.NoError(t, err)
		require.Len(t, latest.Items, 2)
		assert.Equal(t, "first", latest.Items[0].Name)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, items.ReplaceAll(ctx, version.ID, []domain.DealItem{item("only", 1)}))
	listed, err = items.ListByVersion(ctx, version.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "only", listed[0].Name)
}

func TestPendingDeletionRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPendingDeletionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, "deals/a/1.pdf", errors.New("timeout")))
	require.NoError(t, repo.Enqueue(ctx, "deals/a/1.pdf", errors.New("again")))
	require.NoError(t, repo.Enqueue(ctx, "deals/a/2.pdf", nil))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	due, err := repo.ListDue(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)

	require.NoError(t, repo.MarkFailed(ctx, due[0].ID, errors.New("still down")))
	due, err = repo.ListDue(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, repo.Remove(ctx, due[0].ID))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
