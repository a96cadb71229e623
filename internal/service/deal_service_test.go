package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/service"
	"github.com/straye-as/deal-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDealService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("version 1 is agreed with order numbers", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)

		assert.Equal(t, 1, deal.Version)
		assert.Equal(t, domain.VersionStateLegacyAgreed, deal.State())
		assert.Nil(t, deal.ProposedByCompanyID)
		assert.NotNil(t, deal.BuyerAcceptedAt)
		assert.NotNil(t, deal.SellerAcceptedAt)
		assert.Equal(t, "00001", deal.BuyerOrderNumber)
		assert.Equal(t, "00001", deal.SellerOrderNumber)
		assert.Equal(t, "200.00", deal.TotalAmount.StringFixed(2))
		assert.Equal(t, domain.DealTypeGoods, deal.DealType)
		assert.Equal(t, service.DefaultCurrency, deal.Currency)

		active, err := f.deals.GetActive(ctx, deal.DealID, f.seller.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, active.Version)
		require.Len(t, active.Items, 1)
		assert.Equal(t, "Steel beam", active.Items[0].Name)

		history, err := f.deals.GetHistory(ctx, deal.DealID, f.buyer.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, domain.ChangeCreated, history[0].ChangeType)
		assert.Nil(t, history[0].OldValues)
		assert.NotNil(t, history[0].NewValues)
	})

	t.Run("order numbers increase per company", func(t *testing.T) {
		f := newFixture(t)
		f.placeOrder(t)
		second := f.placeOrder(t)
		assert.Equal(t, "00002", second.BuyerOrderNumber)
		assert.Equal(t, "00002", second.SellerOrderNumber)

		other := testutil.CreateTestCompany(t, f.db, "Other Seller AS")
		third, err := f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID:  f.buyer.ID,
			SellerCompanyID: other.ID,
			Items:           []domain.DealItemInput{testutil.ManualItem("Consulting", domain.DealTypeServices, "1", "10")},
		})
		require.NoError(t, err)
		assert.Equal(t, "00003", third.BuyerOrderNumber)
		assert.Equal(t, "00001", third.SellerOrderNumber)
		assert.Equal(t, domain.DealTypeServices, third.DealType)
	})

	t.Run("mixed goods and services persist nothing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID:  f.buyer.ID,
			SellerCompanyID: f.seller.ID,
			Items: []domain.DealItemInput{
				testutil.ManualItem("Steel beam", domain.DealTypeGoods, "1", "100"),
				testutil.ManualItem("Installation", domain.DealTypeServices, "1", "50"),
			},
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
		assert.Zero(t, f.countRows(t, &domain.Deal{}))
		assert.Zero(t, f.countRows(t, &domain.DealItem{}))
		assert.Zero(t, f.countRows(t, &domain.DealHistory{}))
		assert.Zero(t, f.countRows(t, &domain.NumberSequence{}))
	})

	t.Run("deal type must match items", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID:  f.buyer.ID,
			SellerCompanyID: f.seller.ID,
			DealType:        domain.DealTypeServices,
			Items:           []domain.DealItemInput{testutil.ManualItem("Steel beam", domain.DealTypeGoods, "1", "100")},
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("manual item needs all fields", func(t *testing.T) {
		f := newFixture(t)
		item := testutil.ManualItem("Steel beam", domain.DealTypeGoods, "1", "100")
		item.UnitPrice = nil
		_, err := f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID:  f.buyer.ID,
			SellerCompanyID: f.seller.ID,
			Items:           []domain.DealItemInput{item},
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
		assert.Contains(t, err.Error(), "unitPrice")
	})

	t.Run("catalog item is snapshotted", func(t *testing.T) {
		f := newFixture(t)
		product := testutil.CreateTestProduct(t, f.db, f.seller.ID, "A-100", domain.DealTypeGoods, "12.50")

		deal, err := f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID:  f.buyer.ID,
			SellerCompanyID: f.seller.ID,
			Items:           []domain.DealItemInput{{Article: "A-100", Quantity: decimal.NewFromInt(4)}},
		})
		require.NoError(t, err)
		require.Len(t, deal.Items, 1)
		assert.Equal(t, product.ID, *deal.Items[0].ProductID)
		assert.Equal(t, "Product A-100", deal.Items[0].Name)
		assert.Equal(t, "50.00", deal.Items[0].Amount.StringFixed(2))

		// later catalog edits do not touch the deal
		require.NoError(t, f.db.Model(product).Update("name", "Renamed").Error)
		latest, err := f.deals.GetLatest(ctx, deal.DealID, f.buyer.ID)
		require.NoError(t, err)
		assert.Equal(t, "Product A-100", latest.Items[0].Name)
	})

	t.Run("product of another seller is rejected", func(t *testing.T) {
		f := newFixture(t)
		product := testutil.CreateTestProduct(t, f.db, f.outsider.ID, "X-1", domain.DealTypeGoods, "5")
		_, err := f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID:  f.buyer.ID,
			SellerCompanyID: f.seller.ID,
			Items:           []domain.DealItemInput{{ProductID: &product.ID, Quantity: decimal.NewFromInt(1)}},
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("parties must differ and exist", func(t *testing.T) {
		f := newFixture(t)
		items := []domain.DealItemInput{testutil.ManualItem("Steel beam", domain.DealTypeGoods, "1", "1")}

		_, err := f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID: f.buyer.ID, SellerCompanyID: f.buyer.ID, Items: items,
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)

		unknown := uuid.New()
		_, err = f.deals.CreateOrder(ctx, f.buyer.ID, &domain.CreateDealRequest{
			BuyerCompanyID: f.buyer.ID, SellerCompanyID: unknown, Items: items,
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("outsider cannot place an order for others", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.deals.CreateOrder(ctx, f.outsider.ID, &domain.CreateDealRequest{
			BuyerCompanyID:  f.buyer.ID,
			SellerCompanyID: f.seller.ID,
			Items:           []domain.DealItemInput{testutil.ManualItem("Steel beam", domain.DealTypeGoods, "1", "1")},
		})
		assert.ErrorIs(t, err, service.ErrForbidden)
	})
}

func TestDealService_UpdateLatestVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("replacing items keeps the total in sync", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)

		items := []domain.DealItemInput{
			testutil.ManualItem("Beam", domain.DealTypeGoods, "3", "19.99"),
			testutil.ManualItem("Bolt", domain.DealTypeGoods, "0.5", "7.25"),
		}
		updated, err := f.deals.UpdateLatestVersion(ctx, deal.DealID, f.seller.ID, &domain.DealPatch{
			Comments: strPtr("revised"),
			Items:    &items,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Version)
		assert.Equal(t, "revised", updated.Comments)

		latest, err := f.deals.GetLatest(ctx, deal.DealID, f.buyer.ID)
		require.NoError(t, err)
		require.Len(t, latest.Items, 2)
		sum := decimal.Zero
		for _, item := range latest.Items {
			sum = sum.Add(item.Amount)
		}
		assert.True(t, sum.Equal(latest.TotalAmount), "sum %s total %s", sum, latest.TotalAmount)
		assert.Equal(t, "63.60", latest.TotalAmount.StringFixed(2))
		assert.Equal(t, 0, latest.Items[0].Position)
		assert.Equal(t, 1, latest.Items[1].Position)
		assert.Equal(t, int64(2), f.countRows(t, &domain.DealItem{}))

		history, err := f.deals.GetHistory(ctx, deal.DealID, f.buyer.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, domain.ChangeItemsReplaced, history[1].ChangeType)
		assert.NotNil(t, history[1].OldValues)
	})

	t.Run("failed replacement leaves old items", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)

		items := []domain.DealItemInput{testutil.ManualItem("Support", domain.DealTypeServices, "1", "10")}
		_, err := f.deals.UpdateLatestVersion(ctx, deal.DealID, f.buyer.ID, &domain.DealPatch{Items: &items})
		assert.ErrorIs(t, err, service.ErrInvalidInput)

		latest, err := f.deals.GetLatest(ctx, deal.DealID, f.buyer.ID)
		require.NoError(t, err)
		require.Len(t, latest.Items, 1)
		assert.Equal(t, "Steel beam", latest.Items[0].Name)
		assert.Equal(t, "200.00", latest.TotalAmount.StringFixed(2))
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)
		_, err := f.deals.UpdateLatestVersion(ctx, deal.DealID, f.buyer.ID, &domain.DealPatch{})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("pending proposal is editable by the proposer only", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)
		_, err := f.deals.CreateNewVersion(ctx, deal.DealID, f.seller.ID, nil)
		require.NoError(t, err)

		_, err = f.deals.UpdateLatestVersion(ctx, deal.DealID, f.buyer.ID, &domain.DealPatch{Comments: strPtr("x")})
		assert.ErrorIs(t, err, service.ErrConflict)

		updated, err := f.deals.UpdateLatestVersion(ctx, deal.DealID, f.seller.ID, &domain.DealPatch{Comments: strPtr("y")})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, "y", updated.Comments)
	})

	t.Run("agreed and rejected versions are immutable", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)
		_, err := f.deals.CreateNewVersion(ctx, deal.DealID, f.seller.ID, nil)
		require.NoError(t, err)
		_, err = f.deals.AcceptVersion(ctx, deal.DealID, 2, f.buyer.ID)
		require.NoError(t, err)

		_, err = f.deals.UpdateLatestVersion(ctx, deal.DealID, f.seller.ID, &domain.DealPatch{Comments: strPtr("late")})
		assert.ErrorIs(t, err, service.ErrConflict)

		_, err = f.deals.CreateNewVersion(ctx, deal.DealID, f.buyer.ID, nil)
		require.NoError(t, err)
		_, err = f.deals.RejectVersion(ctx, deal.DealID, 3, f.seller.ID)
		require.NoError(t, err)

		_, err = f.deals.UpdateLatestVersion(ctx, deal.DealID, f.buyer.ID, &domain.DealPatch{Comments: strPtr("late")})
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("outsider sees not found", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)
		_, err := f.deals.UpdateLatestVersion(ctx, deal.DealID, f.outsider.ID, &domain.DealPatch{Comments: strPtr("x")})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestDealService_Queries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deal := f.placeOrder(t)
	other := f.placeOrder(t)

	t.Run("outsider cannot read", func(t *testing.T) {
		_, err := f.deals.GetActive(ctx, deal.DealID, f.outsider.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
		_, err = f.deals.ListVersions(ctx, deal.DealID, f.outsider.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
		_, err = f.deals.GetHistory(ctx, deal.DealID, f.outsider.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("classify separates absent from forbidden", func(t *testing.T) {
		assert.ErrorIs(t, f.access.Classify(ctx, deal.DealID, f.outsider.ID), service.ErrForbidden)
		assert.NoError(t, f.access.Classify(ctx, uuid.New(), f.outsider.ID))
		assert.NoError(t, f.access.Classify(ctx, deal.DealID, f.buyer.ID))

		presence, err := f.access.Exists(ctx, deal.DealID)
		require.NoError(t, err)
		assert.Equal(t, service.DealPresent, presence)
	})

	t.Run("explicit version", func(t *testing.T) {
		v1, err := f.deals.GetVersion(ctx, deal.DealID, 1, f.seller.ID)
		require.NoError(t, err)
		assert.Equal(t, deal.ID, v1.ID)

		_, err = f.deals.GetVersion(ctx, deal.DealID, 7, f.seller.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("list deals returns latest rows per company", func(t *testing.T) {
		_, err := f.deals.CreateNewVersion(ctx, other.DealID, f.seller.ID, nil)
		require.NoError(t, err)

		page, err := f.deals.ListDeals(ctx, f.buyer.ID, domain.DealListFilters{}, repository.DefaultSortConfig(), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		deals := page.Data.([]domain.DealDTO)
		versions := map[uuid.UUID]int{}
		for _, d := range deals {
			versions[d.DealID] = d.Version
		}
		assert.Equal(t, 1, versions[deal.DealID])
		assert.Equal(t, 2, versions[other.DealID])

		page, err = f.deals.ListDeals(ctx, f.seller.ID, domain.DealListFilters{Role: domain.PartyBuyer}, repository.DefaultSortConfig(), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(0), page.Total)

		page, err = f.deals.ListDeals(ctx, f.outsider.ID, domain.DealListFilters{}, repository.DefaultSortConfig(), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(0), page.Total)
	})
}

func TestDealService_DeleteDeal(t *testing.T) {
	ctx := context.Background()

	t.Run("removes every version and its files", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)
		_, err := f.deals.CreateNewVersion(ctx, deal.DealID, f.seller.ID, nil)
		require.NoError(t, err)
		doc := uploadText(t, f, deal.DealID, f.buyer.ID, "contract", "hello")

		require.NoError(t, f.deals.DeleteDeal(ctx, deal.DealID, f.buyer.ID))

		assert.Zero(t, f.countRows(t, &domain.Deal{}))
		assert.Zero(t, f.countRows(t, &domain.DealItem{}))
		assert.Zero(t, f.countRows(t, &domain.DealHistory{}))
		assert.Zero(t, f.countRows(t, &domain.DealDocument{}))
		assert.False(t, f.store.has(*doc.StorageKey))

		_, err = f.deals.GetLatest(ctx, deal.DealID, f.buyer.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("storage failure does not block the delete", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)
		doc := uploadText(t, f, deal.DealID, f.seller.ID, "invoice", "bytes")
		f.store.failDelete = true

		require.NoError(t, f.deals.DeleteDeal(ctx, deal.DealID, f.seller.ID))
		assert.Zero(t, f.countRows(t, &domain.Deal{}))
		assert.True(t, f.store.has(*doc.StorageKey))
		assert.Equal(t, int64(1), f.countRows(t, &domain.PendingObjectDeletion{}))
	})

	t.Run("outsider cannot delete", func(t *testing.T) {
		f := newFixture(t)
		deal := f.placeOrder(t)
		assert.ErrorIs(t, f.deals.DeleteDeal(ctx, deal.DealID, f.outsider.ID), service.ErrNotFound)
		assert.Equal(t, int64(1), f.countRows(t, &domain.Deal{}))
	})
}
