package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDealFixture() *Deal {
	now := time.Now().UTC()
	return &Deal{
		BaseModel:         BaseModel{ID: uuid.New()},
		DealID:            uuid.New(),
		Version:           1,
		BuyerCompanyID:    uuid.New(),
		SellerCompanyID:   uuid.New(),
		BuyerOrderNumber:  "00001",
		SellerOrderNumber: "00007",
		DealType:          DealTypeGoods,
		Status:            DealStatusActive,
		Currency:          "NOK",
		BuyerAcceptedAt:   &now,
		SellerAcceptedAt:  &now,
		Items: []DealItem{
			{BaseModel: BaseModel{ID: uuid.New()}, Name: "Steel beam", ItemType: DealTypeGoods,
				Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), Amount: decimal.NewFromInt(200)},
		},
	}
}

func TestDealState(t *testing.T) {
	d := newDealFixture()
	assert.Equal(t, VersionStateLegacyAgreed, d.State())
	assert.True(t, d.IsAgreed())

	proposer := d.SellerCompanyID
	d.ProposedByCompanyID = &proposer
	d.BuyerAcceptedAt = nil
	assert.Equal(t, VersionStateProposed, d.State())
	assert.False(t, d.IsAgreed())

	now := time.Now()
	d.BuyerAcceptedAt = &now
	assert.Equal(t, VersionStateAgreed, d.State())
	assert.True(t, d.IsAgreed())

	rejecter := d.BuyerCompanyID
	d.RejectedByCompanyID = &rejecter
	assert.Equal(t, VersionStateRejected, d.State())
	assert.False(t, d.IsAgreed())
}

func TestDealRoleOf(t *testing.T) {
	d := newDealFixture()
	assert.Equal(t, PartyBuyer, d.RoleOf(d.BuyerCompanyID))
	assert.Equal(t, PartySeller, d.RoleOf(d.SellerCompanyID))
	assert.Equal(t, PartyNone, d.RoleOf(uuid.New()))
	assert.Equal(t, d.SellerCompanyID, d.Counterparty(PartyBuyer))
}

func TestStampAcceptanceIsIdempotent(t *testing.T) {
	d := newDealFixture()
	d.SellerAcceptedAt = nil

	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, d.StampAcceptance(PartySeller, first))
	assert.False(t, d.StampAcceptance(PartySeller, first.Add(time.Hour)))
	assert.Equal(t, first, *d.SellerAcceptedAt)
	assert.False(t, d.StampAcceptance(PartyNone, first))
}

func TestCloneAsNextVersion(t *testing.T) {
	d := newDealFixture()
	bill := "00003"
	d.BillNumber = &bill
	rejecter := d.BuyerCompanyID
	d.RejectedByCompanyID = &rejecter

	at := time.Now().UTC()
	next := d.CloneAsNextVersion(PartySeller, at)

	assert.Equal(t, d.DealID, next.DealID)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, uuid.Nil, next.ID)
	require.NotNil(t, next.ProposedByCompanyID)
	assert.Equal(t, d.SellerCompanyID, *next.ProposedByCompanyID)
	assert.NotNil(t, next.SellerAcceptedAt)
	assert.Nil(t, next.BuyerAcceptedAt)
	assert.Nil(t, next.RejectedByCompanyID)
	assert.Equal(t, VersionStateProposed, next.State())

	require.NotNil(t, next.BillNumber)
	assert.Equal(t, "00003", *next.BillNumber)
	*next.BillNumber = "changed"
	assert.Equal(t, "00003", *d.BillNumber)

	require.Len(t, next.Items, 1)
	assert.Equal(t, uuid.Nil, next.Items[0].ID)
	assert.Equal(t, "Steel beam", next.Items[0].Name)
}

func TestRecalculateTotal(t *testing.T) {
	d := newDealFixture()
	d.Items = append(d.Items, DealItem{
		Quantity:  decimal.RequireFromString("1.5"),
		UnitPrice: decimal.RequireFromString("10.333"),
		Amount:    LineAmount(decimal.RequireFromString("1.5"), decimal.RequireFromString("10.333")),
	})
	d.RecalculateTotal()
	assert.Equal(t, "215.50", d.TotalAmount.StringFixed(2))
}

func TestDealPatchApplyScalars(t *testing.T) {
	d := newDealFixture()
	comments := "counter-offer"
	status := DealStatusCompleted
	patch := &DealPatch{Comments: &comments, Status: &status}

	assert.False(t, patch.IsEmpty())
	patch.ApplyScalars(d)
	assert.Equal(t, "counter-offer", d.Comments)
	assert.Equal(t, DealStatusCompleted, d.Status)
	assert.Equal(t, "NOK", d.Currency)

	var empty *DealPatch
	assert.True(t, empty.IsEmpty())
}

func TestParseDocumentType(t *testing.T) {
	dt, ok := ParseDocumentType("supply_contract")
	assert.True(t, ok)
	assert.Equal(t, DocumentTypeSupplyContract, dt)

	_, ok = ParseDocumentType("receipt")
	assert.False(t, ok)
}

func TestDealSnapshotNormalizesValues(t *testing.T) {
	d := newDealFixture()
	snap := d.Snapshot()

	assert.Equal(t, "legacy_agreed", snap["state"])
	assert.Equal(t, "goods", snap["dealType"])
	assert.Equal(t, "0.00", snap["totalAmount"])
	assert.Nil(t, snap["proposedByCompanyId"])
	_, isString := snap["buyerAcceptedAt"].(string)
	assert.True(t, isString)
}
