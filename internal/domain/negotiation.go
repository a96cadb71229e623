package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VersionState is the negotiation state of one deal version, derived from
// its negotiation fields.
type VersionState string

const (
	// VersionStateLegacyAgreed is an unnegotiated version (proposer unset), agreed on creation
	VersionStateLegacyAgreed VersionState = "legacy_agreed"
	VersionStateProposed     VersionState = "proposed"
	VersionStateAgreed       VersionState = "agreed"
	VersionStateRejected     VersionState = "rejected"
)

// PartyRole is a company's side of a deal
type PartyRole string

const (
	PartyNone   PartyRole = ""
	PartyBuyer  PartyRole = "buyer"
	PartySeller PartyRole = "seller"
)

// IsRejected reports whether either party rejected this version
func (d *Deal) IsRejected() bool {
	return d.RejectedByCompanyID != nil
}

// IsAgreed reports whether the version is binding: not rejected and either
// accepted by both sides or never put up for negotiation.
func (d *Deal) IsAgreed() bool {
	if d.IsRejected() {
		return false
	}
	if d.ProposedByCompanyID == nil {
		return true
	}
	return d.BuyerAcceptedAt != nil && d.SellerAcceptedAt != nil
}

// State derives the negotiation state
func (d *Deal) State() VersionState {
	switch {
	case d.IsRejected():
		return VersionStateRejected
	case d.ProposedByCompanyID == nil:
		return VersionStateLegacyAgreed
	case d.BuyerAcceptedAt != nil && d.SellerAcceptedAt != nil:
		return VersionStateAgreed
	default:
		return VersionStateProposed
	}
}

// RoleOf returns the side companyID is on, or PartyNone
func (d *Deal) RoleOf(companyID uuid.UUID) PartyRole {
	switch companyID {
	case d.BuyerCompanyID:
		return PartyBuyer
	case d.SellerCompanyID:
		return PartySeller
	}
	return PartyNone
}

// Counterparty returns the company on the other side of role
func (d *Deal) Counterparty(role PartyRole) uuid.UUID {
	if role == PartyBuyer {
		return d.SellerCompanyID
	}
	return d.BuyerCompanyID
}

// AcceptedAt returns the acceptance timestamp of role
func (d *Deal) AcceptedAt(role PartyRole) *time.Time {
	switch role {
	case PartyBuyer:
		return d.BuyerAcceptedAt
	case PartySeller:
		return d.SellerAcceptedAt
	}
	return nil
}

// StampAcceptance records role's acceptance at the given time. It returns false
// and leaves the version untouched when that side had already accepted.
func (d *Deal) StampAcceptance(role PartyRole, at time.Time) bool {
	if d.AcceptedAt(role) != nil {
		return false
	}
	t := at
	switch role {
	case PartyBuyer:
		d.BuyerAcceptedAt = &t
	case PartySeller:
		d.SellerAcceptedAt = &t
	default:
		return false
	}
	return true
}

// CloneAsNextVersion copies the scalar fields and items of d into a new,
// unsaved version proposed by the company on the given side. The proposer is
// stamped as accepted; the counterparty and any rejection are cleared.
func (d *Deal) CloneAsNextVersion(proposer PartyRole, at time.Time) *Deal {
	proposerID := d.BuyerCompanyID
	if proposer == PartySeller {
		proposerID = d.SellerCompanyID
	}

	next := &Deal{
		DealID:               d.DealID,
		Version:              d.Version + 1,
		BuyerCompanyID:       d.BuyerCompanyID,
		SellerCompanyID:      d.SellerCompanyID,
		BuyerOrderNumber:     d.BuyerOrderNumber,
		SellerOrderNumber:    d.SellerOrderNumber,
		DealType:             d.DealType,
		Status:               d.Status,
		TotalAmount:          d.TotalAmount,
		Currency:             d.Currency,
		BillNumber:           copyString(d.BillNumber),
		BillDate:             copyTime(d.BillDate),
		ContractNumber:       copyString(d.ContractNumber),
		ContractDate:         copyTime(d.ContractDate),
		SupplyContractNumber: copyString(d.SupplyContractNumber),
		SupplyContractDate:   copyTime(d.SupplyContractDate),
		Comments:             d.Comments,
		DeliveryAddress:      d.DeliveryAddress,
		PaymentTerms:         d.PaymentTerms,
		DeliveryDate:         copyTime(d.DeliveryDate),
		ProposedByCompanyID:  &proposerID,
		CreatedByCompanyID:   proposerID,
	}
	next.StampAcceptance(proposer, at)

	next.Items = make([]DealItem, len(d.Items))
	for i, item := range d.Items {
		next.Items[i] = item.Clone()
	}
	return next
}

// Clone copies an item without its identity or owning version
func (i DealItem) Clone() DealItem {
	var productID *uuid.UUID
	if i.ProductID != nil {
		id := *i.ProductID
		productID = &id
	}
	return DealItem{
		ProductID:   productID,
		Name:        i.Name,
		Description: i.Description,
		Article:     i.Article,
		ItemType:    i.ItemType,
		Quantity:    i.Quantity,
		Unit:        i.Unit,
		UnitPrice:   i.UnitPrice,
		Amount:      i.Amount,
		Position:    i.Position,
	}
}

// LineAmount is quantity times unit price, rounded to cents
func LineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

// RecalculateTotal sets TotalAmount to the sum of the item amounts
func (d *Deal) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Amount)
	}
	d.TotalAmount = total
}

// NumberKind is a document number that can be assigned to a deal after creation
type NumberKind string

const (
	NumberKindBill           NumberKind = "bill"
	NumberKindContract       NumberKind = "contract"
	NumberKindSupplyContract NumberKind = "supply_contract"
)

// SequenceDomain maps the kind to its counter
func (k NumberKind) SequenceDomain() SequenceDomain {
	switch k {
	case NumberKindBill:
		return SequenceBill
	case NumberKindContract:
		return SequenceContract
	case NumberKindSupplyContract:
		return SequenceSupplyContract
	}
	return ""
}

// AssignedNumber returns the number of the given kind, if set
func (d *Deal) AssignedNumber(kind NumberKind) *string {
	switch kind {
	case NumberKindBill:
		return d.BillNumber
	case NumberKindContract:
		return d.ContractNumber
	case NumberKindSupplyContract:
		return d.SupplyContractNumber
	}
	return nil
}

// SetNumber stores a number and its date for the given kind
func (d *Deal) SetNumber(kind NumberKind, number string, date time.Time) {
	n, t := number, date
	switch kind {
	case NumberKindBill:
		d.BillNumber, d.BillDate = &n, &t
	case NumberKindContract:
		d.ContractNumber, d.ContractDate = &n, &t
	case NumberKindSupplyContract:
		d.SupplyContractNumber, d.SupplyContractDate = &n, &t
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
