package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealItemInput describes a line item as submitted by a caller. An item
// references a catalog product by ID, by article (resolved in the seller's
// catalog), or is entered manually with all snapshot fields.
type DealItemInput struct {
	ProductID   *uuid.UUID       `json:"productId,omitempty"`
	Article     string           `json:"article,omitempty" validate:"max=100"`
	Name        string           `json:"name,omitempty" validate:"max=300"`
	Description string           `json:"description,omitempty"`
	ItemType    DealType         `json:"itemType,omitempty" validate:"omitempty,oneof=goods services"`
	Quantity    decimal.Decimal  `json:"quantity" swaggertype:"string"`
	Unit        string           `json:"unit,omitempty" validate:"max=20"`
	UnitPrice   *decimal.Decimal `json:"unitPrice,omitempty" swaggertype:"string"`
}

// DealPatch is a partial update of a deal version. Nil fields are left as
// they are; Items, when set, replaces the whole item list.
type DealPatch struct {
	DealType        *DealType        `json:"dealType,omitempty" validate:"omitempty,oneof=goods services"`
	Status          *DealStatus      `json:"status,omitempty" validate:"omitempty,oneof=active completed"`
	Currency        *string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Comments        *string          `json:"comments,omitempty"`
	DeliveryAddress *string          `json:"deliveryAddress,omitempty" validate:"omitempty,max=500"`
	PaymentTerms    *string          `json:"paymentTerms,omitempty" validate:"omitempty,max=500"`
	DeliveryDate    *time.Time       `json:"deliveryDate,omitempty"`
	Items           *[]DealItemInput `json:"items,omitempty" validate:"omitempty,dive"`
}

// IsEmpty reports whether the patch changes nothing
func (p *DealPatch) IsEmpty() bool {
	return p == nil || (p.DealType == nil && p.Status == nil && p.Currency == nil &&
		p.Comments == nil && p.DeliveryAddress == nil && p.PaymentTerms == nil &&
		p.DeliveryDate == nil && p.Items == nil)
}

// ApplyScalars copies the non-nil scalar fields onto d. Items are handled by
// the caller because they need catalog resolution.
func (p *DealPatch) ApplyScalars(d *Deal) {
	if p == nil {
		return
	}
	if p.DealType != nil {
		d.DealType = *p.DealType
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Currency != nil {
		d.Currency = *p.Currency
	}
	if p.Comments != nil {
		d.Comments = *p.Comments
	}
	if p.DeliveryAddress != nil {
		d.DeliveryAddress = *p.DeliveryAddress
	}
	if p.PaymentTerms != nil {
		d.PaymentTerms = *p.PaymentTerms
	}
	if p.DeliveryDate != nil {
		t := *p.DeliveryDate
		d.DeliveryDate = &t
	}
}
