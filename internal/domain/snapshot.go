package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshotter is implemented by values recorded in deal history. Snapshot
// returns only JSON primitives: enums as strings, timestamps as RFC 3339,
// decimals as strings and UUIDs in canonical form.
type Snapshotter interface {
	Snapshot() map[string]any
}

// Fields is an ad hoc snapshot for changes that touch a few columns
type Fields map[string]any

// Snapshot implements Snapshotter
func (f Fields) Snapshot() map[string]any {
	return f
}

// Snapshot implements Snapshotter
func (d *Deal) Snapshot() map[string]any {
	items := make([]map[string]any, len(d.Items))
	for i := range d.Items {
		items[i] = d.Items[i].Snapshot()
	}
	return map[string]any{
		"dealId":               d.DealID.String(),
		"version":              d.Version,
		"state":                string(d.State()),
		"buyerCompanyId":       d.BuyerCompanyID.String(),
		"sellerCompanyId":      d.SellerCompanyID.String(),
		"buyerOrderNumber":     d.BuyerOrderNumber,
		"sellerOrderNumber":    d.SellerOrderNumber,
		"dealType":             string(d.DealType),
		"status":               string(d.Status),
		"totalAmount":          d.TotalAmount.StringFixed(2),
		"currency":             d.Currency,
		"billNumber":           stringOrNil(d.BillNumber),
		"billDate":             timeOrNil(d.BillDate),
		"contractNumber":       stringOrNil(d.ContractNumber),
		"contractDate":         timeOrNil(d.ContractDate),
		"supplyContractNumber": stringOrNil(d.SupplyContractNumber),
		"supplyContractDate":   timeOrNil(d.SupplyContractDate),
		"comments":             d.Comments,
		"deliveryAddress":      d.DeliveryAddress,
		"paymentTerms":         d.PaymentTerms,
		"deliveryDate":         timeOrNil(d.DeliveryDate),
		"proposedByCompanyId":  uuidOrNil(d.ProposedByCompanyID),
		"buyerAcceptedAt":      timeOrNil(d.BuyerAcceptedAt),
		"sellerAcceptedAt":     timeOrNil(d.SellerAcceptedAt),
		"rejectedByCompanyId":  uuidOrNil(d.RejectedByCompanyID),
		"rejectedAt":           timeOrNil(d.RejectedAt),
		"items":                items,
	}
}

// Snapshot implements Snapshotter
func (i *DealItem) Snapshot() map[string]any {
	return map[string]any{
		"productId": uuidOrNil(i.ProductID),
		"name":      i.Name,
		"article":   i.Article,
		"itemType":  string(i.ItemType),
		"quantity":  i.Quantity.String(),
		"unit":      i.Unit,
		"unitPrice": i.UnitPrice.StringFixed(2),
		"amount":    i.Amount.StringFixed(2),
		"position":  i.Position,
	}
}

// Snapshot implements Snapshotter
func (d *DealDocument) Snapshot() map[string]any {
	out := map[string]any{
		"id":             d.ID.String(),
		"documentType":   string(d.DocumentType),
		"documentNumber": d.DocumentNumber,
		"documentDate":   timeOrNil(d.DocumentDate),
		"sent":           d.Sent,
		"sentAt":         timeOrNil(d.SentAt),
	}
	if d.IsForm() {
		out["documentVersion"] = stringOrNil(d.DocumentVersion)
	} else {
		out["fileName"] = d.FileName
		out["contentType"] = d.ContentType
		out["size"] = d.Size
	}
	return out
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
