package mapper

import (
	"encoding/json"
	"time"

	"github.com/straye-as/deal-engine/internal/domain"
)

const timestampFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToDealDTO converts one deal version with its items to DealDTO
func ToDealDTO(deal *domain.Deal) domain.DealDTO {
	items := make([]domain.DealItemDTO, len(deal.Items))
	for i := range deal.Items {
		items[i] = ToDealItemDTO(&deal.Items[i])
	}

	return domain.DealDTO{
		ID:                   deal.ID,
		DealID:               deal.DealID,
		Version:              deal.Version,
		State:                deal.State(),
		BuyerCompanyID:       deal.BuyerCompanyID,
		SellerCompanyID:      deal.SellerCompanyID,
		BuyerOrderNumber:     deal.BuyerOrderNumber,
		SellerOrderNumber:    deal.SellerOrderNumber,
		DealType:             deal.DealType,
		Status:               deal.Status,
		TotalAmount:          deal.TotalAmount,
		Currency:             deal.Currency,
		BillNumber:           deal.BillNumber,
		BillDate:             formatTimePtr(deal.BillDate),
		ContractNumber:       deal.ContractNumber,
		ContractDate:         formatTimePtr(deal.ContractDate),
		SupplyContractNumber: deal.SupplyContractNumber,
		SupplyContractDate:   formatTimePtr(deal.SupplyContractDate),
		Comments:             deal.Comments,
		DeliveryAddress:      deal.DeliveryAddress,
		PaymentTerms:         deal.PaymentTerms,
		DeliveryDate:         formatTimePtr(deal.DeliveryDate),
		ProposedByCompanyID:  deal.ProposedByCompanyID,
		BuyerAcceptedAt:      formatTimePtr(deal.BuyerAcceptedAt),
		SellerAcceptedAt:     formatTimePtr(deal.SellerAcceptedAt),
		RejectedByCompanyID:  deal.RejectedByCompanyID,
		RejectedAt:           formatTimePtr(deal.RejectedAt),
		CreatedByCompanyID:   deal.CreatedByCompanyID,
		Items:                items,
		CreatedAt:            formatTime(deal.CreatedAt),
		UpdatedAt:            formatTime(deal.UpdatedAt),
	}
}

// ToDealDTOs converts a list of deal versions
func ToDealDTOs(deals []domain.Deal) []domain.DealDTO {
	dtos := make([]domain.DealDTO, len(deals))
	for i := range deals {
		dtos[i] = ToDealDTO(&deals[i])
	}
	return dtos
}

// ToDealItemDTO converts DealItem to DealItemDTO
func ToDealItemDTO(item *domain.DealItem) domain.DealItemDTO {
	return domain.DealItemDTO{
		ID:          item.ID,
		ProductID:   item.ProductID,
		Name:        item.Name,
		Description: item.Description,
		Article:     item.Article,
		ItemType:    item.ItemType,
		Quantity:    item.Quantity,
		Unit:        item.Unit,
		UnitPrice:   item.UnitPrice,
		Amount:      item.Amount,
		Position:    item.Position,
	}
}

// ToDealVersionSummaryDTO converts a version row for the version list
func ToDealVersionSummaryDTO(deal *domain.Deal) domain.DealVersionSummaryDTO {
	return domain.DealVersionSummaryDTO{
		ID:                  deal.ID,
		Version:             deal.Version,
		State:               deal.State(),
		TotalAmount:         deal.TotalAmount,
		ProposedByCompanyID: deal.ProposedByCompanyID,
		BuyerAcceptedAt:     formatTimePtr(deal.BuyerAcceptedAt),
		SellerAcceptedAt:    formatTimePtr(deal.SellerAcceptedAt),
		RejectedByCompanyID: deal.RejectedByCompanyID,
		CreatedAt:           formatTime(deal.CreatedAt),
	}
}

// ToDealHistoryDTO converts DealHistory to DealHistoryDTO. Snapshots are
// passed through as raw JSON.
func ToDealHistoryDTO(h *domain.DealHistory) domain.DealHistoryDTO {
	dto := domain.DealHistoryDTO{
		ID:             h.ID,
		Version:        h.Version,
		ActorCompanyID: h.ActorCompanyID,
		ChangeType:     h.ChangeType,
		Description:    h.Description,
		CreatedAt:      formatTime(h.CreatedAt),
	}
	if h.OldValues != nil {
		dto.OldValues = json.RawMessage(*h.OldValues)
	}
	if h.NewValues != nil {
		dto.NewValues = json.RawMessage(*h.NewValues)
	}
	return dto
}

// ToDealDocumentDTO converts an uploaded file to DealDocumentDTO
func ToDealDocumentDTO(doc *domain.DealDocument) domain.DealDocumentDTO {
	return domain.DealDocumentDTO{
		ID:                  doc.ID,
		DealVersionID:       doc.DealVersionID,
		DocumentType:        doc.DocumentType,
		DocumentNumber:      doc.DocumentNumber,
		DocumentDate:        formatTimePtr(doc.DocumentDate),
		FileName:            doc.FileName,
		ContentType:         doc.ContentType,
		Size:                doc.Size,
		Sent:                doc.Sent,
		SentAt:              formatTimePtr(doc.SentAt),
		UploadedByCompanyID: doc.UploadedByCompanyID,
		CreatedAt:           formatTime(doc.CreatedAt),
	}
}
