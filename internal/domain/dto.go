package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API responses. Timestamps are ISO 8601 strings.

type DealDTO struct {
	ID                   uuid.UUID       `json:"id"`
	DealID               uuid.UUID       `json:"dealId"`
	Version              int             `json:"version"`
	State                VersionState    `json:"state"`
	BuyerCompanyID       uuid.UUID       `json:"buyerCompanyId"`
	SellerCompanyID      uuid.UUID       `json:"sellerCompanyId"`
	BuyerOrderNumber     string          `json:"buyerOrderNumber"`
	SellerOrderNumber    string          `json:"sellerOrderNumber"`
	DealType             DealType        `json:"dealType"`
	Status               DealStatus      `json:"status"`
	TotalAmount          decimal.Decimal `json:"totalAmount" swaggertype:"string"`
	Currency             string          `json:"currency"`
	BillNumber           *string         `json:"billNumber,omitempty"`
	BillDate             *string         `json:"billDate,omitempty"`
	ContractNumber       *string         `json:"contractNumber,omitempty"`
	ContractDate         *string         `json:"contractDate,omitempty"`
	SupplyContractNumber *string         `json:"supplyContractNumber,omitempty"`
	SupplyContractDate   *string         `json:"supplyContractDate,omitempty"`
	Comments             string          `json:"comments,omitempty"`
	DeliveryAddress      string          `json:"deliveryAddress,omitempty"`
	PaymentTerms         string          `json:"paymentTerms,omitempty"`
	DeliveryDate         *string         `json:"deliveryDate,omitempty"`
	ProposedByCompanyID  *uuid.UUID      `json:"proposedByCompanyId,omitempty"`
	BuyerAcceptedAt      *string         `json:"buyerAcceptedAt,omitempty"`
	SellerAcceptedAt     *string         `json:"sellerAcceptedAt,omitempty"`
	RejectedByCompanyID  *uuid.UUID      `json:"rejectedByCompanyId,omitempty"`
	RejectedAt           *string         `json:"rejectedAt,omitempty"`
	CreatedByCompanyID   uuid.UUID       `json:"createdByCompanyId"`
	Items                []DealItemDTO   `json:"items"`
	CreatedAt            string          `json:"createdAt"`
	UpdatedAt            string          `json:"updatedAt"`
}

type DealItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   *uuid.UUID      `json:"productId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Article     string          `json:"article,omitempty"`
	ItemType    DealType        `json:"itemType"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unitPrice" swaggertype:"string"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string"`
	Position    int             `json:"position"`
}

// DealVersionSummaryDTO is one row of the version comparison list
type DealVersionSummaryDTO struct {
	ID                  uuid.UUID       `json:"id"`
	Version             int             `json:"version"`
	State               VersionState    `json:"state"`
	TotalAmount         decimal.Decimal `json:"totalAmount" swaggertype:"string"`
	ProposedByCompanyID *uuid.UUID      `json:"proposedByCompanyId,omitempty"`
	BuyerAcceptedAt     *string         `json:"buyerAcceptedAt,omitempty"`
	SellerAcceptedAt    *string         `json:"sellerAcceptedAt,omitempty"`
	RejectedByCompanyID *uuid.UUID      `json:"rejectedByCompanyId,omitempty"`
	CreatedAt           string          `json:"createdAt"`
}

type DealHistoryDTO struct {
	ID             uuid.UUID         `json:"id"`
	Version        int               `json:"version"`
	ActorCompanyID uuid.UUID         `json:"actorCompanyId"`
	ChangeType     HistoryChangeType `json:"changeType"`
	Description    string            `json:"description"`
	OldValues      json.RawMessage   `json:"oldValues,omitempty" swaggertype:"object"`
	NewValues      json.RawMessage   `json:"newValues,omitempty" swaggertype:"object"`
	CreatedAt      string            `json:"createdAt"`
}

type DealDocumentDTO struct {
	ID                  uuid.UUID    `json:"id"`
	DealVersionID       uuid.UUID    `json:"dealVersionId"`
	DocumentType        DocumentType `json:"documentType"`
	DocumentNumber      string       `json:"documentNumber"`
	DocumentDate        *string      `json:"documentDate,omitempty"`
	FileName            string       `json:"fileName"`
	ContentType         string       `json:"contentType"`
	Size                int64        `json:"size"`
	Sent                bool         `json:"sent"`
	SentAt              *string      `json:"sentAt,omitempty"`
	UploadedByCompanyID *uuid.UUID   `json:"uploadedByCompanyId,omitempty"`
	CreatedAt           string       `json:"createdAt"`
}

// DocumentFormDTO is a JSON form draft. Exists is false when no draft has
// been saved and Content is the empty default.
type DocumentFormDTO struct {
	DocumentType       DocumentType    `json:"documentType"`
	DocumentVersion    string          `json:"documentVersion"`
	Content            json.RawMessage `json:"content" swaggertype:"object"`
	Exists             bool            `json:"exists"`
	UpdatedByCompanyID *uuid.UUID      `json:"updatedByCompanyId,omitempty"`
	UpdatedAt          *string         `json:"updatedAt,omitempty"`
}

type NumberSequenceDTO struct {
	CompanyID    uuid.UUID      `json:"companyId"`
	Domain       SequenceDomain `json:"domain"`
	Year         int            `json:"year"`
	LastSequence int            `json:"lastSequence"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

// CreateDealRequest places a new order. The caller must be the buyer or the seller.
type CreateDealRequest struct {
	BuyerCompanyID  uuid.UUID       `json:"buyerCompanyId" validate:"required"`
	SellerCompanyID uuid.UUID       `json:"sellerCompanyId" validate:"required"`
	DealType        DealType        `json:"dealType,omitempty" validate:"omitempty,oneof=goods services"`
	Currency        string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Comments        string          `json:"comments,omitempty"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty" validate:"max=500"`
	PaymentTerms    string          `json:"paymentTerms,omitempty" validate:"max=500"`
	DeliveryDate    *time.Time      `json:"deliveryDate,omitempty"`
	Items           []DealItemInput `json:"items" validate:"required,min=1,dive"`
}

// AssignNumberRequest assigns a bill, contract or supply contract number.
// Without Number the next number of the seller's sequence is used.
type AssignNumberRequest struct {
	Number *string    `json:"number,omitempty" validate:"omitempty,min=1,max=50"`
	Date   *time.Time `json:"date,omitempty"`
}

// DealListFilters narrows the deal list of a company
type DealListFilters struct {
	Role     PartyRole
	Status   *DealStatus
	DealType *DealType
}
