package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseModel with common fields. IDs are generated client side so the same
// models work against PostgreSQL and SQLite.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns a new UUID when none is set
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// DealType is the category shared by a deal and all of its items
type DealType string

const (
	DealTypeGoods    DealType = "goods"
	DealTypeServices DealType = "services"
)

// IsValid reports whether t is a known deal type
func (t DealType) IsValid() bool {
	return t == DealTypeGoods || t == DealTypeServices
}

// DealStatus represents the fulfilment status of a deal
type DealStatus string

const (
	DealStatusActive    DealStatus = "active"
	DealStatusCompleted DealStatus = "completed"
)

// IsValid reports whether s is a known deal status
func (s DealStatus) IsValid() bool {
	return s == DealStatusActive || s == DealStatusCompleted
}

// Company mirrors an entry of the external company directory
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	OrgNumber string    `gorm:"type:varchar(20);column:org_number" json:"orgNumber,omitempty"`
	IsActive  bool      `gorm:"not null;default:true;column:is_active" json:"isActive"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// Product mirrors an entry of a seller's product catalog
type Product struct {
	BaseModel
	CompanyID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_products_article,priority:1;column:company_id" json:"companyId"`
	Article     string          `gorm:"type:varchar(100);not null;index:idx_products_article,priority:2" json:"article"`
	Name        string          `gorm:"type:varchar(300);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	ItemType    DealType        `gorm:"type:varchar(20);not null;column:item_type" json:"itemType"`
	Unit        string          `gorm:"type:varchar(20);not null" json:"unit"`
	Price       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
}

// Deal is one version of a negotiated purchase order. Every version is its own
// row; DealID is the business identity shared by all of them.
type Deal struct {
	BaseModel
	DealID               uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_deals_deal_version,priority:1;column:deal_id"`
	Version              int             `gorm:"not null;uniqueIndex:idx_deals_deal_version,priority:2"`
	BuyerCompanyID       uuid.UUID       `gorm:"type:uuid;not null;index;column:buyer_company_id"`
	SellerCompanyID      uuid.UUID       `gorm:"type:uuid;not null;index;column:seller_company_id"`
	BuyerOrderNumber     string          `gorm:"type:varchar(20);not null;column:buyer_order_number"`
	SellerOrderNumber    string          `gorm:"type:varchar(20);not null;column:seller_order_number"`
	DealType             DealType        `gorm:"type:varchar(20);not null;column:deal_type"`
	Status               DealStatus      `gorm:"type:varchar(20);not null"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(15,2);not null;column:total_amount"`
	Currency             string          `gorm:"type:varchar(3);not null"`
	BillNumber           *string         `gorm:"type:varchar(50);column:bill_number"`
	BillDate             *time.Time      `gorm:"column:bill_date"`
	ContractNumber       *string         `gorm:"type:varchar(50);column:contract_number"`
	ContractDate         *time.Time      `gorm:"column:contract_date"`
	SupplyContractNumber *string         `gorm:"type:varchar(50);column:supply_contract_number"`
	SupplyContractDate   *time.Time      `gorm:"column:supply_contract_date"`
	Comments             string          `gorm:"type:text"`
	DeliveryAddress      string          `gorm:"type:varchar(500);column:delivery_address"`
	PaymentTerms         string          `gorm:"type:varchar(500);column:payment_terms"`
	DeliveryDate         *time.Time      `gorm:"column:delivery_date"`
	ProposedByCompanyID  *uuid.UUID      `gorm:"type:uuid;column:proposed_by_company_id"`
	BuyerAcceptedAt      *time.Time      `gorm:"column:buyer_accepted_at"`
	SellerAcceptedAt     *time.Time      `gorm:"column:seller_accepted_at"`
	RejectedByCompanyID  *uuid.UUID      `gorm:"type:uuid;column:rejected_by_company_id"`
	RejectedAt           *time.Time      `gorm:"column:rejected_at"`
	CreatedByCompanyID   uuid.UUID       `gorm:"type:uuid;not null;column:created_by_company_id"`
	Items                []DealItem      `gorm:"foreignKey:DealVersionID;constraint:OnDelete:CASCADE"`
}

// DealItem is a line item of one deal version. Product fields are a snapshot
// taken when the item was added.
type DealItem struct {
	BaseModel
	DealVersionID uuid.UUID       `gorm:"type:uuid;not null;index;column:deal_version_id"`
	ProductID     *uuid.UUID      `gorm:"type:uuid;column:product_id"`
	Name          string          `gorm:"type:varchar(300);not null"`
	Description   string          `gorm:"type:text"`
	Article       string          `gorm:"type:varchar(100)"`
	ItemType      DealType        `gorm:"type:varchar(20);not null;column:item_type"`
	Quantity      decimal.Decimal `gorm:"type:decimal(15,3);not null"`
	Unit          string          `gorm:"type:varchar(20);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(15,2);not null;column:unit_price"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Position      int             `gorm:"not null"`
}

// HistoryChangeType tags a deal history record
type HistoryChangeType string

const (
	ChangeCreated         HistoryChangeType = "created"
	ChangeUpdated         HistoryChangeType = "updated"
	ChangeItemsReplaced   HistoryChangeType = "items_replaced"
	ChangeVersionCreated  HistoryChangeType = "version_created"
	ChangeVersionAccepted HistoryChangeType = "version_accepted"
	ChangeVersionRejected HistoryChangeType = "version_rejected"
	ChangeVersionDeleted  HistoryChangeType = "version_deleted"
	ChangeNumberAssigned  HistoryChangeType = "number_assigned"
	ChangeDocumentAdded   HistoryChangeType = "document_added"
	ChangeDocumentDeleted HistoryChangeType = "document_deleted"
	ChangeDocumentSent    HistoryChangeType = "document_sent"
	ChangeFormSaved       HistoryChangeType = "form_saved"
)

// DealHistory is an append-only audit record of one mutation
type DealHistory struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	DealVersionID  uuid.UUID         `gorm:"type:uuid;not null;index;column:deal_version_id"`
	DealID         uuid.UUID         `gorm:"type:uuid;not null;index;column:deal_id"`
	Version        int               `gorm:"not null"`
	ActorCompanyID uuid.UUID         `gorm:"type:uuid;not null;column:actor_company_id"`
	ChangeType     HistoryChangeType `gorm:"type:varchar(50);not null;column:change_type"`
	Description    string            `gorm:"type:text;not null"`
	OldValues      *string           `gorm:"type:text;column:old_values"`
	NewValues      *string           `gorm:"type:text;column:new_values"`
	CreatedAt      time.Time         `gorm:"not null"`
}

// TableName overrides the default table name to match the migration
func (DealHistory) TableName() string {
	return "deal_history"
}

// BeforeCreate assigns a new UUID when none is set
func (h *DealHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// DocumentType is the fixed set of documents a deal can carry
type DocumentType string

const (
	DocumentTypeOrder          DocumentType = "order"
	DocumentTypeInvoice        DocumentType = "invoice"
	DocumentTypeBill           DocumentType = "bill"
	DocumentTypeContract       DocumentType = "contract"
	DocumentTypeSupplyContract DocumentType = "supply_contract"
	DocumentTypeSpecification  DocumentType = "specification"
	DocumentTypeAcceptanceAct  DocumentType = "acceptance_act"
	DocumentTypeWaybill        DocumentType = "waybill"
	DocumentTypeOther          DocumentType = "other"
)

// DocumentTypes lists every accepted document type
var DocumentTypes = []DocumentType{
	DocumentTypeOrder,
	DocumentTypeInvoice,
	DocumentTypeBill,
	DocumentTypeContract,
	DocumentTypeSupplyContract,
	DocumentTypeSpecification,
	DocumentTypeAcceptanceAct,
	DocumentTypeWaybill,
	DocumentTypeOther,
}

// ParseDocumentType validates a raw document type
func ParseDocumentType(s string) (DocumentType, bool) {
	for _, t := range DocumentTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// FormDocumentNumber marks a deal_documents row as a form draft
const FormDocumentNumber = "-"

// DefaultFormVersion is used when a form is saved without a version and none exists yet
const DefaultFormVersion = "v1"

// DealDocument is either an uploaded file (StorageKey set) or a JSON form
// draft (DocumentNumber "-", StorageKey nil).
type DealDocument struct {
	BaseModel
	DealVersionID       uuid.UUID    `gorm:"type:uuid;not null;index;column:deal_version_id"`
	DocumentType        DocumentType `gorm:"type:varchar(50);not null;column:document_type"`
	DocumentNumber      string       `gorm:"type:varchar(100);not null;column:document_number"`
	DocumentDate        *time.Time   `gorm:"column:document_date"`
	StorageKey          *string      `gorm:"type:varchar(500);column:storage_key"`
	FileName            string       `gorm:"type:varchar(255);column:file_name"`
	ContentType         string       `gorm:"type:varchar(100);column:content_type"`
	Size                int64        `gorm:"not null;default:0"`
	Sent                bool         `gorm:"not null;default:false"`
	SentAt              *time.Time   `gorm:"column:sent_at"`
	UploadedByCompanyID *uuid.UUID   `gorm:"type:uuid;column:uploaded_by_company_id"`
	DocumentContent     *string      `gorm:"type:text;column:document_content"`
	DocumentVersion     *string      `gorm:"type:varchar(20);column:document_version"`
	UpdatedByCompanyID  *uuid.UUID   `gorm:"type:uuid;column:updated_by_company_id"`
}

// IsForm reports whether the row is a form draft rather than a file
func (d *DealDocument) IsForm() bool {
	return d.StorageKey == nil && d.DocumentNumber == FormDocumentNumber
}

// SequenceDomain is one of the independently numbered counters
type SequenceDomain string

const (
	SequenceBuyerOrder     SequenceDomain = "buyer_order"
	SequenceSellerOrder    SequenceDomain = "seller_order"
	SequenceBill           SequenceDomain = "bill"
	SequenceContract       SequenceDomain = "contract"
	SequenceSupplyContract SequenceDomain = "supply_contract"
)

// IsValid reports whether d is a known sequence domain
func (d SequenceDomain) IsValid() bool {
	switch d {
	case SequenceBuyerOrder, SequenceSellerOrder, SequenceBill, SequenceContract, SequenceSupplyContract:
		return true
	}
	return false
}

// NumberSequence is the atomic counter for one (company, domain, year) scope
type NumberSequence struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	CompanyID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_number_sequences_scope,priority:1;column:company_id"`
	Domain       SequenceDomain `gorm:"type:varchar(30);not null;uniqueIndex:idx_number_sequences_scope,priority:2"`
	Year         int            `gorm:"not null;uniqueIndex:idx_number_sequences_scope,priority:3"`
	LastSequence int            `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

// BeforeCreate assigns a new UUID when none is set
func (s *NumberSequence) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// PendingObjectDeletion is a storage key whose post-commit delete failed
type PendingObjectDeletion struct {
	BaseModel
	StorageKey string `gorm:"type:varchar(500);not null;uniqueIndex;column:storage_key"`
	Attempts   int    `gorm:"not null;default:0"`
	LastError  string `gorm:"type:text;column:last_error"`
}
