package repository

import (
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string // API field name
	Order SortOrder
}

// DefaultSortConfig returns a default sort configuration (updated_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{Field: "updatedAt", Order: SortOrderDesc}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause maps an API sort field to a whitelisted column.
// Unknown fields fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}
	if config.Order == SortOrderAsc {
		return column + " ASC"
	}
	return column + " DESC"
}

// NormalizePage clamps page and page size to sane bounds
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ApplyPartyScope restricts a deals query to rows where companyID is the
// buyer, the seller, or either side when role is PartyNone.
func ApplyPartyScope(query *gorm.DB, companyID uuid.UUID, role domain.PartyRole) *gorm.DB {
	switch role {
	case domain.PartyBuyer:
		return query.Where("deals.buyer_company_id = ?", companyID)
	case domain.PartySeller:
		return query.Where("deals.seller_company_id = ?", companyID)
	default:
		return query.Where("(deals.buyer_company_id = ? OR deals.seller_company_id = ?)", companyID, companyID)
	}
}
