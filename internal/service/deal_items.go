package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
)

// ProductCatalog is the external product catalog. Lookups return
// domain.ErrProductNotFound for unknown products.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByArticle(ctx context.Context, sellerID uuid.UUID, article string) (*domain.Product, error)
}

// CompanyDirectory is the external company directory. Lookups return
// domain.ErrCompanyNotFound for unknown companies.
type CompanyDirectory interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*domain.Company, error)
}

// resolveItems turns caller input into item snapshots. Catalog fields are
// copied at this point and never refreshed. All items must share one type,
// which is returned.
func resolveItems(ctx context.Context, catalog ProductCatalog, sellerID uuid.UUID, inputs []domain.DealItemInput) ([]domain.DealItem, domain.DealType, error) {
	if len(inputs) == 0 {
		return nil, "", fmt.Errorf("%w: a deal needs at least one item", ErrInvalidInput)
	}

	items := make([]domain.DealItem, 0, len(inputs))
	var dealType domain.DealType
	for i, in := range inputs {
		item, err := resolveItem(ctx, catalog, sellerID, in)
		if err != nil {
			return nil, "", fmt.Errorf("item %d: %w", i+1, err)
		}
		if dealType == "" {
			dealType = item.ItemType
		} else if item.ItemType != dealType {
			return nil, "", fmt.Errorf("%w: items mix %s and %s", ErrInvalidInput, dealType, item.ItemType)
		}
		item.Position = i
		items = append(items, item)
	}
	return items, dealType, nil
}

func resolveItem(ctx context.Context, catalog ProductCatalog, sellerID uuid.UUID, in domain.DealItemInput) (domain.DealItem, error) {
	if !in.Quantity.IsPositive() {
		return domain.DealItem{}, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return domain.DealItem{}, fmt.Errorf("%w: unit price cannot be negative", ErrInvalidInput)
	}

	var product *domain.Product
	var err error
	switch {
	case in.ProductID != nil:
		product, err = catalog.GetProduct(ctx, *in.ProductID)
	case in.Article != "" && in.Name == "":
		product, err = catalog.FindByArticle(ctx, sellerID, in.Article)
	default:
		return manualItem(in)
	}
	if errors.Is(err, domain.ErrProductNotFound) {
		return domain.DealItem{}, fmt.Errorf("%w: product not found in seller catalog", ErrInvalidInput)
	}
	if err != nil {
		return domain.DealItem{}, fmt.Errorf("failed to look up product: %w", err)
	}
	if product.CompanyID != sellerID {
		return domain.DealItem{}, fmt.Errorf("%w: product does not belong to the seller", ErrInvalidInput)
	}
	if in.ItemType != "" && in.ItemType != product.ItemType {
		return domain.DealItem{}, fmt.Errorf("%w: product %s is %s, not %s", ErrInvalidInput, product.Article, product.ItemType, in.ItemType)
	}

	price := product.Price
	if in.UnitPrice != nil {
		price = *in.UnitPrice
	}
	productID := product.ID
	return domain.DealItem{
		ProductID:   &productID,
		Name:        product.Name,
		Description: product.Description,
		Article:     product.Article,
		ItemType:    product.ItemType,
		Quantity:    in.Quantity,
		Unit:        product.Unit,
		UnitPrice:   price,
		Amount:      domain.LineAmount(in.Quantity, price),
	}, nil
}

func manualItem(in domain.DealItemInput) (domain.DealItem, error) {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if in.ItemType == "" {
		missing = append(missing, "itemType")
	}
	if strings.TrimSpace(in.Unit) == "" {
		missing = append(missing, "unit")
	}
	if in.UnitPrice == nil {
		missing = append(missing, "unitPrice")
	}
	if len(missing) > 0 {
		return domain.DealItem{}, fmt.Errorf("%w: manual item requires %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if !in.ItemType.IsValid() {
		return domain.DealItem{}, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, in.ItemType)
	}

	return domain.DealItem{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Article:     in.Article,
		ItemType:    in.ItemType,
		Quantity:    in.Quantity,
		Unit:        strings.TrimSpace(in.Unit),
		UnitPrice:   *in.UnitPrice,
		Amount:      domain.LineAmount(in.Quantity, *in.UnitPrice),
	}, nil
}

// checkDealType rejects items whose category differs from the deal's
func checkDealType(dealType, itemsType domain.DealType) error {
	if dealType != itemsType {
		return fmt.Errorf("%w: %s items cannot be added to a %s deal", ErrInvalidInput, itemsType, dealType)
	}
	return nil
}
