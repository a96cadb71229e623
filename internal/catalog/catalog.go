package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/metrics"
	"go.uber.org/zap"
)

const (
	SourceDatabase  = "database"
	SourceWarehouse = "warehouse"

	defaultSyncBatchSize = 500
)

// Source answers product lookups for line items
type Source interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByArticle(ctx context.Context, sellerID uuid.UUID, article string) (*domain.Product, error)
}

// Select returns the catalog for the configured source. The warehouse source
// requires a connected warehouse.
func Select(source string, local Source, warehouse *WarehouseCatalog) (Source, error) {
	switch source {
	case "", SourceDatabase:
		return local, nil
	case SourceWarehouse:
		if warehouse == nil {
			return nil, fmt.Errorf("catalog source %q requires an enabled warehouse connection", source)
		}
		return warehouse, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", source)
	}
}

// ProductLister pages through a remote catalog
type ProductLister interface {
	ListProducts(ctx context.Context, after uuid.UUID, limit int) ([]domain.Product, error)
}

// ProductStore is the local products mirror
type ProductStore interface {
	Upsert(ctx context.Context, product *domain.Product) error
}

// Syncer copies the warehouse catalog into the local products table so the
// database source stays current.
type Syncer struct {
	source    ProductLister
	store     ProductStore
	logger    *zap.Logger
	batchSize int
}

func NewSyncer(source ProductLister, store ProductStore, logger *zap.Logger) *Syncer {
	return &Syncer{
		source:    source,
		store:     store,
		logger:    logger,
		batchSize: defaultSyncBatchSize,
	}
}

// WithBatchSize sets the page size used when reading the warehouse
func (s *Syncer) WithBatchSize(n int) *Syncer {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// SyncProducts mirrors every warehouse product. Products with an unknown item
// type or that fail to save are counted as failed and skipped.
func (s *Syncer) SyncProducts(ctx context.Context) (synced int, failed int, err error) {
	start := time.Now()
	after := uuid.Nil

	for {
		page, err := s.source.ListProducts(ctx, after, s.batchSize)
		if err != nil {
			return synced, failed, fmt.Errorf("failed to read products after %s: %w", after, err)
		}

		for i := range page {
			product := &page[i]
			if !product.ItemType.IsValid() {
				s.logger.Warn("Skipping product with unknown item type",
					zap.String("product_id", product.ID.String()),
					zap.String("item_type", string(product.ItemType)))
				failed++
				metrics.CatalogProductsSynced.WithLabelValues("skipped").Inc()
				continue
			}

			product.UpdatedAt = time.Now()
			if err := s.store.Upsert(ctx, product); err != nil {
				s.logger.Warn("Failed to save product",
					zap.String("product_id", product.ID.String()),
					zap.Error(err))
				failed++
				metrics.CatalogProductsSynced.WithLabelValues("error").Inc()
				continue
			}
			synced++
			metrics.CatalogProductsSynced.WithLabelValues("ok").Inc()
		}

		if len(page) < s.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	s.logger.Info("Catalog sync finished",
		zap.Int("synced", synced),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
	return synced, failed, nil
}
