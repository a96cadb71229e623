package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/service"
	"github.com/straye-as/deal-engine/internal/storage"
	"github.com/straye-as/deal-engine/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// memoryStorage is an in-process object store with switchable failures
type memoryStorage struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failUpload  bool
	failDelete  bool
	deleteCalls int
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(ctx context.Context, key, contentType string, data io.Reader) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpload {
		return 0, errors.New("upload unavailable")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	m.objects[key] = b
	return int64(len(b)), nil
}

func (m *memoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.failDelete {
		return errors.New("delete unavailable")
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type fixture struct {
	db        *gorm.DB
	store     *memoryStorage
	deals     *service.DealService
	documents *service.DocumentService
	forms     *service.DocumentFormService
	numbers   *service.NumberSequenceService
	cleanup   *service.ObjectCleanupService
	access    *service.DealAccessService
	buyer     *domain.Company
	seller    *domain.Company
	outsider  *domain.Company
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, config.NegotiationConfig{VersionRetryAttempts: 3, VersionRetryBaseDelayMs: 1})
}

func newFixtureWith(t *testing.T, negotiation config.NegotiationConfig) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	store := newMemoryStorage()

	dealRepo := repository.NewDealRepository(db)
	itemRepo := repository.NewDealItemRepository(db)
	docRepo := repository.NewDealDocumentRepository(db)
	history := service.NewHistoryRecorder(repository.NewDealHistoryRepository(db))
	numbers := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger)
	access := service.NewDealAccessService(dealRepo)
	cleanup := service.NewObjectCleanupService(store, repository.NewPendingDeletionRepository(db), logger)

	return &fixture{
		db:    db,
		store: store,
		deals: service.NewDealService(dealRepo, itemRepo, docRepo, history, numbers, access,
			repository.NewProductRepository(db), repository.NewCompanyRepository(db), cleanup, negotiation, logger, db),
		documents: service.NewDocumentService(dealRepo, docRepo, history, access, store, cleanup, logger, db),
		forms:     service.NewDocumentFormService(dealRepo, docRepo, history, access, logger, db),
		numbers:   numbers,
		cleanup:   cleanup,
		access:    access,
		buyer:     testutil.CreateTestCompany(t, db, "Buyer AS"),
		seller:    testutil.CreateTestCompany(t, db, "Seller AS"),
		outsider:  testutil.CreateTestCompany(t, db, "Outsider AS"),
	}
}

// placeOrder creates a deal as the buyer with one goods item (2 x 100)
func (f *fixture) placeOrder(t *testing.T) *domain.Deal {
	t.Helper()
	deal, err := f.deals.CreateOrder(context.Background(), f.buyer.ID, &domain.CreateDealRequest{
		BuyerCompanyID:  f.buyer.ID,
		SellerCompanyID: f.seller.ID,
		Items:           []domain.DealItemInput{testutil.ManualItem("Steel beam", domain.DealTypeGoods, "2", "100")},
	})
	require.NoError(t, err)
	return deal
}

func (f *fixture) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func strPtr(s string) *string {
	return &s
}
