package testutil

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/deal-engine/internal/database"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB returns a migrated database for one test. By default this is a
// private in-memory SQLite database; set TEST_POSTGRES_DSN to run against
// PostgreSQL instead (row locks are only enforced there).
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	var dialector gorm.Dialector
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		// shared cache so every pooled connection sees the same database
		dialector = sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()))
	}

	db, err := gorm.Open(dialector, database.Options())
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if os.Getenv("TEST_POSTGRES_DSN") != "" {
			CleanupTestData(t, db)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CleanupTestData empties every table, children first
func CleanupTestData(t *testing.T, db *gorm.DB) {
	tables := []string{
		"deal_history",
		"deal_documents",
		"deal_items",
		"deals",
		"number_sequences",
		"pending_object_deletions",
		"products",
		"companies",
	}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("Note: could not clean table %s: %v", table, err)
		}
	}
}

// CreateTestCompany inserts an active company
func CreateTestCompany(t *testing.T, db *gorm.DB, name string) *domain.Company {
	t.Helper()
	company := &domain.Company{ID: uuid.New(), Name: name, IsActive: true}
	require.NoError(t, db.Create(company).Error)
	return company
}

// CreateTestProduct inserts a catalog product for a seller
func CreateTestProduct(t *testing.T, db *gorm.DB, sellerID uuid.UUID, article string, itemType domain.DealType, price string) *domain.Product {
	t.Helper()
	product := &domain.Product{
		CompanyID: sellerID,
		Article:   article,
		Name:      "Product " + article,
		ItemType:  itemType,
		Unit:      "pcs",
		Price:     decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

// ManualItem builds a manual line item input
func ManualItem(name string, itemType domain.DealType, qty, price string) domain.DealItemInput {
	p := decimal.RequireFromString(price)
	return domain.DealItemInput{
		Name:      name,
		ItemType:  itemType,
		Quantity:  decimal.RequireFromString(qty),
		Unit:      "pcs",
		UnitPrice: &p,
	}
}
