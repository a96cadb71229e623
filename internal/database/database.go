package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the PostgreSQL connection pool, retrying the initial ping
// while the database comes up.
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.ConnectionString()), Options())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Warn("Database not reachable yet, retrying",
				zap.String("host", cfg.Host),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
	)
	return db, nil
}

// Options is the gorm configuration shared by the server, the CLI and tests.
// TranslateError makes unique violations surface as gorm.ErrDuplicatedKey.
func Options() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HealthCheck pings the database
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// HealthStats is the connection pool snapshot returned by the db health endpoint
type HealthStats struct {
	OpenConnections int   `json:"openConnections"`
	InUse           int   `json:"inUse"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"waitCount"`
	MaxOpen         int   `json:"maxOpenConnections"`
}

// HealthCheckWithStats pings the database and reports pool statistics
func HealthCheckWithStats(db *gorm.DB) (*HealthStats, error) {
	if err := HealthCheck(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	s := sqlDB.Stats()
	return &HealthStats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		MaxOpen:         s.MaxOpenConnections,
	}, nil
}

// AutoMigrate creates the schema from the models. Production uses the SQL
// migrations in migrations/; this is for development and tests.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Company{},
		&domain.Product{},
		&domain.Deal{},
		&domain.DealItem{},
		&domain.DealHistory{},
		&domain.DealDocument{},
		&domain.NumberSequence{},
		&domain.PendingObjectDeletion{},
	); err != nil {
		return err
	}
	// partial index, not expressible in struct tags
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_deal_documents_form
		ON deal_documents (deal_version_id, document_type, document_version)
		WHERE storage_key IS NULL`).Error
}
