// Package catalog provides the product catalog used to snapshot deal line
// items. Products are read either from the local products table or, read-only,
// from the MS SQL Server ERP warehouse that publishes them.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sethvargo/go-retry"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second

	defaultHealthCheckTimeout = 5 * time.Second
)

// schema.table or table, no quoting or spaces
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// WarehouseCatalog reads products from the ERP warehouse. The expected table
// columns are Id, CompanyId, Article, Name, Description, ItemType, Unit and Price.
type WarehouseCatalog struct {
	db           *sql.DB
	logger       *zap.Logger
	table        string
	queryTimeout time.Duration
}

// HealthStatus is the health check result for the warehouse connection
type HealthStatus struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	MaxOpen   int           `json:"max_open_connections"`
	Open      int           `json:"open_connections"`
	InUse     int           `json:"in_use"`
	Idle      int           `json:"idle"`
	WaitCount int64         `json:"wait_count"`
}

// NewWarehouseCatalog connects to the warehouse. Returns nil when the
// warehouse is disabled or its credentials are missing.
func NewWarehouseCatalog(ctx context.Context, cfg *config.WarehouseConfig, logger *zap.Logger) (*WarehouseCatalog, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Warehouse catalog disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Warehouse enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	table, err := quoteTableName(cfg.ProductTable)
	if err != nil {
		return nil, err
	}

	connStr, err := buildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	logger.Info("Initializing warehouse connection",
		zap.String("product_table", cfg.ProductTable),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("query_timeout_seconds", cfg.QueryTimeout),
	)

	backoff := retry.WithCappedDuration(defaultMaxBackoff,
		retry.WithMaxRetries(defaultMaxRetries-1, retry.NewExponential(defaultInitialBackoff)))

	var db *sql.DB
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		conn, err := sql.Open("sqlserver", connStr)
		if err != nil {
			logger.Warn("Failed to open warehouse connection", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}

		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

		pingCtx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
		if err := conn.PingContext(pingCtx); err != nil {
			logger.Warn("Warehouse ping failed", zap.Error(err), zap.Int("attempt", attempt))
			_ = conn.Close()
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse after %d attempts: %w", attempt, err)
	}

	logger.Info("Warehouse connection established", zap.Int("attempts_taken", attempt))

	return &WarehouseCatalog{
		db:           db,
		logger:       logger,
		table:        table,
		queryTimeout: cfg.QueryTimeoutDuration(),
	}, nil
}

// buildConnectionString turns host:port/database into a sqlserver URL
func buildConnectionString(cfg *config.WarehouseConfig) (string, error) {
	urlParts := strings.SplitN(cfg.URL, "/", 2)
	hostPort := urlParts[0]
	database := ""
	if len(urlParts) > 1 {
		database = urlParts[1]
	}
	if hostPort == "" {
		return "", errors.New("warehouse url has no host")
	}

	hostParts := strings.SplitN(hostPort, ":", 2)
	host := hostParts[0]
	port := "1433"
	if len(hostParts) > 1 && hostParts[1] != "" {
		port = hostParts[1]
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	query.Add("ApplicationIntent", "ReadOnly")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

// quoteTableName validates a configured table name and brackets each part
func quoteTableName(name string) (string, error) {
	if !tableNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid warehouse product table %q", name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "[" + p + "]"
	}
	return strings.Join(parts, "."), nil
}

// Close closes the warehouse connection pool
func (c *WarehouseCatalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	c.logger.Info("Closing warehouse connection")
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close warehouse connection", zap.Error(err))
		return fmt.Errorf("failed to close warehouse connection: %w", err)
	}
	return nil
}

// HealthCheck pings the warehouse and reports pool statistics
func (c *WarehouseCatalog) HealthCheck(ctx context.Context) *HealthStatus {
	if c == nil || c.db == nil {
		return &HealthStatus{Status: "disabled"}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	stats := c.db.Stats()
	status := &HealthStatus{
		Status:    "healthy",
		Latency:   latency,
		MaxOpen:   stats.MaxOpenConnections,
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		WaitCount: stats.WaitCount,
	}
	if err != nil {
		c.logger.Warn("Warehouse health check failed", zap.Error(err), zap.Duration("latency", latency))
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

func (c *WarehouseCatalog) selectColumns() string {
	return "SELECT Id, CompanyId, Article, Name, Description, ItemType, Unit, Price FROM " + c.table
}

func (c *WarehouseCatalog) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.queryTimeout)
}

// GetProduct returns a product by id or domain.ErrProductNotFound
func (c *WarehouseCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	row := c.db.QueryRowContext(ctx, c.selectColumns()+" WHERE Id = @p1", mssql.UniqueIdentifier(id))
	return c.scanOne(row)
}

// FindByArticle looks an article up in one seller's catalog
func (c *WarehouseCatalog) FindByArticle(ctx context.Context, sellerID uuid.UUID, article string) (*domain.Product, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	row := c.db.QueryRowContext(ctx,
		c.selectColumns()+" WHERE CompanyId = @p1 AND Article = @p2",
		mssql.UniqueIdentifier(sellerID), article)
	return c.scanOne(row)
}

// ListProducts returns up to limit products ordered by id, starting after the
// given id. Pass uuid.Nil for the first page.
func (c *WarehouseCatalog) ListProducts(ctx context.Context, after uuid.UUID, limit int) ([]domain.Product, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT TOP (%d) Id, CompanyId, Article, Name, Description, ItemType, Unit, Price FROM %s", limit, c.table)
	args := []interface{}{}
	if after != uuid.Nil {
		query += " WHERE Id > @p1"
		args = append(args, mssql.UniqueIdentifier(after))
	}
	query += " ORDER BY Id"

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("Warehouse product query failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	c.logger.Debug("Warehouse product page read",
		zap.Int("rows_returned", len(products)),
		zap.Duration("duration", time.Since(start)),
	)
	return products, nil
}

func (c *WarehouseCatalog) scanOne(row *sql.Row) (*domain.Product, error) {
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s scanner) (*domain.Product, error) {
	var (
		id, companyID mssql.UniqueIdentifier
		description   sql.NullString
		itemType      string
		product       domain.Product
	)
	if err := s.Scan(&id, &companyID, &product.Article, &product.Name, &description, &itemType, &product.Unit, &product.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	product.ID = uuid.UUID(id)
	product.CompanyID = uuid.UUID(companyID)
	product.Description = description.String
	product.ItemType = domain.DealType(strings.ToLower(strings.TrimSpace(itemType)))
	return &product, nil
}
