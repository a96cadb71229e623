package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/deal-engine/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Warehouse   WarehouseConfig
	Catalog     CatalogConfig
	Auth        AuthConfig
	Storage     StorageConfig
	Secrets     SecretsConfig
	Logging     LoggingConfig
	Server      ServerConfig
	CORS        CORSConfig
	Security    SecurityConfig
	RateLimit   RateLimitConfig
	Negotiation NegotiationConfig
	Jobs        JobsConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int

	// MigrationsDir holds the goose SQL files applied by cmd/migrate
	MigrationsDir string
}

// WarehouseConfig holds the read-only MS SQL Server connection to the ERP
// warehouse that publishes the product catalog.
type WarehouseConfig struct {
	Enabled         bool
	URL             string // host:port/database
	User            string
	Password        string
	ProductTable    string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	QueryTimeout    int
}

// CatalogConfig selects where line item products are looked up.
type CatalogConfig struct {
	// Source is "database" (local products mirror) or "warehouse"
	Source string
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	// APIKey allows service-to-service calls that name the acting company in X-Company-ID
	APIKey string
}

type StorageConfig struct {
	// Mode is one of "local", "azure" or "gcs"
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	GCSBucket             string
	GCSCredentialsFile    string
	MaxUploadSizeMB       int64
}

type SecretsConfig struct {
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
	EnableMetrics  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string

	// NoStoreAPI sends Cache-Control: no-store on /api/ responses
	NoStoreAPI bool
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled               bool
	RequestsPerMinute     int
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// NegotiationConfig tunes the version negotiation engine.
type NegotiationConfig struct {
	// DistinguishForbidden turns a not-found for an existing deal the caller
	// is not party to into a 403 instead of a 404.
	DistinguishForbidden bool
	// VersionRetryAttempts bounds retries when two callers race for the same version number
	VersionRetryAttempts uint64
	// VersionRetryBaseDelayMs is the first backoff delay between those retries
	VersionRetryBaseDelayMs int
}

// JobsConfig controls background jobs
type JobsConfig struct {
	CleanupEnabled      bool
	CleanupSchedule     string
	CleanupBatchSize    int
	CleanupMaxAttempts  int
	// CatalogSyncEnabled mirrors warehouse products into the local products table
	CatalogSyncEnabled  bool
	CatalogSyncSchedule string
	CatalogSyncTimeout  int // seconds
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (w *WarehouseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(w.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (w *WarehouseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(w.QueryTimeout) * time.Second
}

// CatalogSyncTimeoutDuration returns the catalog sync job timeout as duration
func (j *JobsConfig) CatalogSyncTimeoutDuration() time.Duration {
	return time.Duration(j.CatalogSyncTimeout) * time.Second
}

// VersionRetryBaseDelay returns the version conflict backoff base as duration,
// never less than a millisecond
func (n *NegotiationConfig) VersionRetryBaseDelay() time.Duration {
	if n.VersionRetryBaseDelayMs < 1 {
		return time.Millisecond
	}
	return time.Duration(n.VersionRetryBaseDelayMs) * time.Millisecond
}

// Validate rejects values that would break the negotiation engine at runtime
func (n *NegotiationConfig) Validate() error {
	if n.VersionRetryBaseDelayMs <= 0 {
		return fmt.Errorf("negotiation.versionRetryBaseDelayMs must be positive, got %d", n.VersionRetryBaseDelayMs)
	}
	return nil
}

// Load loads configuration from file and environment variables.
// Secrets are not resolved from Key Vault; use LoadWithSecrets for that.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Auth.APIKey == "" {
		cfg.Auth.APIKey = v.GetString("SERVICE_API_KEY")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("WAREHOUSE_ENABLED") {
		cfg.Warehouse.Enabled = true
	}

	if err := cfg.Negotiation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and, when USE_AZURE_KEY_VAULT=true in
// staging or production, resolves credentials from Azure Key Vault.
// Warehouse credentials always come from the vault when the warehouse is enabled.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if cfg.Warehouse.Enabled && cfg.Secrets.KeyVaultName != "" {
		if err := loadWarehouseSecrets(ctx, cfg, logger); err != nil {
			// the warehouse catalog is optional, the local mirror still works
			logger.Warn("Failed to load warehouse secrets from Key Vault",
				zap.Error(err),
				zap.String("environment", cfg.App.Environment),
			)
		}
	}

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled outside staging/production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	logger.Info("Loading secrets from Azure Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	if host, err := provider.GetSecretOrEnv(ctx, "POSTGRES-MAIN-HOST", "DATABASE_HOST"); err == nil && host != "" {
		cfg.Database.Host = host
	}
	if user, err := provider.GetSecretOrEnv(ctx, "POSTGRES-MAIN-USER", "DATABASE_USER"); err == nil && user != "" {
		cfg.Database.User = user
	}
	if password, err := provider.GetSecretOrEnv(ctx, "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD"); err == nil && password != "" {
		cfg.Database.Password = password
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
	if jwtSecret, err := provider.GetSecretOrEnv(ctx, "deal-engine-jwt-secret", "JWT_SECRET"); err == nil && jwtSecret != "" {
		cfg.Auth.JWTSecret = jwtSecret
	}
	if apiKey, err := provider.GetSecretOrEnv(ctx, "deal-engine-api-key", "SERVICE_API_KEY"); err == nil && apiKey != "" {
		cfg.Auth.APIKey = apiKey
	}
	if connStr, err := provider.GetSecretOrEnv(ctx, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING"); err == nil && connStr != "" {
		cfg.Storage.CloudConnectionString = connStr
	}

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

func loadWarehouseSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client for warehouse: %w", err)
	}

	url, err := provider.GetSecret(ctx, "WAREHOUSE-URL")
	if err != nil {
		return fmt.Errorf("failed to get WAREHOUSE-URL from Key Vault: %w", err)
	}
	user, err := provider.GetSecret(ctx, "WAREHOUSE-USERNAME")
	if err != nil {
		return fmt.Errorf("failed to get WAREHOUSE-USERNAME from Key Vault: %w", err)
	}
	password, err := provider.GetSecret(ctx, "WAREHOUSE-PASSWORD")
	if err != nil {
		return fmt.Errorf("failed to get WAREHOUSE-PASSWORD from Key Vault: %w", err)
	}

	cfg.Warehouse.URL = url
	cfg.Warehouse.User = user
	cfg.Warehouse.Password = password

	logger.Info("Warehouse credentials loaded from Key Vault")
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Deal Engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "deals")
	v.SetDefault("database.user", "deals_user")
	v.SetDefault("database.password", "deals_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.migrationsDir", "migrations")

	v.SetDefault("warehouse.enabled", false)
	v.SetDefault("warehouse.productTable", "dbo.Products")
	v.SetDefault("warehouse.maxOpenConns", 10)
	v.SetDefault("warehouse.maxIdleConns", 2)
	v.SetDefault("warehouse.connMaxLifetime", 300)
	v.SetDefault("warehouse.queryTimeout", 30)

	v.SetDefault("catalog.source", "database")

	v.SetDefault("auth.jwtIssuer", "")

	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "deal-documents")
	v.SetDefault("storage.maxUploadSizeMB", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)
	v.SetDefault("server.enableMetrics", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Company-ID", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.noStoreApi", true)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready", "/metrics"})

	v.SetDefault("negotiation.distinguishForbidden", false)
	v.SetDefault("negotiation.versionRetryAttempts", 3)
	v.SetDefault("negotiation.versionRetryBaseDelayMs", 20)

	v.SetDefault("jobs.cleanupEnabled", true)
	v.SetDefault("jobs.cleanupSchedule", "*/10 * * * *")
	v.SetDefault("jobs.cleanupBatchSize", 100)
	v.SetDefault("jobs.cleanupMaxAttempts", 10)
	v.SetDefault("jobs.catalogSyncEnabled", false)
	v.SetDefault("jobs.catalogSyncSchedule", "0 15 * * * *")
	v.SetDefault("jobs.catalogSyncTimeout", 600)
}
