package secrets

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
)

// fetcher is the part of the vault client the provider depends on
type fetcher interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Provider resolves credentials from either the process environment or Azure Key Vault.
type Provider struct {
	source SecretSource
	vault  fetcher
	logger *zap.Logger
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewProvider creates a new secrets provider
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	p := &Provider{source: cfg.Source, logger: logger}

	switch cfg.Source {
	case SourceEnvironment:
	case SourceVault:
		client, err := NewVaultClient(&VaultConfig{
			VaultName:    cfg.VaultName,
			CacheEnabled: cfg.CacheEnabled,
			CacheTTL:     cfg.CacheTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		p.vault = client
	default:
		return nil, fmt.Errorf("unknown secret source: %s", cfg.Source)
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(cfg.Source)),
		zap.String("environment", cfg.Environment),
	)
	return p, nil
}

// GetSecret retrieves a secret by name. In environment mode the name is the variable name.
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	if p.source == SourceEnvironment {
		value := os.Getenv(name)
		if value == "" {
			return "", fmt.Errorf("environment variable '%s' not set", name)
		}
		return value, nil
	}
	if p.vault == nil {
		return "", fmt.Errorf("vault client not initialized")
	}
	return p.vault.GetSecret(ctx, name)
}

// GetSecretOrEnv returns envName when it is set, otherwise looks secretName up in the configured source.
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if value := os.Getenv(envName); value != "" {
		p.logger.Debug("Using environment variable override", zap.String("env_name", envName))
		return value, nil
	}
	return p.GetSecret(ctx, secretName)
}

// IsVaultEnabled returns true if secrets are loaded from vault
func (p *Provider) IsVaultEnabled() bool {
	return p.source == SourceVault
}
