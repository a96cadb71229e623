package catalog

import (
	"context"
	"net/url"
	"testing"

	"github.com/straye-as/deal-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWarehouseCatalog_Disabled(t *testing.T) {
	logger := zap.NewNop()

	c, err := NewWarehouseCatalog(context.Background(), nil, logger)
	assert.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewWarehouseCatalog(context.Background(), &config.WarehouseConfig{Enabled: false}, logger)
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewWarehouseCatalog_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.WarehouseConfig
	}{
		{"missing URL", &config.WarehouseConfig{Enabled: true, User: "user", Password: "pass"}},
		{"missing user", &config.WarehouseConfig{Enabled: true, URL: "host:1433/db", Password: "pass"}},
		{"missing password", &config.WarehouseConfig{Enabled: true, URL: "host:1433/db", User: "user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewWarehouseCatalog(context.Background(), tt.cfg, zap.NewNop())
			assert.NoError(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestNewWarehouseCatalog_InvalidTable(t *testing.T) {
	cfg := &config.WarehouseConfig{
		Enabled:      true,
		URL:          "host:1433/db",
		User:         "user",
		Password:     "pass",
		ProductTable: "dbo.Products; DROP TABLE x",
	}
	c, err := NewWarehouseCatalog(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestBuildConnectionString(t *testing.T) {
	cfg := &config.WarehouseConfig{URL: "erp.example.net:1444/Catalog", User: "reader", Password: "p@ss word"}

	connStr, err := buildConnectionString(cfg)
	require.NoError(t, err)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "erp.example.net:1444", u.Host)
	assert.Equal(t, "reader", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "Catalog", u.Query().Get("database"))
	assert.Equal(t, "ReadOnly", u.Query().Get("ApplicationIntent"))
}

func TestBuildConnectionString_DefaultPort(t *testing.T) {
	connStr, err := buildConnectionString(&config.WarehouseConfig{URL: "erp", User: "u", Password: "p"})
	require.NoError(t, err)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, "erp:1433", u.Host)
	assert.Empty(t, u.Query().Get("database"))

	_, err = buildConnectionString(&config.WarehouseConfig{URL: "/db"})
	assert.Error(t, err)
}

func TestQuoteTableName(t *testing.T) {
	quoted, err := quoteTableName("dbo.Products")
	require.NoError(t, err)
	assert.Equal(t, "[dbo].[Products]", quoted)

	quoted, err = quoteTableName("Products")
	require.NoError(t, err)
	assert.Equal(t, "[Products]", quoted)

	for _, bad := range []string{"", "a.b.c", "dbo.[Products]", "x y", "1table"} {
		_, err := quoteTableName(bad)
		assert.Error(t, err, bad)
	}
}

func TestWarehouseCatalog_NilIsSafe(t *testing.T) {
	var c *WarehouseCatalog
	assert.NoError(t, c.Close())
	assert.Equal(t, "disabled", c.HealthCheck(context.Background()).Status)
}
