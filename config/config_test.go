package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("STORE_TIMEOUT", "")
	t.Setenv("MARKET_INDEX", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 5*time.Second, cfg.DB.Timeout)
	assert.Equal(t, "SPY", cfg.MarketIndex)
	assert.Equal(t, 25, cfg.MaxMatrixSymbols)
	assert.Contains(t, cfg.DB.DSN(), "sslmode=disable")
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("STORE_TIMEOUT", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "STORE_TIMEOUT")

	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func TestSQLiteDSNIsPath(t *testing.T) {
	c := DBConfig{Driver: "sqlite", Path: "/tmp/x.db"}
	assert.Equal(t, "/tmp/x.db", c.DSN())
}
