package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/loyverse-sri/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.SRI.Timeout)
	assert.Equal(t, 3*time.Second, cfg.SRI.SettleDelay)
	assert.Equal(t, "inclusive", cfg.SRI.Canonicalization)
	assert.Contains(t, cfg.SRI.ReceptionURLTest, "celcer.sri.gob.ec")
	assert.Contains(t, cfg.SRI.AuthorizationURLProd, "cel.sri.gob.ec")
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Lookback)
	assert.Equal(t, 1, cfg.Scheduler.Concurrency)
	assert.Equal(t, "https://api.loyverse.com/v1.0", cfg.Loyverse.BaseURL)
}

func TestLoad_IntervaloEnMinutos(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL", "15")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SRI_SETTLE_DELAY", "500ms")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.SRI.SettleDelay)
}

func TestLoad_CanonicalizacionDesconocida(t *testing.T) {
	t.Setenv("SRI_C14N", "c14n11")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_LimitePaginaLoyverse(t *testing.T) {
	t.Setenv("LOYVERSE_PAGE_LIMIT", "500")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "sri", Password: "p@ss:w/rd", DBName: "facturas", SSLMode: "disable"}
	dsn := c.DSN()
	assert.Contains(t, dsn, "p%40ss%3Aw%2Frd")
	assert.Equal(t, dsn, c.ConnectionString())

	c.DatabaseURL = "postgres://otro"
	assert.Equal(t, "postgres://otro", c.ConnectionString())
}
