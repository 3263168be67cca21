package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOCK_POLICY", "")
	t.Setenv("CHECKOUT_LOCK_SECONDS", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, StockPolicyPermissive, cfg.Business.StockPolicy)
	assert.Equal(t, 10, cfg.Business.CheckoutLockSeconds)
	assert.Equal(t, 300, cfg.Business.CatalogCacheSeconds)
	assert.Equal(t, 3, cfg.Business.StockRetryAttempts)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STOCK_POLICY", " Strict ")
	t.Setenv("CHECKOUT_LOCK_SECONDS", "30")
	t.Setenv("STOCK_RETRY_ATTEMPTS", "-1")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := Load()

	assert.Equal(t, StockPolicyStrict, cfg.Business.StockPolicy)
	assert.Equal(t, 30, cfg.Business.CheckoutLockSeconds)
	assert.Equal(t, 3, cfg.Business.StockRetryAttempts)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestStockPolicyUnknownFallsBack(t *testing.T) {
	assert.Equal(t, StockPolicyPermissive, stockPolicy("lenient"))
}
