package config

import (
	"fmt"
	"time"

	"staypricing/internal/utils"

	"github.com/shopspring/decimal"
)

type PricingConfig struct {
	DefaultCurrency       string          `yaml:"default_currency"`
	DefaultBasePrice      decimal.Decimal `yaml:"default_base_price"`
	MaxProjectionDays     int             `yaml:"max_projection_days"`
	MaxBulkEditDays       int             `yaml:"max_bulk_edit_days"`
	MaxPortfolioSize      int             `yaml:"max_portfolio_size"`
	ProjectionConcurrency int             `yaml:"projection_concurrency"`
	LockTTL               time.Duration   `yaml:"lock_ttl"`
	LockRetryInterval     time.Duration   `yaml:"lock_retry_interval"`
	RuleCacheTTL          time.Duration   `yaml:"rule_cache_ttl"`
}

func loadPricingConfig() *PricingConfig {
	basePrice, err := decimal.NewFromString(getEnv("PRICING_DEFAULT_BASE_PRICE", "100"))
	if err != nil {
		basePrice = decimal.NewFromInt(100)
	}

	return &PricingConfig{
		DefaultCurrency:       getEnv("PRICING_DEFAULT_CURRENCY", utils.DefaultCurrency),
		DefaultBasePrice:      basePrice,
		MaxProjectionDays:     getEnvAsInt("PRICING_MAX_PROJECTION_DAYS", utils.MaxProjectionDays),
		MaxBulkEditDays:       getEnvAsInt("PRICING_MAX_BULK_EDIT_DAYS", utils.MaxBulkEditDays),
		MaxPortfolioSize:      getEnvAsInt("PRICING_MAX_PORTFOLIO_SIZE", utils.MaxPortfolioSize),
		ProjectionConcurrency: getEnvAsInt("PRICING_PROJECTION_CONCURRENCY", 4),
		LockTTL:               getEnvAsDuration("PRICING_LOCK_TTL", utils.DefaultLockTTL),
		LockRetryInterval:     getEnvAsDuration("PRICING_LOCK_RETRY", utils.DefaultLockRetry),
		RuleCacheTTL:          getEnvAsDuration("PRICING_RULE_CACHE_TTL", utils.DefaultRuleListTTL),
	}
}

func (c *PricingConfig) Validate() error {
	if !utils.ValidateCurrencyCode(c.DefaultCurrency) {
		return fmt.Errorf("unsupported PRICING_DEFAULT_CURRENCY %q", c.DefaultCurrency)
	}
	if c.DefaultBasePrice.IsNegative() {
		return fmt.Errorf("PRICING_DEFAULT_BASE_PRICE must not be negative")
	}
	if c.MaxProjectionDays <= 0 || c.MaxBulkEditDays <= 0 || c.MaxPortfolioSize <= 0 {
		return fmt.Errorf("pricing limits must be positive")
	}
	if c.ProjectionConcurrency <= 0 {
		return fmt.Errorf("PRICING_PROJECTION_CONCURRENCY must be positive")
	}
	return nil
}
