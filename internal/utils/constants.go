package utils

import "time"

// Application Constants
const (
	AppName    = "StayPricing"
	AppVersion = "1.0.0"

	// Default values
	DefaultCurrency = "USD"

	// Calendar
	MaxProjectionDays = 366
	MaxBulkEditDays   = 366
	MaxPortfolioSize  = 200
	DefaultMinStay    = 1

	// Write coordination
	DefaultLockTTL     = 30 * time.Second
	DefaultLockRetry   = 50 * time.Millisecond
	DefaultRuleListTTL = 10 * time.Minute
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPartial = "partial"
)

// Error Messages
const (
	ErrInternalServer    = "internal server error"
	ErrValidationFailed  = "validation failed"
	ErrRuleNotFound      = "pricing rule not found"
	ErrPropertyNotFound  = "property not found"
	ErrInvalidDateRange  = "invalid date range"
	ErrInvalidNewPrice   = "price must be a non-negative number"
	ErrPartialBulkUpdate = "some nights could not be updated"
)

// Cache Keys
const (
	CacheRuleListPrefix = "pricing_rules:property:"
	CacheRuleGlobalKey  = "pricing_rules:all_properties"
	CacheLockPrefix     = "lock:property:"
)

// Event Types
const (
	EventRuleCreated     = "rule_created"
	EventRuleUpdated     = "rule_updated"
	EventRuleDeleted     = "rule_deleted"
	EventBulkPriceEdit   = "bulk_price_edit"
	EventCalendarUpdated = "calendar_updated"
)

// Pub/Sub channels
const (
	ChannelCalendarUpdates = "calendar.updated"
)
