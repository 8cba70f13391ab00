package validators

import (
	"fmt"
	"strings"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/utils"

	"github.com/shopspring/decimal"
)

// RuleRequest is the operator's rule as sent over HTTP. A missing
// property_id scopes the rule to every property.
type RuleRequest struct {
	PropertyID        *string          `json:"property_id" validate:"omitempty,min=1,max=64"`
	Name              string           `json:"name" validate:"required,min=1,max=200"`
	Enabled           *bool            `json:"enabled"`
	Priority          int              `json:"priority" validate:"min=-1000000,max=1000000"`
	Type              string           `json:"type" validate:"required,rule_type"`
	StartDate         string           `json:"start_date" validate:"required_with=EndDate,calendar_date"`
	EndDate           string           `json:"end_date" validate:"required_with=StartDate,calendar_date"`
	DaysOfWeek        []int            `json:"days_of_week" validate:"omitempty,max=7,dive,min=0,max=6"`
	Channels          []string         `json:"channels" validate:"omitempty,max=5,dive,channel"`
	MinStay           *uint16          `json:"min_stay" validate:"omitempty,min=1,max=365"`
	MaxStay           *uint16          `json:"max_stay" validate:"omitempty,min=1,max=365"`
	BlockReason       *string          `json:"block_reason" validate:"omitempty,max=500"`
	PriceOverride     *decimal.Decimal `json:"price_override"`
	AdjustmentPercent *decimal.Decimal `json:"price_adjustment_percent"`
	AdjustmentAmount  *decimal.Decimal `json:"price_adjustment_amount"`
	PromotionKind     *string          `json:"promotion_kind" validate:"omitempty,promotion_kind"`
	MinNights         *uint16          `json:"min_nights" validate:"omitempty,min=1,max=365"`
	DaysBeforeArrival *int             `json:"days_before_arrival" validate:"omitempty,min=0,max=730"`
}

// ToRule builds the rule through the same document mapping the store uses,
// so a request whose fields do not fit its type is rejected here.
func (r *RuleRequest) ToRule() (*models.PricingRule, error) {
	doc := &models.RuleDocument{
		PropertyID:             r.PropertyID,
		Name:                   SanitizeInput(r.Name),
		Enabled:                r.Enabled == nil || *r.Enabled,
		Priority:               r.Priority,
		Type:                   models.RuleType(r.Type),
		MinStay:                r.MinStay,
		MaxStay:                r.MaxStay,
		BlockReason:            r.BlockReason,
		PriceOverride:          r.PriceOverride,
		PriceAdjustmentPercent: r.AdjustmentPercent,
		PriceAdjustmentAmount:  r.AdjustmentAmount,
		MinNights:              r.MinNights,
		DaysBeforeArrival:      r.DaysBeforeArrival,
		Source:                 models.RuleSourceOperator,
	}
	if r.PropertyID != nil && strings.TrimSpace(*r.PropertyID) == "" {
		doc.PropertyID = nil
	}
	if r.PromotionKind != nil {
		kind := models.PromotionKind(*r.PromotionKind)
		doc.PromotionKind = &kind
	}

	if r.StartDate != "" {
		start, err := utils.ParseDate(r.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := utils.ParseDate(r.EndDate)
		if err != nil {
			return nil, err
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%s: end_date is before start_date", utils.ErrInvalidDateRange)
		}
		doc.StartDate = &start
		doc.EndDate = &end
	}

	for _, day := range r.DaysOfWeek {
		doc.DaysOfWeek = append(doc.DaysOfWeek, time.Weekday(day))
	}
	for _, channel := range r.Channels {
		doc.Channels = append(doc.Channels, models.Channel(channel))
	}

	rule := doc.ToRule()
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

type RuleEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// CalendarQuery is bound from the query string.
type CalendarQuery struct {
	StartDate string `form:"start" validate:"required,calendar_date"`
	EndDate   string `form:"end" validate:"required,calendar_date"`
	Channel   string `form:"channel" validate:"omitempty,channel"`
	Now       string `form:"now"`
}

type PortfolioRequest struct {
	PropertyIDs []string `json:"property_ids" validate:"required,min=1,dive,required,max=64"`
	StartDate   string   `json:"start_date" validate:"required,calendar_date"`
	EndDate     string   `json:"end_date" validate:"required,calendar_date"`
	Channel     string   `json:"channel" validate:"omitempty,channel"`
	Now         string   `json:"now"`
}

type BulkPriceRequest struct {
	StartDate string `json:"start_date" validate:"required,calendar_date"`
	EndDate   string `json:"end_date" validate:"required,calendar_date"`
	Price     string `json:"price" validate:"required,price_amount"`
	Currency  string `json:"currency" validate:"omitempty,currency_code"`
	Channel   string `json:"channel" validate:"omitempty,channel"`
	Now       string `json:"now"`
}

// ParseDateRange parses an inclusive range of YYYY-MM-DD dates.
func ParseDateRange(start, end string) (models.DateRange, error) {
	startDate, err := utils.ParseDate(start)
	if err != nil {
		return models.DateRange{}, err
	}
	endDate, err := utils.ParseDate(end)
	if err != nil {
		return models.DateRange{}, err
	}
	dateRange := models.DateRange{Start: startDate, End: endDate}
	if !dateRange.IsValid() {
		return models.DateRange{}, fmt.Errorf("%s: end is before start", utils.ErrInvalidDateRange)
	}
	return dateRange, nil
}

// ParseChannel defaults an empty channel to the aggregate view.
func ParseChannel(value string) models.Channel {
	if value == "" {
		return models.ChannelAll
	}
	return models.Channel(value)
}

// ParseNow returns the reference time for promotion eligibility, or the
// fallback when the caller did not send one.
func ParseNow(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return utils.ParseReferenceTime(value)
}
