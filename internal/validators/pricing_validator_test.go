package validators

import (
	"testing"
	"time"

	"staypricing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleRequestToRule(t *testing.T) {
	property := "42"
	kind := "last_minute"
	days := 3
	percent := decimal.NewFromInt(-15)
	request := RuleRequest{
		PropertyID:        &property,
		Name:              "  <b>Last minute</b> ",
		Type:              "promotion",
		StartDate:         "2025-07-01",
		EndDate:           "2025-07-31",
		DaysOfWeek:        []int{0, 6},
		Channels:          []string{"airbnb", "vrbo"},
		PromotionKind:     &kind,
		DaysBeforeArrival: &days,
		AdjustmentPercent: &percent,
	}
	require.Empty(t, ValidateStruct(&request))

	rule, err := request.ToRule()
	require.NoError(t, err)
	assert.Equal(t, "Last minute", rule.Name)
	assert.True(t, rule.Enabled)
	assert.Equal(t, "42", rule.PropertyScope.PropertyID)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, rule.DaysOfWeek)
	assert.Equal(t, []models.Channel{models.ChannelAirbnb, models.ChannelVrbo}, rule.Channels)
	assert.Equal(t, 31, rule.DateRange.Days())
	assert.Equal(t, 3, rule.Payload.(models.PromotionPayload).DaysBeforeArrival)
}

func TestRuleRequestValidation(t *testing.T) {
	badKind := "flash_sale"
	cases := map[string]RuleRequest{
		"missing name":  {Type: "min_stay"},
		"unknown type":  {Name: "x", Type: "surge"},
		"bad date":      {Name: "x", Type: "closing_block", StartDate: "2025-7-1", EndDate: "2025-07-02"},
		"half range":    {Name: "x", Type: "closing_block", EndDate: "2025-07-02"},
		"bad weekday":   {Name: "x", Type: "closing_block", DaysOfWeek: []int{7}},
		"bad channel":   {Name: "x", Type: "closing_block", Channels: []string{"expedia"}},
		"bad promotion": {Name: "x", Type: "promotion", PromotionKind: &badKind},
	}
	for name, request := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotEmpty(t, ValidateStruct(&request))
		})
	}
}

func TestRuleRequestInvertedRange(t *testing.T) {
	nights := uint16(2)
	request := RuleRequest{Name: "x", Type: "min_stay", MinStay: &nights, StartDate: "2025-07-10", EndDate: "2025-07-01"}

	_, err := request.ToRule()
	assert.Error(t, err)
}

func TestBulkPriceRequestValidation(t *testing.T) {
	valid := BulkPriceRequest{StartDate: "2025-07-01", EndDate: "2025-07-03", Price: "120.50", Currency: "EUR"}
	assert.Empty(t, ValidateStruct(&valid))

	negative := valid
	negative.Price = "-1"
	errs := ValidateStruct(&negative)
	require.Len(t, errs, 1)
	assert.Equal(t, "price_amount", errs[0].Tag)

	currency := valid
	currency.Currency = "ABC"
	assert.Contains(t, ValidateStruct(&currency).ToMap(), "Currency")
}

func TestParseHelpers(t *testing.T) {
	fallback := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)

	now, err := ParseNow("", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, now)

	now, err = ParseNow("2025-06-20T10:30:00Z", fallback)
	require.NoError(t, err)
	assert.Equal(t, 20, now.Day())

	_, err = ParseNow("yesterday", fallback)
	assert.Error(t, err)

	assert.Equal(t, models.ChannelAll, ParseChannel(""))
	assert.Equal(t, models.ChannelDirect, ParseChannel("direct"))

	_, err = ParseDateRange("2025-07-05", "2025-07-01")
	assert.Error(t, err)
}
