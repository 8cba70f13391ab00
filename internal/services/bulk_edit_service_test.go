package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/pricing"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/repositories/memory"
	"staypricing/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBulkEditFixture(t *testing.T, repo interfaces.PricingRuleRepository) (BulkEditService, *recordingPublisher) {
	t.Helper()
	projector := pricing.NewCalendarProjector(repo, memory.NewStaticBasePriceSource(usd("100")), nil, nil, pricing.ProjectorConfig{})
	publisher := &recordingPublisher{}
	return NewBulkEditService(repo, projector, NewLocalLocker(), publisher, nil, 0), publisher
}

func TestApplyBulkPriceOverridesEveryNight(t *testing.T) {
	repo := memory.NewPricingRuleRepository(
		overrideRule("global", models.AllProperties(), "150", 3),
		overrideRule("specific", models.SpecificProperty("42"), "120", 7),
		overrideRule("other-property", models.SpecificProperty("7"), "90", 50),
	)
	service, publisher := newBulkEditFixture(t, repo)

	selection := models.NewSelectionRange("42", jul5, jul1)
	result, err := service.ApplyBulkPrice(context.Background(), selection, usd("200"), models.ChannelAll, jul1)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 5)
	require.Len(t, result.RuleIDs, 5)
	require.Len(t, result.Calendar, 5)
	for _, day := range result.Calendar {
		assert.True(t, decimal.NewFromInt(200).Equal(day.FinalPrice), utils.FormatDate(day.Date))
		for _, price := range day.ChannelPrices {
			assert.True(t, decimal.NewFromInt(200).Equal(price))
		}
	}

	for _, id := range result.RuleIDs {
		rule, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.RuleSourceBulkEdit, rule.Source)
		assert.Equal(t, 8, rule.Priority)
		assert.Equal(t, 1, rule.DateRange.Days())
		assert.Equal(t, "42", rule.PropertyScope.PropertyID)
		assert.Empty(t, rule.Channels)
	}

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, utils.EventBulkPriceEdit, events[0].Type)
	assert.Equal(t, "42", events[0].PropertyID)
	assert.Equal(t, "2025-07-01", events[0].StartDate)
	assert.Equal(t, "2025-07-05", events[0].EndDate)
}

func TestApplyBulkPricePriorityIsPerNight(t *testing.T) {
	ranged := overrideRule("early-july", models.SpecificProperty("42"), "300", 10)
	ranged.DateRange = &models.DateRange{Start: jul1, End: jul3}
	repo := memory.NewPricingRuleRepository(ranged)
	service, _ := newBulkEditFixture(t, repo)

	result, err := service.ApplyBulkPrice(context.Background(), models.NewSelectionRange("42", jul1, jul5), usd("99"), "", jul1)
	require.NoError(t, err)
	require.Len(t, result.RuleIDs, 5)

	priorities := make([]int, len(result.RuleIDs))
	for i, id := range result.RuleIDs {
		rule, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		priorities[i] = rule.Priority
	}
	assert.Equal(t, []int{11, 11, 11, 1, 1}, priorities)
	assert.Equal(t, models.ChannelAll, result.Channel)
}

func TestApplyBulkPriceChannelScope(t *testing.T) {
	airbnb := overrideRule("airbnb", models.SpecificProperty("42"), "130", 4)
	airbnb.Channels = []models.Channel{models.ChannelAirbnb}
	booking := overrideRule("booking", models.SpecificProperty("42"), "140", 9)
	booking.Channels = []models.Channel{models.ChannelBooking}
	repo := memory.NewPricingRuleRepository(airbnb, booking)
	service, _ := newBulkEditFixture(t, repo)

	result, err := service.ApplyBulkPrice(context.Background(), models.NewSelectionRange("42", jul1, jul1), usd("110"), models.ChannelAirbnb, jul1)
	require.NoError(t, err)

	rule, err := repo.GetByID(context.Background(), result.RuleIDs[0])
	require.NoError(t, err)
	assert.Equal(t, 5, rule.Priority)
	assert.Equal(t, []models.Channel{models.ChannelAirbnb}, rule.Channels)

	day := result.Calendar[0]
	assert.True(t, decimal.NewFromInt(110).Equal(day.ChannelPrices[models.ChannelAirbnb]))
	assert.True(t, decimal.NewFromInt(140).Equal(day.ChannelPrices[models.ChannelBooking]))
	assert.True(t, decimal.NewFromInt(100).Equal(day.ChannelPrices[models.ChannelDirect]))
}

func TestApplyBulkPriceReusesEarlierEdit(t *testing.T) {
	repo := memory.NewPricingRuleRepository(overrideRule("operator", models.SpecificProperty("42"), "120", 2))
	service, _ := newBulkEditFixture(t, repo)
	ctx := context.Background()
	selection := models.NewSelectionRange("42", jul1, jul3)

	first, err := service.ApplyBulkPrice(ctx, selection, usd("180"), models.ChannelAll, jul1)
	require.NoError(t, err)
	second, err := service.ApplyBulkPrice(ctx, selection, usd("175"), models.ChannelAll, jul1)
	require.NoError(t, err)

	assert.Equal(t, first.RuleIDs, second.RuleIDs)

	rules, err := repo.List(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, rules, 4)

	for _, id := range second.RuleIDs {
		rule, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, rule.Priority)
		assert.True(t, decimal.NewFromInt(175).Equal(rule.Payload.(models.PriceOverridePayload).Price))
	}
	for _, day := range second.Calendar {
		assert.True(t, decimal.NewFromInt(175).Equal(day.FinalPrice))
	}
}

func TestApplyBulkPriceRejectsBadInput(t *testing.T) {
	service, publisher := newBulkEditFixture(t, memory.NewPricingRuleRepository())
	ctx := context.Background()
	selection := models.NewSelectionRange("42", jul1, jul3)

	_, err := service.ApplyBulkPrice(ctx, selection, usd("-1"), models.ChannelAll, jul1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = service.ApplyBulkPrice(ctx, selection, models.NewMoney(decimal.NewFromInt(10), "XYZ"), models.ChannelAll, jul1)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = service.ApplyBulkPrice(ctx, models.SelectionRange{StartDate: jul1, EndDate: jul3}, usd("10"), models.ChannelAll, jul1)
	assert.ErrorIs(t, err, models.ErrSelectionNoProperty)

	_, err = service.ApplyBulkPrice(ctx, selection, usd("10"), models.Channel("expedia"), jul1)
	assert.ErrorIs(t, err, pricing.ErrUnknownChannel)

	_, err = service.ApplyBulkPrice(ctx, models.NewSelectionRange("42", jul1, utils.AddDays(jul1, utils.MaxBulkEditDays)), usd("10"), models.ChannelAll, jul1)
	assert.ErrorIs(t, err, ErrBulkRangeTooLong)

	assert.Empty(t, publisher.Events())
}

func TestApplyBulkPriceZeroIsAllowed(t *testing.T) {
	service, _ := newBulkEditFixture(t, memory.NewPricingRuleRepository())

	result, err := service.ApplyBulkPrice(context.Background(), models.NewSelectionRange("42", jul1, jul1), usd("0"), models.ChannelAll, jul1)
	require.NoError(t, err)
	assert.True(t, result.Calendar[0].FinalPrice.IsZero())
}

func TestApplyBulkPricePartialFailure(t *testing.T) {
	repo := &flakyRepository{
		PricingRuleRepository: memory.NewPricingRuleRepository(),
		failOn:                map[string]bool{"2025-07-02": true, "2025-07-04": true},
	}
	service, publisher := newBulkEditFixture(t, repo)

	result, err := service.ApplyBulkPrice(context.Background(), models.NewSelectionRange("42", jul1, jul5), usd("150"), models.ChannelAll, jul1)
	require.Error(t, err)

	var partial *PartialBulkFailureError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Nil(t, partial.Cause)
	assert.Equal(t, []time.Time{utils.NewDate(2025, time.July, 2), utils.NewDate(2025, time.July, 4)}, partial.FailedDates())
	assert.Len(t, partial.Succeeded, 3)

	require.NotNil(t, result)
	assert.Len(t, result.RuleIDs, 3)
	require.Len(t, result.Calendar, 5)
	assert.True(t, decimal.NewFromInt(150).Equal(result.Calendar[0].FinalPrice))
	assert.True(t, decimal.NewFromInt(100).Equal(result.Calendar[1].FinalPrice))

	assert.Len(t, publisher.Events(), 1)
}

func TestApplyBulkPriceStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writes := 0
	repo := &flakyRepository{PricingRuleRepository: memory.NewPricingRuleRepository()}
	repo.afterWrite = func() {
		writes++
		if writes == 2 {
			cancel()
		}
	}
	service, _ := newBulkEditFixture(t, repo)

	result, err := service.ApplyBulkPrice(ctx, models.NewSelectionRange("42", jul1, jul5), usd("150"), models.ChannelAll, jul1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	var partial *PartialBulkFailureError
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Succeeded, 2)
	assert.Len(t, partial.Failed, 3)
	assert.ErrorIs(t, partial.Cause, context.Canceled)

	// committed nights stay written
	rules, listErr := repo.List(context.Background(), "42")
	require.NoError(t, listErr)
	assert.Len(t, rules, 2)
	assert.Nil(t, result.Calendar)
}

func TestApplyBulkPriceWaitsForPropertyLock(t *testing.T) {
	repo := memory.NewPricingRuleRepository()
	locker := NewLocalLocker()
	service := NewBulkEditService(repo, nil, locker, nil, nil, 0)

	unlock, err := locker.Lock(context.Background(), "42")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = service.ApplyBulkPrice(ctx, models.NewSelectionRange("42", jul1, jul3), usd("150"), models.ChannelAll, jul1)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// other properties are unaffected
	result, err := service.ApplyBulkPrice(context.Background(), models.NewSelectionRange("7", jul1, jul3), usd("150"), models.ChannelAll, jul1)
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 3)
}
