package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/repositories/memory"
	"staypricing/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuleServiceFixture(seed ...*models.PricingRule) (PricingRuleService, interfaces.PricingRuleRepository, *recordingPublisher) {
	repo := memory.NewPricingRuleRepository(seed...)
	publisher := &recordingPublisher{}
	return NewPricingRuleService(repo, NewLocalLocker(), publisher, nil), repo, publisher
}

func TestCreateRule(t *testing.T) {
	service, repo, publisher := newRuleServiceFixture()
	ctx := context.Background()

	input := &models.PricingRule{
		PropertyScope: models.SpecificProperty("42"),
		Name:          "Summer minimum",
		Enabled:       true,
		DateRange:     &models.DateRange{Start: jul1, End: jul31},
		Payload:       models.MinStayPayload{Nights: 3},
	}
	created, err := service.CreateRule(ctx, input)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.RuleSourceOperator, created.Source)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Empty(t, input.ID, "input is not mutated")

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RuleTypeMinStay, stored.Type())

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, utils.EventRuleCreated, events[0].Type)
	assert.Equal(t, "42", events[0].PropertyID)
	assert.Equal(t, "2025-07-01", events[0].StartDate)
	assert.Equal(t, []string{created.ID}, events[0].RuleIDs)

	_, err = service.CreateRule(ctx, created)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestCreateRuleValidation(t *testing.T) {
	service, _, publisher := newRuleServiceFixture()
	ctx := context.Background()

	cases := map[string]*models.PricingRule{
		"nil":             nil,
		"missing name":    {Payload: models.MinStayPayload{Nights: 2}},
		"missing payload": {Name: "empty"},
		"zero nights":     {Name: "zero", Payload: models.MinStayPayload{Nights: 0}},
		"malformed":       {Name: "broken", Payload: models.MalformedPayload{Declared: models.RuleTypePromotion, Reason: "kind missing"}},
		"inverted range":  {Name: "range", Payload: models.MinStayPayload{Nights: 2}, DateRange: &models.DateRange{Start: jul5, End: jul1}},
		"unknown channel": {Name: "channel", Payload: models.MinStayPayload{Nights: 2}, Channels: []models.Channel{"expedia"}},
		"bad weekday":     {Name: "weekday", Payload: models.MinStayPayload{Nights: 2}, DaysOfWeek: []time.Weekday{9}},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.CreateRule(ctx, rule)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
	assert.Empty(t, publisher.Events())
}

func TestUpdateRuleKeepsIdentity(t *testing.T) {
	created := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	original := overrideRule("rule-1", models.SpecificProperty("42"), "120", 1)
	original.Source = models.RuleSourceBulkEdit
	original.CreatedAt = created
	original.UpdatedAt = created
	service, repo, publisher := newRuleServiceFixture(original)
	ctx := context.Background()

	replacement := overrideRule("ignored", models.SpecificProperty("7"), "135", 4)
	updated, err := service.UpdateRule(ctx, "rule-1", replacement)
	require.NoError(t, err)

	assert.Equal(t, "rule-1", updated.ID)
	assert.Equal(t, created, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created))
	assert.Equal(t, models.RuleSourceBulkEdit, updated.Source)
	assert.Equal(t, "7", updated.PropertyScope.PropertyID)

	stored, err := repo.GetByID(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Priority)

	// the rule moved, so both properties are told
	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "42", events[0].PropertyID)
	assert.Equal(t, "7", events[1].PropertyID)

	_, err = service.UpdateRule(ctx, "missing", replacement)
	assert.ErrorIs(t, err, interfaces.ErrRuleNotFound)
}

// movingRepository lets another writer move a rule between the service's
// first read and its lock.
type movingRepository struct {
	interfaces.PricingRuleRepository
	once   sync.Once
	moveTo models.PropertyScope
}

func (r *movingRepository) GetByID(ctx context.Context, id string) (*models.PricingRule, error) {
	rule, err := r.PricingRuleRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.once.Do(func() {
		moved := rule.Clone()
		moved.PropertyScope = r.moveTo
		err = r.PricingRuleRepository.Upsert(ctx, moved)
	})
	return rule, err
}

type keyRecordingLocker struct {
	PropertyLocker
	mu   sync.Mutex
	keys []string
}

func (l *keyRecordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return l.PropertyLocker.Lock(ctx, key)
}

func TestUpdateRuleFollowsConcurrentMove(t *testing.T) {
	repo := &movingRepository{
		PricingRuleRepository: memory.NewPricingRuleRepository(overrideRule("rule-1", models.SpecificProperty("42"), "120", 1)),
		moveTo:                models.SpecificProperty("7"),
	}
	locker := &keyRecordingLocker{PropertyLocker: NewLocalLocker()}
	publisher := &recordingPublisher{}
	service := NewPricingRuleService(repo, locker, publisher, nil)

	_, err := service.UpdateRule(context.Background(), "rule-1", overrideRule("rule-1", models.SpecificProperty("9"), "135", 2))
	require.NoError(t, err)

	// the write ran under the lock of the property the rule was really on
	assert.Contains(t, locker.keys, "7")

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "7", events[0].PropertyID)
	assert.Equal(t, "9", events[1].PropertyID)
}

func TestSetRuleEnabledAndDelete(t *testing.T) {
	service, repo, publisher := newRuleServiceFixture(overrideRule("rule-1", models.AllProperties(), "120", 1))
	ctx := context.Background()

	disabled, err := service.SetRuleEnabled(ctx, "rule-1", false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	stored, err := repo.GetByID(ctx, "rule-1")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	require.NoError(t, service.DeleteRule(ctx, "rule-1"))
	_, err = service.GetRule(ctx, "rule-1")
	assert.ErrorIs(t, err, interfaces.ErrRuleNotFound)
	assert.ErrorIs(t, service.DeleteRule(ctx, "rule-1"), interfaces.ErrRuleNotFound)

	events := publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, utils.EventRuleUpdated, events[0].Type)
	assert.Equal(t, utils.EventRuleDeleted, events[1].Type)
	assert.Empty(t, events[1].PropertyID)
}

func TestListRulesIncludesGlobalRules(t *testing.T) {
	service, _, _ := newRuleServiceFixture(
		overrideRule("global", models.AllProperties(), "100", 0),
		overrideRule("mine", models.SpecificProperty("42"), "100", 0),
		overrideRule("theirs", models.SpecificProperty("7"), "100", 0),
	)

	rules, err := service.ListRules(context.Background(), "42")
	require.NoError(t, err)
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
	}
	assert.Equal(t, []string{"global", "mine"}, ids)

	global, err := service.ListRules(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, "global", global[0].ID)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	repo := memory.NewPricingRuleRepository()
	publisher := &recordingPublisher{err: errStoreDown}
	service := NewPricingRuleService(repo, nil, publisher, nil)

	created, err := service.CreateRule(context.Background(), overrideRule("", models.SpecificProperty("42"), "99", 0))
	require.NoError(t, err)
	_, err = repo.GetByID(context.Background(), created.ID)
	assert.NoError(t, err)
}
