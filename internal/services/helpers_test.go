package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/utils"

	"github.com/shopspring/decimal"
)

var (
	jul1  = utils.NewDate(2025, time.July, 1)
	jul3  = utils.NewDate(2025, time.July, 3)
	jul5  = utils.NewDate(2025, time.July, 5)
	jul31 = utils.NewDate(2025, time.July, 31)
)

func usd(amount string) models.Money {
	return models.NewMoney(decimal.RequireFromString(amount), "USD")
}

func overrideRule(id string, scope models.PropertyScope, price string, priority int) *models.PricingRule {
	return &models.PricingRule{
		ID:            id,
		PropertyScope: scope,
		Name:          id,
		Enabled:       true,
		Priority:      priority,
		Payload:       models.PriceOverridePayload{Price: decimal.RequireFromString(price)},
		Source:        models.RuleSourceOperator,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []CalendarUpdatedEvent
	err    error
}

func (p *recordingPublisher) PublishCalendarUpdate(_ context.Context, event CalendarUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []CalendarUpdatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CalendarUpdatedEvent(nil), p.events...)
}

var errStoreDown = errors.New("store unavailable")

// flakyRepository fails writes of chosen nights and can run a hook after
// every successful write.
type flakyRepository struct {
	interfaces.PricingRuleRepository
	failOn     map[string]bool
	afterWrite func()
}

func (r *flakyRepository) Upsert(ctx context.Context, rule *models.PricingRule) error {
	if rule.DateRange != nil && r.failOn[utils.FormatDate(rule.DateRange.Start)] {
		return errStoreDown
	}
	if err := r.PricingRuleRepository.Upsert(ctx, rule); err != nil {
		return err
	}
	if r.afterWrite != nil {
		r.afterWrite()
	}
	return nil
}

// memoryLockStore mimics SET NX with expiry and the token-checked
// release and extend scripts.
type memoryLockStore struct {
	mu      sync.Mutex
	keys    map[string]string
	expires map[string]time.Time
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{keys: make(map[string]string), expires: make(map[string]time.Time)}
}

// held must be called with mu held.
func (s *memoryLockStore) held(key string) (string, bool) {
	token, ok := s.keys[key]
	if ok && time.Now().After(s.expires[key]) {
		delete(s.keys, key)
		delete(s.expires, key)
		return "", false
	}
	return token, ok
}

func (s *memoryLockStore) SetNX(_ context.Context, key, value string, expiration time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held(key); ok {
		return false, nil
	}
	s.keys[key] = value
	s.expires[key] = time.Now().Add(expiration)
	return true, nil
}

func (s *memoryLockStore) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.held(key); !ok || current != token {
		return false, nil
	}
	delete(s.keys, key)
	delete(s.expires, key)
	return true, nil
}

func (s *memoryLockStore) ExtendLock(_ context.Context, key, token string, expiration time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.held(key); !ok || current != token {
		return false, nil
	}
	s.expires[key] = time.Now().Add(expiration)
	return true, nil
}
