package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/utils"
	"staypricing/pkg/logger"

	"github.com/google/uuid"
)

var ErrInvalidRule = errors.New("invalid pricing rule")

type PricingRuleService interface {
	CreateRule(ctx context.Context, rule *models.PricingRule) (*models.PricingRule, error)
	UpdateRule(ctx context.Context, id string, rule *models.PricingRule) (*models.PricingRule, error)
	GetRule(ctx context.Context, id string) (*models.PricingRule, error)
	ListRules(ctx context.Context, propertyID string) ([]*models.PricingRule, error)
	SetRuleEnabled(ctx context.Context, id string, enabled bool) (*models.PricingRule, error)
	DeleteRule(ctx context.Context, id string) error
}

type pricingRuleService struct {
	rules     interfaces.PricingRuleRepository
	locker    PropertyLocker
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewPricingRuleService(
	rules interfaces.PricingRuleRepository,
	locker PropertyLocker,
	publisher EventPublisher,
	log *logger.Logger,
) PricingRuleService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if publisher == nil {
		publisher = NewNopEventPublisher()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &pricingRuleService{
		rules:     rules,
		locker:    locker,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

func (s *pricingRuleService) CreateRule(ctx context.Context, rule *models.PricingRule) (*models.PricingRule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	rule = rule.Clone()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Source == "" {
		rule.Source = models.RuleSourceOperator
	}
	now := s.now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	unlock, err := s.locker.Lock(ctx, lockKey(rule.PropertyScope))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.rules.GetByID(ctx, rule.ID); err == nil {
		return nil, fmt.Errorf("%w: rule %s already exists", ErrInvalidRule, rule.ID)
	} else if !errors.Is(err, interfaces.ErrRuleNotFound) {
		return nil, fmt.Errorf("failed to check pricing rule: %w", err)
	}

	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create pricing rule: %w", err)
	}

	s.afterWrite(ctx, utils.EventRuleCreated, rule)
	return rule, nil
}

// UpdateRule replaces the rule. CreatedAt and Source are carried over from
// the stored rule.
func (s *pricingRuleService) UpdateRule(ctx context.Context, id string, rule *models.PricingRule) (*models.PricingRule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	target := rule.PropertyScope
	existing, unlock, err := s.lockRule(ctx, id, &target)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rule = rule.Clone()
	rule.ID = id
	rule.CreatedAt = existing.CreatedAt
	rule.Source = existing.Source
	rule.UpdatedAt = s.now().UTC()

	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update pricing rule: %w", err)
	}

	if existing.PropertyScope != rule.PropertyScope {
		s.afterWrite(ctx, utils.EventRuleUpdated, existing)
	}
	s.afterWrite(ctx, utils.EventRuleUpdated, rule)
	return rule, nil
}

func (s *pricingRuleService) GetRule(ctx context.Context, id string) (*models.PricingRule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *pricingRuleService) ListRules(ctx context.Context, propertyID string) ([]*models.PricingRule, error) {
	rules, err := s.rules.List(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	return rules, nil
}

func (s *pricingRuleService) SetRuleEnabled(ctx context.Context, id string, enabled bool) (*models.PricingRule, error) {
	rule, unlock, err := s.lockRule(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rule.Enabled = enabled
	rule.UpdatedAt = s.now().UTC()
	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update pricing rule: %w", err)
	}

	s.afterWrite(ctx, utils.EventRuleUpdated, rule)
	return rule, nil
}

func (s *pricingRuleService) DeleteRule(ctx context.Context, id string) error {
	rule, unlock, err := s.lockRule(ctx, id, nil)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}

	s.afterWrite(ctx, utils.EventRuleDeleted, rule)
	return nil
}

// lockRule locks the stored rule's scope, plus target when the rule is
// moving, and returns the rule as read under those locks. A rule moved by
// another writer between the read and the lock is read again.
func (s *pricingRuleService) lockRule(ctx context.Context, id string, target *models.PropertyScope) (*models.PricingRule, func(), error) {
	for {
		seen, err := s.rules.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		to := seen.PropertyScope
		if target != nil {
			to = *target
		}

		unlock, err := s.lockScopes(ctx, seen.PropertyScope, to)
		if err != nil {
			return nil, nil, err
		}
		current, err := s.rules.GetByID(ctx, id)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if current.PropertyScope == seen.PropertyScope {
			return current, unlock, nil
		}
		unlock()
	}
}

// lockScopes takes the locks of both scopes when a rule moves between
// properties. Locks are taken in key order so two moves cannot deadlock.
func (s *pricingRuleService) lockScopes(ctx context.Context, a, b models.PropertyScope) (func(), error) {
	first, second := lockKey(a), lockKey(b)
	if first == second {
		return s.locker.Lock(ctx, first)
	}
	if second < first {
		first, second = second, first
	}

	unlockFirst, err := s.locker.Lock(ctx, first)
	if err != nil {
		return nil, err
	}
	unlockSecond, err := s.locker.Lock(ctx, second)
	if err != nil {
		unlockFirst()
		return nil, err
	}
	return func() {
		unlockSecond()
		unlockFirst()
	}, nil
}

func (s *pricingRuleService) afterWrite(ctx context.Context, event string, rule *models.PricingRule) {
	s.logger.WithContext(ctx).LogRuleEvent(rule.ID, event, map[string]interface{}{
		"rule_type":   rule.Type(),
		"property_id": rule.PropertyScope.PropertyID,
		"priority":    rule.Priority,
		"enabled":     rule.Enabled,
	})

	update := newCalendarEvent(event, rule.PropertyScope.PropertyID, rule.DateRange, "", []string{rule.ID})
	if err := s.publisher.PublishCalendarUpdate(ctx, update); err != nil {
		s.logger.WithContext(ctx).WithRuleID(rule.ID).WithError(err).Warn("Failed to publish calendar update")
	}
}

func lockKey(scope models.PropertyScope) string {
	if scope.IsAll() {
		return globalLockKey
	}
	return scope.PropertyID
}

// validateRule checks what a rule needs beyond its payload invariants before
// it may be stored.
func validateRule(rule *models.PricingRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is required", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if rule.DateRange != nil && !rule.DateRange.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidRule, utils.ErrInvalidDateRange)
	}
	for _, channel := range rule.Channels {
		if !channel.IsValid() {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidRule, channel)
		}
	}
	for _, weekday := range rule.DaysOfWeek {
		if weekday < time.Sunday || weekday > time.Saturday {
			return fmt.Errorf("%w: invalid day of week %d", ErrInvalidRule, weekday)
		}
	}
	return nil
}
