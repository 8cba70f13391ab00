package memory

import (
	"context"
	"sort"
	"sync"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
)

type pricingRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*models.PricingRule
}

// NewPricingRuleRepository returns a process-local rule store. Rules are
// copied on the way in and out, so callers never share state with it.
func NewPricingRuleRepository(seed ...*models.PricingRule) interfaces.PricingRuleRepository {
	repo := &pricingRuleRepository{rules: make(map[string]*models.PricingRule, len(seed))}
	for _, rule := range seed {
		repo.rules[rule.ID] = rule.Clone()
	}
	return repo
}

func (r *pricingRuleRepository) List(ctx context.Context, propertyID string) ([]*models.PricingRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]*models.PricingRule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.PropertyScope.Matches(propertyID) {
			rules = append(rules, rule.Clone())
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (r *pricingRuleRepository) GetByID(ctx context.Context, id string) (*models.PricingRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, interfaces.ErrRuleNotFound
	}
	return rule.Clone(), nil
}

func (r *pricingRuleRepository) Upsert(ctx context.Context, rule *models.PricingRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[rule.ID] = rule.Clone()
	return nil
}

func (r *pricingRuleRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return interfaces.ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}
