package interfaces

import (
	"context"
	"errors"

	"staypricing/internal/models"
)

var ErrRuleNotFound = errors.New("pricing rule not found")

// PricingRuleRepository is the rule store. List returns every rule that can
// apply to the property, which includes rules scoped to all properties.
type PricingRuleRepository interface {
	List(ctx context.Context, propertyID string) ([]*models.PricingRule, error)
	GetByID(ctx context.Context, id string) (*models.PricingRule, error)
	Upsert(ctx context.Context, rule *models.PricingRule) error
	Delete(ctx context.Context, id string) error
}
