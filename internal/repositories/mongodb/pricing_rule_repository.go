package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const pricingRulesCollection = "pricing_rules"

type pricingRuleRepository struct {
	collection *mongo.Collection
	cache      CacheService
	cacheTTL   time.Duration
}

func NewPricingRuleRepository(db *mongo.Database, cache CacheService, cacheTTL time.Duration) interfaces.PricingRuleRepository {
	if cacheTTL <= 0 {
		cacheTTL = utils.DefaultRuleListTTL
	}
	return &pricingRuleRepository{
		collection: db.Collection(pricingRulesCollection),
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

// List returns the property's own rules plus the rules scoped to all
// properties. Both halves are cached separately so a change to a global rule
// does not have to touch every property's entry.
func (r *pricingRuleRepository) List(ctx context.Context, propertyID string) ([]*models.PricingRule, error) {
	var specific []*models.RuleDocument
	if propertyID != "" {
		var err error
		specific, err = r.listByScope(ctx, bson.M{"property_id": propertyID}, utils.CacheRuleListPrefix+propertyID)
		if err != nil {
			return nil, err
		}
	}

	global, err := r.listByScope(ctx, bson.M{"property_id": nil}, utils.CacheRuleGlobalKey)
	if err != nil {
		return nil, err
	}

	rules := make([]*models.PricingRule, 0, len(specific)+len(global))
	for _, doc := range append(specific, global...) {
		rules = append(rules, doc.ToRule())
	}
	return rules, nil
}

func (r *pricingRuleRepository) GetByID(ctx context.Context, id string) (*models.PricingRule, error) {
	var doc models.RuleDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get pricing rule: %w", err)
	}
	return doc.ToRule(), nil
}

func (r *pricingRuleRepository) Upsert(ctx context.Context, rule *models.PricingRule) error {
	doc := models.NewRuleDocument(rule)

	var previous models.RuleDocument
	err := r.collection.FindOneAndReplace(
		ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.Before),
	).Decode(&previous)

	switch {
	case err == nil:
		// a scope change has to drop the old scope's list as well
		r.invalidate(ctx, previous.PropertyID)
	case errors.Is(err, mongo.ErrNoDocuments):
		// inserted
	default:
		return fmt.Errorf("failed to upsert pricing rule: %w", err)
	}

	r.invalidate(ctx, doc.PropertyID)
	return nil
}

func (r *pricingRuleRepository) Delete(ctx context.Context, id string) error {
	var deleted models.RuleDocument
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return interfaces.ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete pricing rule: %w", err)
	}

	r.invalidate(ctx, deleted.PropertyID)
	return nil
}

func (r *pricingRuleRepository) listByScope(ctx context.Context, filter bson.M, cacheKey string) ([]*models.RuleDocument, error) {
	if r.cache != nil {
		var cached []*models.RuleDocument
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make([]*models.RuleDocument, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode pricing rules: %w", err)
	}

	if r.cache != nil {
		// best effort, a miss only costs a query
		_ = r.cache.Set(ctx, cacheKey, docs, r.cacheTTL)
	}

	return docs, nil
}

func (r *pricingRuleRepository) invalidate(ctx context.Context, propertyID *string) {
	if r.cache == nil {
		return
	}
	if propertyID == nil {
		_ = r.cache.Delete(ctx, utils.CacheRuleGlobalKey)
		return
	}
	_ = r.cache.Delete(ctx, utils.CacheRuleListPrefix+*propertyID)
}
