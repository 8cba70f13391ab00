package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const propertiesCollection = "properties"

type propertyRepository struct {
	collection *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) interfaces.PropertyRepository {
	return &propertyRepository{
		collection: db.Collection(propertiesCollection),
	}
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &property, nil
}

func (r *propertyRepository) Upsert(ctx context.Context, property *models.Property) error {
	now := time.Now()
	if property.CreatedAt.IsZero() {
		property.CreatedAt = now
	}
	property.UpdatedAt = now

	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": property.ID},
		property,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert property: %w", err)
	}
	return nil
}

func (r *propertyRepository) BasePrice(ctx context.Context, propertyID string, date time.Time) (models.Money, error) {
	property, err := r.GetByID(ctx, propertyID)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoney(property.BasePriceOn(date), property.Currency), nil
}
