package interfaces

import (
	"context"
	"errors"
	"time"

	"staypricing/internal/models"
)

var ErrPropertyNotFound = errors.New("property not found")

// BasePriceSource provides the authoritative base nightly price.
type BasePriceSource interface {
	BasePrice(ctx context.Context, propertyID string, date time.Time) (models.Money, error)
}

type PropertyRepository interface {
	BasePriceSource
	GetByID(ctx context.Context, id string) (*models.Property, error)
	Upsert(ctx context.Context, property *models.Property) error
}
