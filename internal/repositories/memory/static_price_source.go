package memory

import (
	"context"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
)

type staticPriceSource struct {
	price models.Money
}

// NewStaticBasePriceSource prices every night of every property the same.
// It stands in for the property catalogue when the service runs without a
// database.
func NewStaticBasePriceSource(price models.Money) interfaces.BasePriceSource {
	return &staticPriceSource{price: price}
}

func (s *staticPriceSource) BasePrice(ctx context.Context, propertyID string, date time.Time) (models.Money, error) {
	if err := ctx.Err(); err != nil {
		return models.Money{}, err
	}
	return s.price, nil
}
