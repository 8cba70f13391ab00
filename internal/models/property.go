package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property carries the authoritative base price of a listing.
type Property struct {
	ID               string           `json:"id" bson:"_id"`
	Name             string           `json:"name" bson:"name"`
	Currency         string           `json:"currency" bson:"currency"`
	BasePrice        decimal.Decimal  `json:"base_price" bson:"base_price"`
	WeekendBasePrice *decimal.Decimal `json:"weekend_base_price,omitempty" bson:"weekend_base_price,omitempty"`
	IsActive         bool             `json:"is_active" bson:"is_active"`
	CreatedAt        time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" bson:"updated_at"`
}

// BasePriceOn returns the base nightly price for the date. Friday and
// Saturday nights use the weekend base price when one is configured.
func (p *Property) BasePriceOn(date time.Time) decimal.Decimal {
	if p.WeekendBasePrice != nil {
		if wd := date.Weekday(); wd == time.Friday || wd == time.Saturday {
			return *p.WeekendBasePrice
		}
	}
	return p.BasePrice
}
