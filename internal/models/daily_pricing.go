package models

import (
	"time"

	"staypricing/internal/utils"

	"github.com/shopspring/decimal"
)

type AdjustmentKind string

const (
	AdjustmentPriceOverride AdjustmentKind = "price_override"
	AdjustmentPromotion     AdjustmentKind = "promotion"
)

// Money is an amount in a given currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) String() string {
	return utils.FormatCurrency(m.Amount, m.Currency)
}

// Adjustment records one price modification. Amount is always the absolute
// currency delta that was applied, before final rounding.
type Adjustment struct {
	RuleID        string           `json:"rule_id"`
	RuleName      string           `json:"rule_name"`
	Kind          AdjustmentKind   `json:"kind"`
	PromotionKind PromotionKind    `json:"promotion_kind,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	IsPercentage  bool             `json:"is_percentage"`
	Percent       *decimal.Decimal `json:"percent,omitempty"`
}

// DailyPricing is the resolved price and availability of one property night
// as seen from one channel. It is computed on demand and never stored.
type DailyPricing struct {
	PropertyID    string                      `json:"property_id"`
	Date          time.Time                   `json:"date"`
	Channel       Channel                     `json:"channel"`
	Currency      string                      `json:"currency"`
	BasePrice     decimal.Decimal             `json:"base_price"`
	FinalPrice    decimal.Decimal             `json:"final_price"`
	MinStay       uint16                      `json:"min_stay"`
	MaxStay       *uint16                     `json:"max_stay,omitempty"`
	IsBlocked     bool                        `json:"is_blocked"`
	BlockReason   *string                     `json:"block_reason,omitempty"`
	Adjustments   []Adjustment                `json:"adjustments"`
	ChannelPrices map[Channel]decimal.Decimal `json:"channel_prices"`
}

// Reconstruct replays the adjustments against the base price. The result is
// the unrounded running price; callers round it to the currency's minor unit
// to compare with FinalPrice.
func (p *DailyPricing) Reconstruct() decimal.Decimal {
	price := p.BasePrice
	for _, adj := range p.Adjustments {
		price = price.Add(adj.Amount)
	}
	return price
}

// IsSellable reports whether the night can be sold on the given channel.
func (p *DailyPricing) IsSellable(channel Channel) bool {
	if p.IsBlocked {
		return false
	}
	_, ok := p.ChannelPrices[channel]
	return ok
}
