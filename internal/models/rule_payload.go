package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type PromotionKind string

const (
	PromotionLongStay   PromotionKind = "long_stay"
	PromotionLastMinute PromotionKind = "last_minute"
	PromotionEarlyBird  PromotionKind = "early_bird"
	PromotionWeekend    PromotionKind = "weekend"
	PromotionWeekday    PromotionKind = "weekday"
)

func (k PromotionKind) IsValid() bool {
	switch k {
	case PromotionLongStay, PromotionLastMinute, PromotionEarlyBird, PromotionWeekend, PromotionWeekday:
		return true
	}
	return false
}

var (
	ErrMissingPayload = errors.New("rule has no payload")
	ErrInvalidNights  = errors.New("nights must be at least 1")
)

// RulePayload is the type-specific part of a PricingRule. The set of
// implementations is closed.
type RulePayload interface {
	Type() RuleType
	Validate() error
	isRulePayload()
}

type MinStayPayload struct {
	Nights uint16
}

type MaxStayPayload struct {
	Nights uint16
}

type ClosingBlockPayload struct {
	Reason string
}

// ChannelRestrictionPayload excludes the rule's channels (all channels when
// the rule lists none) from sale on the matched dates.
type ChannelRestrictionPayload struct{}

type PriceOverridePayload struct {
	Price decimal.Decimal
}

// PromotionPayload adjusts the nightly price when the promotion is eligible.
// Exactly one of AdjustmentPercent and AdjustmentAmount is set; a long-stay
// promotion may carry neither, in which case it has no price effect.
type PromotionPayload struct {
	Kind              PromotionKind
	MinNights         uint16
	DaysBeforeArrival int
	AdjustmentPercent *decimal.Decimal
	AdjustmentAmount  *decimal.Decimal
}

// MalformedPayload stands in for a stored payload that does not fit its
// declared type. It never validates.
type MalformedPayload struct {
	Declared RuleType
	Reason   string
}

func (MinStayPayload) Type() RuleType            { return RuleTypeMinStay }
func (MaxStayPayload) Type() RuleType            { return RuleTypeMaxStay }
func (ClosingBlockPayload) Type() RuleType       { return RuleTypeClosingBlock }
func (ChannelRestrictionPayload) Type() RuleType { return RuleTypeChannelRestriction }
func (PriceOverridePayload) Type() RuleType      { return RuleTypePriceOverride }
func (PromotionPayload) Type() RuleType          { return RuleTypePromotion }
func (p MalformedPayload) Type() RuleType        { return p.Declared }

func (MinStayPayload) isRulePayload()            {}
func (MaxStayPayload) isRulePayload()            {}
func (ClosingBlockPayload) isRulePayload()       {}
func (ChannelRestrictionPayload) isRulePayload() {}
func (PriceOverridePayload) isRulePayload()      {}
func (PromotionPayload) isRulePayload()          {}
func (MalformedPayload) isRulePayload()          {}

func (p MinStayPayload) Validate() error {
	if p.Nights < 1 {
		return ErrInvalidNights
	}
	return nil
}

func (p MaxStayPayload) Validate() error {
	if p.Nights < 1 {
		return ErrInvalidNights
	}
	return nil
}

func (ClosingBlockPayload) Validate() error       { return nil }
func (ChannelRestrictionPayload) Validate() error { return nil }

func (p PriceOverridePayload) Validate() error {
	if p.Price.IsNegative() {
		return fmt.Errorf("price override %s is negative", p.Price)
	}
	return nil
}

func (p PromotionPayload) Validate() error {
	switch p.Kind {
	case PromotionLongStay:
		if p.MinNights < 1 {
			return fmt.Errorf("long stay promotion: %w", ErrInvalidNights)
		}
	case PromotionLastMinute, PromotionEarlyBird:
		if p.DaysBeforeArrival < 0 {
			return fmt.Errorf("%s promotion: days before arrival must not be negative", p.Kind)
		}
	case PromotionWeekend, PromotionWeekday:
	default:
		return fmt.Errorf("unknown promotion kind %q", p.Kind)
	}

	if p.AdjustmentPercent != nil && p.AdjustmentAmount != nil {
		return errors.New("promotion sets both a percentage and an absolute adjustment")
	}
	if p.AdjustmentPercent == nil && p.AdjustmentAmount == nil && p.Kind != PromotionLongStay {
		return errors.New("promotion has no price adjustment")
	}
	return nil
}

// HasAdjustment reports whether the promotion changes the price at all.
func (p PromotionPayload) HasAdjustment() bool {
	return p.AdjustmentPercent != nil || p.AdjustmentAmount != nil
}

func (p MalformedPayload) Validate() error {
	return fmt.Errorf("malformed %s payload: %s", p.Declared, p.Reason)
}
