package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RuleDocument is the flat stored and wire representation of a PricingRule:
// a type tag plus optional payload fields.
type RuleDocument struct {
	ID                     string           `json:"id" bson:"_id"`
	PropertyID             *string          `json:"property_id,omitempty" bson:"property_id"`
	Name                   string           `json:"name" bson:"name"`
	Enabled                bool             `json:"enabled" bson:"enabled"`
	Priority               int              `json:"priority" bson:"priority"`
	Type                   RuleType         `json:"type" bson:"type"`
	StartDate              *time.Time       `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate                *time.Time       `json:"end_date,omitempty" bson:"end_date,omitempty"`
	DaysOfWeek             []time.Weekday   `json:"days_of_week,omitempty" bson:"days_of_week,omitempty"`
	Channels               []Channel        `json:"channels,omitempty" bson:"channels,omitempty"`
	MinStay                *uint16          `json:"min_stay,omitempty" bson:"min_stay,omitempty"`
	MaxStay                *uint16          `json:"max_stay,omitempty" bson:"max_stay,omitempty"`
	BlockReason            *string          `json:"block_reason,omitempty" bson:"block_reason,omitempty"`
	PriceOverride          *decimal.Decimal `json:"price_override,omitempty" bson:"price_override,omitempty"`
	PriceAdjustmentPercent *decimal.Decimal `json:"price_adjustment_percent,omitempty" bson:"price_adjustment_percent,omitempty"`
	PriceAdjustmentAmount  *decimal.Decimal `json:"price_adjustment_amount,omitempty" bson:"price_adjustment_amount,omitempty"`
	PromotionKind          *PromotionKind   `json:"promotion_kind,omitempty" bson:"promotion_kind,omitempty"`
	MinNights              *uint16          `json:"min_nights,omitempty" bson:"min_nights,omitempty"`
	DaysBeforeArrival      *int             `json:"days_before_arrival,omitempty" bson:"days_before_arrival,omitempty"`
	Source                 RuleSource       `json:"source,omitempty" bson:"source,omitempty"`
	CreatedAt              time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at" bson:"updated_at"`
}

func NewRuleDocument(rule *PricingRule) *RuleDocument {
	doc := &RuleDocument{
		ID:         rule.ID,
		Name:       rule.Name,
		Enabled:    rule.Enabled,
		Priority:   rule.Priority,
		Type:       rule.Type(),
		DaysOfWeek: rule.DaysOfWeek,
		Channels:   rule.Channels,
		Source:     rule.Source,
		CreatedAt:  rule.CreatedAt,
		UpdatedAt:  rule.UpdatedAt,
	}
	if !rule.PropertyScope.IsAll() {
		propertyID := rule.PropertyScope.PropertyID
		doc.PropertyID = &propertyID
	}
	if rule.DateRange != nil {
		start, end := rule.DateRange.Start, rule.DateRange.End
		doc.StartDate = &start
		doc.EndDate = &end
	}

	switch p := rule.Payload.(type) {
	case MinStayPayload:
		doc.MinStay = &p.Nights
	case MaxStayPayload:
		doc.MaxStay = &p.Nights
	case ClosingBlockPayload:
		doc.BlockReason = &p.Reason
	case PriceOverridePayload:
		doc.PriceOverride = &p.Price
	case PromotionPayload:
		kind := p.Kind
		doc.PromotionKind = &kind
		doc.PriceAdjustmentPercent = p.AdjustmentPercent
		doc.PriceAdjustmentAmount = p.AdjustmentAmount
		switch p.Kind {
		case PromotionLongStay:
			nights := p.MinNights
			doc.MinNights = &nights
		case PromotionLastMinute, PromotionEarlyBird:
			days := p.DaysBeforeArrival
			doc.DaysBeforeArrival = &days
		}
	}
	return doc
}

// ToRule converts the document into a PricingRule. Documents whose payload
// fields do not fit the type tag produce a MalformedPayload rather than an
// error, so the inconsistency is reported where the rule is evaluated.
func (d *RuleDocument) ToRule() *PricingRule {
	rule := &PricingRule{
		ID:         d.ID,
		Name:       d.Name,
		Enabled:    d.Enabled,
		Priority:   d.Priority,
		DaysOfWeek: d.DaysOfWeek,
		Channels:   d.Channels,
		Source:     d.Source,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.PropertyID != nil {
		rule.PropertyScope = SpecificProperty(*d.PropertyID)
	}
	if d.StartDate != nil || d.EndDate != nil {
		if d.StartDate == nil || d.EndDate == nil {
			rule.Payload = MalformedPayload{Declared: d.Type, Reason: "date range needs both start_date and end_date"}
			return rule
		}
		rule.DateRange = &DateRange{Start: dateOf(*d.StartDate), End: dateOf(*d.EndDate)}
	}
	if rule.Source == "" {
		rule.Source = RuleSourceOperator
	}
	rule.Payload = d.payload()
	return rule
}

func (d *RuleDocument) payload() RulePayload {
	if extra := d.foreignFields(); len(extra) > 0 {
		return MalformedPayload{
			Declared: d.Type,
			Reason:   fmt.Sprintf("fields %s do not belong to a %s rule", strings.Join(extra, ", "), d.Type),
		}
	}

	switch d.Type {
	case RuleTypeMinStay:
		if d.MinStay == nil {
			return MalformedPayload{Declared: d.Type, Reason: "min_stay is missing"}
		}
		return MinStayPayload{Nights: *d.MinStay}
	case RuleTypeMaxStay:
		if d.MaxStay == nil {
			return MalformedPayload{Declared: d.Type, Reason: "max_stay is missing"}
		}
		return MaxStayPayload{Nights: *d.MaxStay}
	case RuleTypeClosingBlock:
		reason := ""
		if d.BlockReason != nil {
			reason = *d.BlockReason
		}
		return ClosingBlockPayload{Reason: reason}
	case RuleTypeChannelRestriction:
		return ChannelRestrictionPayload{}
	case RuleTypePriceOverride:
		if d.PriceOverride == nil {
			return MalformedPayload{Declared: d.Type, Reason: "price_override is missing"}
		}
		return PriceOverridePayload{Price: *d.PriceOverride}
	case RuleTypePromotion:
		if d.PromotionKind == nil {
			return MalformedPayload{Declared: d.Type, Reason: "promotion_kind is missing"}
		}
		p := PromotionPayload{
			Kind:              *d.PromotionKind,
			AdjustmentPercent: d.PriceAdjustmentPercent,
			AdjustmentAmount:  d.PriceAdjustmentAmount,
		}
		switch p.Kind {
		case PromotionLongStay:
			if d.MinNights == nil {
				return MalformedPayload{Declared: d.Type, Reason: "long_stay promotion needs min_nights"}
			}
			p.MinNights = *d.MinNights
		case PromotionLastMinute, PromotionEarlyBird:
			if d.DaysBeforeArrival == nil {
				return MalformedPayload{Declared: d.Type, Reason: fmt.Sprintf("%s promotion needs days_before_arrival", p.Kind)}
			}
			p.DaysBeforeArrival = *d.DaysBeforeArrival
		}
		return p
	}
	return MalformedPayload{Declared: d.Type, Reason: fmt.Sprintf("unknown rule type %q", d.Type)}
}

// foreignFields lists populated payload fields that belong to another type.
func (d *RuleDocument) foreignFields() []string {
	owners := map[string]struct {
		set   bool
		owner RuleType
	}{
		"min_stay":                 {d.MinStay != nil, RuleTypeMinStay},
		"max_stay":                 {d.MaxStay != nil, RuleTypeMaxStay},
		"block_reason":             {d.BlockReason != nil, RuleTypeClosingBlock},
		"price_override":           {d.PriceOverride != nil, RuleTypePriceOverride},
		"price_adjustment_percent": {d.PriceAdjustmentPercent != nil, RuleTypePromotion},
		"price_adjustment_amount":  {d.PriceAdjustmentAmount != nil, RuleTypePromotion},
		"promotion_kind":           {d.PromotionKind != nil, RuleTypePromotion},
		"min_nights":               {d.MinNights != nil, RuleTypePromotion},
		"days_before_arrival":      {d.DaysBeforeArrival != nil, RuleTypePromotion},
	}

	var extra []string
	for field, f := range owners {
		if f.set && f.owner != d.Type {
			extra = append(extra, field)
		}
	}
	sort.Strings(extra)
	return extra
}
