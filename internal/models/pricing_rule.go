package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Channel string
type RuleType string
type RuleSource string

const (
	ChannelAirbnb  Channel = "airbnb"
	ChannelBooking Channel = "booking"
	ChannelVrbo    Channel = "vrbo"
	ChannelDirect  Channel = "direct"
	ChannelAll     Channel = "all"

	RuleTypeMinStay            RuleType = "min_stay"
	RuleTypeMaxStay            RuleType = "max_stay"
	RuleTypeClosingBlock       RuleType = "closing_block"
	RuleTypeChannelRestriction RuleType = "channel_restriction"
	RuleTypePromotion          RuleType = "promotion"
	RuleTypePriceOverride      RuleType = "price_override"

	RuleSourceOperator RuleSource = "operator"
	RuleSourceBulkEdit RuleSource = "bulk_edit"
)

// BookableChannels lists the concrete sales channels, in display order.
var BookableChannels = []Channel{ChannelAirbnb, ChannelBooking, ChannelVrbo, ChannelDirect}

func (c Channel) IsValid() bool {
	switch c {
	case ChannelAirbnb, ChannelBooking, ChannelVrbo, ChannelDirect, ChannelAll:
		return true
	}
	return false
}

func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeMinStay, RuleTypeMaxStay, RuleTypeClosingBlock,
		RuleTypeChannelRestriction, RuleTypePromotion, RuleTypePriceOverride:
		return true
	}
	return false
}

// PropertyScope selects the properties a rule applies to. The zero value
// applies to every property.
type PropertyScope struct {
	PropertyID string
}

func AllProperties() PropertyScope {
	return PropertyScope{}
}

func SpecificProperty(propertyID string) PropertyScope {
	return PropertyScope{PropertyID: propertyID}
}

func (s PropertyScope) IsAll() bool {
	return s.PropertyID == ""
}

func (s PropertyScope) Matches(propertyID string) bool {
	return s.IsAll() || s.PropertyID == propertyID
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time `json:"start_date" bson:"start_date"`
	End   time.Time `json:"end_date" bson:"end_date"`
}

func (r DateRange) Contains(date time.Time) bool {
	d := dateOf(date)
	return !d.Before(dateOf(r.Start)) && !d.After(dateOf(r.End))
}

// Days returns the number of nights covered by the range.
func (r DateRange) Days() int {
	return int(dateOf(r.End).Sub(dateOf(r.Start)).Hours()/24) + 1
}

func (r DateRange) IsValid() bool {
	return !dateOf(r.End).Before(dateOf(r.Start))
}

// PricingRule is a configured stay or pricing policy. Its type is carried by
// the payload, so a rule can never hold a payload of another type.
type PricingRule struct {
	ID            string
	PropertyScope PropertyScope
	Name          string
	Enabled       bool
	Priority      int
	DateRange     *DateRange
	DaysOfWeek    []time.Weekday
	Channels      []Channel
	Payload       RulePayload
	Source        RuleSource
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Type reports the rule type declared by the payload.
func (r *PricingRule) Type() RuleType {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Type()
}

// Validate checks the payload invariants.
func (r *PricingRule) Validate() error {
	switch p := r.Payload.(type) {
	case nil:
		return ErrMissingPayload
	case MinStayPayload, MaxStayPayload, ClosingBlockPayload, ChannelRestrictionPayload,
		PriceOverridePayload, PromotionPayload, MalformedPayload:
		return p.Validate()
	default:
		return fmt.Errorf("unsupported payload %T", p)
	}
}

// AppliesOnWeekday reports whether the day-of-week filter admits the weekday.
func (r *PricingRule) AppliesOnWeekday(weekday time.Weekday) bool {
	if len(r.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range r.DaysOfWeek {
		if d == weekday {
			return true
		}
	}
	return false
}

// AppliesToChannel reports whether the channel filter admits the channel. A
// rule listing ChannelAll admits every channel; a query for ChannelAll is only
// admitted by rules that are not scoped to individual channels.
func (r *PricingRule) AppliesToChannel(channel Channel) bool {
	if len(r.Channels) == 0 {
		return true
	}
	for _, c := range r.Channels {
		if c == ChannelAll || c == channel {
			return true
		}
	}
	return false
}

// CoversDate reports whether the rule's date range admits the date.
func (r *PricingRule) CoversDate(date time.Time) bool {
	return r.DateRange == nil || r.DateRange.Contains(date)
}

// Clone returns a deep copy safe to mutate.
func (r *PricingRule) Clone() *PricingRule {
	clone := *r
	if r.DateRange != nil {
		dr := *r.DateRange
		clone.DateRange = &dr
	}
	if r.DaysOfWeek != nil {
		clone.DaysOfWeek = append([]time.Weekday(nil), r.DaysOfWeek...)
	}
	if r.Channels != nil {
		clone.Channels = append([]Channel(nil), r.Channels...)
	}
	return &clone
}

func (r PricingRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(NewRuleDocument(&r))
}

func (r *PricingRule) UnmarshalJSON(data []byte) error {
	var doc RuleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*r = *doc.ToRule()
	return nil
}

func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
