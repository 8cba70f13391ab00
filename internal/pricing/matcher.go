package pricing

import (
	"math"
	"strings"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/utils"
)

// RuleMatcher selects the rules that apply to a (property, date, channel)
// query. It holds no state.
type RuleMatcher struct{}

func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{}
}

// MatchScope keeps enabled rules whose property scope, date range and
// day-of-week filter admit the query. Channels are not considered.
func (m *RuleMatcher) MatchScope(rules []*models.PricingRule, propertyID string, date time.Time) []*models.PricingRule {
	date = utils.DateOf(date)
	weekday := date.Weekday()

	matched := make([]*models.PricingRule, 0, len(rules))
	for _, rule := range rules {
		if rule == nil || !rule.Enabled {
			continue
		}
		if !rule.PropertyScope.Matches(propertyID) {
			continue
		}
		if !rule.CoversDate(date) || !rule.AppliesOnWeekday(weekday) {
			continue
		}
		matched = append(matched, rule)
	}
	return matched
}

// Match applies the full filter. ClosingBlock and ChannelRestriction rules
// bypass the channel filter: their channel lists say what they close, not
// when they are consulted.
func (m *RuleMatcher) Match(rules []*models.PricingRule, propertyID string, date time.Time, channel models.Channel) []*models.PricingRule {
	scoped := m.MatchScope(rules, propertyID, date)

	matched := scoped[:0]
	for _, rule := range scoped {
		if bypassesChannelFilter(rule.Type()) || rule.AppliesToChannel(channel) {
			matched = append(matched, rule)
		}
	}
	return matched
}

func bypassesChannelFilter(ruleType models.RuleType) bool {
	return ruleType == models.RuleTypeClosingBlock || ruleType == models.RuleTypeChannelRestriction
}

// ofType filters rules by type and, when channel is non-empty, by channel.
func ofType(rules []*models.PricingRule, ruleType models.RuleType, channel models.Channel) []*models.PricingRule {
	var out []*models.PricingRule
	for _, rule := range rules {
		if rule.Type() != ruleType {
			continue
		}
		if channel != "" && !rule.AppliesToChannel(channel) {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// compareStrength orders two competing rules. It returns a positive number
// when a beats b: higher priority, then a specific property scope, then the
// narrower date range, then the most recent update. Rule ids settle whatever
// is left so that the outcome never depends on input order.
func compareStrength(a, b *models.PricingRule) int {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return 1
		}
		return -1
	}

	aSpecific, bSpecific := !a.PropertyScope.IsAll(), !b.PropertyScope.IsAll()
	if aSpecific != bSpecific {
		if aSpecific {
			return 1
		}
		return -1
	}

	aWidth, bWidth := rangeWidth(a), rangeWidth(b)
	if aWidth != bWidth {
		if aWidth < bWidth {
			return 1
		}
		return -1
	}

	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		if a.UpdatedAt.After(b.UpdatedAt) {
			return 1
		}
		return -1
	}

	return strings.Compare(b.ID, a.ID)
}

func rangeWidth(rule *models.PricingRule) int {
	if rule.DateRange == nil {
		return math.MaxInt
	}
	return rule.DateRange.Days()
}

// winner returns the strongest rule, or nil for an empty slice.
func winner(rules []*models.PricingRule) *models.PricingRule {
	var best *models.PricingRule
	for _, rule := range rules {
		if best == nil || compareStrength(rule, best) > 0 {
			best = rule
		}
	}
	return best
}
