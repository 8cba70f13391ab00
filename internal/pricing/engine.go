package pricing

import (
	"sort"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/utils"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine resolves the effective price, stay bounds and availability of a
// single night. It performs no I/O and never reads the clock: time-relative
// promotions are evaluated against the caller's now.
type Engine struct {
	matcher *RuleMatcher
}

func NewEngine(matcher *RuleMatcher) *Engine {
	if matcher == nil {
		matcher = NewRuleMatcher()
	}
	return &Engine{matcher: matcher}
}

// Resolve composes the rules matching (propertyID, date, channel) into a
// DailyPricing.
//
// Matched rules with malformed payloads are left out and reported through a
// *ConfigurationError. The returned DailyPricing is still populated from the
// remaining rules in that case, so callers can log the error and carry on.
func (e *Engine) Resolve(propertyID string, date time.Time, channel models.Channel, base models.Money, rules []*models.PricingRule, now time.Time) (*models.DailyPricing, error) {
	if !channel.IsValid() {
		return nil, ErrUnknownChannel
	}
	if base.Currency == "" {
		return nil, ErrMissingCurrency
	}
	date = utils.DateOf(date)

	scoped, cfgErr := e.validRules(e.matcher.MatchScope(rules, propertyID, date))

	result := &models.DailyPricing{
		PropertyID:    propertyID,
		Date:          date,
		Channel:       channel,
		Currency:      base.Currency,
		BasePrice:     base.Amount,
		MinStay:       utils.DefaultMinStay,
		Adjustments:   []models.Adjustment{},
		ChannelPrices: make(map[models.Channel]decimal.Decimal, len(models.BookableChannels)),
	}

	if block := winner(blocksFor(scoped, channel)); block != nil {
		reason := block.Payload.(models.ClosingBlockPayload).Reason
		result.IsBlocked = true
		result.BlockReason = &reason
	}

	if rule := winner(ofType(scoped, models.RuleTypeMinStay, channel)); rule != nil {
		result.MinStay = rule.Payload.(models.MinStayPayload).Nights
	}
	if rule := winner(ofType(scoped, models.RuleTypeMaxStay, channel)); rule != nil {
		nights := rule.Payload.(models.MaxStayPayload).Nights
		result.MaxStay = &nights
	}

	result.FinalPrice, result.Adjustments = e.composePrice(scoped, channel, base, date, now)

	excluded := excludedChannels(scoped)
	for _, c := range models.BookableChannels {
		if excluded[c] {
			continue
		}
		price, _ := e.composePrice(scoped, c, base, date, now)
		result.ChannelPrices[c] = price
	}

	if len(cfgErr.Issues) > 0 {
		return result, cfgErr
	}
	return result, nil
}

// validRules splits out the rules whose payloads fail validation.
func (e *Engine) validRules(rules []*models.PricingRule) ([]*models.PricingRule, *ConfigurationError) {
	cfgErr := &ConfigurationError{}
	valid := make([]*models.PricingRule, 0, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			cfgErr.add(rule, err)
			continue
		}
		valid = append(valid, rule)
	}
	return valid, cfgErr
}

// composePrice runs the override and promotion steps for one channel and
// rounds the result once.
func (e *Engine) composePrice(rules []*models.PricingRule, channel models.Channel, base models.Money, date, now time.Time) (decimal.Decimal, []models.Adjustment) {
	price := base.Amount
	adjustments := []models.Adjustment{}

	if rule := winner(ofType(rules, models.RuleTypePriceOverride, channel)); rule != nil {
		override := rule.Payload.(models.PriceOverridePayload).Price
		adjustments = append(adjustments, models.Adjustment{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Kind:     models.AdjustmentPriceOverride,
			Amount:   override.Sub(price),
		})
		price = override
	}

	var eligible []*models.PricingRule
	for _, rule := range ofType(rules, models.RuleTypePromotion, channel) {
		promo := rule.Payload.(models.PromotionPayload)
		if promo.HasAdjustment() && promotionEligible(promo, date, now) {
			eligible = append(eligible, rule)
		}
	}
	// weakest first, so the strongest promotion compounds last
	sort.SliceStable(eligible, func(i, j int) bool {
		return compareStrength(eligible[i], eligible[j]) < 0
	})

	for _, rule := range eligible {
		promo := rule.Payload.(models.PromotionPayload)
		adj := models.Adjustment{
			RuleID:        rule.ID,
			RuleName:      rule.Name,
			Kind:          models.AdjustmentPromotion,
			PromotionKind: promo.Kind,
		}
		if promo.AdjustmentPercent != nil {
			percent := *promo.AdjustmentPercent
			adj.Amount = price.Mul(percent).Div(hundred)
			adj.IsPercentage = true
			adj.Percent = &percent
		} else {
			adj.Amount = *promo.AdjustmentAmount
		}
		price = price.Add(adj.Amount)
		adjustments = append(adjustments, adj)
	}

	return utils.RoundToMinorUnit(price, base.Currency), adjustments
}

// promotionEligible evaluates the promotion's time window. The rule's own
// date range has already been checked by the matcher.
func promotionEligible(promo models.PromotionPayload, date, now time.Time) bool {
	lead := utils.DaysBetween(now, date)

	switch promo.Kind {
	case models.PromotionLastMinute:
		return lead <= promo.DaysBeforeArrival
	case models.PromotionEarlyBird:
		return lead >= promo.DaysBeforeArrival
	case models.PromotionWeekend:
		return utils.IsWeekendNight(date)
	case models.PromotionWeekday:
		return !utils.IsWeekendNight(date)
	case models.PromotionLongStay:
		// stay length is enforced at booking time
		return true
	}
	return false
}

// blocksFor returns the closing blocks that close the channel. Unscoped
// blocks close every channel; the ChannelAll view is closed by any block.
func blocksFor(rules []*models.PricingRule, channel models.Channel) []*models.PricingRule {
	var out []*models.PricingRule
	for _, rule := range ofType(rules, models.RuleTypeClosingBlock, "") {
		if channel == models.ChannelAll || rule.AppliesToChannel(channel) {
			out = append(out, rule)
		}
	}
	return out
}

// excludedChannels collects the channels closed by matched channel
// restrictions. A restriction without a channel list closes them all.
func excludedChannels(rules []*models.PricingRule) map[models.Channel]bool {
	excluded := make(map[models.Channel]bool)
	for _, rule := range ofType(rules, models.RuleTypeChannelRestriction, "") {
		if len(rule.Channels) == 0 {
			for _, c := range models.BookableChannels {
				excluded[c] = true
			}
			continue
		}
		for _, c := range rule.Channels {
			if c == models.ChannelAll {
				for _, all := range models.BookableChannels {
					excluded[all] = true
				}
				continue
			}
			excluded[c] = true
		}
	}
	return excluded
}
