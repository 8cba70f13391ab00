package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/utils"
	"staypricing/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type ProjectorConfig struct {
	MaxDays     int
	Concurrency int
}

// CalendarProjector resolves a run of nights for a property. It reads one
// snapshot of the rule store per projection and calls the engine per date.
type CalendarProjector struct {
	rules  interfaces.PricingRuleRepository
	prices interfaces.BasePriceSource
	engine *Engine
	logger *logger.Logger
	config ProjectorConfig
}

func NewCalendarProjector(
	rules interfaces.PricingRuleRepository,
	prices interfaces.BasePriceSource,
	engine *Engine,
	log *logger.Logger,
	config ProjectorConfig,
) *CalendarProjector {
	if engine == nil {
		engine = NewEngine(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	if config.MaxDays <= 0 {
		config.MaxDays = utils.MaxProjectionDays
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &CalendarProjector{
		rules:  rules,
		prices: prices,
		engine: engine,
		logger: log,
		config: config,
	}
}

// Project returns one DailyPricing per night of dateRange, in date order.
// Malformed rules are logged and left out; they do not fail the projection.
func (p *CalendarProjector) Project(ctx context.Context, propertyID string, dateRange models.DateRange, channel models.Channel, now time.Time) ([]*models.DailyPricing, error) {
	if !dateRange.IsValid() {
		return nil, ErrInvalidRange
	}
	if dateRange.Days() > p.config.MaxDays {
		return nil, fmt.Errorf("%w: %d nights requested, limit is %d", ErrRangeTooLong, dateRange.Days(), p.config.MaxDays)
	}
	if !channel.IsValid() {
		return nil, ErrUnknownChannel
	}

	rules, err := p.rules.List(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing rules: %w", err)
	}

	reported := make(map[string]bool)
	days := make([]*models.DailyPricing, 0, dateRange.Days())

	var loopErr error
	utils.EachDate(dateRange.Start, dateRange.End, func(date time.Time) bool {
		if err := ctx.Err(); err != nil {
			loopErr = err
			return false
		}

		base, err := p.prices.BasePrice(ctx, propertyID, date)
		if err != nil {
			loopErr = fmt.Errorf("failed to get base price for %s: %w", utils.FormatDate(date), err)
			return false
		}

		day, err := p.engine.Resolve(propertyID, date, channel, base, rules, now)
		if err != nil {
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				loopErr = err
				return false
			}
			p.reportIssues(ctx, propertyID, cfgErr, reported)
		}
		days = append(days, day)
		return true
	})
	if loopErr != nil {
		return nil, loopErr
	}

	return days, nil
}

// ProjectPortfolio projects several properties concurrently. Properties are
// independent, so a failure on one cancels the rest and is returned.
func (p *CalendarProjector) ProjectPortfolio(ctx context.Context, propertyIDs []string, dateRange models.DateRange, channel models.Channel, now time.Time) (map[string][]*models.DailyPricing, error) {
	var mu sync.Mutex
	results := make(map[string][]*models.DailyPricing, len(propertyIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for _, propertyID := range propertyIDs {
		propertyID := propertyID
		g.Go(func() error {
			days, err := p.Project(gctx, propertyID, dateRange, channel, now)
			if err != nil {
				return fmt.Errorf("property %s: %w", propertyID, err)
			}
			mu.Lock()
			results[propertyID] = days
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// reportIssues logs each malformed rule once per projection.
func (p *CalendarProjector) reportIssues(ctx context.Context, propertyID string, cfgErr *ConfigurationError, reported map[string]bool) {
	for _, issue := range cfgErr.Issues {
		if reported[issue.RuleID] {
			continue
		}
		reported[issue.RuleID] = true
		p.logger.WithContext(ctx).LogConfigurationIssue(propertyID, issue.RuleID, string(issue.RuleType), issue.Reason)
	}
}
