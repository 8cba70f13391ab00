package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/pricing"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/utils"
	"staypricing/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidPrice     = errors.New("invalid price")
	ErrBulkRangeTooLong = errors.New("bulk edit range too long")
)

// DayFailure is one night a bulk edit could not write.
type DayFailure struct {
	Date time.Time
	Err  error
}

// PartialBulkFailureError reports a bulk edit that wrote some nights but not
// others. Written nights stay committed. Cause is set when the edit was
// cancelled; the nights it never reached are listed in Failed with it.
type PartialBulkFailureError struct {
	PropertyID string
	Succeeded  []time.Time
	Failed     []DayFailure
	Cause      error
}

func (e *PartialBulkFailureError) Error() string {
	dates := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		dates[i] = utils.FormatDate(f.Date)
	}
	msg := fmt.Sprintf("bulk edit of property %s: %d nights written, %d failed (%s)",
		e.PropertyID, len(e.Succeeded), len(e.Failed), strings.Join(dates, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialBulkFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

func (e *PartialBulkFailureError) FailedDates() []time.Time {
	dates := make([]time.Time, len(e.Failed))
	for i, f := range e.Failed {
		dates[i] = f.Date
	}
	return dates
}

type BulkEditResult struct {
	PropertyID string                 `json:"property_id"`
	Channel    models.Channel         `json:"channel"`
	Succeeded  []time.Time            `json:"succeeded"`
	RuleIDs    []string               `json:"rule_ids"`
	Calendar   []*models.DailyPricing `json:"calendar,omitempty"`
}

type BulkEditService interface {
	// ApplyBulkPrice writes one single-night price override per night of the
	// selection and returns the re-projected range. A failure on some nights
	// returns the result together with a *PartialBulkFailureError.
	ApplyBulkPrice(ctx context.Context, selection models.SelectionRange, newPrice models.Money, channelScope models.Channel, now time.Time) (*BulkEditResult, error)
}

type bulkEditService struct {
	rules     interfaces.PricingRuleRepository
	projector *pricing.CalendarProjector
	matcher   *pricing.RuleMatcher
	locker    PropertyLocker
	publisher EventPublisher
	logger    *logger.Logger
	maxDays   int
	clock     func() time.Time
}

func NewBulkEditService(
	rules interfaces.PricingRuleRepository,
	projector *pricing.CalendarProjector,
	locker PropertyLocker,
	publisher EventPublisher,
	log *logger.Logger,
	maxDays int,
) BulkEditService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if publisher == nil {
		publisher = NewNopEventPublisher()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if maxDays <= 0 {
		maxDays = utils.MaxBulkEditDays
	}
	return &bulkEditService{
		rules:     rules,
		projector: projector,
		matcher:   pricing.NewRuleMatcher(),
		locker:    locker,
		publisher: publisher,
		logger:    log,
		maxDays:   maxDays,
		clock:     time.Now,
	}
}

func (s *bulkEditService) ApplyBulkPrice(ctx context.Context, selection models.SelectionRange, newPrice models.Money, channelScope models.Channel, now time.Time) (*BulkEditResult, error) {
	if newPrice.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, utils.ErrInvalidNewPrice)
	}
	if newPrice.Currency != "" && !utils.ValidateCurrencyCode(newPrice.Currency) {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidPrice, newPrice.Currency)
	}
	if err := selection.Validate(); err != nil {
		return nil, err
	}
	if channelScope == "" {
		channelScope = models.ChannelAll
	}
	if !channelScope.IsValid() {
		return nil, pricing.ErrUnknownChannel
	}
	if selection.Nights() > s.maxDays {
		return nil, fmt.Errorf("%w: %d nights requested, limit is %d", ErrBulkRangeTooLong, selection.Nights(), s.maxDays)
	}

	started := s.clock()
	log := s.logger.WithContext(ctx).WithPropertyID(selection.PropertyID).WithField("new_price", newPrice.String())

	unlock, err := s.locker.Lock(ctx, selection.PropertyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// one snapshot for the whole edit; the property lock keeps our own
	// nights from changing underneath it
	existing, err := s.rules.List(ctx, selection.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing rules: %w", err)
	}

	result := &BulkEditResult{
		PropertyID: selection.PropertyID,
		Channel:    channelScope,
		Succeeded:  make([]time.Time, 0, selection.Nights()),
		RuleIDs:    make([]string, 0, selection.Nights()),
	}
	var failed []DayFailure
	var cause error

	for _, date := range selection.Dates() {
		if cause == nil {
			cause = ctx.Err()
		}
		if cause != nil {
			failed = append(failed, DayFailure{Date: date, Err: cause})
			continue
		}

		rule := s.overrideFor(existing, selection.PropertyID, date, newPrice, channelScope)
		if err := s.rules.Upsert(ctx, rule); err != nil {
			log.WithError(err).WithField("date", utils.FormatDate(date)).Warn("Failed to write bulk price override")
			failed = append(failed, DayFailure{Date: date, Err: err})
			continue
		}

		result.Succeeded = append(result.Succeeded, date)
		result.RuleIDs = append(result.RuleIDs, rule.ID)
	}

	log.LogBulkEdit(selection.PropertyID, selection.Nights(), len(result.Succeeded), len(failed), s.clock().Sub(started))

	if len(result.Succeeded) > 0 {
		dateRange := selection.DateRange()
		event := newCalendarEvent(utils.EventBulkPriceEdit, selection.PropertyID, &dateRange, channelScope, result.RuleIDs)
		if err := s.publisher.PublishCalendarUpdate(ctx, event); err != nil {
			log.WithError(err).Warn("Failed to publish calendar update")
		}
	}

	var editErr error
	if len(failed) > 0 {
		editErr = &PartialBulkFailureError{
			PropertyID: selection.PropertyID,
			Succeeded:  result.Succeeded,
			Failed:     failed,
			Cause:      cause,
		}
	}

	if cause == nil && s.projector != nil {
		calendar, err := s.projector.Project(ctx, selection.PropertyID, selection.DateRange(), channelScope, now)
		if err != nil {
			return result, errors.Join(editErr, fmt.Errorf("failed to re-project calendar: %w", err))
		}
		result.Calendar = calendar
	}

	return result, editErr
}

// overrideFor builds the night's override. It reuses the night's earlier bulk
// override for the same channel scope and outranks every other override that
// can apply to that night and scope.
func (s *bulkEditService) overrideFor(rules []*models.PricingRule, propertyID string, date time.Time, price models.Money, channelScope models.Channel) *models.PricingRule {
	now := s.clock().UTC()
	own := findBulkOverride(rules, propertyID, date, channelScope)

	highest := 0
	for _, rule := range s.matcher.MatchScope(rules, propertyID, date) {
		if rule.Type() != models.RuleTypePriceOverride {
			continue
		}
		if own != nil && rule.ID == own.ID {
			continue
		}
		if channelScope != models.ChannelAll && !rule.AppliesToChannel(channelScope) {
			continue
		}
		if rule.Priority > highest {
			highest = rule.Priority
		}
	}

	rule := &models.PricingRule{
		ID:            uuid.NewString(),
		PropertyScope: models.SpecificProperty(propertyID),
		Name:          "Bulk price " + utils.FormatDate(date),
		Enabled:       true,
		Priority:      highest + 1,
		DateRange:     &models.DateRange{Start: date, End: date},
		Payload:       models.PriceOverridePayload{Price: price.Amount},
		Source:        models.RuleSourceBulkEdit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if channelScope != models.ChannelAll {
		rule.Channels = []models.Channel{channelScope}
	}
	if own != nil {
		rule.ID = own.ID
		rule.CreatedAt = own.CreatedAt
	}
	return rule
}

func findBulkOverride(rules []*models.PricingRule, propertyID string, date time.Time, channelScope models.Channel) *models.PricingRule {
	for _, rule := range rules {
		if rule.Source != models.RuleSourceBulkEdit || rule.Type() != models.RuleTypePriceOverride {
			continue
		}
		if rule.PropertyScope.IsAll() || rule.PropertyScope.PropertyID != propertyID {
			continue
		}
		if rule.DateRange == nil || rule.DateRange.Days() != 1 || !rule.DateRange.Contains(date) {
			continue
		}
		if sameChannelScope(rule.Channels, channelScope) {
			return rule
		}
	}
	return nil
}

func sameChannelScope(channels []models.Channel, scope models.Channel) bool {
	if scope == models.ChannelAll {
		return len(channels) == 0 || (len(channels) == 1 && channels[0] == models.ChannelAll)
	}
	return len(channels) == 1 && channels[0] == scope
}
