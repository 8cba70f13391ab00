package pricing

import (
	"errors"
	"fmt"
	"strings"

	"staypricing/internal/models"
)

var (
	ErrConfiguration   = errors.New("pricing rule configuration error")
	ErrUnknownChannel  = errors.New("unknown sales channel")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrRangeTooLong    = errors.New("date range exceeds the projection limit")
	ErrMissingCurrency = errors.New("base price has no currency")
)

// RuleIssue describes one matched rule whose payload is inconsistent.
type RuleIssue struct {
	RuleID   string          `json:"rule_id"`
	RuleType models.RuleType `json:"rule_type"`
	Reason   string          `json:"reason"`
}

// ConfigurationError lists the matched rules that were left out of a
// resolution because their payloads are malformed.
type ConfigurationError struct {
	Issues []RuleIssue
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("rule %s (%s): %s", issue.RuleID, issue.RuleType, issue.Reason))
	}
	return "malformed pricing rules: " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// RuleIDs returns the ids of the offending rules.
func (e *ConfigurationError) RuleIDs() []string {
	ids := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		ids = append(ids, issue.RuleID)
	}
	return ids
}

func (e *ConfigurationError) add(rule *models.PricingRule, err error) {
	e.Issues = append(e.Issues, RuleIssue{
		RuleID:   rule.ID,
		RuleType: rule.Type(),
		Reason:   err.Error(),
	})
}
