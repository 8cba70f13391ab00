package validators

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"staypricing/internal/models"
	"staypricing/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func init() {
	validate = validator.New()

	validate.RegisterValidation("currency_code", validateCurrencyCode)
	validate.RegisterValidation("calendar_date", validateCalendarDate)
	validate.RegisterValidation("channel", validateChannel)
	validate.RegisterValidation("rule_type", validateRuleType)
	validate.RegisterValidation("promotion_kind", validatePromotionKind)
	validate.RegisterValidation("price_amount", validatePriceAmount)
}

var (
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidChannel  = errors.New("invalid channel")
)

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// ToMap keys the messages by field for the error envelope.
func (v ValidationErrors) ToMap() map[string]string {
	out := make(map[string]string, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return ValidationErrors{{Field: "request", Tag: "invalid", Message: err.Error()}}
		}
		for _, err := range fieldErrors {
			validationError := ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: getErrorMessage(err),
			}
			validationErrors = append(validationErrors, validationError)
		}
	}

	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "currency_code":
		return "Invalid currency code"
	case "calendar_date":
		return "Date must use the YYYY-MM-DD format"
	case "channel":
		return "Channel must be one of airbnb, booking, vrbo, direct, all"
	case "rule_type":
		return "Unknown rule type"
	case "promotion_kind":
		return "Unknown promotion kind"
	case "price_amount":
		return "Price must be a non-negative number"
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if code == "" {
		return true
	}
	return utils.ValidateCurrencyCode(code)
}

func validateCalendarDate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let required tag handle empty values
	}
	if !dateRegex.MatchString(value) {
		return false
	}
	_, err := utils.ParseDate(value)
	return err == nil
}

func validateChannel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.Channel(value).IsValid()
}

func validateRuleType(fl validator.FieldLevel) bool {
	return models.RuleType(fl.Field().String()).IsValid()
}

func validatePromotionKind(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.PromotionKind(value).IsValid()
}

func validatePriceAmount(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	amount, err := decimal.NewFromString(value)
	return err == nil && !amount.IsNegative()
}

func SanitizeInput(input string) string {
	htmlRegex := regexp.MustCompile(`<[^>]*>`)
	cleaned := htmlRegex.ReplaceAllString(input, "")
	return strings.TrimSpace(cleaned)
}
