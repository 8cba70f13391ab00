package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code       string `json:"code"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	MinorUnits int32  `json:"minor_units"`
}

var SupportedCurrencies = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar", MinorUnits: 2},
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro", MinorUnits: 2},
	"GBP": {Code: "GBP", Symbol: "£", Name: "British Pound", MinorUnits: 2},
	"CAD": {Code: "CAD", Symbol: "C$", Name: "Canadian Dollar", MinorUnits: 2},
	"AUD": {Code: "AUD", Symbol: "A$", Name: "Australian Dollar", MinorUnits: 2},
	"JPY": {Code: "JPY", Symbol: "¥", Name: "Japanese Yen", MinorUnits: 0},
	"KRW": {Code: "KRW", Symbol: "₩", Name: "South Korean Won", MinorUnits: 0},
	"CHF": {Code: "CHF", Symbol: "CHF", Name: "Swiss Franc", MinorUnits: 2},
	"MXN": {Code: "MXN", Symbol: "$", Name: "Mexican Peso", MinorUnits: 2},
	"BRL": {Code: "BRL", Symbol: "R$", Name: "Brazilian Real", MinorUnits: 2},
}

var half = decimal.New(5, -1)

// MinorUnits returns the number of decimal places of the currency's minor
// unit. Unknown codes fall back to two places.
func MinorUnits(currencyCode string) int32 {
	if currency, ok := SupportedCurrencies[strings.ToUpper(currencyCode)]; ok {
		return currency.MinorUnits
	}
	return 2
}

// RoundHalfUp rounds to the given number of places, sending exact halves
// towards positive infinity.
func RoundHalfUp(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.Shift(places).Add(half).Floor().Shift(-places)
}

func RoundToMinorUnit(amount decimal.Decimal, currencyCode string) decimal.Decimal {
	return RoundHalfUp(amount, MinorUnits(currencyCode))
}

func ValidateCurrencyCode(code string) bool {
	_, exists := SupportedCurrencies[strings.ToUpper(code)]
	return exists
}

func GetCurrencySymbol(currencyCode string) string {
	currency, exists := SupportedCurrencies[strings.ToUpper(currencyCode)]
	if !exists {
		return "$"
	}
	return currency.Symbol
}

func FormatCurrency(amount decimal.Decimal, currencyCode string) string {
	places := MinorUnits(currencyCode)
	return fmt.Sprintf("%s%s", GetCurrencySymbol(currencyCode), RoundHalfUp(amount, places).StringFixed(places))
}
