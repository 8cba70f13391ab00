package models

import (
	"errors"
	"time"
)

var (
	ErrSelectionNoProperty = errors.New("selection has no property")
	ErrSelectionInverted   = errors.New("selection start date is after end date")
)

// SelectionRange is a contiguous run of nights on a single property.
type SelectionRange struct {
	PropertyID string    `json:"property_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// NewSelectionRange orders the endpoints so that StartDate <= EndDate.
func NewSelectionRange(propertyID string, a, b time.Time) SelectionRange {
	a, b = dateOf(a), dateOf(b)
	if b.Before(a) {
		a, b = b, a
	}
	return SelectionRange{PropertyID: propertyID, StartDate: a, EndDate: b}
}

func (s SelectionRange) Validate() error {
	if s.PropertyID == "" {
		return ErrSelectionNoProperty
	}
	if dateOf(s.EndDate).Before(dateOf(s.StartDate)) {
		return ErrSelectionInverted
	}
	return nil
}

func (s SelectionRange) DateRange() DateRange {
	return DateRange{Start: dateOf(s.StartDate), End: dateOf(s.EndDate)}
}

func (s SelectionRange) Nights() int {
	return s.DateRange().Days()
}

// Dates enumerates every night in the selection.
func (s SelectionRange) Dates() []time.Time {
	dates := make([]time.Time, 0, s.Nights())
	for d := dateOf(s.StartDate); !d.After(dateOf(s.EndDate)); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// CellRef identifies one calendar cell.
type CellRef struct {
	PropertyID string    `json:"property_id"`
	Date       time.Time `json:"date"`
}
