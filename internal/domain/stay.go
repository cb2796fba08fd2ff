package domain

import (
	"math"
	"time"
)

const DateLayout = "2006-01-02"

// DateRange is the half-open day range [From, To) of a stay.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange truncates both ends to UTC days and rejects empty or inverted ranges.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: Day(from), To: Day(to)}
	if !r.To.After(r.From) {
		return DateRange{}, &FilterError{Field: "dates", Reason: "check-out must be after check-in"}
	}
	return r, nil
}

// Day returns t truncated to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r DateRange) Nights() int {
	return int(r.To.Sub(r.From).Hours() / 24)
}

func (r DateRange) Days() []time.Time {
	out := make([]time.Time, 0, r.Nights())
	for d := r.From; d.Before(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

type ReservationStatus int

const (
	ReservationPending ReservationStatus = iota
	ReservationConfirmed
	ReservationCancelled
)

// ReservationWindow occupies Rooms rooms of a unit for the days [From, To).
type ReservationWindow struct {
	ID     int64
	UnitID int64
	From   time.Time
	To     time.Time
	Rooms  int
	Status ReservationStatus
}

func (w ReservationWindow) Covers(day time.Time) bool {
	return !day.Before(Day(w.From)) && day.Before(Day(w.To))
}

// RemainingOn is capacity minus the confirmed rooms occupied on day.
func RemainingOn(capacity int, windows []ReservationWindow, day time.Time) int {
	left := capacity
	for _, w := range windows {
		if w.Status == ReservationConfirmed && w.Covers(day) {
			left -= w.Rooms
		}
	}
	return left
}

// HasAvailability reports whether every day of r leaves at least rooms free.
func HasAvailability(capacity int, windows []ReservationWindow, r DateRange, rooms int) bool {
	for _, d := range r.Days() {
		if RemainingOn(capacity, windows, d) < rooms {
			return false
		}
	}
	return true
}

// PriceRecord is the price of a unit for one day.
type PriceRecord struct {
	UnitID          int64
	Date            time.Time
	Price           float64
	DiscountPercent float64
}

func (p PriceRecord) Discounted() float64 {
	return roundCents(p.Price * (1 - p.DiscountPercent/100))
}

// DailyPrices returns the discounted price of every day of r. Days without
// a record fall back to base with no discount.
func DailyPrices(base float64, records []PriceRecord, r DateRange) []float64 {
	byDay := make(map[time.Time]PriceRecord, len(records))
	for _, rec := range records {
		byDay[Day(rec.Date)] = rec
	}
	out := make([]float64, 0, r.Nights())
	for _, d := range r.Days() {
		if rec, ok := byDay[d]; ok {
			out = append(out, rec.Discounted())
			continue
		}
		out = append(out, roundCents(base))
	}
	return out
}

type PriceMode int

const (
	// PriceTotal compares the sum of the daily prices.
	PriceTotal PriceMode = iota
	// PriceEveryDay requires each daily price to be in range.
	PriceEveryDay
)

// PriceFilter is an inclusive range; a nil bound is open.
type PriceFilter struct {
	Min  *float64
	Max  *float64
	Mode PriceMode
}

func (f PriceFilter) Requested() bool { return f.Min != nil || f.Max != nil }

func (f PriceFilter) inRange(v float64) bool {
	if f.Min != nil && v < *f.Min {
		return false
	}
	if f.Max != nil && v > *f.Max {
		return false
	}
	return true
}

// Matches applies the filter to the daily prices of a stay.
func (f PriceFilter) Matches(daily []float64) bool {
	if f.Mode == PriceEveryDay {
		for _, p := range daily {
			if !f.inRange(p) {
				return false
			}
		}
		return true
	}
	var total float64
	for _, p := range daily {
		total += p
	}
	return f.inRange(roundCents(total))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
