// Package summary frames reporting periods and derives summary figures from
// raw ledger aggregates.
package summary

import (
	"fmt"
	"time"
)

const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
	PeriodTrend   = "trend"

	// TrendLength is the number of months in a trend, ending with the current month.
	TrendLength = 12
)

// Window is a closed time interval. End is one millisecond before the start
// of the following period.
type Window struct {
	Start time.Time
	End   time.Time
}

func closed(start, next time.Time) Window {
	return Window{Start: start, End: next.Add(-time.Millisecond)}
}

// Daily frames the calendar day containing date in loc.
func Daily(date time.Time, loc *time.Location) Window {
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return closed(start, start.AddDate(0, 0, 1))
}

// Monthly frames the given calendar month in loc.
func Monthly(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return closed(start, start.AddDate(0, 1, 0))
}

// Yearly frames the given calendar year in loc.
func Yearly(year int, loc *time.Location) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return closed(start, start.AddDate(1, 0, 0))
}

// TrendMonth identifies one month of a trend.
type TrendMonth struct {
	Year   int
	Month  time.Month
	Window Window
}

// Label renders the month the way the frontend charts it, e.g. "2024年3月".
func (m TrendMonth) Label() string {
	return fmt.Sprintf("%d年%d月", m.Year, int(m.Month))
}

// TrendMonths returns the TrendLength months ending with the month of now,
// oldest first.
func TrendMonths(now time.Time, loc *time.Location) []TrendMonth {
	n := now.In(loc)
	current := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
	months := make([]TrendMonth, 0, TrendLength)
	for i := TrendLength - 1; i >= 0; i-- {
		start := current.AddDate(0, -i, 0)
		months = append(months, TrendMonth{
			Year:   start.Year(),
			Month:  start.Month(),
			Window: Monthly(start.Year(), start.Month(), loc),
		})
	}
	return months
}
