/*
payperiod.go - Weekly pay-period calculator

PURPOSE:
  Maps an arbitrary date to its enclosing weekly pay period. Sales are
  bucketed by period for payout; the pay date trails the period end by a
  fixed offset to allow processing lag.

CADENCE:
  Periods are calendar-week aligned, Monday through Sunday by default.
  A date exactly on the week boundary belongs to the period that STARTS
  on that date, not the one ending the day before.

DETERMINISM:
  PeriodFor is a pure function of its input. Calling it twice with the
  same date yields the identical period, so a sale's pay period never
  silently shifts after the fact.

SEE ALSO:
  - commission.go: Resolves the period for each sale
  - api/payrun.go: Pays out periods once the pay date arrives
*/
package crm

import "time"

// =============================================================================
// PAY PERIOD CONFIG
// =============================================================================

// PayPeriodConfig defines the weekly cadence. The pay-date offset is
// configurable; 5 days after a Sunday end lands on the following Friday.
type PayPeriodConfig struct {
	// WeekStart is the weekday that opens a period.
	WeekStart time.Weekday

	// PayDateOffsetDays is added to the period end to get the pay date.
	PayDateOffsetDays int
}

// DefaultPayPeriodConfig is Monday-Sunday with payout the following Friday.
func DefaultPayPeriodConfig() PayPeriodConfig {
	return PayPeriodConfig{
		WeekStart:         time.Monday,
		PayDateOffsetDays: 5,
	}
}

// =============================================================================
// PERIOD CALCULATOR
// =============================================================================

// PeriodFor returns the pay period enclosing date. Pure: no clock reads.
func (c PayPeriodConfig) PeriodFor(date time.Time) PayPeriod {
	day := DayOf(date)

	// Days back to the most recent week start. A date already on the week
	// start opens its own period (back == 0).
	back := (int(day.Weekday()) - int(c.WeekStart) + 7) % 7

	start := day.AddDate(0, 0, -back)
	end := start.AddDate(0, 0, 6)
	return PayPeriod{
		Start:   start,
		End:     end,
		PayDate: end.AddDate(0, 0, c.PayDateOffsetDays),
	}
}

// PreviousPeriod returns the period immediately before the one enclosing
// date.
func (c PayPeriodConfig) PreviousPeriod(date time.Time) PayPeriod {
	return c.PeriodFor(c.PeriodFor(date).Start.AddDate(0, 0, -1))
}

// NextPeriod returns the period immediately after the one enclosing date.
func (c PayPeriodConfig) NextPeriod(date time.Time) PayPeriod {
	return c.PeriodFor(c.PeriodFor(date).End.AddDate(0, 0, 1))
}
