/*
commission.go - Commission computation

PURPOSE:
  Turns a recorded sale into an immutable CommissionRecord: resolve the
  pay period from the sale date, resolve the tier from the rep's trailing
  signup count, apply the rate, round half-up to the minor unit.

DETERMINISM:
  Compute is a pure function of its inputs. The same sale with the same
  signup count yields a byte-identical commission amount and pay period,
  which is what lets the ledger reconcile exactly against what was paid.

SIGNUP COUNT OWNERSHIP:
  The CALLER supplies signupsInTrailing30Days and includes the current
  sale when it is a new non-renewal signup, excluding it when it is a
  renewal - renewals must not move the rep up or down a tier. The caller
  must also serialize commission creation per rep so two in-flight sales
  never both read the same pre-sale count.

SEE ALSO:
  - payperiod.go, tier.go, plan.go: The three tables consulted here
  - ledger.go: Read-side aggregation of the emitted records
*/
package crm

import (
	"time"

	"github.com/google/uuid"
)

// TrailingWindowDays is the tiering lookback, inclusive of the current
// calendar day at both ends.
const TrailingWindowDays = 30

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator composes the pay-period calendar, tier schedule, and plan
// catalog into commission records.
type Calculator struct {
	Periods PayPeriodConfig
	Tiers   TierConfig
	Plans   PlanCatalog
}

func NewCalculator() *Calculator {
	return &Calculator{
		Periods: DefaultPayPeriodConfig(),
		Tiers:   DefaultTierConfig(),
		Plans:   DefaultPlanCatalog(),
	}
}

// Compute validates the sale and emits a pending commission record.
// now is the audit timestamp for CreatedAt; the computed amount and pay
// period depend only on the sale and the signup count.
func (c *Calculator) Compute(sale Sale, signupsInTrailing30Days int, now time.Time) (CommissionRecord, error) {
	if err := c.validate(sale); err != nil {
		return CommissionRecord{}, err
	}

	rate := c.Tiers.RateFor(signupsInTrailing30Days, sale.IsRenewal)

	return CommissionRecord{
		ID:               RecordID(uuid.NewString()),
		RepID:            sale.RepID,
		LeadID:           sale.LeadID,
		BusinessName:     sale.BusinessName,
		PlanName:         sale.PlanName,
		LengthMonths:     sale.LengthMonths,
		SaleAmount:       sale.SaleAmount,
		IsRenewal:        sale.IsRenewal,
		SaleDate:         DayOf(sale.SaleDate),
		CommissionRate:   rate,
		CommissionAmount: sale.SaleAmount.MulRate(rate),
		PayPeriod:        c.Periods.PeriodFor(sale.SaleDate),
		Status:           StatusPending,
		CreatedAt:        now,
	}, nil
}

func (c *Calculator) validate(sale Sale) error {
	if sale.RepID == "" {
		return &ValidationError{Field: "repId", Message: "required"}
	}
	if _, err := c.Plans.Lookup(sale.PlanName); err != nil {
		return &ValidationError{Field: "planName", Message: "not in catalog: " + sale.PlanName}
	}
	if sale.LengthMonths <= 0 {
		return &ValidationError{Field: "lengthMonths", Message: "must be positive"}
	}
	if !sale.SaleAmount.IsPositive() {
		return &ValidationError{Field: "saleAmount", Message: "must be positive"}
	}
	if sale.SaleDate.IsZero() {
		return &ValidationError{Field: "saleDate", Message: "required"}
	}
	return nil
}

// =============================================================================
// SIGNUP WINDOW
// =============================================================================

// SignupsInWindow counts the non-renewal, non-void records with a sale date
// in the trailing 30 days ending at asOf, inclusive of asOf's own calendar
// day. Sale dates are stored day-truncated, so a sale recorded earlier the
// same day still counts toward a later sale's window. This is the count
// tiering runs on.
func SignupsInWindow(records []CommissionRecord, asOf time.Time) int {
	day := DayOf(asOf)
	from := day.Add(-TrailingWindowDays * 24 * time.Hour)
	n := 0
	for _, r := range records {
		if r.IsRenewal || r.Status == StatusVoid {
			continue
		}
		if !r.SaleDate.Before(from) && !r.SaleDate.After(day) {
			n++
		}
	}
	return n
}
