package crm

import (
	"errors"
	"testing"
	"time"
)

func newSale(amountCents int64, renewal bool) Sale {
	return Sale{
		RepID:        "rep-1",
		BusinessName: "Blue Plate Diner",
		PlanName:     "premium",
		LengthMonths: 3,
		SaleAmount:   NewMoney(amountCents),
		IsRenewal:    renewal,
		SaleDate:     date(2025, time.June, 11),
	}
}

func TestCompute_SeventhSignupCrossesIntoBonus(t *testing.T) {
	// GIVEN: A rep with 6 prior non-renewal signups in the trailing 30 days
	// WHEN: Recording a 7th non-renewal sale of $1,000 for a 3-month plan
	// THEN: Tier is bonus (0.20) and the commission is $200.00

	calc := NewCalculator()
	now := date(2025, time.June, 11)

	rec, err := calc.Compute(newSale(100000, false), 7, now) // 6 prior + this one
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if rec.CommissionRate.String() != "0.2" {
		t.Errorf("expected rate 0.20, got %s", rec.CommissionRate)
	}
	if !rec.CommissionAmount.Equal(NewMoney(20000)) {
		t.Errorf("expected $200.00 commission, got %s", rec.CommissionAmount)
	}
	if rec.Status != StatusPending {
		t.Errorf("new records must start pending, got %s", rec.Status)
	}
}

func TestCompute_RenewalExcludedFromCount(t *testing.T) {
	// GIVEN: The same rep, now at 7 signups, immediately records a renewal
	// WHEN: Computing commission with the renewal EXCLUDED from the count
	// THEN: Rate stays at the 0.20 in effect, commission $200.00

	calc := NewCalculator()
	now := date(2025, time.June, 11)

	rec, err := calc.Compute(newSale(100000, true), 7, now) // count unchanged by the renewal
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if rec.CommissionRate.String() != "0.2" {
		t.Errorf("renewal should pay the rate in effect, got %s", rec.CommissionRate)
	}
	if !rec.CommissionAmount.Equal(NewMoney(20000)) {
		t.Errorf("expected $200.00 commission, got %s", rec.CommissionAmount)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	// GIVEN: Identical inputs
	// WHEN: Computing twice
	// THEN: Byte-identical commission amount, rate, and pay period

	calc := NewCalculator()
	now := date(2025, time.June, 11)
	sale := newSale(123457, false) // odd amount to exercise rounding

	a, err := calc.Compute(sale, 4, now)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	b, err := calc.Compute(sale, 4, now)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if a.CommissionAmount.Cents.String() != b.CommissionAmount.Cents.String() {
		t.Errorf("amounts differ: %s vs %s", a.CommissionAmount.Cents, b.CommissionAmount.Cents)
	}
	if a.CommissionRate.String() != b.CommissionRate.String() {
		t.Errorf("rates differ: %s vs %s", a.CommissionRate, b.CommissionRate)
	}
	if !a.PayPeriod.Start.Equal(b.PayPeriod.Start) || !a.PayPeriod.PayDate.Equal(b.PayPeriod.PayDate) {
		t.Errorf("pay periods differ: %v vs %v", a.PayPeriod, b.PayPeriod)
	}
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	// GIVEN: An amount whose commission lands exactly on a half cent
	// WHEN: Computing at the base rate
	// THEN: Rounds up: 30 cents * 0.15 = 4.5 -> 5 cents

	calc := NewCalculator()
	rec, err := calc.Compute(newSale(30, false), 0, date(2025, time.June, 11))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !rec.CommissionAmount.Equal(NewMoney(5)) {
		t.Errorf("expected 5 cents, got %s cents", rec.CommissionAmount.Cents)
	}
}

func TestCompute_PayPeriodFromSaleDate(t *testing.T) {
	// GIVEN: A sale on a Wednesday
	// WHEN: Computing
	// THEN: Record carries the Monday-Sunday period enclosing the sale date

	calc := NewCalculator()
	rec, err := calc.Compute(newSale(100000, false), 0, date(2025, time.June, 11))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if !rec.PayPeriod.Start.Equal(date(2025, time.June, 9)) {
		t.Errorf("expected period start Jun 9, got %s", rec.PayPeriod.Start)
	}
	if !rec.PayPeriod.PayDate.Equal(date(2025, time.June, 20)) {
		t.Errorf("expected pay date Jun 20, got %s", rec.PayPeriod.PayDate)
	}
}

func TestCompute_ValidationErrors(t *testing.T) {
	calc := NewCalculator()
	now := date(2025, time.June, 11)

	cases := []struct {
		name   string
		mutate func(*Sale)
	}{
		{"unknown plan", func(s *Sale) { s.PlanName = "diamond" }},
		{"zero amount", func(s *Sale) { s.SaleAmount = NewMoney(0) }},
		{"negative amount", func(s *Sale) { s.SaleAmount = NewMoney(-100) }},
		{"zero length", func(s *Sale) { s.LengthMonths = 0 }},
		{"negative length", func(s *Sale) { s.LengthMonths = -3 }},
		{"missing rep", func(s *Sale) { s.RepID = "" }},
		{"missing sale date", func(s *Sale) { s.SaleDate = time.Time{} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sale := newSale(100000, false)
			tc.mutate(&sale)

			_, err := calc.Compute(sale, 0, now)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestSignupsInWindow(t *testing.T) {
	// GIVEN: A mix of new sales, renewals, and voided sales across 40 days
	// WHEN: Counting the trailing window at asOf
	// THEN: Only non-renewal, non-void sales count, the asOf day included

	asOf := date(2025, time.June, 30)
	mk := func(daysAgo int, renewal bool, status RecordStatus) CommissionRecord {
		return CommissionRecord{
			RepID:     "rep-1",
			SaleDate:  asOf.AddDate(0, 0, -daysAgo),
			IsRenewal: renewal,
			Status:    status,
		}
	}

	records := []CommissionRecord{
		mk(1, false, StatusPending),  // counts
		mk(10, false, StatusPaid),    // counts
		mk(29, false, StatusPending), // counts, just inside
		mk(30, false, StatusPending), // boundary: exactly 30 days back, inside
		mk(31, false, StatusPaid),    // outside
		mk(5, true, StatusPending),   // renewal, never counts
		mk(5, false, StatusVoid),     // void, never counts
		mk(0, false, StatusPending),  // same day as asOf: counts
	}

	if got := SignupsInWindow(records, asOf); got != 5 {
		t.Errorf("expected 5 signups in window, got %d", got)
	}
}

func TestSignupsInWindow_SameDaySaleVisibleToLaterTimestamp(t *testing.T) {
	// GIVEN: A signup recorded earlier today, stored with a day-truncated date
	// WHEN: Counting the window at a mid-day timestamp on the same day
	// THEN: The morning sale counts

	rec := CommissionRecord{
		RepID:    "rep-1",
		SaleDate: date(2025, time.June, 20),
		Status:   StatusPending,
	}
	noon := time.Date(2025, time.June, 20, 12, 30, 0, 0, time.UTC)

	if got := SignupsInWindow([]CommissionRecord{rec}, noon); got != 1 {
		t.Errorf("expected the same-day sale to count, got %d", got)
	}
}
