/*
ledger.go - Commission ledger: status transitions and read-side summary

PURPOSE:
  The commission ledger is append-only: a record is created exactly once
  per sale and the only mutable field is Status. Correcting a mistake
  means voiding the record and issuing a new one - history is preserved,
  totals stay auditable.

STATUS TRANSITIONS:
  pending -> paid    payout processed
  pending -> void    correction before payout
  paid    -> void    clawback after payout

  Everything else is rejected: paid never regresses to pending, void
  records are terminal, and a no-op "transition" is rejected rather than
  silently accepted.

SUMMARY:
  Monetary totals partition strictly on status. Void records are excluded
  from every total but remain in the ledger for audit. Tier standing is
  always derived from the FULL record set at asOf, regardless of any
  period filter on the totals.

SEE ALSO:
  - commission.go: Produces the records summarized here
  - api/payrun.go: Drives pending -> paid once pay dates arrive
*/
package crm

import "time"

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// CanTransition reports whether a commission record may move from -> to.
func CanTransition(from, to RecordStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusPaid || to == StatusVoid
	case StatusPaid:
		return to == StatusVoid
	default:
		// Void is terminal.
		return false
	}
}

// Transition returns a copy of the record with the new status, or
// ErrIllegalStatusTransition. The input record is never modified.
func Transition(rec CommissionRecord, to RecordStatus) (CommissionRecord, error) {
	if !CanTransition(rec.Status, to) {
		return rec, &StatusTransitionError{RecordID: rec.ID, From: rec.Status, To: to}
	}
	rec.Status = to
	return rec, nil
}

// =============================================================================
// PERIOD FILTER
// =============================================================================

type PeriodFilter string

const (
	FilterAll            PeriodFilter = "all"
	FilterCurrentPeriod  PeriodFilter = "current"
	FilterPreviousPeriod PeriodFilter = "previous"
)

// =============================================================================
// LEDGER SUMMARY
// =============================================================================

// LedgerSummary is the read-side view of a rep's ledger.
type LedgerSummary struct {
	RepID RepID
	AsOf  time.Time

	// Totals over the filtered, non-void records.
	TotalPending Money
	TotalPaid    Money
	TotalEarned  Money
	RecordCount  int

	// Tier standing, derived from the full ledger at AsOf.
	CurrentTier             Tier
	SignupsInTrailing30Days int
	SignupsUntilBonus       int

	// Period is set when the totals were filtered to one pay period.
	Period *PayPeriod
}

// Summarizer aggregates a rep's commission records.
type Summarizer struct {
	Periods PayPeriodConfig
	Tiers   TierConfig
}

func NewSummarizer() *Summarizer {
	return &Summarizer{
		Periods: DefaultPayPeriodConfig(),
		Tiers:   DefaultTierConfig(),
	}
}

// Summarize computes totals and tier standing for one rep's records.
// records must all belong to the same rep; the filter narrows the totals,
// never the tier computation.
func (s *Summarizer) Summarize(repID RepID, records []CommissionRecord, asOf time.Time, filter PeriodFilter) LedgerSummary {
	summary := LedgerSummary{
		RepID:        repID,
		AsOf:         asOf,
		TotalPending: NewMoney(0),
		TotalPaid:    NewMoney(0),
		TotalEarned:  NewMoney(0),
	}

	var period *PayPeriod
	switch filter {
	case FilterCurrentPeriod:
		p := s.Periods.PeriodFor(asOf)
		period = &p
	case FilterPreviousPeriod:
		p := s.Periods.PreviousPeriod(asOf)
		period = &p
	}
	summary.Period = period

	for _, r := range records {
		if r.Status == StatusVoid {
			continue
		}
		if period != nil && !r.PayPeriod.Start.Equal(period.Start) {
			continue
		}
		summary.RecordCount++
		summary.TotalEarned = summary.TotalEarned.Add(r.CommissionAmount)
		switch r.Status {
		case StatusPending:
			summary.TotalPending = summary.TotalPending.Add(r.CommissionAmount)
		case StatusPaid:
			summary.TotalPaid = summary.TotalPaid.Add(r.CommissionAmount)
		}
	}

	signups := SignupsInWindow(records, asOf)
	summary.SignupsInTrailing30Days = signups
	summary.SignupsUntilBonus = s.Tiers.SignupsUntilBonus(signups)
	summary.CurrentTier = s.Tiers.TierFor(signups)

	return summary
}
