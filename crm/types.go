/*
Package crm provides the sales lead arbitration and commission engine.

PURPOSE:
  This package contains the decision core behind the sales CRM: who owns a
  lead, whether a rep's mutation goes through, and exactly how much a sale
  pays out. Everything here is a pure computation over snapshots supplied by
  the caller - no I/O, no wall clock, no hidden state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An amount in minor currency units (cents), decimal-backed
  - Lead: A prospective customer moving through the sales pipeline
  - CommissionRecord: An immutable entry in a rep's earnings ledger
  - PayPeriod: The weekly accounting bucket a sale is paid out in
  - Tier: A commission-rate bracket derived from recent performance

DESIGN PRINCIPLES:
  1. Explicit time: "now" and "saleDate" are always parameters, never
     read from the system clock
  2. Immutability: CommissionRecords are never recomputed; corrections
     are void + reissue
  3. Precision: Uses decimal.Decimal so payouts reconcile byte-for-byte
  4. Typed identifiers: LeadID, RepID, RecordID cannot be mixed up

USAGE:
  sale := crm.Sale{RepID: "rep-1", PlanName: "premium", ...}
  rec, err := calc.Compute(sale, signups)

SEE ALSO:
  - ownership.go: Lead ownership state machine
  - commission.go: Commission computation
  - ledger.go: Ledger aggregation and status transitions
*/
package crm

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Amount in minor currency units
// =============================================================================

// Money is a monetary amount in minor units (cents). Backed by
// decimal.Decimal; monetary paths never touch floats.
type Money struct {
	Cents decimal.Decimal
}

func NewMoney(cents int64) Money {
	return Money{Cents: decimal.NewFromInt(cents)}
}

func MustParseRate(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Add(b Money) Money      { return Money{Cents: m.Cents.Add(b.Cents)} }
func (m Money) IsPositive() bool       { return m.Cents.IsPositive() }
func (m Money) IsZero() bool           { return m.Cents.IsZero() }
func (m Money) Equal(b Money) bool     { return m.Cents.Equal(b.Cents) }
func (m Money) IntCents() int64        { return m.Cents.IntPart() }

// MulRate applies a commission rate, rounding to the nearest minor unit,
// half-up. Round(0) on a positive decimal is exactly half-up.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{Cents: m.Cents.Mul(rate).Round(0)}
}

// String formats the amount in major units, e.g. "1000.00".
func (m Money) String() string {
	return m.Cents.Shift(-2).StringFixed(2)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LeadID string
type RepID string
type RecordID string
type MarketID string

// =============================================================================
// LEAD - Prospective customer in the pipeline
// =============================================================================

type LeadStatus string

const (
	LeadNew           LeadStatus = "new"
	LeadContacted     LeadStatus = "contacted"
	LeadInterested    LeadStatus = "interested"
	LeadNotInterested LeadStatus = "not_interested"
	LeadConverted     LeadStatus = "converted"
)

// ValidLeadStatus reports whether s is one of the pipeline statuses.
func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadNew, LeadContacted, LeadInterested, LeadNotInterested, LeadConverted:
		return true
	}
	return false
}

// Lead is a snapshot of a prospective customer. Owner and UpdatedAt together
// form the optimistic-concurrency token: conditional writes compare against
// the values observed at decision time.
type Lead struct {
	ID           LeadID
	BusinessName string
	ContactName  string
	Phone        string
	MarketID     MarketID

	// Owner is nil while the lead is unowned. At most one owner at a time;
	// set only by explicit assignment or arbitration-driven reassignment.
	Owner *RepID

	Status    LeadStatus
	Notes     string
	CreatedAt time.Time

	// UpdatedAt is the last substantive mutation time. Staleness is judged
	// against this, never against CreatedAt.
	UpdatedAt time.Time
}

// StatusChange is one immutable entry in a lead's status history. Appended
// on every transition that changes Status, whether or not ownership moved.
type StatusChange struct {
	ID      string
	LeadID  LeadID
	From    LeadStatus
	To      LeadStatus
	ActorID RepID
	At      time.Time
}

// =============================================================================
// SALES REP
// =============================================================================

// SalesRep identifies a rep. Market scope is enforced by the access-control
// layer outside this package; it is carried here for display and filtering.
type SalesRep struct {
	ID      RepID
	Name    string
	Markets []MarketID
}

// Actor is the identity performing a mutation, as resolved by the caller.
type Actor struct {
	ID      RepID
	IsAdmin bool
}

// =============================================================================
// PAY PERIOD
// =============================================================================

// PayPeriod is the weekly accounting bucket a sale belongs to. Start and End
// are day-aligned (UTC midnight); PayDate is a fixed offset after End.
type PayPeriod struct {
	Start   time.Time
	End     time.Time
	PayDate time.Time
}

func (p PayPeriod) Contains(t time.Time) bool {
	d := DayOf(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p PayPeriod) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// DayOf truncates a timestamp to UTC midnight. All pay-period math happens
// on day-aligned times so a sale's period never depends on time of day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// TIER - Commission-rate bracket
// =============================================================================

// Tier is a value object derived fresh from the trailing window at compute
// time. It is never stored, so historical commission rates stay correct
// even after a rep's standing changes.
type Tier struct {
	Label string
	Rate  decimal.Decimal
}

// =============================================================================
// COMMISSION RECORD - Immutable ledger entry
// =============================================================================

type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusPaid    RecordStatus = "paid"
	StatusVoid    RecordStatus = "void"
)

// CommissionRecord is one computed entry in a rep's earnings ledger, tied to
// one sale. Immutable once created except for Status, which moves only
// forward (see ledger.go for the transition table).
type CommissionRecord struct {
	ID    RecordID
	RepID RepID

	// LeadID is empty for manual sales recorded outside the pipeline.
	LeadID LeadID

	BusinessName string
	PlanName     string
	LengthMonths int
	SaleAmount   Money
	IsRenewal    bool
	SaleDate     time.Time

	// Computed at creation, never recomputed.
	CommissionRate   decimal.Decimal
	CommissionAmount Money
	PayPeriod        PayPeriod

	Status    RecordStatus
	CreatedAt time.Time
}

// Sale is the input for commission computation, supplied by the caller.
type Sale struct {
	RepID        RepID
	LeadID       LeadID
	BusinessName string
	PlanName     string
	LengthMonths int
	SaleAmount   Money
	IsRenewal    bool
	SaleDate     time.Time
}
