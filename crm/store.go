/*
store.go - Persistence contracts consumed by the engine's callers

PURPOSE:
  The engine itself never issues queries; it decides against snapshots.
  These interfaces are the contract the surrounding layer programs
  against, and they carry the one concurrency rule the engine depends on:
  lead writes are CONDITIONAL.

COMPARE-AND-SET CONTRACT:
  Update persists an arbitrated lead only if the stored (owner, updatedAt)
  still match the snapshot the decision was made against. On mismatch it
  returns ErrConcurrentModification and writes nothing; the caller must
  re-read and re-arbitrate rather than reapply the old decision, because
  the staleness verdict may have flipped in between.

APPEND-ONLY LEDGER:
  CommissionStore has no update beyond SetStatus, and SetStatus is itself
  conditional on the current status. Records are never deleted.

IMPLEMENTATIONS:
  - store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite, production

SEE ALSO:
  - ownership.go: Produces the decisions persisted through LeadStore
  - ledger.go: Transition table enforced above SetStatus
*/
package crm

import (
	"context"
	"time"
)

// LeadSnapshot is the optimistic-concurrency token for a lead write.
type LeadSnapshot struct {
	Owner     *RepID
	UpdatedAt time.Time
}

// SnapshotOf captures the concurrency token from a lead as read.
func SnapshotOf(lead Lead) LeadSnapshot {
	return LeadSnapshot{Owner: lead.Owner, UpdatedAt: lead.UpdatedAt}
}

// LeadStore persists leads and their status history.
type LeadStore interface {
	// CreateLead inserts a new lead.
	CreateLead(ctx context.Context, lead Lead) error

	// GetLead returns a lead snapshot, or ErrLeadNotFound.
	GetLead(ctx context.Context, id LeadID) (Lead, error)

	// ListLeads returns all leads, newest first.
	ListLeads(ctx context.Context) ([]Lead, error)

	// UpdateLead persists an arbitrated lead, appending the history entry
	// (when non-nil) in the same atomic write, iff the stored
	// (owner, updatedAt) still equal expect. Returns
	// ErrConcurrentModification on mismatch.
	UpdateLead(ctx context.Context, lead Lead, history *StatusChange, expect LeadSnapshot) error

	// LeadHistory returns a lead's status changes, oldest first.
	LeadHistory(ctx context.Context, id LeadID) ([]StatusChange, error)
}

// CommissionStore persists the append-only commission ledger.
type CommissionStore interface {
	// AppendRecord inserts a new record. Records are created exactly once
	// per sale; there is no update path besides SetStatus.
	AppendRecord(ctx context.Context, rec CommissionRecord) error

	// GetRecord returns a record, or ErrRecordNotFound.
	GetRecord(ctx context.Context, id RecordID) (CommissionRecord, error)

	// ListByRep returns a rep's records, oldest sale first.
	ListByRep(ctx context.Context, repID RepID) ([]CommissionRecord, error)

	// SetStatus moves a record from -> to, conditional on the stored status
	// still being from. Returns ErrConcurrentModification on mismatch.
	// Callers validate the move with CanTransition first.
	SetStatus(ctx context.Context, id RecordID, from, to RecordStatus) error

	// ListPayable returns pending records whose pay date is on or before
	// asOf, across all reps.
	ListPayable(ctx context.Context, asOf time.Time) ([]CommissionRecord, error)
}
