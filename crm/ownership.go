/*
ownership.go - Lead ownership arbitration

PURPOSE:
  Decides, for every lead-mutating action, whether the mutation is
  permitted and whether ownership transfers. This is the lock that keeps
  two reps from working the same lead, and the use-it-or-lose-it rule
  that keeps leads from rotting under an inactive owner.

STATE MACHINE:
  Ownership state is DERIVED from (owner, now - updatedAt), never stored:

    Unowned            no owner set
    OwnedFresh(owner)  owner set, updated within the staleness window
    OwnedStale(owner)  owner set, untouched for the full window (14 days)

  Transitions on a mutation by `actor`:
    admin                        -> allowed; ownership untouched unless the
                                    request explicitly reassigns it
    Unowned                      -> allowed; ownership transfers if the
                                    action implies taking the lead
    OwnedFresh, actor == owner   -> allowed, no ownership change
    OwnedFresh, actor != owner   -> REJECTED (lead locked), lead untouched
    OwnedStale, actor == owner   -> allowed, no ownership change
    OwnedStale, actor != owner   -> allowed, ownership silently reassigns

CONCURRENCY CONTRACT:
  Arbitrate is pure: it decides against the snapshot it was handed. The
  caller must persist the resulting lead with a conditional write keyed on
  the snapshot's (owner, updatedAt) and, on ErrConcurrentModification,
  retry FROM THE READ - the staleness verdict itself may have changed.

SEE ALSO:
  - store.go: The compare-and-set contract
  - api/handlers.go: The retry loop
*/
package crm

import (
	"time"

	"github.com/google/uuid"
)

// DefaultStaleAfter is the window after which an untouched lead becomes
// eligible for reassignment.
const DefaultStaleAfter = 14 * 24 * time.Hour

// =============================================================================
// MUTATIONS
// =============================================================================

type MutationKind string

const (
	// MutationStatusChange moves the lead through the pipeline.
	MutationStatusChange MutationKind = "status_change"

	// MutationFieldEdit updates contact fields or notes.
	MutationFieldEdit MutationKind = "field_edit"

	// MutationActivity logs a touch (call, visit) with no field changes.
	MutationActivity MutationKind = "activity"
)

// Mutation is a proposed change to a lead. Field pointers are applied only
// when set; Kind names the primary action for ownership purposes.
type Mutation struct {
	Kind      MutationKind
	NewStatus LeadStatus // status_change only

	BusinessName *string
	ContactName  *string
	Phone        *string
	Notes        *string

	// Claim forces taking an unowned lead even on a bare field edit.
	Claim bool

	// ReassignTo explicitly moves ownership; honored for admins only.
	// A pointer to the empty RepID clears the owner.
	ReassignTo *RepID
}

// takesOwnership reports whether this action implies working the lead.
// Status changes and logged activities claim an unowned lead; a bare field
// edit does not unless Claim is set.
func (m Mutation) takesOwnership() bool {
	return m.Claim || m.Kind == MutationStatusChange || m.Kind == MutationActivity
}

// =============================================================================
// OWNERSHIP STATE
// =============================================================================

type OwnershipState string

const (
	Unowned    OwnershipState = "unowned"
	OwnedFresh OwnershipState = "owned_fresh"
	OwnedStale OwnershipState = "owned_stale"
)

// =============================================================================
// ARBITRATOR
// =============================================================================

type Arbitrator struct {
	// StaleAfter is the staleness window, evaluated against UpdatedAt.
	StaleAfter time.Duration
}

func NewArbitrator() *Arbitrator {
	return &Arbitrator{StaleAfter: DefaultStaleAfter}
}

// IsStale reports whether a lead last updated at updatedAt is stale at now.
// Exactly on the boundary counts as stale.
func (a *Arbitrator) IsStale(now, updatedAt time.Time) bool {
	return now.Sub(updatedAt) >= a.StaleAfter
}

// StateOf derives the ownership state of a lead at now.
func (a *Arbitrator) StateOf(lead Lead, now time.Time) OwnershipState {
	if lead.Owner == nil {
		return Unowned
	}
	if a.IsStale(now, lead.UpdatedAt) {
		return OwnedStale
	}
	return OwnedFresh
}

// Decision is the outcome of arbitration. On rejection, Lead is the input
// snapshot unchanged and Reason carries the error; nothing may be persisted.
type Decision struct {
	Allowed          bool
	Reason           error
	Lead             Lead
	OwnershipChanged bool

	// StatusChange is the history entry to append when the mutation changed
	// the lead's status, nil otherwise.
	StatusChange *StatusChange
}

// Arbitrate decides a proposed mutation against a lead snapshot. Pure: no
// clock reads, no I/O, no side effects on the input.
func (a *Arbitrator) Arbitrate(lead Lead, actor Actor, now time.Time, m Mutation) Decision {
	if m.Kind == MutationStatusChange && !ValidLeadStatus(m.NewStatus) {
		return Decision{Lead: lead, Reason: ErrInvalidStatus}
	}

	result := lead
	ownershipChanged := false

	switch {
	case actor.IsAdmin:
		if m.ReassignTo != nil {
			ownershipChanged = a.reassign(&result, *m.ReassignTo)
		}

	case lead.Owner == nil:
		if m.takesOwnership() {
			ownershipChanged = a.reassign(&result, actor.ID)
		}

	case *lead.Owner == actor.ID:
		// Owner acting on their own lead, fresh or stale.

	case a.IsStale(now, lead.UpdatedAt):
		// Use-it-or-lose-it: the mutation goes through and the lead moves
		// to whoever is actually working it.
		ownershipChanged = a.reassign(&result, actor.ID)

	default:
		return Decision{
			Lead: lead,
			Reason: &LeadLockedError{
				LeadID:     lead.ID,
				Owner:      *lead.Owner,
				StaleAfter: lead.UpdatedAt.Add(a.StaleAfter),
			},
		}
	}

	var change *StatusChange
	if m.Kind == MutationStatusChange && m.NewStatus != lead.Status {
		change = &StatusChange{
			ID:      uuid.NewString(),
			LeadID:  lead.ID,
			From:    lead.Status,
			To:      m.NewStatus,
			ActorID: actor.ID,
			At:      now,
		}
		result.Status = m.NewStatus
	}

	applyFields(&result, m)
	result.UpdatedAt = now

	return Decision{
		Allowed:          true,
		Lead:             result,
		OwnershipChanged: ownershipChanged,
		StatusChange:     change,
	}
}

// reassign sets the owner, reporting whether it actually changed.
func (a *Arbitrator) reassign(lead *Lead, to RepID) bool {
	if to == "" {
		changed := lead.Owner != nil
		lead.Owner = nil
		return changed
	}
	if lead.Owner != nil && *lead.Owner == to {
		return false
	}
	owner := to
	lead.Owner = &owner
	return true
}

func applyFields(lead *Lead, m Mutation) {
	if m.BusinessName != nil {
		lead.BusinessName = *m.BusinessName
	}
	if m.ContactName != nil {
		lead.ContactName = *m.ContactName
	}
	if m.Phone != nil {
		lead.Phone = *m.Phone
	}
	if m.Notes != nil {
		lead.Notes = *m.Notes
	}
}
