/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error kinds in one place. Callers classify with errors.Is and the
  helpers at the bottom; nothing in this package is ever fatal to the
  process - every failure is scoped to one request and returned as a value.

ERROR CATEGORIES:
  1. Arbitration errors - lead locked, lost conditional write
  2. Validation errors - malformed sale input
  3. Ledger errors - illegal commission status transitions

USAGE:
  if errors.Is(err, crm.ErrLeadLocked) {
      // surface 423 to the caller; do not retry
  }
  if crm.IsRetryable(err) {
      // re-read the lead and arbitrate again
  }

SEE ALSO:
  - ownership.go: Produces ErrLeadLocked
  - commission.go: Produces validation errors
  - ledger.go: Produces ErrIllegalStatusTransition
*/
package crm

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrLeadLocked is returned when a mutation is rejected because the lead
	// is freshly owned by another rep. Recoverable by waiting out the
	// staleness window or by admin intervention. Never retried automatically.
	ErrLeadLocked = errors.New("lead locked by another rep")

	// ErrConcurrentModification is returned by stores when a conditional
	// write lost a race. The caller must re-read and re-arbitrate; the
	// staleness verdict itself may have changed.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrIllegalStatusTransition is returned for commission status moves
	// outside the transition table (paid back to pending, any mutation of a
	// void record). Always rejected, never retried.
	ErrIllegalStatusTransition = errors.New("illegal commission status transition")

	// ErrUnknownPlan is returned when a sale names a plan missing from the
	// catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrInvalidStatus is returned for a lead status outside the pipeline.
	ErrInvalidStatus = errors.New("invalid lead status")

	// ErrLeadNotFound / ErrRecordNotFound are returned by stores.
	ErrLeadNotFound   = errors.New("lead not found")
	ErrRecordNotFound = errors.New("commission record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LeadLockedError reports who holds the lock and when it goes stale.
type LeadLockedError struct {
	LeadID     LeadID
	Owner      RepID
	StaleAfter time.Time
}

func (e *LeadLockedError) Error() string {
	return fmt.Sprintf("lead %s locked by %s until %s",
		e.LeadID, e.Owner, e.StaleAfter.Format(time.RFC3339))
}

func (e *LeadLockedError) Unwrap() error {
	return ErrLeadLocked
}

// ValidationError reports a malformed sale input. Field names the offending
// input; nothing is partially applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StatusTransitionError reports a rejected commission status move.
type StatusTransitionError struct {
	RecordID RecordID
	From     RecordStatus
	To       RecordStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("record %s: cannot move %s -> %s", e.RecordID, e.From, e.To)
}

func (e *StatusTransitionError) Unwrap() error {
	return ErrIllegalStatusTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-reading and re-arbitrating might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the caller's input or
// state, not an internal failure.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrLeadLocked) ||
		errors.Is(err, ErrIllegalStatusTransition) ||
		errors.Is(err, ErrUnknownPlan) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.As(err, &ve)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound) || errors.Is(err, ErrRecordNotFound)
}
