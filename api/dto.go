/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts arrive as integer cents (sale_amount_cents) and leave as decimal
  strings ("1000.00"). Rates are decimal strings ("0.15"). No floats cross
  the boundary in monetary fields.

DATES:
  Sale and period dates use YYYY-MM-DD; event timestamps use RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
  - crm/types.go: The domain types these project
*/
package api

import (
	"time"

	"github.com/cumberland/sales-engine/crm"
)

const dateLayout = "2006-01-02"

// =============================================================================
// LEAD TYPES
// =============================================================================

// LeadDTO represents a lead in API responses. Owner is null while unowned.
type LeadDTO struct {
	ID           string  `json:"id"`
	BusinessName string  `json:"business_name"`
	ContactName  string  `json:"contact_name,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	MarketID     string  `json:"market_id,omitempty"`
	Owner        *string `json:"owner"`
	Status       string  `json:"status"`
	Notes        string  `json:"notes,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toLeadDTO(lead crm.Lead) LeadDTO {
	dto := LeadDTO{
		ID:           string(lead.ID),
		BusinessName: lead.BusinessName,
		ContactName:  lead.ContactName,
		Phone:        lead.Phone,
		MarketID:     string(lead.MarketID),
		Status:       string(lead.Status),
		Notes:        lead.Notes,
		CreatedAt:    lead.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    lead.UpdatedAt.Format(time.RFC3339),
	}
	if lead.Owner != nil {
		s := string(*lead.Owner)
		dto.Owner = &s
	}
	return dto
}

// CreateLeadRequest is the request to create a lead. New leads start
// unowned in the "new" status.
type CreateLeadRequest struct {
	BusinessName string `json:"business_name"`
	ContactName  string `json:"contact_name"`
	Phone        string `json:"phone"`
	MarketID     string `json:"market_id"`
	Notes        string `json:"notes"`
}

// MutateLeadRequest proposes a change to a lead. The actor identity is
// resolved by the caller (authentication is out of scope here).
type MutateLeadRequest struct {
	ActorID      string `json:"actor_id"`
	ActorIsAdmin bool   `json:"actor_is_admin"`

	// Kind is status_change, field_edit, or activity.
	Kind      string `json:"kind"`
	NewStatus string `json:"new_status,omitempty"`

	BusinessName *string `json:"business_name,omitempty"`
	ContactName  *string `json:"contact_name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Notes        *string `json:"notes,omitempty"`

	Claim bool `json:"claim,omitempty"`

	// ReassignTo is honored for admins only; "" clears the owner.
	ReassignTo *string `json:"reassign_to,omitempty"`
}

// MutateLeadResponse reports the arbitration outcome for an accepted
// mutation. Rejections are returned as error responses instead.
type MutateLeadResponse struct {
	Lead             LeadDTO `json:"lead"`
	OwnershipChanged bool    `json:"ownership_changed"`
	StatusChanged    bool    `json:"status_changed"`
}

// StatusChangeDTO is one entry of a lead's status history.
type StatusChangeDTO struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	ActorID string `json:"actor_id"`
	At      string `json:"at"`
}

func toStatusChangeDTO(c crm.StatusChange) StatusChangeDTO {
	return StatusChangeDTO{
		ID:      c.ID,
		From:    string(c.From),
		To:      string(c.To),
		ActorID: string(c.ActorID),
		At:      c.At.Format(time.RFC3339),
	}
}

// =============================================================================
// SALE AND COMMISSION TYPES
// =============================================================================

// RecordSaleRequest records a closed sale for commission computation.
type RecordSaleRequest struct {
	RepID           string `json:"rep_id"`
	LeadID          string `json:"lead_id,omitempty"`
	BusinessName    string `json:"business_name"`
	PlanName        string `json:"plan_name"`
	LengthMonths    int    `json:"length_months"`
	SaleAmountCents int64  `json:"sale_amount_cents"`
	IsRenewal       bool   `json:"is_renewal"`
	SaleDate        string `json:"sale_date"`
}

// CommissionRecordDTO represents a ledger entry in API responses.
type CommissionRecordDTO struct {
	ID           string `json:"id"`
	RepID        string `json:"rep_id"`
	LeadID       string `json:"lead_id,omitempty"`
	BusinessName string `json:"business_name"`
	PlanName     string `json:"plan_name"`
	LengthMonths int    `json:"length_months"`
	SaleAmount   string `json:"sale_amount"`
	IsRenewal    bool   `json:"is_renewal"`
	SaleDate     string `json:"sale_date"`

	CommissionRate   string `json:"commission_rate"`
	CommissionAmount string `json:"commission_amount"`
	PeriodStart      string `json:"period_start"`
	PeriodEnd        string `json:"period_end"`
	PayDate          string `json:"pay_date"`

	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toRecordDTO(rec crm.CommissionRecord) CommissionRecordDTO {
	return CommissionRecordDTO{
		ID:               string(rec.ID),
		RepID:            string(rec.RepID),
		LeadID:           string(rec.LeadID),
		BusinessName:     rec.BusinessName,
		PlanName:         rec.PlanName,
		LengthMonths:     rec.LengthMonths,
		SaleAmount:       rec.SaleAmount.String(),
		IsRenewal:        rec.IsRenewal,
		SaleDate:         rec.SaleDate.Format(dateLayout),
		CommissionRate:   rec.CommissionRate.String(),
		CommissionAmount: rec.CommissionAmount.String(),
		PeriodStart:      rec.PayPeriod.Start.Format(dateLayout),
		PeriodEnd:        rec.PayPeriod.End.Format(dateLayout),
		PayDate:          rec.PayPeriod.PayDate.Format(dateLayout),
		Status:           string(rec.Status),
		CreatedAt:        rec.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordDTOs(recs []crm.CommissionRecord) []CommissionRecordDTO {
	dtos := make([]CommissionRecordDTO, len(recs))
	for i, r := range recs {
		dtos[i] = toRecordDTO(r)
	}
	return dtos
}

// SetRecordStatusRequest moves a commission record's status.
type SetRecordStatusRequest struct {
	To string `json:"to"`
}

// =============================================================================
// LEDGER SUMMARY TYPES
// =============================================================================

// LedgerSummaryDTO is the read-side view of a rep's earnings.
type LedgerSummaryDTO struct {
	RepID string `json:"rep_id"`
	AsOf  string `json:"as_of"`

	TotalPending string `json:"total_pending"`
	TotalPaid    string `json:"total_paid"`
	TotalEarned  string `json:"total_earned"`
	RecordCount  int    `json:"record_count"`

	CurrentTier             string `json:"current_tier"`
	CurrentRate             string `json:"current_rate"`
	SignupsInTrailing30Days int    `json:"signups_in_trailing_30_days"`
	SignupsUntilBonus       int    `json:"signups_until_bonus"`

	PeriodStart string `json:"period_start,omitempty"`
	PeriodEnd   string `json:"period_end,omitempty"`
}

func toSummaryDTO(s crm.LedgerSummary) LedgerSummaryDTO {
	dto := LedgerSummaryDTO{
		RepID:                   string(s.RepID),
		AsOf:                    s.AsOf.Format(time.RFC3339),
		TotalPending:            s.TotalPending.String(),
		TotalPaid:               s.TotalPaid.String(),
		TotalEarned:             s.TotalEarned.String(),
		RecordCount:             s.RecordCount,
		CurrentTier:             s.CurrentTier.Label,
		CurrentRate:             s.CurrentTier.Rate.String(),
		SignupsInTrailing30Days: s.SignupsInTrailing30Days,
		SignupsUntilBonus:       s.SignupsUntilBonus,
	}
	if s.Period != nil {
		dto.PeriodStart = s.Period.Start.Format(dateLayout)
		dto.PeriodEnd = s.Period.End.Format(dateLayout)
	}
	return dto
}

// PayRunResultDTO reports the outcome of a pay run.
type PayRunResultDTO struct {
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	TotalPaid string `json:"total_paid"`
	AsOf      string `json:"as_of"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// LockedBy and StaleAfter are set on lead-locked rejections so callers
	// can show who holds the lead and when it goes stale.
	LockedBy   string `json:"locked_by,omitempty"`
	StaleAfter string `json:"stale_after,omitempty"`
}
