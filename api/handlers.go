/*
handlers.go - HTTP API handlers for the sales engine

PURPOSE:
  Exposes lead arbitration and commission accounting via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic in the crm package.

ENDPOINTS:
  Leads:
    GET    /api/leads                   List all leads
    POST   /api/leads                   Create lead (unowned, status "new")
    GET    /api/leads/{id}              Get lead details
    GET    /api/leads/{id}/history      Status-change history
    POST   /api/leads/{id}/mutations    Arbitrated mutation

  Sales:
    POST   /api/sales                   Record sale, compute commission

  Reps:
    GET    /api/reps/{id}/ledger        Ledger summary (?period=all|current|previous)
    GET    /api/reps/{id}/commissions   Commission records

  Admin:
    POST   /api/admin/commissions/{id}/status  Move record status
    POST   /api/admin/payruns                  Trigger pay run
    POST   /api/admin/seed                     Load demo data

WRITE PATH:
  Lead mutations run read -> arbitrate -> conditional write. A lost race
  surfaces as ErrConcurrentModification, in which case the loop re-reads
  and re-arbitrates (the staleness verdict may have flipped) up to
  maxWriteAttempts before giving up with 409.

  Sale recording serializes per rep: the trailing-window signup count is
  read from the rep's ledger and the new record appended under the same
  rep lock, so two simultaneous sales cannot both count from the same
  window state.

ERROR HANDLING:
  - 400: Validation errors, invalid input
  - 404: Lead or record not found
  - 409: Illegal status transition, exhausted write retries
  - 423: Lead locked by another rep
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The actor arrives on the request, already resolved
  by the caller.

SEE ALSO:
  - dto.go: Request/response data structures
  - crm/ownership.go: Arbitration rules
  - crm/commission.go: Commission computation
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cumberland/sales-engine/crm"
)

// maxWriteAttempts bounds the read -> arbitrate -> write loop.
const maxWriteAttempts = 3

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. The engine components
// default to the standard plan; main overrides them from config.
type Handler struct {
	Leads      crm.LeadStore
	Records    crm.CommissionStore
	Arbitrator *crm.Arbitrator
	Calculator *crm.Calculator
	Summarizer *crm.Summarizer
	Log        *logrus.Logger
	Now        func() time.Time

	repMu    sync.Mutex
	repLocks map[crm.RepID]*sync.Mutex
}

// NewHandler creates a handler over the given stores with default engine
// components.
func NewHandler(leads crm.LeadStore, records crm.CommissionStore, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Leads:      leads,
		Records:    records,
		Arbitrator: crm.NewArbitrator(),
		Calculator: crm.NewCalculator(),
		Summarizer: crm.NewSummarizer(),
		Log:        log,
		Now:        time.Now,
		repLocks:   make(map[crm.RepID]*sync.Mutex),
	}
}

// lockRep serializes sale recording for one rep. Returns the unlock func.
func (h *Handler) lockRep(repID crm.RepID) func() {
	h.repMu.Lock()
	lock, ok := h.repLocks[repID]
	if !ok {
		lock = &sync.Mutex{}
		h.repLocks[repID] = lock
	}
	h.repMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// =============================================================================
// LEAD HANDLERS
// =============================================================================

// ListLeads returns all leads, newest first.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Leads.ListLeads(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list leads", err)
		return
	}

	dtos := make([]LeadDTO, len(leads))
	for i, l := range leads {
		dtos[i] = toLeadDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLead returns a single lead.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := crm.LeadID(chi.URLParam(r, "id"))

	lead, err := h.Leads.GetLead(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadDTO(lead))
}

// CreateLead creates a new unowned lead in the "new" status.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BusinessName == "" {
		h.writeError(w, http.StatusBadRequest, "business_name is required", nil)
		return
	}

	now := h.Now()
	lead := crm.Lead{
		ID:           crm.LeadID(uuid.NewString()),
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		MarketID:     crm.MarketID(req.MarketID),
		Status:       crm.LeadNew,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Leads.CreateLead(r.Context(), lead); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to create lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeadDTO(lead))
}

// GetLeadHistory returns a lead's status changes, oldest first.
func (h *Handler) GetLeadHistory(w http.ResponseWriter, r *http.Request) {
	id := crm.LeadID(chi.URLParam(r, "id"))

	if _, err := h.Leads.GetLead(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	history, err := h.Leads.LeadHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get history", err)
		return
	}

	dtos := make([]StatusChangeDTO, len(history))
	for i, c := range history {
		dtos[i] = toStatusChangeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MutateLead runs an arbitrated mutation: read -> arbitrate -> conditional
// write, retrying from a fresh read when the write loses a race.
func (h *Handler) MutateLead(w http.ResponseWriter, r *http.Request) {
	id := crm.LeadID(chi.URLParam(r, "id"))

	var req MutateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	actor, mutation, err := parseMutation(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx := r.Context()
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		lead, err := h.Leads.GetLead(ctx, id)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}

		decision := h.Arbitrator.Arbitrate(lead, actor, h.Now(), mutation)
		if !decision.Allowed {
			h.writeDomainError(w, decision.Reason)
			return
		}

		err = h.Leads.UpdateLead(ctx, decision.Lead, decision.StatusChange, crm.SnapshotOf(lead))
		if crm.IsRetryable(err) {
			h.Log.WithFields(logrus.Fields{
				"lead":    id,
				"actor":   actor.ID,
				"attempt": attempt + 1,
			}).Debug("lead write lost race, re-arbitrating")
			continue
		}
		if err != nil {
			h.writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MutateLeadResponse{
			Lead:             toLeadDTO(decision.Lead),
			OwnershipChanged: decision.OwnershipChanged,
			StatusChanged:    decision.StatusChange != nil,
		})
		return
	}

	h.writeError(w, http.StatusConflict, "Lead is being modified concurrently, retry later", crm.ErrConcurrentModification)
}

func parseMutation(req MutateLeadRequest) (crm.Actor, crm.Mutation, error) {
	actor := crm.Actor{ID: crm.RepID(req.ActorID), IsAdmin: req.ActorIsAdmin}
	if actor.ID == "" && !actor.IsAdmin {
		return actor, crm.Mutation{}, errors.New("actor_id is required")
	}

	kind := crm.MutationKind(req.Kind)
	switch kind {
	case crm.MutationStatusChange, crm.MutationFieldEdit, crm.MutationActivity:
	case "":
		kind = crm.MutationFieldEdit
	default:
		return actor, crm.Mutation{}, errors.New("kind must be status_change, field_edit, or activity")
	}

	m := crm.Mutation{
		Kind:         kind,
		NewStatus:    crm.LeadStatus(req.NewStatus),
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		Notes:        req.Notes,
		Claim:        req.Claim,
	}
	if req.ReassignTo != nil {
		to := crm.RepID(*req.ReassignTo)
		m.ReassignTo = &to
	}
	return actor, m, nil
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// RecordSale computes and appends a commission record for a closed sale.
// The signup count and the append happen under the rep's lock so
// concurrent sales for one rep see a consistent trailing window.
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saleDate, err := time.Parse(dateLayout, req.SaleDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid sale_date format (use YYYY-MM-DD)", err)
		return
	}

	sale := crm.Sale{
		RepID:        crm.RepID(req.RepID),
		LeadID:       crm.LeadID(req.LeadID),
		BusinessName: req.BusinessName,
		PlanName:     req.PlanName,
		LengthMonths: req.LengthMonths,
		SaleAmount:   crm.NewMoney(req.SaleAmountCents),
		IsRenewal:    req.IsRenewal,
		SaleDate:     saleDate,
	}

	unlock := h.lockRep(sale.RepID)
	defer unlock()

	ctx := r.Context()
	existing, err := h.Records.ListByRep(ctx, sale.RepID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}

	// The window sees everything already in the ledger, same-day sales
	// included; the increment accounts for the sale being recorded, which
	// is not appended yet.
	signups := crm.SignupsInWindow(existing, saleDate)
	if !sale.IsRenewal {
		signups++
	}

	rec, err := h.Calculator.Compute(sale, signups, h.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.Records.AppendRecord(ctx, rec); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to append record", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"rep":        rec.RepID,
		"record":     rec.ID,
		"rate":       rec.CommissionRate.String(),
		"commission": rec.CommissionAmount.String(),
	}).Info("commission recorded")

	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns a rep's ledger summary. The period query parameter
// narrows the totals; tier standing always reflects the full ledger.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	repID := crm.RepID(chi.URLParam(r, "id"))

	filter := crm.FilterAll
	switch p := r.URL.Query().Get("period"); p {
	case "", string(crm.FilterAll):
	case string(crm.FilterCurrentPeriod):
		filter = crm.FilterCurrentPeriod
	case string(crm.FilterPreviousPeriod):
		filter = crm.FilterPreviousPeriod
	default:
		h.writeError(w, http.StatusBadRequest, "period must be all, current, or previous", nil)
		return
	}

	records, err := h.Records.ListByRep(r.Context(), repID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}

	summary := h.Summarizer.Summarize(repID, records, h.Now(), filter)
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// ListRepCommissions returns a rep's commission records, oldest sale first.
func (h *Handler) ListRepCommissions(w http.ResponseWriter, r *http.Request) {
	repID := crm.RepID(chi.URLParam(r, "id"))

	records, err := h.Records.ListByRep(r.Context(), repID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SetCommissionStatus moves a record through the pending -> paid -> void
// table. Backward moves and mutations of void records are rejected.
func (h *Handler) SetCommissionStatus(w http.ResponseWriter, r *http.Request) {
	id := crm.RecordID(chi.URLParam(r, "id"))

	var req SetRecordStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	to := crm.RecordStatus(req.To)
	switch to {
	case crm.StatusPending, crm.StatusPaid, crm.StatusVoid:
	default:
		h.writeError(w, http.StatusBadRequest, "to must be pending, paid, or void", nil)
		return
	}

	ctx := r.Context()
	rec, err := h.Records.GetRecord(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	updated, err := crm.Transition(rec, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.Records.SetStatus(ctx, id, rec.Status, to); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"record": id,
		"from":   rec.Status,
		"to":     to,
	}).Info("commission status changed")

	writeJSON(w, http.StatusOK, toRecordDTO(updated))
}

// TriggerPayRun runs a pay run immediately: every pending record whose pay
// date has arrived is flipped to paid.
func (h *Handler) TriggerPayRun(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	result, err := RunPayRun(r.Context(), h.Records, h.Log, now)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Pay run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, PayRunResultDTO{
		Processed: result.Processed,
		Skipped:   result.Skipped,
		TotalPaid: result.TotalPaid.String(),
		AsOf:      now.Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).Error(message)
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps crm errors to HTTP statuses. Locked leads get 423
// with the holder and staleness deadline attached.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var locked *crm.LeadLockedError
	if errors.As(err, &locked) {
		writeJSON(w, http.StatusLocked, ErrorResponse{
			Error:      "Lead is owned by another rep",
			Details:    err.Error(),
			LockedBy:   string(locked.Owner),
			StaleAfter: locked.StaleAfter.Format(time.RFC3339),
		})
		return
	}

	switch {
	case crm.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, crm.ErrIllegalStatusTransition):
		h.writeError(w, http.StatusConflict, "Illegal status transition", err)
	case crm.IsRetryable(err):
		h.writeError(w, http.StatusConflict, "Concurrent modification", err)
	case crm.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, "Invalid input", err)
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
