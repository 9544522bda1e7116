package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cumberland/sales-engine/crm"
	"github.com/cumberland/sales-engine/store"
)

// asOf is a Friday; the current pay period is Jun 16-22 (paid Jun 27) and
// the previous one Jun 9-15 (paid Jun 20, i.e. payable today).
var asOf = time.Date(2025, time.June, 20, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	h := NewHandler(mem, mem, nil)
	h.Now = func() time.Time { return asOf }
	return h, mem
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func seedOwnedLead(t *testing.T, mem *store.Memory, owner crm.RepID, updatedAt time.Time) crm.Lead {
	t.Helper()
	lead := crm.Lead{
		ID:           "lead-1",
		BusinessName: "Blue Plate Diner",
		Owner:        &owner,
		Status:       crm.LeadContacted,
		CreatedAt:    updatedAt.AddDate(0, 0, -10),
		UpdatedAt:    updatedAt,
	}
	require.NoError(t, mem.CreateLead(context.Background(), lead))
	return lead
}

// =============================================================================
// LEAD MUTATION
// =============================================================================

func TestMutateLead_FreshOwnerLocksOutOtherReps(t *testing.T) {
	// GIVEN: A lead owned by rep-a, last touched 10 days ago
	// WHEN: rep-b posts a status change
	// THEN: 423 Locked, the holder is reported, the lead is untouched

	h, mem := newTestServer(t)
	lead := seedOwnedLead(t, mem, "rep-a", asOf.AddDate(0, 0, -10))

	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/mutations", MutateLeadRequest{
		ActorID:   "rep-b",
		Kind:      "status_change",
		NewStatus: "interested",
	})
	require.Equal(t, http.StatusLocked, rec.Code)

	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "rep-a", body.LockedBy)
	assert.NotEmpty(t, body.StaleAfter)

	stored, err := mem.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead, stored)
}

func TestMutateLead_StaleLeadReassigned(t *testing.T) {
	// GIVEN: A lead owned by rep-a, last touched 15 days ago
	// WHEN: rep-b posts a status change
	// THEN: 200, ownership moves to rep-b, history records the change

	h, mem := newTestServer(t)
	seedOwnedLead(t, mem, "rep-a", asOf.AddDate(0, 0, -15))

	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/mutations", MutateLeadRequest{
		ActorID:   "rep-b",
		Kind:      "status_change",
		NewStatus: "interested",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[MutateLeadResponse](t, rec)
	assert.True(t, body.OwnershipChanged)
	assert.True(t, body.StatusChanged)
	require.NotNil(t, body.Lead.Owner)
	assert.Equal(t, "rep-b", *body.Lead.Owner)

	history, err := mem.LeadHistory(context.Background(), "lead-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, crm.LeadInterested, history[0].To)
}

func TestMutateLead_MissingLead(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doRequest(t, h, http.MethodPost, "/api/leads/ghost/mutations", MutateLeadRequest{
		ActorID: "rep-a",
		Kind:    "activity",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMutateLead_InvalidKind(t *testing.T) {
	h, mem := newTestServer(t)
	seedOwnedLead(t, mem, "rep-a", asOf.AddDate(0, 0, -1))

	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/mutations", MutateLeadRequest{
		ActorID: "rep-a",
		Kind:    "delete",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// flakyLeadStore fails the first n conditional writes, simulating lost
// races against another writer.
type flakyLeadStore struct {
	*store.Memory
	failures int
}

func (f *flakyLeadStore) UpdateLead(ctx context.Context, lead crm.Lead, history *crm.StatusChange, expect crm.LeadSnapshot) error {
	if f.failures > 0 {
		f.failures--
		return crm.ErrConcurrentModification
	}
	return f.Memory.UpdateLead(ctx, lead, history, expect)
}

func TestMutateLead_RetriesFromFreshReadOnLostRace(t *testing.T) {
	// GIVEN: A store whose first conditional write loses a race
	// WHEN: The owner posts a mutation
	// THEN: The handler re-reads, re-arbitrates, and succeeds

	h, mem := newTestServer(t)
	seedOwnedLead(t, mem, "rep-a", asOf.AddDate(0, 0, -1))
	h.Leads = &flakyLeadStore{Memory: mem, failures: 1}

	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/mutations", MutateLeadRequest{
		ActorID:   "rep-a",
		Kind:      "status_change",
		NewStatus: "interested",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := mem.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, crm.LeadInterested, stored.Status)
}

func TestMutateLead_GivesUpAfterExhaustedRetries(t *testing.T) {
	h, mem := newTestServer(t)
	seedOwnedLead(t, mem, "rep-a", asOf.AddDate(0, 0, -1))
	h.Leads = &flakyLeadStore{Memory: mem, failures: maxWriteAttempts}

	rec := doRequest(t, h, http.MethodPost, "/api/leads/lead-1/mutations", MutateLeadRequest{
		ActorID:   "rep-a",
		Kind:      "status_change",
		NewStatus: "interested",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// LEAD CRUD
// =============================================================================

func TestCreateAndGetLead(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/leads", CreateLeadRequest{
		BusinessName: "Harbor Books",
		ContactName:  "Priya Shah",
		MarketID:     "mkt-west",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[LeadDTO](t, rec)
	assert.Equal(t, "new", created.Status)
	assert.Nil(t, created.Owner)

	got := doRequest(t, h, http.MethodGet, "/api/leads/"+created.ID, nil)
	require.Equal(t, http.StatusOK, got.Code)
	fetched := decodeBody[LeadDTO](t, got)
	assert.Equal(t, "Harbor Books", fetched.BusinessName)
}

func TestCreateLead_RequiresBusinessName(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doRequest(t, h, http.MethodPost, "/api/leads", CreateLeadRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SALE RECORDING
// =============================================================================

func seedSignups(t *testing.T, mem *store.Memory, rep crm.RepID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		saleDate := crm.DayOf(asOf).AddDate(0, 0, -(i + 1))
		require.NoError(t, mem.AppendRecord(context.Background(), crm.CommissionRecord{
			ID:               crm.RecordID(fmt.Sprintf("seed-%d", i)),
			RepID:            rep,
			BusinessName:     fmt.Sprintf("biz-%d", i),
			PlanName:         "starter",
			LengthMonths:     3,
			SaleAmount:       crm.NewMoney(29700),
			SaleDate:         saleDate,
			CommissionRate:   crm.MustParseRate("0.15"),
			CommissionAmount: crm.NewMoney(4455),
			PayPeriod:        crm.DefaultPayPeriodConfig().PeriodFor(saleDate),
			Status:           crm.StatusPending,
			CreatedAt:        saleDate,
		}))
	}
}

func TestRecordSale_SeventhSignupPaysBonusRate(t *testing.T) {
	// GIVEN: Six signups in the trailing window
	// WHEN: A $1,000 sale is recorded
	// THEN: It is the seventh signup and pays 20%

	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 6)

	rec := doRequest(t, h, http.MethodPost, "/api/sales", RecordSaleRequest{
		RepID:           "rep-1",
		BusinessName:    "Blue Plate Diner",
		PlanName:        "premium",
		LengthMonths:    5,
		SaleAmountCents: 100000,
		SaleDate:        "2025-06-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody[CommissionRecordDTO](t, rec)
	assert.Equal(t, "0.2", body.CommissionRate)
	assert.Equal(t, "200.00", body.CommissionAmount)
	assert.Equal(t, "pending", body.Status)
	assert.Equal(t, "2025-06-16", body.PeriodStart)
	assert.Equal(t, "2025-06-27", body.PayDate)
}

func TestRecordSale_RenewalDoesNotAdvanceCount(t *testing.T) {
	// GIVEN: Six signups in the trailing window
	// WHEN: A renewal is recorded
	// THEN: The count stays at six and the sale pays the base rate

	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 6)

	rec := doRequest(t, h, http.MethodPost, "/api/sales", RecordSaleRequest{
		RepID:           "rep-1",
		BusinessName:    "Blue Plate Diner",
		PlanName:        "premium",
		LengthMonths:    5,
		SaleAmountCents: 100000,
		IsRenewal:       true,
		SaleDate:        "2025-06-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody[CommissionRecordDTO](t, rec)
	assert.Equal(t, "0.15", body.CommissionRate)
	assert.Equal(t, "150.00", body.CommissionAmount)
}

func TestRecordSale_SameDayRenewalSeesCrossedThreshold(t *testing.T) {
	// GIVEN: Six signups in the window, then a seventh recorded today
	// WHEN: A renewal lands later the same day
	// THEN: The morning signup is visible and the renewal pays 20%

	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 6)

	rec := doRequest(t, h, http.MethodPost, "/api/sales", RecordSaleRequest{
		RepID:           "rep-1",
		BusinessName:    "Blue Plate Diner",
		PlanName:        "premium",
		LengthMonths:    5,
		SaleAmountCents: 100000,
		SaleDate:        "2025-06-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "0.2", decodeBody[CommissionRecordDTO](t, rec).CommissionRate)

	rec = doRequest(t, h, http.MethodPost, "/api/sales", RecordSaleRequest{
		RepID:           "rep-1",
		BusinessName:    "Blue Plate Diner",
		PlanName:        "premium",
		LengthMonths:    5,
		SaleAmountCents: 100000,
		IsRenewal:       true,
		SaleDate:        "2025-06-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody[CommissionRecordDTO](t, rec)
	assert.Equal(t, "0.2", body.CommissionRate)
	assert.Equal(t, "200.00", body.CommissionAmount)
}

func TestRecordSale_UnknownPlan(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doRequest(t, h, http.MethodPost, "/api/sales", RecordSaleRequest{
		RepID:           "rep-1",
		BusinessName:    "Blue Plate Diner",
		PlanName:        "platinum",
		LengthMonths:    5,
		SaleAmountCents: 100000,
		SaleDate:        "2025-06-20",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordSale_ConcurrentSalesAllLand(t *testing.T) {
	// GIVEN: Several sales for one rep posted at once
	// WHEN: They run concurrently
	// THEN: Per-rep serialization lets every one through exactly once

	h, mem := newTestServer(t)

	const n = 4
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := doRequest(t, h, http.MethodPost, "/api/sales", RecordSaleRequest{
				RepID:           "rep-1",
				BusinessName:    fmt.Sprintf("biz-%d", i),
				PlanName:        "starter",
				LengthMonths:    3,
				SaleAmountCents: 29700,
				SaleDate:        "2025-06-20",
			})
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusCreated, code, "sale %d", i)
	}
	records, err := mem.ListByRep(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Len(t, records, n)
}

// =============================================================================
// LEDGER SUMMARY
// =============================================================================

func TestGetLedger_PeriodFilters(t *testing.T) {
	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 8)

	all := decodeBody[LedgerSummaryDTO](t, doRequest(t, h, http.MethodGet, "/api/reps/rep-1/ledger", nil))
	assert.Equal(t, 8, all.RecordCount)
	assert.Equal(t, 8, all.SignupsInTrailing30Days)
	assert.Equal(t, crm.TierBonus, all.CurrentTier)
	assert.Equal(t, 0, all.SignupsUntilBonus)
	assert.Empty(t, all.PeriodStart)

	current := decodeBody[LedgerSummaryDTO](t, doRequest(t, h, http.MethodGet, "/api/reps/rep-1/ledger?period=current", nil))
	// Sales 1-4 days back fall in the Jun 16-22 period.
	assert.Equal(t, 4, current.RecordCount)
	assert.Equal(t, "2025-06-16", current.PeriodStart)
	// Tier standing still reflects the full ledger.
	assert.Equal(t, 8, current.SignupsInTrailing30Days)

	bad := doRequest(t, h, http.MethodGet, "/api/reps/rep-1/ledger?period=fortnight", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

// =============================================================================
// ADMIN: COMMISSION STATUS
// =============================================================================

func TestSetCommissionStatus_PaidCannotGoBackToPending(t *testing.T) {
	// GIVEN: A paid record
	// WHEN: An admin tries to move it back to pending
	// THEN: 409 and the record stays paid

	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 1)
	require.NoError(t, mem.SetStatus(context.Background(), "seed-0", crm.StatusPending, crm.StatusPaid))

	rec := doRequest(t, h, http.MethodPost, "/api/admin/commissions/seed-0/status", SetRecordStatusRequest{To: "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	stored, err := mem.GetRecord(context.Background(), "seed-0")
	require.NoError(t, err)
	assert.Equal(t, crm.StatusPaid, stored.Status)
}

func TestSetCommissionStatus_VoidPendingRecord(t *testing.T) {
	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 1)

	rec := doRequest(t, h, http.MethodPost, "/api/admin/commissions/seed-0/status", SetRecordStatusRequest{To: "void"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[CommissionRecordDTO](t, rec)
	assert.Equal(t, "void", body.Status)
}

func TestSetCommissionStatus_UnknownStatus(t *testing.T) {
	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 1)

	rec := doRequest(t, h, http.MethodPost, "/api/admin/commissions/seed-0/status", SetRecordStatusRequest{To: "refunded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ADMIN: PAY RUNS AND SEED
// =============================================================================

func TestTriggerPayRun_PaysDueRecords(t *testing.T) {
	// GIVEN: Records from the previous period (payable today) and the
	//        current period (not yet due)
	// WHEN: A pay run is triggered
	// THEN: Only the due records flip to paid

	h, mem := newTestServer(t)
	seedSignups(t, mem, "rep-1", 8) // days 1-4 current period, 5-8 previous

	rec := doRequest(t, h, http.MethodPost, "/api/admin/payruns", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[PayRunResultDTO](t, rec)
	assert.Equal(t, 4, body.Processed)

	records, err := mem.ListByRep(context.Background(), "rep-1")
	require.NoError(t, err)
	paid := 0
	for _, r := range records {
		if r.Status == crm.StatusPaid {
			paid++
			assert.False(t, r.PayPeriod.PayDate.After(crm.DayOf(asOf)))
		}
	}
	assert.Equal(t, 4, paid)
}

func TestLoadDemoData(t *testing.T) {
	h, mem := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/admin/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	leads, err := mem.ListLeads(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, leads)

	// Maria's eight signups put her in the bonus tier.
	summary := decodeBody[LedgerSummaryDTO](t, doRequest(t, h, http.MethodGet, "/api/reps/rep-maria/ledger", nil))
	assert.Equal(t, crm.TierBonus, summary.CurrentTier)
	assert.Equal(t, "0.2", summary.CurrentRate)
}
