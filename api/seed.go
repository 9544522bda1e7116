/*
seed.go - Demo data loader

PURPOSE:
  Populates the stores with a small, deterministic demo data set for
  local development and UI work: a few reps at different tier standings,
  leads in every ownership state, and commission records across two pay
  periods.

DATA SHAPE:
  - rep-maria: eight signups in the trailing window, so she sits in the
    bonus tier and her next sale pays 20%
  - rep-devon: two signups, base tier
  - Leads include an unowned one, a freshly owned one, and one stale
    enough for any rep to take over

SEE ALSO:
  - server.go: POST /api/admin/seed
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cumberland/sales-engine/crm"
)

// LoadDemoData seeds the stores with the demo data set.
func (h *Handler) LoadDemoData(w http.ResponseWriter, r *http.Request) {
	leads, records, err := SeedDemo(r.Context(), h.Leads, h.Records, h.Calculator, h.Now())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}

	h.Log.WithField("leads", leads).WithField("records", records).Info("demo data loaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "loaded",
		"leads":   leads,
		"records": records,
	})
}

// SeedDemo inserts the demo leads and sales. Returns the number of leads
// and commission records created.
func SeedDemo(ctx context.Context, leadStore crm.LeadStore, recordStore crm.CommissionStore, calc *crm.Calculator, now time.Time) (int, int, error) {
	today := crm.DayOf(now)
	maria := crm.RepID("rep-maria")
	devon := crm.RepID("rep-devon")

	demoLeads := []crm.Lead{
		{
			ID:           "lead-blue-plate",
			BusinessName: "Blue Plate Diner",
			ContactName:  "Dana Whitfield",
			Phone:        "555-0100",
			MarketID:     "mkt-east",
			Owner:        &maria,
			Status:       crm.LeadInterested,
			Notes:        "wants the premium plan demo",
			CreatedAt:    today.AddDate(0, 0, -20),
			UpdatedAt:    today.AddDate(0, 0, -2),
		},
		{
			ID:           "lead-taqueria-sol",
			BusinessName: "Taqueria Sol",
			ContactName:  "Luis Navarro",
			Phone:        "555-0101",
			MarketID:     "mkt-east",
			Owner:        &devon,
			Status:       crm.LeadContacted,
			CreatedAt:    today.AddDate(0, 0, -40),
			UpdatedAt:    today.AddDate(0, 0, -16), // stale, up for grabs
		},
		{
			ID:           "lead-harbor-books",
			BusinessName: "Harbor Books",
			ContactName:  "Priya Shah",
			Phone:        "555-0102",
			MarketID:     "mkt-west",
			Status:       crm.LeadNew, // unowned
			CreatedAt:    today.AddDate(0, 0, -1),
			UpdatedAt:    today.AddDate(0, 0, -1),
		},
		{
			ID:           "lead-cedar-gym",
			BusinessName: "Cedar Street Gym",
			ContactName:  "Tom Okafor",
			Phone:        "555-0103",
			MarketID:     "mkt-west",
			Owner:        &maria,
			Status:       crm.LeadConverted,
			CreatedAt:    today.AddDate(0, 0, -25),
			UpdatedAt:    today.AddDate(0, 0, -5),
		},
	}

	for _, lead := range demoLeads {
		if err := leadStore.CreateLead(ctx, lead); err != nil {
			return 0, 0, fmt.Errorf("seed lead %s: %w", lead.ID, err)
		}
	}

	type demoSale struct {
		rep      crm.RepID
		business string
		plan     string
		months   int
		cents    int64
		renewal  bool
		daysAgo  int
	}

	// Maria's first seven signups land in the base tier; the eighth
	// crosses into bonus. Devon stays in base.
	demoSales := []demoSale{
		{maria, "Cedar Street Gym", "premium", 6, 119400, false, 28},
		{maria, "Northside Florist", "starter", 3, 29700, false, 24},
		{maria, "Lakeview Dental", "elite", 12, 418800, false, 21},
		{maria, "Pine & Co Salon", "starter", 6, 59400, false, 18},
		{maria, "Sunrise Bakery", "premium", 3, 59700, false, 14},
		{maria, "Oak Barrel Taproom", "premium", 12, 238800, false, 10},
		{maria, "Westgate Autos", "starter", 3, 29700, false, 7},
		{maria, "Milltown Coffee", "elite", 6, 209400, false, 3},
		{maria, "Cedar Street Gym", "premium", 6, 119400, true, 1},
		{devon, "Taqueria Sol", "starter", 3, 29700, false, 9},
		{devon, "Copper Kettle", "premium", 3, 59700, false, 4},
	}

	created := 0
	ledgers := make(map[crm.RepID][]crm.CommissionRecord)
	for _, s := range demoSales {
		saleDate := today.AddDate(0, 0, -s.daysAgo)
		sale := crm.Sale{
			RepID:        s.rep,
			BusinessName: s.business,
			PlanName:     s.plan,
			LengthMonths: s.months,
			SaleAmount:   crm.NewMoney(s.cents),
			IsRenewal:    s.renewal,
			SaleDate:     saleDate,
		}

		signups := crm.SignupsInWindow(ledgers[s.rep], saleDate)
		if !sale.IsRenewal {
			signups++
		}

		rec, err := calc.Compute(sale, signups, now)
		if err != nil {
			return len(demoLeads), created, fmt.Errorf("seed sale for %s: %w", s.business, err)
		}
		if err := recordStore.AppendRecord(ctx, rec); err != nil {
			return len(demoLeads), created, fmt.Errorf("seed record for %s: %w", s.business, err)
		}
		ledgers[s.rep] = append(ledgers[s.rep], rec)
		created++
	}

	return len(demoLeads), created, nil
}
