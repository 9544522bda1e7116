// Package store provides storage implementations for the engine's
// persistence contracts.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cumberland/sales-engine/crm"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements crm.LeadStore and crm.CommissionStore in memory,
// including the compare-and-set semantics of lead writes.
type Memory struct {
	mu      sync.RWMutex
	leads   map[crm.LeadID]crm.Lead
	history map[crm.LeadID][]crm.StatusChange
	records map[crm.RecordID]crm.CommissionRecord
	byRep   map[crm.RepID][]crm.RecordID
}

func NewMemory() *Memory {
	return &Memory{
		leads:   make(map[crm.LeadID]crm.Lead),
		history: make(map[crm.LeadID][]crm.StatusChange),
		records: make(map[crm.RecordID]crm.CommissionRecord),
		byRep:   make(map[crm.RepID][]crm.RecordID),
	}
}

var _ crm.LeadStore = (*Memory)(nil)
var _ crm.CommissionStore = (*Memory)(nil)

// =============================================================================
// LEAD STORE
// =============================================================================

func (m *Memory) CreateLead(_ context.Context, lead crm.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = lead
	return nil
}

func (m *Memory) GetLead(_ context.Context, id crm.LeadID) (crm.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	if !ok {
		return crm.Lead{}, crm.ErrLeadNotFound
	}
	return lead, nil
}

func (m *Memory) ListLeads(_ context.Context) ([]crm.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	leads := make([]crm.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		leads = append(leads, l)
	}
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
	return leads, nil
}

// UpdateLead persists the lead iff the stored (owner, updatedAt) still match
// expect. The history entry, when present, lands in the same critical
// section so a lost race never leaves a dangling entry.
func (m *Memory) UpdateLead(_ context.Context, lead crm.Lead, history *crm.StatusChange, expect crm.LeadSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.leads[lead.ID]
	if !ok {
		return crm.ErrLeadNotFound
	}
	if !ownerEqual(current.Owner, expect.Owner) || !current.UpdatedAt.Equal(expect.UpdatedAt) {
		return crm.ErrConcurrentModification
	}

	m.leads[lead.ID] = lead
	if history != nil {
		m.history[lead.ID] = append(m.history[lead.ID], *history)
	}
	return nil
}

func (m *Memory) LeadHistory(_ context.Context, id crm.LeadID) ([]crm.StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]crm.StatusChange, len(m.history[id]))
	copy(out, m.history[id])
	return out, nil
}

func ownerEqual(a, b *crm.RepID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// =============================================================================
// COMMISSION STORE
// =============================================================================

func (m *Memory) AppendRecord(_ context.Context, rec crm.CommissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	m.byRep[rec.RepID] = append(m.byRep[rec.RepID], rec.ID)
	return nil
}

func (m *Memory) GetRecord(_ context.Context, id crm.RecordID) (crm.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return crm.CommissionRecord{}, crm.ErrRecordNotFound
	}
	return rec, nil
}

func (m *Memory) ListByRep(_ context.Context, repID crm.RepID) ([]crm.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]crm.CommissionRecord, 0, len(m.byRep[repID]))
	for _, id := range m.byRep[repID] {
		out = append(out, m.records[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SaleDate.Equal(out[j].SaleDate) {
			return out[i].SaleDate.Before(out[j].SaleDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) SetStatus(_ context.Context, id crm.RecordID, from, to crm.RecordStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return crm.ErrRecordNotFound
	}
	if rec.Status != from {
		return crm.ErrConcurrentModification
	}
	rec.Status = to
	m.records[id] = rec
	return nil
}

func (m *Memory) ListPayable(_ context.Context, asOf time.Time) ([]crm.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := crm.DayOf(asOf)
	var out []crm.CommissionRecord
	for _, rec := range m.records {
		if rec.Status == crm.StatusPending && !rec.PayPeriod.PayDate.After(day) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PayPeriod.PayDate.Equal(out[j].PayPeriod.PayDate) {
			return out[i].PayPeriod.PayDate.Before(out[j].PayPeriod.PayDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
