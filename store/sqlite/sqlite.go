/*
Package sqlite provides a SQLite-backed implementation of the storage
contracts.

PURPOSE:
  Implements crm.LeadStore and crm.CommissionStore on SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

COMPARE-AND-SET:
  Lead writes are conditional UPDATEs guarded by the (owner, updated_at)
  values observed at decision time. A write that matches zero rows against
  an existing lead lost a race and returns crm.ErrConcurrentModification;
  the status-history insert rides in the same SQL transaction so a lost
  race never leaves a dangling history entry.

APPEND-ONLY LEDGER:
  commission_records has exactly one UPDATE statement, and it touches only
  the status column, guarded by the expected current status. No DELETEs.

KEY TABLES:
  leads:               Current lead snapshots (owner + updated_at = CAS token)
  lead_status_history: Immutable status transitions
  commission_records:  Append-only earnings ledger

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time.

USAGE:
  st, err := sqlite.New("./data/crm.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - crm/store.go: Contract definitions
  - store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cumberland/sales-engine/crm"
)

// Store implements the storage contracts using SQLite.
type Store struct {
	db *sql.DB
}

var _ crm.LeadStore = (*Store)(nil)
var _ crm.CommissionStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		business_name TEXT NOT NULL,
		contact_name TEXT,
		phone TEXT,
		market_id TEXT,
		owner TEXT,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_owner ON leads(owner);
	CREATE INDEX IF NOT EXISTS idx_leads_market ON leads(market_id);

	-- Immutable status history (insert-only)
	CREATE TABLE IF NOT EXISTS lead_status_history (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_lead ON lead_status_history(lead_id, at);

	-- Append-only earnings ledger
	CREATE TABLE IF NOT EXISTS commission_records (
		id TEXT PRIMARY KEY,
		rep_id TEXT NOT NULL,
		lead_id TEXT,
		business_name TEXT NOT NULL,
		plan_name TEXT NOT NULL,
		length_months INTEGER NOT NULL,
		sale_amount_cents INTEGER NOT NULL,
		is_renewal INTEGER NOT NULL,
		sale_date TEXT NOT NULL,
		commission_rate TEXT NOT NULL,
		commission_amount_cents INTEGER NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		pay_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_rep_date ON commission_records(rep_id, sale_date);
	CREATE INDEX IF NOT EXISTS idx_records_status_paydate ON commission_records(status, pay_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEAD STORE
// =============================================================================

func (s *Store) CreateLead(ctx context.Context, lead crm.Lead) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (id, business_name, contact_name, phone, market_id, owner, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(lead.ID), lead.BusinessName, lead.ContactName, lead.Phone,
		string(lead.MarketID), ownerValue(lead.Owner), string(lead.Status),
		lead.Notes, formatTime(lead.CreatedAt), formatTime(lead.UpdatedAt),
	)
	return err
}

func (s *Store) GetLead(ctx context.Context, id crm.LeadID) (crm.Lead, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_name, contact_name, phone, market_id, owner, status, notes, created_at, updated_at
		FROM leads WHERE id = ?`, string(id))
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return crm.Lead{}, crm.ErrLeadNotFound
	}
	return lead, err
}

func (s *Store) ListLeads(ctx context.Context) ([]crm.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_name, contact_name, phone, market_id, owner, status, notes, created_at, updated_at
		FROM leads ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []crm.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpdateLead performs the conditional write. The WHERE clause carries the
// snapshot the arbitration decision was made against; zero matched rows on
// an existing lead means the write lost a race.
func (s *Store) UpdateLead(ctx context.Context, lead crm.Lead, history *crm.StatusChange, expect crm.LeadSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ownerClause := "owner IS NULL"
	args := []any{
		lead.BusinessName, lead.ContactName, lead.Phone, string(lead.MarketID),
		ownerValue(lead.Owner), string(lead.Status), lead.Notes,
		formatTime(lead.UpdatedAt), string(lead.ID), formatTime(expect.UpdatedAt),
	}
	if expect.Owner != nil {
		ownerClause = "owner = ?"
		args = append(args, string(*expect.Owner))
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE leads
		SET business_name = ?, contact_name = ?, phone = ?, market_id = ?,
		    owner = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ? AND updated_at = ? AND `+ownerClause, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM leads WHERE id = ?`, string(lead.ID)).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return crm.ErrLeadNotFound
		}
		return crm.ErrConcurrentModification
	}

	if history != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lead_status_history (id, lead_id, from_status, to_status, actor_id, at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			history.ID, string(history.LeadID), string(history.From),
			string(history.To), string(history.ActorID), formatTime(history.At),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) LeadHistory(ctx context.Context, id crm.LeadID) ([]crm.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lead_id, from_status, to_status, actor_id, at
		FROM lead_status_history WHERE lead_id = ? ORDER BY at ASC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []crm.StatusChange
	for rows.Next() {
		var c crm.StatusChange
		var leadID, from, to, actor, at string
		if err := rows.Scan(&c.ID, &leadID, &from, &to, &actor, &at); err != nil {
			return nil, err
		}
		c.LeadID = crm.LeadID(leadID)
		c.From = crm.LeadStatus(from)
		c.To = crm.LeadStatus(to)
		c.ActorID = crm.RepID(actor)
		if c.At, err = parseTime(at); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// =============================================================================
// COMMISSION STORE
// =============================================================================

func (s *Store) AppendRecord(ctx context.Context, rec crm.CommissionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commission_records (
			id, rep_id, lead_id, business_name, plan_name, length_months,
			sale_amount_cents, is_renewal, sale_date, commission_rate,
			commission_amount_cents, period_start, period_end, pay_date,
			status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.RepID), string(rec.LeadID), rec.BusinessName,
		rec.PlanName, rec.LengthMonths, rec.SaleAmount.IntCents(),
		boolValue(rec.IsRenewal), formatTime(rec.SaleDate),
		rec.CommissionRate.String(), rec.CommissionAmount.IntCents(),
		formatTime(rec.PayPeriod.Start), formatTime(rec.PayPeriod.End),
		formatTime(rec.PayPeriod.PayDate), string(rec.Status),
		formatTime(rec.CreatedAt),
	)
	return err
}

func (s *Store) GetRecord(ctx context.Context, id crm.RecordID) (crm.CommissionRecord, error) {
	recs, err := s.queryRecords(ctx, selectRecords+` WHERE id = ?`, string(id))
	if err != nil {
		return crm.CommissionRecord{}, err
	}
	if len(recs) == 0 {
		return crm.CommissionRecord{}, crm.ErrRecordNotFound
	}
	return recs[0], nil
}

func (s *Store) ListByRep(ctx context.Context, repID crm.RepID) ([]crm.CommissionRecord, error) {
	return s.queryRecords(ctx,
		selectRecords+` WHERE rep_id = ? ORDER BY sale_date ASC, created_at ASC`,
		string(repID))
}

// SetStatus is the ledger's only UPDATE. Guarded by the expected current
// status; a mismatch means another writer got there first.
func (s *Store) SetStatus(ctx context.Context, id crm.RecordID, from, to crm.RecordStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commission_records SET status = ? WHERE id = ? AND status = ?`,
		string(to), string(id), string(from))
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM commission_records WHERE id = ?`, string(id)).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return crm.ErrRecordNotFound
		}
		return crm.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ListPayable(ctx context.Context, asOf time.Time) ([]crm.CommissionRecord, error) {
	return s.queryRecords(ctx,
		selectRecords+` WHERE status = ? AND pay_date <= ? ORDER BY pay_date ASC, id ASC`,
		string(crm.StatusPending), formatTime(crm.DayOf(asOf)))
}

const selectRecords = `
	SELECT id, rep_id, lead_id, business_name, plan_name, length_months,
	       sale_amount_cents, is_renewal, sale_date, commission_rate,
	       commission_amount_cents, period_start, period_end, pay_date,
	       status, created_at
	FROM commission_records`

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]crm.CommissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []crm.CommissionRecord
	for rows.Next() {
		var (
			rec                           crm.CommissionRecord
			id, repID, leadID, status     string
			saleCents, commissionCents    int64
			isRenewal                     int
			rate                          string
			saleDate, start, end, payDate string
			createdAt                     string
		)
		if err := rows.Scan(
			&id, &repID, &leadID, &rec.BusinessName, &rec.PlanName, &rec.LengthMonths,
			&saleCents, &isRenewal, &saleDate, &rate, &commissionCents,
			&start, &end, &payDate, &status, &createdAt,
		); err != nil {
			return nil, err
		}

		rec.ID = crm.RecordID(id)
		rec.RepID = crm.RepID(repID)
		rec.LeadID = crm.LeadID(leadID)
		rec.SaleAmount = crm.NewMoney(saleCents)
		rec.CommissionAmount = crm.NewMoney(commissionCents)
		rec.IsRenewal = isRenewal != 0
		rec.Status = crm.RecordStatus(status)

		if rec.CommissionRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("corrupt commission rate %q: %w", rate, err)
		}
		if rec.SaleDate, err = parseTime(saleDate); err != nil {
			return nil, err
		}
		if rec.PayPeriod.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if rec.PayPeriod.End, err = parseTime(end); err != nil {
			return nil, err
		}
		if rec.PayPeriod.PayDate, err = parseTime(payDate); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func scanLead(row interface{ Scan(...any) error }) (crm.Lead, error) {
	var (
		lead                 crm.Lead
		id, market, status   string
		owner                sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &lead.BusinessName, &lead.ContactName, &lead.Phone,
		&market, &owner, &status, &lead.Notes, &createdAt, &updatedAt)
	if err != nil {
		return crm.Lead{}, err
	}

	lead.ID = crm.LeadID(id)
	lead.MarketID = crm.MarketID(market)
	lead.Status = crm.LeadStatus(status)
	if owner.Valid && owner.String != "" {
		o := crm.RepID(owner.String)
		lead.Owner = &o
	}
	if lead.CreatedAt, err = parseTime(createdAt); err != nil {
		return crm.Lead{}, err
	}
	if lead.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return crm.Lead{}, err
	}
	return lead, nil
}

func ownerValue(owner *crm.RepID) any {
	if owner == nil {
		return nil
	}
	return string(*owner)
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
