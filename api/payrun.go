/*
payrun.go - Automated pay-run scheduler

PURPOSE:
  Periodically flips pending commission records whose pay date has
  arrived to paid. A record computed for the week ending Sunday becomes
  payable on the following Friday; the scheduler picks it up on the next
  tick after that.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Every flip goes through the transition table and the conditional
    SetStatus, so a record voided between the read and the write is
    skipped, never overwritten
  - RunPayRun is also invoked directly by the manual admin endpoint

USAGE:
  scheduler := NewPayRunScheduler(records, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerPayRun endpoint (manual pay run)
  - crm/ledger.go: Transition table
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cumberland/sales-engine/crm"
)

// PayRunResult summarizes one pay run.
type PayRunResult struct {
	Processed int
	Skipped   int
	TotalPaid crm.Money
}

// RunPayRun pays out every pending record whose pay date is on or before
// now. Records that lose a status race (voided concurrently) are skipped.
func RunPayRun(ctx context.Context, records crm.CommissionStore, log *logrus.Logger, now time.Time) (PayRunResult, error) {
	result := PayRunResult{TotalPaid: crm.NewMoney(0)}

	payable, err := records.ListPayable(ctx, now)
	if err != nil {
		return result, err
	}

	for _, rec := range payable {
		if _, err := crm.Transition(rec, crm.StatusPaid); err != nil {
			result.Skipped++
			continue
		}
		err := records.SetStatus(ctx, rec.ID, rec.Status, crm.StatusPaid)
		if errors.Is(err, crm.ErrConcurrentModification) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, err
		}
		result.Processed++
		result.TotalPaid = result.TotalPaid.Add(rec.CommissionAmount)
	}

	if result.Processed > 0 {
		log.WithFields(logrus.Fields{
			"processed":  result.Processed,
			"skipped":    result.Skipped,
			"total_paid": result.TotalPaid.String(),
		}).Info("pay run completed")
	}
	return result, nil
}

// PayRunScheduler handles automated payout processing.
type PayRunScheduler struct {
	Records       crm.CommissionStore
	Log           *logrus.Logger
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayRunScheduler creates a new scheduler.
func NewPayRunScheduler(records crm.CommissionStore, log *logrus.Logger) *PayRunScheduler {
	if log == nil {
		log = logrus.New()
	}
	return &PayRunScheduler{
		Records:       records,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *PayRunScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("pay-run scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	s.Log.WithField("interval", s.CheckInterval).Info("pay-run scheduler started")
}

// Stop stops the scheduler.
func (s *PayRunScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("pay-run scheduler stopped")
	}
}

func (s *PayRunScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.runOnce()

	for {
		select {
		case <-s.ticker.C:
			s.runOnce()
		case <-s.stop:
			return
		}
	}
}

func (s *PayRunScheduler) runOnce() {
	if _, err := RunPayRun(context.Background(), s.Records, s.Log, s.Now()); err != nil {
		s.Log.WithError(err).Error("pay run failed")
	}
}

// RunNow triggers an immediate pay run (for testing/admin).
func (s *PayRunScheduler) RunNow() {
	s.runOnce()
}
