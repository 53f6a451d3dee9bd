package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/talentora/talentora/internal/metrics"
	"github.com/talentora/talentora/internal/worklog"
)

// Timer runs the worklog auto-settlement job on a fixed interval: approved
// worklogs whose dispute window has passed are paid out one atomic unit at
// a time. The per-worklog claim inside SettleWorklog makes overlapping
// sweeps safe; they race for claims instead of double-paying.
type Timer struct {
	service  *Service
	worklogs worklog.Store
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates the auto-settlement timer.
func NewTimer(service *Service, worklogs worklog.Store, interval time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		worklogs: worklogs,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeSweep(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in settlement timer", "panic", fmt.Sprint(r))
		}
	}()
	t.Sweep(ctx)
}

// Sweep settles every currently-eligible worklog, paginating until none
// remain. One failing worklog is logged and skipped; it never blocks the
// rest of the batch.
func (t *Timer) Sweep(ctx context.Context) {
	const batchSize = 100
	timer := prometheus.NewTimer(metrics.SettlementDuration)
	defer timer.ObserveDuration()

	cutoff := time.Now().UTC()
	// Failed units release their claim back to approved, so they would
	// show up again in the next page query. Tracking what this sweep has
	// already touched keeps it from spinning on a persistently bad
	// worklog; the next sweep retries it.
	seen := make(map[string]bool)
	settled := 0

	for {
		batch, err := t.worklogs.ListForAutoPay(ctx, cutoff, batchSize)
		if err != nil {
			t.logger.Warn("listing worklogs for auto-pay failed", "error", err)
			break
		}
		progressed := false
		for _, w := range batch {
			if seen[w.ID] {
				continue
			}
			seen[w.ID] = true
			progressed = true

			switch err := t.service.SettleWorklog(ctx, w); {
			case err == nil:
				settled++
				metrics.SettlementsTotal.WithLabelValues("settled").Inc()
			case errors.Is(err, worklog.ErrAlreadyClaimed):
				// Another run owns it.
				metrics.SettlementsTotal.WithLabelValues("skipped").Inc()
			case errors.Is(err, ErrNoFundingHold):
				metrics.SettlementsTotal.WithLabelValues("skipped").Inc()
				t.logger.Warn("worklog has no funding hold, skipping",
					"worklog_id", w.ID, "contract_id", w.ContractID)
			default:
				metrics.SettlementsTotal.WithLabelValues("failed").Inc()
				t.logger.Warn("worklog settlement failed",
					"worklog_id", w.ID,
					"contract_id", w.ContractID,
					"error", err)
			}
		}
		if len(batch) < batchSize || !progressed {
			break
		}
	}

	if settled > 0 {
		t.logger.Info("settlement sweep complete", "worklogs_settled", settled)
	}
}
