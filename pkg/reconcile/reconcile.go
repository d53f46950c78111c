// Package reconcile brings stored alerts back in line with the calendar they
// were scheduled from.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/borgmon/alert-keeper/pkg/calendar"
	"github.com/borgmon/alert-keeper/pkg/clock"
	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/borgmon/alert-keeper/pkg/store"
	"go.uber.org/zap"
)

// Action is the outcome of classifying one stored alert.
type Action int

const (
	// Keep leaves the entry unchanged.
	Keep Action = iota
	// Expire deletes an entry whose occurrence is past the retention cutoff.
	Expire
	// Rematerialize re-creates the calendar event and stores the new id.
	Rematerialize
	// Mismatch deletes an entry whose event id now names a different event.
	Mismatch
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case Expire:
		return "expire"
	case Rematerialize:
		return "rematerialize"
	case Mismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Classify decides what a reconciliation pass does with entry. Entries whose
// occurrence both started and ended before cutoff expire. Otherwise an
// unassigned or vanished event is re-created and an event whose title
// changed is treated as a different event. An error from the source is
// returned as is; the caller keeps the entry.
func Classify(ctx context.Context, entry models.AlertEntry, cutoff time.Time, source calendar.CalendarSource) (Action, error) {
	if entry.InstanceStart.Before(cutoff) && entry.InstanceEnd.Before(cutoff) {
		return Expire, nil
	}

	id, ok := entry.EventID.ID()
	if !ok {
		return Rematerialize, nil
	}

	ev, err := source.GetEvent(ctx, id)
	if err != nil {
		return Keep, err
	}
	if ev == nil {
		return Rematerialize, nil
	}
	if ev.Title != entry.Title {
		return Mismatch, nil
	}
	return Keep, nil
}

// Report counts what one pass did.
type Report struct {
	Kept           int
	Expired        int
	Rematerialized int
	Mismatched     int
	Failed         int // entries left in place because the calendar failed
}

// Reconciler runs reconciliation passes over an AlertStore.
type Reconciler struct {
	alerts    *store.AlertStore
	source    calendar.CalendarSource
	clock     clock.Clock
	retention func() time.Duration
	logger    *zap.Logger
}

// New creates a Reconciler. retention is read at the start of every pass so
// setting changes apply without a restart.
func New(alerts *store.AlertStore, source calendar.CalendarSource, clk clock.Clock, retention func() time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		alerts:    alerts,
		source:    source,
		clock:     clk,
		retention: retention,
		logger:    logger,
	}
}

// Run performs one pass over every stored entry while holding the alert
// store's lock. It reports false when the store itself failed; entries
// handled before the failure keep their new state.
func (r *Reconciler) Run(ctx context.Context) (Report, bool) {
	var report Report
	cutoff := r.clock.Now().Add(-r.retention())

	ok := r.alerts.Exclusive(ctx, func(v *store.AlertView) error {
		entries, err := v.AllEntries(ctx)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			action, err := Classify(ctx, entry, cutoff, r.source)
			if err != nil {
				r.logger.Warn("reconcile: calendar lookup failed, keeping alert",
					zap.String("key", entry.Key().String()),
					zap.Error(err),
				)
				report.Failed++
				continue
			}

			switch action {
			case Keep:
				report.Kept++
			case Expire, Mismatch:
				if err := v.Delete(ctx, entry.Key()); err != nil {
					return err
				}
				if action == Expire {
					report.Expired++
				} else {
					report.Mismatched++
				}
			case Rematerialize:
				done, err := r.rematerialize(ctx, v, entry)
				if err != nil {
					return err
				}
				if done {
					report.Rematerialized++
				} else {
					report.Failed++
				}
			}
		}
		return nil
	})

	r.logger.Info("reconcile pass finished",
		zap.Bool("ok", ok),
		zap.Int("kept", report.Kept),
		zap.Int("expired", report.Expired),
		zap.Int("rematerialized", report.Rematerialized),
		zap.Int("mismatched", report.Mismatched),
		zap.Int("failed", report.Failed),
	)
	return report, ok
}

// rematerialize creates a fresh calendar event for entry and moves the row
// to the new id. A calendar failure leaves the row untouched and reports
// false; only storage errors are returned.
func (r *Reconciler) rematerialize(ctx context.Context, v *store.AlertView, entry models.AlertEntry) (bool, error) {
	id, err := r.source.CreateEvent(ctx, entry.Draft())
	if err != nil {
		r.logger.Warn("reconcile: create event failed, keeping alert",
			zap.String("key", entry.Key().String()),
			zap.Error(err),
		)
		return false, nil
	}

	if err := v.Delete(ctx, entry.Key()); err != nil {
		return false, err
	}

	entry.EventID = models.AssignedEvent(id)
	entry.CreatedByUs = true
	if err := v.AddOrUpdate(ctx, entry); err != nil {
		return false, err
	}

	r.logger.Debug("reconcile: event re-created",
		zap.String("event_id", id),
		zap.String("title", entry.Title),
	)
	return true, nil
}
