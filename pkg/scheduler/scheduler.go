// Package scheduler decides, on each wake-up, which alerts fire, which are
// held back by silence, and when to wake next.
package scheduler

import (
	"context"
	"time"

	"github.com/borgmon/alert-keeper/pkg/cadence"
	"github.com/borgmon/alert-keeper/pkg/clock"
	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/borgmon/alert-keeper/pkg/presence"
	"github.com/borgmon/alert-keeper/pkg/quiet"
	"github.com/borgmon/alert-keeper/pkg/store"
	"go.uber.org/zap"
)

// maxSleep bounds the time between two ticks so settings changes and newly
// stored alerts are picked up.
const maxSleep = time.Minute

// SettingsSource supplies the current settings. Load is called once per tick.
type SettingsSource interface {
	Load() *models.Config
}

// Scheduler fires due alerts and reminders. It has no goroutines of its own;
// the caller invokes Tick and sleeps until the returned time.
type Scheduler struct {
	alerts   *store.AlertStore
	cadence  *cadence.Tracker
	presence *presence.Override // nil disables presence silence
	settings SettingsSource
	notifier Notifier
	clock    clock.Clock
	logger   *zap.Logger
}

// Options wires a Scheduler to its collaborators.
type Options struct {
	Alerts   *store.AlertStore
	Cadence  *cadence.Tracker
	Presence *presence.Override
	Settings SettingsSource
	Notifier Notifier
	Clock    clock.Clock
	Logger   *zap.Logger
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		alerts:   opts.Alerts,
		cadence:  opts.Cadence,
		presence: opts.Presence,
		settings: opts.Settings,
		notifier: opts.Notifier,
		clock:    clk,
		logger:   logger,
	}
}

// SilentUntil returns when the later of quiet-hours and presence silence
// ends, or the zero time when alerts may fire now.
func (s *Scheduler) SilentUntil(ctx context.Context, cfg *models.Config, now time.Time) time.Time {
	until := quiet.SilentUntil(cfg.QuietHours, now)
	if s.presence != nil {
		if p := s.presence.SilentUntil(ctx, cfg.PresenceDevices, cfg.SleepQuantum, now); p.After(until) {
			until = p
		}
	}
	return until
}

// Tick runs one scheduling step and returns when the next one is due.
func (s *Scheduler) Tick(ctx context.Context) time.Time {
	now := s.clock.Now()
	cfg := s.settings.Load()

	if until := s.SilentUntil(ctx, cfg, now); !until.IsZero() {
		s.holdBack(ctx, now)
		s.logger.Debug("silent", zap.Time("until", until))
		if wake := now.Add(maxSleep); wake.Before(until) {
			return wake
		}
		return until
	}

	s.fireAlerts(ctx, cfg, now)
	s.fireReminders(ctx, cfg, now)

	return s.nextWake(ctx, now)
}

// holdBack arms the quiet override for everything that would have fired, so
// the fire after silence ends is not counted as a reminder.
func (s *Scheduler) holdBack(ctx context.Context, now time.Time) {
	for _, entry := range s.alerts.PendingAt(ctx, now) {
		s.cadence.ArmQuietOverride(ctx, entry.Key().String())
	}
	for _, st := range s.cadence.Due(ctx, now) {
		s.cadence.ArmQuietOverride(ctx, st.Subject)
	}
}

func (s *Scheduler) fireAlerts(ctx context.Context, cfg *models.Config, now time.Time) {
	for _, entry := range s.alerts.PendingAt(ctx, now) {
		key := entry.Key()

		if entry.IsAllDay && !cfg.NotifyAllDay {
			s.alerts.MarkHandled(ctx, key)
			continue
		}

		if err := s.notifier.Notify(ctx, entry, KindAlert); err != nil {
			// Left unhandled; the next tick retries.
			s.logger.Warn("notify failed",
				zap.String("key", key.String()),
				zap.Error(err),
			)
			continue
		}

		s.cadence.OnFired(ctx, key.String(), now, cfg.Reminder)
		s.alerts.MarkHandled(ctx, key)
	}
}

func (s *Scheduler) fireReminders(ctx context.Context, cfg *models.Config, now time.Time) {
	due := s.cadence.Due(ctx, now)
	if len(due) == 0 {
		return
	}

	byKey := map[string]models.AlertEntry{}
	for _, entry := range s.alerts.AllEntries(ctx) {
		byKey[entry.Key().String()] = entry
	}

	for _, st := range due {
		entry, ok := byKey[st.Subject]
		if !ok {
			// The alert was deleted, e.g. by reconciliation.
			s.cadence.Reset(ctx, st.Subject)
			continue
		}

		if err := s.notifier.Notify(ctx, entry, KindReminder); err != nil {
			s.logger.Warn("reminder notify failed",
				zap.String("key", st.Subject),
				zap.Error(err),
			)
			continue
		}
		s.cadence.OnFired(ctx, st.Subject, now, cfg.Reminder)
	}
}

func (s *Scheduler) nextWake(ctx context.Context, now time.Time) time.Time {
	wake := now.Add(maxSleep)
	if t, ok := s.alerts.NextAlertAtOrAfter(ctx, now.Add(time.Millisecond)); ok && t.Before(wake) {
		wake = t
	}
	if t, ok := s.cadence.NextDue(ctx); ok && t.Before(wake) {
		wake = t
	}
	if wake.Before(now) {
		wake = now
	}
	return wake
}

// Status is a point-in-time summary of the scheduler's inputs.
type Status struct {
	Now           time.Time
	QuietUntil    time.Time
	PresenceUntil time.Time
	Pending       []models.AlertEntry
	NextAlert     time.Time
	NextReminder  time.Time
}

// Status reports the current silence state and upcoming work without firing
// anything. It does probe presence devices.
func (s *Scheduler) Status(ctx context.Context) Status {
	now := s.clock.Now()
	cfg := s.settings.Load()

	st := Status{
		Now:        now,
		QuietUntil: quiet.SilentUntil(cfg.QuietHours, now),
		Pending:    s.alerts.PendingAt(ctx, now),
	}
	if s.presence != nil {
		st.PresenceUntil = s.presence.SilentUntil(ctx, cfg.PresenceDevices, cfg.SleepQuantum, now)
	}
	if t, ok := s.alerts.NextAlertAtOrAfter(ctx, now); ok {
		st.NextAlert = t
	}
	if t, ok := s.cadence.NextDue(ctx); ok {
		st.NextReminder = t
	}
	return st
}
