// Package cadence tracks how often a fired alert has been repeated and when
// the next reminder is due.
package cadence

import (
	"context"
	"math"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/borgmon/alert-keeper/pkg/store"
	"go.uber.org/zap"
)

// Tracker owns the cadence state of every reminder subject.
type Tracker struct {
	store  *store.CadenceStore
	logger *zap.Logger
}

// NewTracker creates a Tracker persisting state in cs.
func NewTracker(cs *store.CadenceStore, logger *zap.Logger) *Tracker {
	return &Tracker{store: cs, logger: logger}
}

// OnFired records that subject fired at now. A fire that follows a
// quiet-hours suppression consumes the one-shot override instead of counting
// against the reminder budget. The next expected fire time is derived from
// rule.
func (t *Tracker) OnFired(ctx context.Context, subject string, now time.Time, rule models.ReminderRule) (models.CadenceState, bool) {
	return t.store.Update(ctx, subject, func(st *models.CadenceState) {
		if st.OneShotQuietOverride {
			st.OneShotQuietOverride = false
		} else {
			st.FireCount++
		}
		st.LastFireTime = now
		st.NextExpectedFireTime = NextFire(rule, st.FireCount, now)

		t.logger.Debug("reminder fired",
			zap.String("subject", subject),
			zap.Int("fire_count", st.FireCount),
			zap.Time("next", st.NextExpectedFireTime),
		)
	})
}

// ArmQuietOverride marks the next fire of subject as a re-fire caused by
// silence, so it will not be counted.
func (t *Tracker) ArmQuietOverride(ctx context.Context, subject string) bool {
	_, ok := t.store.Update(ctx, subject, func(st *models.CadenceState) {
		st.OneShotQuietOverride = true
	})
	return ok
}

// Reset forgets the cadence of subject, e.g. after the user dismissed it.
func (t *Tracker) Reset(ctx context.Context, subject string) bool {
	return t.store.Delete(ctx, subject)
}

// State returns the cadence state of subject.
func (t *Tracker) State(ctx context.Context, subject string) (models.CadenceState, bool) {
	return t.store.Get(ctx, subject)
}

// Due returns the subjects whose next reminder is due at now.
func (t *Tracker) Due(ctx context.Context, now time.Time) []models.CadenceState {
	return t.store.DueAt(ctx, now)
}

// NextDue returns the earliest pending reminder time.
func (t *Tracker) NextDue(ctx context.Context) (time.Time, bool) {
	return t.store.NextDue(ctx)
}

// NextFire returns when the reminder after the fireCount-th fire is due, or
// the zero time when no further reminder should fire.
func NextFire(rule models.ReminderRule, fireCount int, now time.Time) time.Time {
	if rule.Interval <= 0 {
		return time.Time{}
	}
	if rule.MaxCount > 0 && fireCount >= rule.MaxCount {
		return time.Time{}
	}
	return now.Add(Interval(rule, fireCount))
}

// Interval is the delay before the next reminder: Interval * Backoff^(n-1)
// with n = max(fireCount, 1), capped at MaxInterval.
func Interval(rule models.ReminderRule, fireCount int) time.Duration {
	n := fireCount
	if n < 1 {
		n = 1
	}
	backoff := rule.Backoff
	if backoff < 1 {
		backoff = 1
	}

	d := float64(rule.Interval) * math.Pow(backoff, float64(n-1))
	if rule.MaxInterval > 0 && d > float64(rule.MaxInterval) {
		return rule.MaxInterval
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
