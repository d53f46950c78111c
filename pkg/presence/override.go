// Package presence extends silence while a designated device is connected.
//
// Probing device connection state is comparatively slow, and the scheduler
// asks on every tick. The override therefore caches a "silent until" time and
// only probes again once the cached value is less than a minute away.
package presence

import (
	"context"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/borgmon/alert-keeper/pkg/store"
	"go.uber.org/zap"
)

// recheckWindow is how close to expiry a cached silence must be before the
// devices are probed again.
const recheckWindow = time.Minute

// DevicePresenceSource reports whether a device is currently connected.
type DevicePresenceSource interface {
	IsConnected(ctx context.Context, address string) (bool, error)
}

// Override computes presence-driven silence.
type Override struct {
	store  *store.PresenceStore
	source DevicePresenceSource
	logger *zap.Logger
}

// NewOverride creates an Override persisting its cache in ps.
func NewOverride(ps *store.PresenceStore, source DevicePresenceSource, logger *zap.Logger) *Override {
	return &Override{store: ps, source: source, logger: logger}
}

// SilentUntil returns when presence-driven silence ends, or the zero time if
// no trigger device is connected. addresses are the configured trigger
// devices and quantum is how far each positive probe extends silence.
func (o *Override) SilentUntil(ctx context.Context, addresses []string, quantum time.Duration, now time.Time) time.Time {
	snap := o.store.Update(ctx, func(snap *models.PresenceSnapshot) bool {
		return o.refresh(ctx, snap, addresses, quantum, now)
	})
	if !snap.CachedSilentUntil.After(now) {
		return time.Time{}
	}
	return snap.CachedSilentUntil
}

// refresh updates snap in place and reports whether it needs to be written.
func (o *Override) refresh(ctx context.Context, snap *models.PresenceSnapshot, addresses []string, quantum time.Duration, now time.Time) bool {
	changed := !sameAddresses(snap.TriggerAddresses, addresses)
	if changed {
		// A different device list invalidates whatever the old one cached.
		snap.TriggerAddresses = append([]string{}, addresses...)
		snap.CachedSilentUntil = time.Time{}
	}

	if snap.CachedSilentUntil.After(now.Add(recheckWindow)) {
		return changed
	}

	connected, err := o.anyConnected(ctx, addresses)
	if err != nil {
		o.logger.Warn("presence probe failed, not silencing", zap.Error(err))
		snap.CachedSilentUntil = time.Time{}
		return changed
	}

	if !connected {
		if snap.CachedSilentUntil.IsZero() {
			return changed
		}
		snap.CachedSilentUntil = time.Time{}
		return true
	}

	until := now.Add(quantum)
	if until.Before(snap.CachedSilentUntil) {
		until = snap.CachedSilentUntil
	}
	snap.CachedSilentUntil = until
	o.logger.Debug("trigger device connected, extending silence", zap.Time("until", until))
	return true
}

func (o *Override) anyConnected(ctx context.Context, addresses []string) (bool, error) {
	if len(addresses) == 0 || o.source == nil {
		return false, nil
	}

	var firstErr error
	for _, addr := range addresses {
		connected, err := o.source.IsConnected(ctx, addr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if connected {
			return true, nil
		}
	}
	return false, firstErr
}

func sameAddresses(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
