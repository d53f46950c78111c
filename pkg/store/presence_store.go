package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/borgmon/alert-keeper/pkg/models"
	"go.uber.org/zap"
)

// PresenceStore persists the device presence snapshot in a single row.
type PresenceStore struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
}

// NewPresenceStore creates a PresenceStore on an open database handle.
func NewPresenceStore(db *sql.DB, logger *zap.Logger) *PresenceStore {
	return &PresenceStore{db: db, logger: logger}
}

// Snapshot returns the stored snapshot, or an empty one if nothing is stored
// or storage fails.
func (ps *PresenceStore) Snapshot(ctx context.Context) models.PresenceSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	snap, err := ps.load(ctx)
	if err != nil {
		ps.logger.Error("presence store: load failed", zap.Error(err))
		return models.PresenceSnapshot{}
	}
	return snap
}

// Update runs fn on the stored snapshot while holding the store lock. When fn
// reports a change the snapshot is written back. The returned snapshot is the
// one fn left behind, even if writing it failed.
func (ps *PresenceStore) Update(ctx context.Context, fn func(snap *models.PresenceSnapshot) bool) models.PresenceSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	snap, err := ps.load(ctx)
	if err != nil {
		ps.logger.Error("presence store: load for update failed", zap.Error(err))
		snap = models.PresenceSnapshot{}
	}

	if !fn(&snap) {
		return snap
	}

	if err := ps.save(ctx, snap); err != nil {
		ps.logger.Error("presence store: save failed", zap.Error(err))
	}
	return snap
}

func (ps *PresenceStore) load(ctx context.Context) (models.PresenceSnapshot, error) {
	var (
		csv   string
		until int64
	)
	err := ps.db.QueryRowContext(ctx,
		`SELECT trigger_addresses, cached_silent_until FROM presence WHERE id = 1`,
	).Scan(&csv, &until)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PresenceSnapshot{}, nil
	}
	if err != nil {
		return models.PresenceSnapshot{}, fmt.Errorf("load presence: %w", err)
	}
	return models.PresenceSnapshot{
		TriggerAddresses:  splitAddresses(csv),
		CachedSilentUntil: fromMillis(until),
	}, nil
}

func (ps *PresenceStore) save(ctx context.Context, snap models.PresenceSnapshot) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO presence (id, trigger_addresses, cached_silent_until)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			trigger_addresses = excluded.trigger_addresses,
			cached_silent_until = excluded.cached_silent_until
	`, strings.Join(snap.TriggerAddresses, ","), toMillis(snap.CachedSilentUntil))
	if err != nil {
		return fmt.Errorf("save presence: %w", err)
	}
	return nil
}

func splitAddresses(csv string) []string {
	addresses := []string{}
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			addresses = append(addresses, part)
		}
	}
	return addresses
}
