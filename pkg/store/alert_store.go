package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"go.uber.org/zap"
)

const alertColumns = `calendar_id, event_assigned, event_id, title, alert_time,
	instance_start, instance_end, all_day, created_by_us, was_handled`

// AlertStore manages scheduled alert entries.
//
// The identity of an entry is (event, alert time, instance start). Writing an
// entry whose key already exists replaces the other columns; a duplicate key
// is the normal outcome of two callers scheduling the same alert, not an
// error.
type AlertStore struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertStore creates an AlertStore on an open database handle.
func NewAlertStore(db *sql.DB, logger *zap.Logger) *AlertStore {
	return &AlertStore{db: db, logger: logger}
}

// AddOrUpdate inserts the entry or overwrites the non-key fields of the
// existing entry with the same key. It reports whether the write reached
// storage.
func (as *AlertStore) AddOrUpdate(ctx context.Context, entry models.AlertEntry) bool {
	as.mu.Lock()
	defer as.mu.Unlock()

	if err := upsertAlert(ctx, as.db, entry); err != nil {
		as.logger.Error("alert store: add or update failed",
			zap.String("key", entry.Key().String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// AddOrUpdateBatch applies AddOrUpdate to each entry in order. Entries are
// written independently: a failing entry is logged and skipped. Returns the
// number of entries written.
func (as *AlertStore) AddOrUpdateBatch(ctx context.Context, entries []models.AlertEntry) int {
	as.mu.Lock()
	defer as.mu.Unlock()

	written := 0
	for _, entry := range entries {
		if err := upsertAlert(ctx, as.db, entry); err != nil {
			as.logger.Error("alert store: batch entry skipped",
				zap.String("key", entry.Key().String()),
				zap.Error(err),
			)
			continue
		}
		written++
	}
	return written
}

// Delete removes the entry with the given key. A missing entry is not an
// error. It reports whether the statement reached storage.
func (as *AlertStore) Delete(ctx context.Context, key models.AlertKey) bool {
	as.mu.Lock()
	defer as.mu.Unlock()

	if err := deleteAlert(ctx, as.db, key); err != nil {
		as.logger.Error("alert store: delete failed",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// DeleteOlderThan removes every entry whose instance started before cutoff
// and returns how many were removed.
func (as *AlertStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) int64 {
	as.mu.Lock()
	defer as.mu.Unlock()

	res, err := as.db.ExecContext(ctx, `DELETE FROM alerts WHERE instance_start < ?`, cutoff.UnixMilli())
	if err != nil {
		as.logger.Error("alert store: delete older than failed",
			zap.Time("cutoff", cutoff),
			zap.Error(err),
		)
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// Get returns the entry with the given key.
func (as *AlertStore) Get(ctx context.Context, key models.AlertKey) (models.AlertEntry, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()

	entry, found, err := selectAlert(ctx, as.db, key)
	if err != nil {
		as.logger.Error("alert store: get failed",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return models.AlertEntry{}, false
	}
	return entry, found
}

// NextAlertAtOrAfter returns the earliest alert time that is not before since.
func (as *AlertStore) NextAlertAtOrAfter(ctx context.Context, since time.Time) (time.Time, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()

	var next sql.NullInt64
	err := as.db.QueryRowContext(ctx,
		`SELECT MIN(alert_time) FROM alerts WHERE alert_time >= ?`,
		since.UnixMilli(),
	).Scan(&next)
	if err != nil {
		as.logger.Error("alert store: next alert lookup failed",
			zap.Time("since", since),
			zap.Error(err),
		)
		return time.Time{}, false
	}
	if !next.Valid {
		return time.Time{}, false
	}
	return time.UnixMilli(next.Int64), true
}

// AlertsAt returns the entries whose alert time is exactly t. Callers wake on
// times obtained from NextAlertAtOrAfter, so no rounding is applied.
func (as *AlertStore) AlertsAt(ctx context.Context, t time.Time) []models.AlertEntry {
	as.mu.Lock()
	defer as.mu.Unlock()

	return as.list(ctx, "alerts at", `WHERE alert_time = ?`, t.UnixMilli())
}

// PendingAt returns unhandled entries whose alert time is not after t, oldest
// first.
func (as *AlertStore) PendingAt(ctx context.Context, t time.Time) []models.AlertEntry {
	as.mu.Lock()
	defer as.mu.Unlock()

	return as.list(ctx, "pending at", `WHERE alert_time <= ? AND was_handled = 0`, t.UnixMilli())
}

// AllEntries returns every stored entry ordered by alert time.
func (as *AlertStore) AllEntries(ctx context.Context) []models.AlertEntry {
	as.mu.Lock()
	defer as.mu.Unlock()

	return as.list(ctx, "all entries", "")
}

// MarkHandled flags the entry as fired. It reports whether an entry with the
// key existed and was updated.
func (as *AlertStore) MarkHandled(ctx context.Context, key models.AlertKey) bool {
	as.mu.Lock()
	defer as.mu.Unlock()

	res, err := as.db.ExecContext(ctx,
		`UPDATE alerts SET was_handled = 1 WHERE `+keyClause,
		keyArgs(key)...,
	)
	if err != nil {
		as.logger.Error("alert store: mark handled failed",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// Exclusive runs fn while holding the store's lock, so that a sequence of
// reads and writes made through the view cannot interleave with other
// callers. An error returned by fn is logged and reported as false; writes
// already made through the view are kept.
func (as *AlertStore) Exclusive(ctx context.Context, fn func(v *AlertView) error) bool {
	as.mu.Lock()
	defer as.mu.Unlock()

	if err := fn(&AlertView{db: as.db}); err != nil {
		as.logger.Error("alert store: exclusive sequence failed", zap.Error(err))
		return false
	}
	return true
}

func (as *AlertStore) list(ctx context.Context, op, where string, args ...any) []models.AlertEntry {
	entries, err := selectAlerts(ctx, as.db, where, args...)
	if err != nil {
		as.logger.Error("alert store: "+op+" failed", zap.Error(err))
		return nil
	}
	return entries
}

// AlertView gives access to the alerts table inside AlertStore.Exclusive.
// Unlike the store's own methods, view methods return storage errors.
type AlertView struct {
	db querier
}

// AllEntries returns every stored entry ordered by alert time.
func (v *AlertView) AllEntries(ctx context.Context) ([]models.AlertEntry, error) {
	return selectAlerts(ctx, v.db, "")
}

// Get returns the entry with the given key.
func (v *AlertView) Get(ctx context.Context, key models.AlertKey) (models.AlertEntry, bool, error) {
	return selectAlert(ctx, v.db, key)
}

// AddOrUpdate inserts or replaces the entry.
func (v *AlertView) AddOrUpdate(ctx context.Context, entry models.AlertEntry) error {
	return upsertAlert(ctx, v.db, entry)
}

// Delete removes the entry with the given key if present.
func (v *AlertView) Delete(ctx context.Context, key models.AlertKey) error {
	return deleteAlert(ctx, v.db, key)
}

const keyClause = `event_assigned = ? AND event_id = ? AND alert_time = ? AND instance_start = ?`

func keyArgs(key models.AlertKey) []any {
	id, assigned := key.EventID.ID()
	return []any{assigned, id, key.AlertTime.UnixMilli(), key.InstanceStart.UnixMilli()}
}

func upsertAlert(ctx context.Context, q querier, e models.AlertEntry) error {
	id, assigned := e.EventID.ID()
	_, err := q.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_assigned, event_id, alert_time, instance_start) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			title = excluded.title,
			instance_end = excluded.instance_end,
			all_day = excluded.all_day,
			created_by_us = excluded.created_by_us,
			was_handled = excluded.was_handled
	`,
		e.CalendarID,
		assigned,
		id,
		e.Title,
		e.AlertTime.UnixMilli(),
		e.InstanceStart.UnixMilli(),
		e.InstanceEnd.UnixMilli(),
		e.IsAllDay,
		e.CreatedByUs,
		e.WasHandled,
	)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

func deleteAlert(ctx context.Context, q querier, key models.AlertKey) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM alerts WHERE `+keyClause, keyArgs(key)...); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

func selectAlert(ctx context.Context, q querier, key models.AlertKey) (models.AlertEntry, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE `+keyClause, keyArgs(key)...)
	entry, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AlertEntry{}, false, nil
	}
	if err != nil {
		return models.AlertEntry{}, false, fmt.Errorf("select alert: %w", err)
	}
	return entry, true, nil
}

func selectAlerts(ctx context.Context, q querier, where string, args ...any) ([]models.AlertEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts `+where+`
		ORDER BY alert_time ASC, instance_start ASC, event_assigned ASC, event_id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	defer rows.Close()

	entries := []models.AlertEntry{}
	for rows.Next() {
		entry, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("select alerts: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(s scanner) (models.AlertEntry, error) {
	var (
		e                             models.AlertEntry
		assigned                      bool
		eventID                       string
		alertTime, startTime, endTime int64
	)
	err := s.Scan(
		&e.CalendarID,
		&assigned,
		&eventID,
		&e.Title,
		&alertTime,
		&startTime,
		&endTime,
		&e.IsAllDay,
		&e.CreatedByUs,
		&e.WasHandled,
	)
	if err != nil {
		return models.AlertEntry{}, err
	}

	if assigned {
		e.EventID = models.AssignedEvent(eventID)
	} else {
		e.EventID = models.UnassignedEvent()
	}
	e.AlertTime = time.UnixMilli(alertTime)
	e.InstanceStart = time.UnixMilli(startTime)
	e.InstanceEnd = time.UnixMilli(endTime)
	return e, nil
}
