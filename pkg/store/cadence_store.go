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

// CadenceStore persists reminder cadence state, one row per subject.
type CadenceStore struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
}

// NewCadenceStore creates a CadenceStore on an open database handle.
func NewCadenceStore(db *sql.DB, logger *zap.Logger) *CadenceStore {
	return &CadenceStore{db: db, logger: logger}
}

// Get returns the state stored for subject.
func (cs *CadenceStore) Get(ctx context.Context, subject string) (models.CadenceState, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	st, found, err := cs.load(ctx, subject)
	if err != nil {
		cs.logger.Error("cadence store: get failed", zap.String("subject", subject), zap.Error(err))
		return models.CadenceState{}, false
	}
	return st, found
}

// Update loads the state for subject (a fresh state if none is stored), lets
// fn modify it and writes it back, all under the store lock. It returns the
// written state and whether the sequence completed.
func (cs *CadenceStore) Update(ctx context.Context, subject string, fn func(st *models.CadenceState)) (models.CadenceState, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	st, _, err := cs.load(ctx, subject)
	if err != nil {
		cs.logger.Error("cadence store: load for update failed", zap.String("subject", subject), zap.Error(err))
		return models.CadenceState{}, false
	}

	fn(&st)
	st.Subject = subject

	if err := cs.save(ctx, st); err != nil {
		cs.logger.Error("cadence store: save failed", zap.String("subject", subject), zap.Error(err))
		return models.CadenceState{}, false
	}
	return st, true
}

// Delete removes the state for subject. A missing row is not an error.
func (cs *CadenceStore) Delete(ctx context.Context, subject string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, err := cs.db.ExecContext(ctx, `DELETE FROM cadence WHERE subject = ?`, subject); err != nil {
		cs.logger.Error("cadence store: delete failed", zap.String("subject", subject), zap.Error(err))
		return false
	}
	return true
}

// Prune deletes states whose subject is not in live, and states with no
// pending reminder that last fired before cutoff. It returns how many rows
// were removed.
func (cs *CadenceStore) Prune(ctx context.Context, live map[string]bool, cutoff time.Time) int64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	n, err := cs.prune(ctx, live, cutoff)
	if err != nil {
		cs.logger.Error("cadence store: prune failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0
	}
	return n
}

func (cs *CadenceStore) prune(ctx context.Context, live map[string]bool, cutoff time.Time) (int64, error) {
	rows, err := cs.db.QueryContext(ctx, `
		SELECT subject, last_fire_time, next_expected_fire_time FROM cadence
	`)
	if err != nil {
		return 0, fmt.Errorf("list cadence: %w", err)
	}

	var stale []string
	for rows.Next() {
		var (
			subject        string
			lastFire, next int64
		)
		if err := rows.Scan(&subject, &lastFire, &next); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan cadence: %w", err)
		}
		finished := next == 0 && lastFire > 0 && lastFire < cutoff.UnixMilli()
		if !live[subject] || finished {
			stale = append(stale, subject)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("list cadence: %w", err)
	}
	rows.Close()

	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	for _, subject := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cadence WHERE subject = ?`, subject); err != nil {
			return 0, fmt.Errorf("delete cadence %s: %w", subject, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return int64(len(stale)), nil
}

// DueAt returns states whose next expected fire time is set and not after t,
// earliest first.
func (cs *CadenceStore) DueAt(ctx context.Context, t time.Time) []models.CadenceState {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rows, err := cs.db.QueryContext(ctx, `
		SELECT subject, last_fire_time, fire_count, one_shot_quiet_override, next_expected_fire_time
		FROM cadence
		WHERE next_expected_fire_time > 0 AND next_expected_fire_time <= ?
		ORDER BY next_expected_fire_time ASC, subject ASC
	`, t.UnixMilli())
	if err != nil {
		cs.logger.Error("cadence store: due lookup failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	states := []models.CadenceState{}
	for rows.Next() {
		st, err := scanCadence(rows)
		if err != nil {
			cs.logger.Error("cadence store: due scan failed", zap.Error(err))
			return nil
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		cs.logger.Error("cadence store: due lookup failed", zap.Error(err))
		return nil
	}
	return states
}

// NextDue returns the earliest next expected fire time across all subjects.
func (cs *CadenceStore) NextDue(ctx context.Context) (time.Time, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var next sql.NullInt64
	err := cs.db.QueryRowContext(ctx,
		`SELECT MIN(next_expected_fire_time) FROM cadence WHERE next_expected_fire_time > 0`,
	).Scan(&next)
	if err != nil {
		cs.logger.Error("cadence store: next due lookup failed", zap.Error(err))
		return time.Time{}, false
	}
	if !next.Valid {
		return time.Time{}, false
	}
	return time.UnixMilli(next.Int64), true
}

func (cs *CadenceStore) load(ctx context.Context, subject string) (models.CadenceState, bool, error) {
	row := cs.db.QueryRowContext(ctx, `
		SELECT subject, last_fire_time, fire_count, one_shot_quiet_override, next_expected_fire_time
		FROM cadence WHERE subject = ?
	`, subject)
	st, err := scanCadence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CadenceState{Subject: subject}, false, nil
	}
	if err != nil {
		return models.CadenceState{}, false, fmt.Errorf("load cadence: %w", err)
	}
	return st, true, nil
}

func (cs *CadenceStore) save(ctx context.Context, st models.CadenceState) error {
	_, err := cs.db.ExecContext(ctx, `
		INSERT INTO cadence (subject, last_fire_time, fire_count, one_shot_quiet_override, next_expected_fire_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET
			last_fire_time = excluded.last_fire_time,
			fire_count = excluded.fire_count,
			one_shot_quiet_override = excluded.one_shot_quiet_override,
			next_expected_fire_time = excluded.next_expected_fire_time
	`,
		st.Subject,
		toMillis(st.LastFireTime),
		st.FireCount,
		st.OneShotQuietOverride,
		toMillis(st.NextExpectedFireTime),
	)
	if err != nil {
		return fmt.Errorf("save cadence: %w", err)
	}
	return nil
}

func scanCadence(s scanner) (models.CadenceState, error) {
	var (
		st             models.CadenceState
		lastFire, next int64
	)
	if err := s.Scan(&st.Subject, &lastFire, &st.FireCount, &st.OneShotQuietOverride, &next); err != nil {
		return models.CadenceState{}, err
	}
	st.LastFireTime = fromMillis(lastFire)
	st.NextExpectedFireTime = fromMillis(next)
	return st, nil
}
