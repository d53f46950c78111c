package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/borgmon/alert-keeper/pkg/calendar"
	"github.com/borgmon/alert-keeper/pkg/clock"
	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/borgmon/alert-keeper/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCalendar struct {
	mu        sync.Mutex
	events    map[string]*models.Event
	next      int
	getErr    error
	createErr error
	created   []models.EventDraft
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]*models.Event{}}
}

func (f *fakeCalendar) GetEvent(_ context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	copied := *ev
	return &copied, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, draft models.EventDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	id := fmt.Sprintf("new-%d", f.next)
	f.events[id] = &models.Event{ID: id, Title: draft.Title, StartTime: draft.StartTime, EndTime: draft.EndTime}
	f.created = append(f.created, draft)
	return id, nil
}

func (f *fakeCalendar) put(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id] = &models.Event{ID: id, Title: title}
}

// now has millisecond resolution and the local zone, like times read back
// from the store.
var now = time.UnixMilli(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC).UnixMilli())

func entry(ref models.EventRef, title string, start time.Time) models.AlertEntry {
	return models.AlertEntry{
		CalendarID:    1,
		EventID:       ref,
		Title:         title,
		AlertTime:     start.Add(-10 * time.Minute),
		InstanceStart: start,
		InstanceEnd:   start.Add(time.Hour),
	}
}

func setup(t *testing.T) (*Reconciler, *store.AlertStore, *fakeCalendar) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	alerts := store.NewAlertStore(db.SQL(), zap.NewNop())
	cal := newFakeCalendar()
	r := New(alerts, cal, clock.NewFake(now), func() time.Duration { return 24 * time.Hour }, zap.NewNop())
	return r, alerts, cal
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	cal := newFakeCalendar()
	cal.put("a", "Standup")
	cal.put("b", "Renamed")
	cutoff := now.Add(-24 * time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		entry models.AlertEntry
		want  Action
	}{
		{"matching event", entry(models.AssignedEvent("a"), "Standup", future), Keep},
		{"expired", entry(models.AssignedEvent("a"), "Standup", now.Add(-72*time.Hour)), Expire},
		{"unassigned", entry(models.UnassignedEvent(), "Standup", future), Rematerialize},
		{"missing externally", entry(models.AssignedEvent("gone"), "Standup", future), Rematerialize},
		{"title mismatch", entry(models.AssignedEvent("b"), "Standup", future), Mismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(ctx, tt.entry, cutoff, cal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_EndAfterCutoffIsNotExpired(t *testing.T) {
	cal := newFakeCalendar()
	cal.put("a", "Offsite")
	e := entry(models.AssignedEvent("a"), "Offsite", now.Add(-72*time.Hour))
	e.InstanceEnd = now.Add(time.Hour)

	got, err := Classify(context.Background(), e, now.Add(-24*time.Hour), cal)
	require.NoError(t, err)
	assert.Equal(t, Keep, got)
}

func TestRun_AppliesEveryAction(t *testing.T) {
	r, alerts, cal := setup(t)
	ctx := context.Background()
	cal.put("a", "Standup")
	cal.put("b", "Renamed")
	future := now.Add(time.Hour)

	keep := entry(models.AssignedEvent("a"), "Standup", future)
	expired := entry(models.AssignedEvent("a"), "Standup", now.Add(-72*time.Hour))
	orphan := entry(models.UnassignedEvent(), "Dentist", future.Add(time.Hour))
	mismatch := entry(models.AssignedEvent("b"), "Standup", future.Add(2*time.Hour))
	require.Equal(t, 4, alerts.AddOrUpdateBatch(ctx, []models.AlertEntry{keep, expired, orphan, mismatch}))

	report, ok := r.Run(ctx)
	require.True(t, ok)
	assert.Equal(t, Report{Kept: 1, Expired: 1, Rematerialized: 1, Mismatched: 1}, report)

	all := alerts.AllEntries(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, keep, all[0])

	moved := all[1]
	id, assigned := moved.EventID.ID()
	assert.True(t, assigned)
	assert.Equal(t, "new-1", id)
	assert.True(t, moved.CreatedByUs)
	assert.Equal(t, "Dentist", moved.Title)
	assert.True(t, orphan.AlertTime.Equal(moved.AlertTime))

	_, found := alerts.Get(ctx, orphan.Key())
	assert.False(t, found)

	require.Len(t, cal.created, 1)
	assert.Equal(t, orphan.Draft(), cal.created[0])
}

func TestRun_Idempotent(t *testing.T) {
	r, alerts, _ := setup(t)
	ctx := context.Background()

	alerts.AddOrUpdate(ctx, entry(models.AssignedEvent("gone"), "Review", now.Add(time.Hour)))

	first, ok := r.Run(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, first.Rematerialized)
	before := alerts.AllEntries(ctx)

	second, ok := r.Run(ctx)
	require.True(t, ok)
	assert.Equal(t, Report{Kept: 1}, second)
	assert.Equal(t, before, alerts.AllEntries(ctx))
}

func TestRun_IdempotentAgainstICSFile(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	alerts := store.NewAlertStore(db.SQL(), zap.NewNop())
	cal := calendar.NewICSCalendar(filepath.Join(dir, "alerts.ics"), zap.NewNop())
	r := New(alerts, cal, clock.NewFake(now), func() time.Duration { return 24 * time.Hour }, zap.NewNop())
	ctx := context.Background()

	alerts.AddOrUpdate(ctx, entry(models.UnassignedEvent(), "Lunch, Bob; room 3", now.Add(time.Hour)))

	first, ok := r.Run(ctx)
	require.True(t, ok)
	assert.Equal(t, Report{Rematerialized: 1}, first)
	before := alerts.AllEntries(ctx)
	require.Len(t, before, 1)

	second, ok := r.Run(ctx)
	require.True(t, ok)
	assert.Equal(t, Report{Kept: 1}, second)
	assert.Equal(t, before, alerts.AllEntries(ctx))
}

func TestRun_CalendarLookupFailureKeepsEntry(t *testing.T) {
	r, alerts, cal := setup(t)
	ctx := context.Background()
	cal.getErr = errors.New("calendar offline")

	e := entry(models.AssignedEvent("a"), "Standup", now.Add(time.Hour))
	alerts.AddOrUpdate(ctx, e)

	report, ok := r.Run(ctx)
	require.True(t, ok)
	assert.Equal(t, Report{Failed: 1}, report)

	got, found := alerts.Get(ctx, e.Key())
	require.True(t, found)
	assert.Equal(t, e, got)
}

func TestRun_CreateFailureKeepsEntry(t *testing.T) {
	r, alerts, cal := setup(t)
	ctx := context.Background()
	cal.createErr = errors.New("read-only calendar")

	e := entry(models.UnassignedEvent(), "Standup", now.Add(time.Hour))
	alerts.AddOrUpdate(ctx, e)

	report, ok := r.Run(ctx)
	require.True(t, ok)
	assert.Equal(t, Report{Failed: 1}, report)

	_, found := alerts.Get(ctx, e.Key())
	assert.True(t, found)
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "rematerialize", Rematerialize.String())
	assert.Equal(t, "action(9)", Action(9).String())
}
