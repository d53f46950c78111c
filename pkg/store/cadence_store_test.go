package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func createTestCadenceStore(t *testing.T) *CadenceStore {
	t.Helper()
	return NewCadenceStore(createTestDB(t).SQL(), zap.NewNop())
}

func TestCadenceStore_UpdateCreatesAndPersists(t *testing.T) {
	cs := createTestCadenceStore(t)
	ctx := context.Background()

	_, found := cs.Get(ctx, "evt-1")
	assert.False(t, found)

	st, ok := cs.Update(ctx, "evt-1", func(st *models.CadenceState) {
		st.FireCount++
		st.LastFireTime = ms(1000)
		st.NextExpectedFireTime = ms(61000)
		st.OneShotQuietOverride = true
	})
	require.True(t, ok)
	assert.Equal(t, "evt-1", st.Subject)

	got, found := cs.Get(ctx, "evt-1")
	require.True(t, found)
	assert.Equal(t, st, got)
}

func TestCadenceStore_ZeroTimesRoundTrip(t *testing.T) {
	cs := createTestCadenceStore(t)
	ctx := context.Background()

	_, ok := cs.Update(ctx, "evt-1", func(st *models.CadenceState) {
		st.OneShotQuietOverride = true
	})
	require.True(t, ok)

	got, found := cs.Get(ctx, "evt-1")
	require.True(t, found)
	assert.True(t, got.LastFireTime.IsZero())
	assert.True(t, got.NextExpectedFireTime.IsZero())
}

func TestCadenceStore_ConcurrentUpdatesDoNotLoseIncrements(t *testing.T) {
	cs := createTestCadenceStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs.Update(ctx, "evt-1", func(st *models.CadenceState) { st.FireCount++ })
		}()
	}
	wg.Wait()

	got, found := cs.Get(ctx, "evt-1")
	require.True(t, found)
	assert.Equal(t, 25, got.FireCount)
}

func TestCadenceStore_DueAtAndNextDue(t *testing.T) {
	cs := createTestCadenceStore(t)
	ctx := context.Background()

	cs.Update(ctx, "late", func(st *models.CadenceState) { st.NextExpectedFireTime = ms(9000) })
	cs.Update(ctx, "early", func(st *models.CadenceState) { st.NextExpectedFireTime = ms(2000) })
	cs.Update(ctx, "done", func(st *models.CadenceState) { st.FireCount = 3 })

	next, ok := cs.NextDue(ctx)
	require.True(t, ok)
	assert.Equal(t, ms(2000), next)

	due := cs.DueAt(ctx, ms(5000))
	require.Len(t, due, 1)
	assert.Equal(t, "early", due[0].Subject)

	assert.Len(t, cs.DueAt(ctx, ms(9000)), 2)
}

func TestCadenceStore_Delete(t *testing.T) {
	cs := createTestCadenceStore(t)
	ctx := context.Background()

	cs.Update(ctx, "evt-1", func(st *models.CadenceState) { st.FireCount = 2 })
	assert.True(t, cs.Delete(ctx, "evt-1"))
	assert.True(t, cs.Delete(ctx, "evt-1"))

	_, found := cs.Get(ctx, "evt-1")
	assert.False(t, found)
}

func TestCadenceStore_UpdateStorageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cs := NewCadenceStore(db, zap.NewNop())
	mock.ExpectQuery("SELECT .* FROM cadence WHERE subject").WillReturnError(errors.New("database is locked"))

	called := false
	_, ok := cs.Update(context.Background(), "evt-1", func(st *models.CadenceState) { called = true })

	assert.False(t, ok)
	assert.False(t, called, "fn must not run on state that could not be loaded")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCadenceStore_Prune(t *testing.T) {
	cs := createTestCadenceStore(t)
	ctx := context.Background()

	// Reminders still pending, alert present.
	cs.Update(ctx, "active", func(st *models.CadenceState) {
		st.LastFireTime = ms(1000)
		st.NextExpectedFireTime = ms(500000)
	})
	// Reminders finished long ago.
	cs.Update(ctx, "finished", func(st *models.CadenceState) { st.LastFireTime = ms(1000) })
	// Reminders finished after the cutoff.
	cs.Update(ctx, "recent", func(st *models.CadenceState) { st.LastFireTime = ms(200000) })
	// Quiet override armed for an alert that never fired.
	cs.Update(ctx, "armed", func(st *models.CadenceState) { st.OneShotQuietOverride = true })
	// Alert no longer stored.
	cs.Update(ctx, "orphan", func(st *models.CadenceState) { st.NextExpectedFireTime = ms(500000) })

	live := map[string]bool{"active": true, "finished": true, "recent": true, "armed": true}
	assert.Equal(t, int64(2), cs.Prune(ctx, live, ms(100000)))

	for _, subject := range []string{"active", "recent", "armed"} {
		_, found := cs.Get(ctx, subject)
		assert.True(t, found, subject)
	}
	for _, subject := range []string{"finished", "orphan"} {
		_, found := cs.Get(ctx, subject)
		assert.False(t, found, subject)
	}

	assert.Equal(t, int64(0), cs.Prune(ctx, live, ms(100000)))
}
