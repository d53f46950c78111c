package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"go.uber.org/zap"
)

// createTestDB opens a fresh database file under t.TempDir().
func createTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func createTestAlertStore(t *testing.T) *AlertStore {
	t.Helper()
	return NewAlertStore(createTestDB(t).SQL(), zap.NewNop())
}

// ms builds a timestamp from Unix milliseconds, the resolution entries are
// stored at.
func ms(v int64) time.Time {
	return time.UnixMilli(v)
}

// createTestEntry creates an alert entry with minimal required fields.
func createTestEntry(eventID string, alertTime, instanceStart int64) models.AlertEntry {
	return models.AlertEntry{
		CalendarID:    1,
		EventID:       models.AssignedEvent(eventID),
		Title:         "Standup",
		AlertTime:     ms(alertTime),
		InstanceStart: ms(instanceStart),
		InstanceEnd:   ms(instanceStart + 30*60*1000),
	}
}
