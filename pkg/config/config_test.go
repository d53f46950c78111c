package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultFile(), f)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.True(t, errors.Is(err, ErrEmptyPath))
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database: /var/lib/alert-keeper/alerts.db
log:
  format: xml
settings: registry
alerts:
  quiet_hours:
    enabled: true
    from: "23:30"
  sleep_quantum: 5m
  reminder:
    interval: 2m
    max_count: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/alert-keeper/alerts.db", f.Database)
	assert.Equal(t, "alerts.ics", f.Calendar)
	assert.Equal(t, "console", f.Log.Format)
	assert.Equal(t, "info", f.Log.Level)
	assert.Equal(t, SettingsFile, f.Settings)
	assert.Equal(t, "com.borgmon.alert-keeper", f.PreferencesID)

	cfg, err := f.Alerts.Settings()
	require.NoError(t, err)
	assert.Equal(t, models.QuietWindow{Enabled: true, FromHour: 23, FromMinute: 30, ToHour: 7}, cfg.QuietHours)
	assert.Equal(t, 5*time.Minute, cfg.SleepQuantum)
	assert.Equal(t, 72*time.Hour, cfg.Retention)
	assert.Equal(t, models.ReminderRule{Interval: 2 * time.Minute, Backoff: 1, MaxCount: 3}, cfg.Reminder)
	assert.Equal(t, []string{}, cfg.PresenceDevices)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alerts: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	f := DefaultFile()
	f.Log.Level = "debug"
	f.Alerts.PresenceDevices = []string{"AA:BB:CC:DD:EE:FF"}
	f.Alerts.Reminder.Backoff = 1.5
	require.NoError(t, Save(path, f))

	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(f, got); diff != "" {
		t.Fatalf("config mismatch after round trip (-saved +loaded):\n%s", diff)
	}
}

func TestSettings_DefaultsMatchModels(t *testing.T) {
	cfg, err := DefaultFile().Alerts.Settings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultConfig(), cfg)
}

func TestSettings_RejectsBadQuietHours(t *testing.T) {
	a := DefaultFile().Alerts
	a.QuietHours.To = "25:00"
	_, err := a.Settings()
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	f := &File{Database: "a.db", Calendar: "/abs/cal.ics"}
	f.Resolve("/etc/alert-keeper")
	assert.Equal(t, filepath.Join("/etc/alert-keeper", "a.db"), f.Database)
	assert.Equal(t, "/abs/cal.ics", f.Calendar)
}

func TestSource_ReloadsAndKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	f := DefaultFile()
	require.NoError(t, Save(path, f))

	src := NewSource(path, models.DefaultConfig(), zap.NewNop())
	assert.False(t, src.Load().NotifyAllDay)

	f.Alerts.NotifyAllDay = true
	require.NoError(t, Save(path, f))
	assert.True(t, src.Load().NotifyAllDay)

	require.NoError(t, os.WriteFile(path, []byte("alerts:\n  quiet_hours:\n    from: nope\n"), 0o600))
	assert.True(t, src.Load().NotifyAllDay)
}
