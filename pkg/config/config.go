// Package config loads and saves the daemon's YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/borgmon/alert-keeper/pkg/quiet"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ErrEmptyPath is returned when no configuration path was given.
var ErrEmptyPath = errors.New("config path is empty")

// Where alert settings are read from.
const (
	SettingsFile        = "file"
	SettingsPreferences = "preferences"
)

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// QuietHours is the quiet window as written by people: "22:00" to "07:00".
type QuietHours struct {
	Enabled bool   `yaml:"enabled"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
}

// Sound configures the chime played with each notification.
type Sound struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"` // 0 to 1
}

// Alerts holds the settings the scheduling core runs on.
type Alerts struct {
	QuietHours      QuietHours          `yaml:"quiet_hours"`
	PresenceDevices []string            `yaml:"presence_devices"`
	SleepQuantum    time.Duration       `yaml:"sleep_quantum"`
	Retention       time.Duration       `yaml:"retention"`
	Reminder        models.ReminderRule `yaml:"reminder"`
	NotifyAllDay    bool                `yaml:"notify_all_day"`
}

// File is the top-level configuration file.
type File struct {
	// Database is the SQLite file holding alerts and reminder state.
	// Relative paths are resolved against the config file's directory.
	Database string `yaml:"database"`

	// Calendar is the .ics file events are looked up in and created in.
	Calendar string `yaml:"calendar"`

	Log LogConfig `yaml:"log"`

	// ReconcileCron and GCCron are robfig/cron specs for the periodic jobs.
	ReconcileCron string `yaml:"reconcile_cron"`
	GCCron        string `yaml:"gc_cron"`

	// BlueZAdapter is the adapter presence devices are looked up on.
	BlueZAdapter string `yaml:"bluez_adapter"`

	Sound Sound `yaml:"sound"`

	// Settings is SettingsFile to use the alerts section below, or
	// SettingsPreferences to read alert settings from the Fyne preference
	// store of the desktop app with PreferencesID.
	Settings      string `yaml:"settings"`
	PreferencesID string `yaml:"preferences_id"`

	Alerts Alerts `yaml:"alerts"`
}

// DefaultFile returns the configuration written on first run.
func DefaultFile() *File {
	defaults := models.DefaultConfig()
	f := &File{
		Database:      "alert-keeper.db",
		Calendar:      "alerts.ics",
		Log:           LogConfig{Level: "info", Format: "console"},
		ReconcileCron: "*/15 * * * *",
		GCCron:        "@daily",
		BlueZAdapter:  "hci0",
		Sound:         Sound{Enabled: false, Volume: 0.6},
		Settings:      SettingsFile,
		PreferencesID: "com.borgmon.alert-keeper",
	}
	f.Alerts.SetFrom(defaults)
	return f
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "alert-keeper.yaml"
	}
	return filepath.Join(dir, "alert-keeper", "config.yaml")
}

// Normalize fills in zero values so older or partial files still work.
func (f *File) Normalize() {
	def := DefaultFile()
	if f.Database == "" {
		f.Database = def.Database
	}
	if f.Calendar == "" {
		f.Calendar = def.Calendar
	}
	if f.Log.Level == "" {
		f.Log.Level = def.Log.Level
	}
	switch f.Log.Format {
	case "json", "console":
	default:
		f.Log.Format = def.Log.Format
	}
	if f.ReconcileCron == "" {
		f.ReconcileCron = def.ReconcileCron
	}
	if f.GCCron == "" {
		f.GCCron = def.GCCron
	}
	if f.BlueZAdapter == "" {
		f.BlueZAdapter = def.BlueZAdapter
	}
	if f.Sound.Volume <= 0 || f.Sound.Volume > 1 {
		f.Sound.Volume = def.Sound.Volume
	}
	switch f.Settings {
	case SettingsFile, SettingsPreferences:
	default:
		f.Settings = def.Settings
	}
	if f.PreferencesID == "" {
		f.PreferencesID = def.PreferencesID
	}
	if f.Alerts.QuietHours.From == "" {
		f.Alerts.QuietHours.From = def.Alerts.QuietHours.From
	}
	if f.Alerts.QuietHours.To == "" {
		f.Alerts.QuietHours.To = def.Alerts.QuietHours.To
	}
	if f.Alerts.PresenceDevices == nil {
		f.Alerts.PresenceDevices = []string{}
	}
	if f.Alerts.SleepQuantum == 0 {
		f.Alerts.SleepQuantum = def.Alerts.SleepQuantum
	}
	if f.Alerts.Retention == 0 {
		f.Alerts.Retention = def.Alerts.Retention
	}
	if f.Alerts.Reminder.Backoff == 0 {
		f.Alerts.Reminder.Backoff = 1
	}
}

// Resolve makes relative file paths relative to dir.
func (f *File) Resolve(dir string) {
	if f.Database != "" && !filepath.IsAbs(f.Database) {
		f.Database = filepath.Join(dir, f.Database)
	}
	if f.Calendar != "" && !filepath.IsAbs(f.Calendar) {
		f.Calendar = filepath.Join(dir, f.Calendar)
	}
}

// Settings converts the alert section into the validated core settings.
func (a Alerts) Settings() (*models.Config, error) {
	fromH, fromM, err := quiet.Parse(a.QuietHours.From)
	if err != nil {
		return nil, fmt.Errorf("quiet_hours.from: %w", err)
	}
	toH, toM, err := quiet.Parse(a.QuietHours.To)
	if err != nil {
		return nil, fmt.Errorf("quiet_hours.to: %w", err)
	}

	cfg := &models.Config{
		QuietHours: models.QuietWindow{
			Enabled:    a.QuietHours.Enabled,
			FromHour:   fromH,
			FromMinute: fromM,
			ToHour:     toH,
			ToMinute:   toM,
		},
		PresenceDevices: append([]string{}, a.PresenceDevices...),
		SleepQuantum:    a.SleepQuantum,
		Retention:       a.Retention,
		Reminder:        a.Reminder,
		NotifyAllDay:    a.NotifyAllDay,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetFrom overwrites the alert section with cfg.
func (a *Alerts) SetFrom(cfg *models.Config) {
	w := cfg.QuietHours
	a.QuietHours = QuietHours{
		Enabled: w.Enabled,
		From:    fmt.Sprintf("%02d:%02d", w.FromHour, w.FromMinute),
		To:      fmt.Sprintf("%02d:%02d", w.ToHour, w.ToMinute),
	}
	a.PresenceDevices = append([]string{}, cfg.PresenceDevices...)
	a.SleepQuantum = cfg.SleepQuantum
	a.Retention = cfg.Retention
	a.Reminder = cfg.Reminder
	a.NotifyAllDay = cfg.NotifyAllDay
}

// Load reads the configuration at path. On first run the defaults are written
// to path and returned. Relative file paths are not resolved.
func Load(path string) (*File, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	f, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		f = DefaultFile()
		if err := Save(path, f); err != nil {
			return f, err
		}
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	f.Normalize()
	return &f, nil
}

// Save writes f to path atomically with 0600 permissions.
func Save(path string, f *File) error {
	if path == "" {
		return ErrEmptyPath
	}
	if f == nil {
		return errors.New("config is nil")
	}

	f.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// atomic.WriteFile keeps the temp file's mode for new files.
	return os.Chmod(path, 0o600)
}
