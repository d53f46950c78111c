package store

import (
	"encoding/json"
	"time"

	"fyne.io/fyne/v2"
	"github.com/borgmon/alert-keeper/pkg/models"
)

// ConfigStore handles configuration persistence using Fyne preferences
type ConfigStore struct {
	prefs fyne.Preferences
}

// NewConfigStore creates a new ConfigStore instance
func NewConfigStore(prefs fyne.Preferences) *ConfigStore {
	return &ConfigStore{prefs: prefs}
}

// Load loads configuration from preferences
func (cs *ConfigStore) Load() *models.Config {
	defaults := models.DefaultConfig()
	prefs := cs.prefs

	config := &models.Config{
		SleepQuantum: minutesWithFallback(prefs, "sleep_quantum_min", defaults.SleepQuantum),
		Retention:    minutesWithFallback(prefs, "retention_min", defaults.Retention),
		Reminder: models.ReminderRule{
			Interval:    minutesWithFallback(prefs, "reminder_interval_min", defaults.Reminder.Interval),
			Backoff:     prefs.FloatWithFallback("reminder_backoff", defaults.Reminder.Backoff),
			MaxInterval: minutesWithFallback(prefs, "reminder_max_interval_min", defaults.Reminder.MaxInterval),
			MaxCount:    prefs.IntWithFallback("reminder_max_count", defaults.Reminder.MaxCount),
		},
		NotifyAllDay: prefs.BoolWithFallback("notify_all_day", defaults.NotifyAllDay),
	}

	// Load quiet hours from JSON string
	config.QuietHours = defaults.QuietHours
	if quietJSON := prefs.String("quiet_hours"); quietJSON != "" {
		var w models.QuietWindow
		if err := json.Unmarshal([]byte(quietJSON), &w); err == nil && w.Validate() == nil {
			config.QuietHours = w
		}
	}

	// Load presence devices from JSON string
	config.PresenceDevices = []string{}
	if devicesJSON := prefs.String("presence_devices"); devicesJSON != "" {
		if err := json.Unmarshal([]byte(devicesJSON), &config.PresenceDevices); err != nil {
			config.PresenceDevices = []string{}
		}
	}

	return config
}

// Save saves configuration to preferences
func (cs *ConfigStore) Save(config *models.Config) {
	prefs := cs.prefs

	prefs.SetInt("sleep_quantum_min", int(config.SleepQuantum/time.Minute))
	prefs.SetInt("retention_min", int(config.Retention/time.Minute))
	prefs.SetInt("reminder_interval_min", int(config.Reminder.Interval/time.Minute))
	prefs.SetFloat("reminder_backoff", config.Reminder.Backoff)
	prefs.SetInt("reminder_max_interval_min", int(config.Reminder.MaxInterval/time.Minute))
	prefs.SetInt("reminder_max_count", config.Reminder.MaxCount)
	prefs.SetBool("notify_all_day", config.NotifyAllDay)

	// Save quiet hours as JSON string
	if quietJSON, err := json.Marshal(config.QuietHours); err == nil {
		prefs.SetString("quiet_hours", string(quietJSON))
	}

	// Save presence devices as JSON string
	if devicesJSON, err := json.Marshal(config.PresenceDevices); err == nil {
		prefs.SetString("presence_devices", string(devicesJSON))
	}
}

func minutesWithFallback(prefs fyne.Preferences, key string, fallback time.Duration) time.Duration {
	return time.Duration(prefs.IntWithFallback(key, int(fallback/time.Minute))) * time.Minute
}
