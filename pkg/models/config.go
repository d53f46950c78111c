package models

import (
	"fmt"
	"time"
)

// Config holds the already-validated settings the scheduling core runs on
type Config struct {
	QuietHours      QuietWindow   `json:"quiet_hours" yaml:"quiet_hours"`
	PresenceDevices []string      `json:"presence_devices" yaml:"presence_devices"` // Bluetooth addresses that extend silence while connected
	SleepQuantum    time.Duration `json:"sleep_quantum" yaml:"sleep_quantum"`       // silence added per presence probe
	Retention       time.Duration `json:"retention" yaml:"retention"`               // how long past alerts are kept
	Reminder        ReminderRule  `json:"reminder" yaml:"reminder"`
	NotifyAllDay    bool          `json:"notify_all_day" yaml:"notify_all_day"` // all-day events alert too
}

// ReminderRule controls how often a fired alert is repeated
type ReminderRule struct {
	Interval    time.Duration `json:"interval" yaml:"interval"`         // first re-fire delay, 0 disables reminders
	Backoff     float64       `json:"backoff" yaml:"backoff"`           // interval multiplier per fire, 1 = constant
	MaxInterval time.Duration `json:"max_interval" yaml:"max_interval"` // cap for backed-off interval, 0 = no cap
	MaxCount    int           `json:"max_count" yaml:"max_count"`       // stop after this many counted fires, 0 = unlimited
}

// QuietWindow represents a daily time range during which alerts are held back
type QuietWindow struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	FromHour   int  `json:"from_hour" yaml:"from_hour"`     // 0-23
	FromMinute int  `json:"from_minute" yaml:"from_minute"` // 0-59
	ToHour     int  `json:"to_hour" yaml:"to_hour"`         // 0-23
	ToMinute   int  `json:"to_minute" yaml:"to_minute"`     // 0-59
}

// DefaultConfig returns the settings used when nothing has been configured
func DefaultConfig() *Config {
	return &Config{
		QuietHours: QuietWindow{
			Enabled:  false,
			FromHour: 22,
			ToHour:   7,
		},
		PresenceDevices: []string{},
		SleepQuantum:    15 * time.Minute,
		Retention:       3 * 24 * time.Hour,
		Reminder: ReminderRule{
			Interval:    10 * time.Minute,
			Backoff:     1,
			MaxInterval: time.Hour,
			MaxCount:    0,
		},
	}
}

// Validate checks that the window bounds are valid clock times
func (w QuietWindow) Validate() error {
	if w.FromHour < 0 || w.FromHour > 23 || w.ToHour < 0 || w.ToHour > 23 {
		return fmt.Errorf("quiet hours: hour out of range (from %d, to %d)", w.FromHour, w.ToHour)
	}
	if w.FromMinute < 0 || w.FromMinute > 59 || w.ToMinute < 0 || w.ToMinute > 59 {
		return fmt.Errorf("quiet hours: minute out of range (from %d, to %d)", w.FromMinute, w.ToMinute)
	}
	return nil
}

// Validate checks the settings for values the core cannot work with
func (c *Config) Validate() error {
	if err := c.QuietHours.Validate(); err != nil {
		return err
	}
	if c.SleepQuantum < 0 {
		return fmt.Errorf("sleep quantum must not be negative: %s", c.SleepQuantum)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative: %s", c.Retention)
	}
	if c.Reminder.Interval < 0 || c.Reminder.MaxInterval < 0 {
		return fmt.Errorf("reminder intervals must not be negative")
	}
	if c.Reminder.Backoff != 0 && c.Reminder.Backoff < 1 {
		return fmt.Errorf("reminder backoff must be >= 1, got %g", c.Reminder.Backoff)
	}
	if c.Reminder.MaxCount < 0 {
		return fmt.Errorf("reminder max count must not be negative")
	}
	return nil
}
