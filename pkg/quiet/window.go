// Package quiet evaluates daily quiet-hours windows.
//
// A window is given as from/to clock times. When to is earlier than from the
// window wraps past midnight (22:00 to 07:00). Both bounds are inclusive. A
// window whose from and to are equal is treated as disabled, never as
// "silent all day".
package quiet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
)

const minutesPerDay = 24 * 60

// IsSilent reports whether now falls inside the quiet window.
func IsSilent(w models.QuietWindow, now time.Time) bool {
	_, silent := remainingMinutes(w, now)
	return silent
}

// SilentUntil returns when the quiet window active at now ends, or the zero
// time if now is not inside the window.
func SilentUntil(w models.QuietWindow, now time.Time) time.Time {
	remaining, silent := remainingMinutes(w, now)
	if !silent {
		return time.Time{}
	}

	until := now.Add(time.Duration(remaining) * time.Minute)
	if !until.After(now) {
		// Inside the last (inclusive) minute of the window.
		until = models.RoundToMinute(now).Add(time.Minute)
	}
	return until
}

func remainingMinutes(w models.QuietWindow, now time.Time) (int, bool) {
	if !w.Enabled {
		return 0, false
	}

	from := w.FromHour*60 + w.FromMinute
	to := w.ToHour*60 + w.ToMinute
	if from == to {
		return 0, false
	}

	// Handle overnight ranges (e.g., 22:00 to 08:00)
	if to < from {
		to += minutesPerDay
	}

	cur := now.Hour()*60 + now.Minute()
	inside := (cur >= from && cur <= to) ||
		(cur+minutesPerDay >= from && cur+minutesPerDay <= to)
	if !inside {
		return 0, false
	}

	return (to + minutesPerDay - cur) % minutesPerDay, true
}

// Parse reads a clock time written as "HH:MM".
func Parse(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
