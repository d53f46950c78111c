package models

import (
	"fmt"
	"time"
)

// EventRef identifies the calendar event an alert belongs to. An alert can
// exist before its event has been created in the calendar, in which case the
// reference is unassigned.
type EventRef struct {
	id       string
	assigned bool
}

// UnassignedEvent returns a reference with no calendar event behind it yet.
func UnassignedEvent() EventRef {
	return EventRef{}
}

// AssignedEvent returns a reference to the calendar event with the given id.
func AssignedEvent(id string) EventRef {
	return EventRef{id: id, assigned: true}
}

// ID returns the calendar event id and whether one has been assigned.
func (r EventRef) ID() (string, bool) {
	return r.id, r.assigned
}

// IsAssigned reports whether the reference points at a calendar event.
func (r EventRef) IsAssigned() bool {
	return r.assigned
}

func (r EventRef) String() string {
	if !r.assigned {
		return "unassigned"
	}
	return r.id
}

// AlertKey is the identity of an alert entry. It never changes once a row
// exists; moving an alert to a different event means delete and re-create.
type AlertKey struct {
	EventID       EventRef
	AlertTime     time.Time
	InstanceStart time.Time
}

// String renders the key as a stable subject name, used to track reminder
// cadence per alert.
func (k AlertKey) String() string {
	return fmt.Sprintf("%s@%d/%d", k.EventID, k.AlertTime.UnixMilli(), k.InstanceStart.UnixMilli())
}

// AlertEntry is one scheduled reminder for a specific event occurrence.
//
// Times are stored at millisecond resolution and read back in time.Local, so
// keys that differ only below a millisecond name the same alert. Normalize
// returns the entry as it will read back from storage.
type AlertEntry struct {
	CalendarID    int64     // Calendar the event lives in
	EventID       EventRef  // Calendar event, possibly not created yet
	Title         string    // Event title at the time the alert was stored
	AlertTime     time.Time // When the alert should fire
	InstanceStart time.Time // Start of the event occurrence
	InstanceEnd   time.Time // End of the event occurrence
	IsAllDay      bool
	CreatedByUs   bool // The calendar event was created by this program
	WasHandled    bool // The alert already fired
}

// Key returns the identity key of the entry.
func (e AlertEntry) Key() AlertKey {
	return AlertKey{
		EventID:       e.EventID,
		AlertTime:     e.AlertTime,
		InstanceStart: e.InstanceStart,
	}
}

// Normalize returns e with its times truncated to milliseconds and in
// time.Local.
func (e AlertEntry) Normalize() AlertEntry {
	e.AlertTime = StoredTime(e.AlertTime)
	e.InstanceStart = StoredTime(e.InstanceStart)
	e.InstanceEnd = StoredTime(e.InstanceEnd)
	return e
}

// StoredTime returns t as persisted: milliseconds since the epoch, in
// time.Local. The zero time stays zero.
func StoredTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMilli(t.UnixMilli())
}

// Draft builds the event description used to (re)create the entry's event.
func (e AlertEntry) Draft() EventDraft {
	return EventDraft{
		CalendarID: e.CalendarID,
		Title:      e.Title,
		StartTime:  e.InstanceStart,
		EndTime:    e.InstanceEnd,
		AllDay:     e.IsAllDay,
		AlertTime:  e.AlertTime,
	}
}

// RoundToMinute rounds a time down to the nearest minute
func RoundToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
