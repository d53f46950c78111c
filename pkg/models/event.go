package models

import "time"

// Event represents a calendar event as seen by the calendar source
type Event struct {
	ID          string    // iCal event UID
	CalendarID  int64     // Calendar the event belongs to
	Title       string    // Event title/summary
	Description string    // Event description
	StartTime   time.Time // Event start time
	EndTime     time.Time // Event end time
	AllDay      bool
	Status      string // Event status (CONFIRMED, CANCELLED, NEEDS-ACTION)
}

// EventDraft describes an event to be created in the calendar.
type EventDraft struct {
	CalendarID int64
	Title      string
	StartTime  time.Time
	EndTime    time.Time
	AllDay     bool
	AlertTime  time.Time // Optional; becomes a VALARM trigger when set
}
