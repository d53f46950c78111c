// Package calendar is the boundary to the calendar that owns the events
// alerts are attached to.
package calendar

import (
	"context"

	"github.com/borgmon/alert-keeper/pkg/models"
)

// CalendarSource looks up and creates calendar events.
type CalendarSource interface {
	// GetEvent returns the event with the given id, or nil if the calendar
	// has no such event. An error means the calendar could not be read.
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	// CreateEvent creates an event and returns its id.
	CreateEvent(ctx context.Context, draft models.EventDraft) (string, error)
}
