package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

const productID = "-//borgmon//alert-keeper//EN"

// ErrInvalidCalendar is returned when the calendar file is not iCalendar data.
var ErrInvalidCalendar = errors.New("invalid iCalendar data")

// ICSCalendar is a CalendarSource backed by a local .ics file that this
// program owns. A missing file is an empty calendar.
type ICSCalendar struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewICSCalendar creates a calendar stored at path.
func NewICSCalendar(path string, logger *zap.Logger) *ICSCalendar {
	return &ICSCalendar{path: path, logger: logger}
}

// GetEvent returns the event whose UID is id.
func (c *ICSCalendar) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return nil, err
	}

	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		ev := parseEvent(comp)
		if ev.UID != id {
			continue
		}
		return &models.Event{
			ID:          ev.UID,
			CalendarID:  ev.CalendarID,
			Title:       ev.Title,
			Description: ev.Desc,
			StartTime:   ev.Start,
			EndTime:     ev.End,
			AllDay:      ev.AllDay,
			Status:      ev.Status,
		}, nil
	}
	return nil, nil
}

// CreateEvent appends a VEVENT for draft and returns its new UID.
func (c *ICSCalendar) CreateEvent(ctx context.Context, draft models.EventDraft) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return "", err
	}

	uid := uuid.New().String()
	cal.Children = append(cal.Children, newEventComponent(uid, draft, time.Now()))

	if err := c.save(cal); err != nil {
		return "", err
	}

	c.logger.Info("created calendar event",
		zap.String("uid", uid),
		zap.String("title", draft.Title),
		zap.Time("start", draft.StartTime),
	)
	return uid, nil
}

func (c *ICSCalendar) load() (*ical.Calendar, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newCalendar(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return newCalendar(), nil
	}

	if err := validateICalFormat(string(data)); err != nil {
		return nil, err
	}

	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	return cal, nil
}

func (c *ICSCalendar) save(cal *ical.Calendar) error {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create calendar dir: %w", err)
	}
	if err := atomic.WriteFile(c.path, &buf); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

func newEventComponent(uid string, draft models.EventDraft, stamp time.Time) *ical.Component {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetText(ical.PropSummary, draft.Title)
	event.Props.SetText(propCalendarID, strconv.FormatInt(draft.CalendarID, 10))

	if draft.AllDay {
		event.Props.SetDate(ical.PropDateTimeStart, draft.StartTime)
		event.Props.SetDate(ical.PropDateTimeEnd, draft.EndTime)
	} else {
		event.Props.SetDateTime(ical.PropDateTimeStart, draft.StartTime.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, draft.EndTime.UTC())
	}

	if !draft.AlertTime.IsZero() {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, draft.Title)
		alarm.Props.SetDateTime(ical.PropTrigger, draft.AlertTime.UTC())
		event.Children = append(event.Children, alarm)
	}

	return event.Component
}
