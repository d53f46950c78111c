package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// propCalendarID carries models.Event.CalendarID through the ICS file.
const propCalendarID = "X-ALERT-KEEPER-CALENDAR-ID"

// Map of common Windows timezone names to IANA timezone names
var windowsToIANA = map[string]string{
	"Pacific Standard Time":        "America/Los_Angeles",
	"Mountain Standard Time":       "America/Denver",
	"Central Standard Time":        "America/Chicago",
	"Eastern Standard Time":        "America/New_York",
	"GMT Standard Time":            "Europe/London",
	"W. Europe Standard Time":      "Europe/Berlin",
	"Central Europe Standard Time": "Europe/Budapest",
	"China Standard Time":          "Asia/Shanghai",
	"Tokyo Standard Time":          "Asia/Tokyo",
	"Korea Standard Time":          "Asia/Seoul",
	"India Standard Time":          "Asia/Kolkata",
	"AUS Eastern Standard Time":    "Australia/Sydney",
}

var cancelledTitle = regexp.MustCompile(`[^a-z0-9]+`)

// parsedEvent is a VEVENT reduced to what the alert core needs.
type parsedEvent struct {
	UID        string
	CalendarID int64
	Title      string
	Desc       string
	Start      time.Time
	End        time.Time
	AllDay     bool
	Status     string
}

func parseEvent(comp *ical.Component) parsedEvent {
	normalizeTimezones(comp)

	ev := parsedEvent{}

	if uidProp := comp.Props.Get(ical.PropUID); uidProp != nil {
		ev.UID = uidProp.Value
	}

	if summaryProp := comp.Props.Get(ical.PropSummary); summaryProp != nil {
		ev.Title = propText(summaryProp)
	}

	if descProp := comp.Props.Get(ical.PropDescription); descProp != nil {
		ev.Desc = propText(descProp)
	}

	if calProp := comp.Props.Get(propCalendarID); calProp != nil {
		if id, err := strconv.ParseInt(calProp.Value, 10, 64); err == nil {
			ev.CalendarID = id
		}
	}

	if startProp := comp.Props.Get(ical.PropDateTimeStart); startProp != nil {
		ev.AllDay = startProp.ValueType() == ical.ValueDate
		if t, err := parseDateTimeProperty(startProp); err == nil {
			ev.Start = t
		}
	}

	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		if t, err := parseDateTimeProperty(endProp); err == nil {
			ev.End = t
		}
	}

	if statusProp := comp.Props.Get(ical.PropStatus); statusProp != nil {
		ev.Status = statusProp.Value
	}

	// Some providers only rename cancelled events instead of setting STATUS
	if ev.Status != "CANCELLED" && isCancelledTitle(ev.Title) {
		ev.Status = "CANCELLED"
	}

	if !ev.AllDay && isAllDaySpan(ev.Start, ev.End) {
		ev.AllDay = true
	}

	return ev
}

// propText unescapes a TEXT value. Unescaped commas from lax producers are
// kept as part of the text; malformed escapes fall back to the raw value.
func propText(prop *ical.Prop) string {
	parts, err := prop.TextList()
	if err != nil {
		return prop.Value
	}
	return strings.Join(parts, ",")
}

func parseDateTimeProperty(prop *ical.Prop) (time.Time, error) {
	if t, err := prop.DateTime(time.Local); err == nil {
		return t.In(time.Local), nil
	}

	// Fall back to the raw value for producers that emit non-conforming
	// timestamps, interpreted in the TZID zone when we know it.
	loc := propLocation(prop)
	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"20060102",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, prop.Value, loc); err == nil {
			return t.In(time.Local), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse datetime value: %s", prop.Value)
}

// normalizeTimezones rewrites Windows TZIDs on the start and end properties to
// their IANA names so the decoder can resolve them.
func normalizeTimezones(comp *ical.Component) {
	for _, name := range []string{ical.PropDateTimeStart, ical.PropDateTimeEnd} {
		prop := comp.Props.Get(name)
		if prop == nil {
			continue
		}
		if tzid := prop.Params.Get(ical.ParamTimezoneID); tzid != "" {
			if ianaName, ok := windowsToIANA[tzid]; ok {
				prop.Params.Set(ical.ParamTimezoneID, ianaName)
			}
		}
	}
}

func propLocation(prop *ical.Prop) *time.Location {
	if strings.HasSuffix(prop.Value, "Z") {
		return time.UTC
	}
	if tzid := prop.Params.Get(ical.ParamTimezoneID); tzid != "" {
		if loc, err := time.LoadLocation(tzid); err == nil {
			return loc
		}
	}
	return time.Local
}

func isCancelledTitle(title string) bool {
	clean := cancelledTitle.ReplaceAllString(strings.ToLower(title), "")
	return strings.HasPrefix(clean, "canceled") || strings.HasPrefix(clean, "cancelled")
}

// isAllDaySpan treats events that cross a date boundary and last at least a
// day as all-day, for producers that write all-day events as DATE-TIME.
func isAllDaySpan(start, end time.Time) bool {
	if start.IsZero() || end.IsZero() {
		return false
	}
	return start.Format("2006-01-02") != end.Format("2006-01-02") && end.Sub(start) >= 24*time.Hour
}

// validateICalFormat rejects content that is clearly not an iCalendar stream.
func validateICalFormat(body string) error {
	trimmed := strings.TrimSpace(body)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return fmt.Errorf("%w: got HTML instead of iCalendar data", ErrInvalidCalendar)
	}
	if !strings.HasPrefix(trimmed, "BEGIN:VCALENDAR") {
		preview := trimmed
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return fmt.Errorf("%w: expected BEGIN:VCALENDAR, got: %s", ErrInvalidCalendar, preview)
	}
	return nil
}
