package clickstream

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Event is one clickstream row after type normalization.
type Event struct {
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	EventName      string    `json:"event_name"`
	EventDate      time.Time `json:"event_date"`
	EngagementMsec float64   `json:"engagement_time_msec"`
}

// Dataset is the normalized working copy of an input frame. Events are
// totally ordered by (user_id, session_id, engagement_time_msec) ascending;
// within a session that ordering stands in for chronological order, since the
// source carries no per-event timestamps.
type Dataset struct {
	Events []Event
}

// eventDateLayout matches the 8-digit YYYYMMDD source encoding.
const eventDateLayout = "20060102"

// Normalize validates the schema, parses field types, and returns a new
// ordered dataset. The input frame is left untouched. The first malformed
// event_date fails the run with a *DateParseError; blank or non-numeric
// engagement values are treated as zero engagement.
func Normalize(f Frame) (*Dataset, error) {
	if err := ValidateSchema(f); err != nil {
		return nil, err
	}

	userIdx := f.columnIndex(ColUserID)
	sessIdx := f.columnIndex(ColSessionID)
	nameIdx := f.columnIndex(ColEventName)
	dateIdx := f.columnIndex(ColEventDate)
	engIdx := f.columnIndex(ColEngagement)

	events := make([]Event, 0, len(f.Rows))
	for i, row := range f.Rows {
		raw := strings.TrimSpace(cell(row, dateIdx))
		date, err := parseEventDate(raw)
		if err != nil {
			return nil, &DateParseError{Row: i + 1, Value: raw}
		}
		events = append(events, Event{
			UserID:         strings.TrimSpace(cell(row, userIdx)),
			SessionID:      strings.TrimSpace(cell(row, sessIdx)),
			EventName:      strings.TrimSpace(cell(row, nameIdx)),
			EventDate:      date,
			EngagementMsec: parseEngagement(cell(row, engIdx)),
		})
	}

	// Stable sort keeps source order for equal keys.
	sort.SliceStable(events, func(a, b int) bool {
		x, y := events[a], events[b]
		if x.UserID != y.UserID {
			return x.UserID < y.UserID
		}
		if x.SessionID != y.SessionID {
			return x.SessionID < y.SessionID
		}
		return x.EngagementMsec < y.EngagementMsec
	})

	return &Dataset{Events: events}, nil
}

var errBadDateLength = errors.New("event_date must be 8 digits")

func parseEventDate(s string) (time.Time, error) {
	if len(s) != 8 {
		return time.Time{}, errBadDateLength
	}
	return time.Parse(eventDateLayout, s)
}

func parseEngagement(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Overview summarizes the dataset: row count plus distinct users and sessions.
type Overview struct {
	TotalRows      int `json:"total_rows"`
	UniqueUsers    int `json:"unique_users"`
	UniqueSessions int `json:"unique_sessions"`
}

// Overview computes dataset headline counts.
func (d *Dataset) Overview() Overview {
	users := make(map[string]struct{})
	sessions := make(map[string]struct{})
	for _, ev := range d.Events {
		users[ev.UserID] = struct{}{}
		sessions[ev.SessionID] = struct{}{}
	}
	return Overview{
		TotalRows:      len(d.Events),
		UniqueUsers:    len(users),
		UniqueSessions: len(sessions),
	}
}
