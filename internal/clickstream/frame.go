package clickstream

import "strings"

// Required column names for event-level clickstream input.
const (
	ColUserID     = "user_id"
	ColSessionID  = "session_id"
	ColEventName  = "event_name"
	ColEventDate  = "event_date"
	ColEngagement = "engagement_time_msec"
)

// RequiredColumns returns the five mandatory columns in canonical order.
func RequiredColumns() []string {
	return []string{ColUserID, ColSessionID, ColEventName, ColEventDate, ColEngagement}
}

// Frame is a raw tabular dataset as handed over by a loader: ordered column
// names plus row cells as strings. The pipeline never mutates a frame; every
// derived table is a fresh copy.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// ValidateSchema confirms the frame carries every required column. A frame
// with zero rows but a complete header passes. Extra columns are ignored.
func ValidateSchema(f Frame) error {
	present := make(map[string]struct{}, len(f.Columns))
	for _, c := range f.Columns {
		present[strings.TrimSpace(c)] = struct{}{}
	}
	var missing []string
	for _, c := range RequiredColumns() {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// columnIndex returns the position of a column by trimmed name, or -1.
func (f Frame) columnIndex(name string) int {
	for i, c := range f.Columns {
		if strings.TrimSpace(c) == name {
			return i
		}
	}
	return -1
}

// cell returns the value at index i, tolerating ragged rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
