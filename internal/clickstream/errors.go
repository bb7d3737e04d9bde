package clickstream

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns missing from an input dataset. The
// pipeline refuses to derive anything from a frame that fails schema checks.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "clickstream: missing required columns: " + strings.Join(e.Missing, ", ")
}

// DateParseError reports a malformed event_date value. Dates must be 8-digit
// YYYYMMDD encodings; the first bad value fails the whole run.
type DateParseError struct {
	Row   int
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("clickstream: row %d: malformed event_date %q (want YYYYMMDD)", e.Row, e.Value)
}

// EmptyFunnelError reports a funnel whose first step was reached by zero
// sessions, leaving every conversion percentage undefined.
type EmptyFunnelError struct {
	Step string
}

func (e *EmptyFunnelError) Error() string {
	return fmt.Sprintf("clickstream: no session reached first funnel step %q; conversion is undefined", e.Step)
}
