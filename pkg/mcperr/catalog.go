package mcperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinodismyname/mcpclick/internal/clickstream"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation        Code = "VALIDATION"
	InvalidHandle     Code = "INVALID_HANDLE"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	// Resource & Limits
	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	LimitExceeded   Code = "LIMIT_EXCEEDED"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	FileTooLarge    Code = "FILE_TOO_LARGE"

	// IO & Formats
	OpenFailed        Code = "OPEN_FAILED"
	ReadFailed        Code = "READ_FAILED"
	ExportFailed      Code = "EXPORT_FAILED"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"

	// Clickstream analysis
	SchemaMissingColumns Code = "SCHEMA_MISSING_COLUMNS"
	DateParseFailed      Code = "DATE_PARSE_FAILED"
	EmptyFunnel          Code = "EMPTY_FUNNEL"
	AnalysisFailed       Code = "ANALYSIS_FAILED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:        {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	InvalidHandle:     {Code: InvalidHandle, Message: "dataset handle not found or expired", Retryable: true, NextSteps: []string{"Reopen the dataset via path and retry"}},
	CursorInvalid:     {Code: CursorInvalid, Message: "cursor is invalid for current context", Retryable: true, NextSteps: []string{"Restart pagination from the first page", "Reopen the dataset if it changed between pages"}},
	CursorBuildFailed: {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, NextSteps: []string{"Retry or narrow scope (smaller pages)"}},

	BusyResource:    {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:         {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Narrow scope (fewer rows) or increase timeout", "Prefer cursor-first pagination"}},
	LimitExceeded:   {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Reduce row count or lower page size"}},
	PayloadTooLarge: {Code: PayloadTooLarge, Message: "payload exceeds configured size", Retryable: true, NextSteps: []string{"Reduce page size or split into batches"}},
	FileTooLarge:    {Code: FileTooLarge, Message: "file exceeds configured size", Retryable: false, NextSteps: []string{"Use a smaller export or increase the limit"}},

	OpenFailed:        {Code: OpenFailed, Message: "failed to open dataset", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	ReadFailed:        {Code: ReadFailed, Message: "failed to read rows", Retryable: true, NextSteps: []string{"Verify the offset and retry", "Reduce limit if needed"}},
	ExportFailed:      {Code: ExportFailed, Message: "failed to write report", Retryable: false, NextSteps: []string{"Verify the output path is writable", "Choose a path inside an allowed directory"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported dataset format", Retryable: false, NextSteps: []string{"Convert to .csv, .tsv, or .xlsx and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},

	SchemaMissingColumns: {Code: SchemaMissingColumns, Message: "dataset is missing required columns", Retryable: false, NextSteps: []string{"Provide user_id, session_id, event_name, event_date, and engagement_time_msec columns"}},
	DateParseFailed:      {Code: DateParseFailed, Message: "event_date could not be parsed", Retryable: false, NextSteps: []string{"Format event_date values as YYYYMMDD and reopen the dataset"}},
	EmptyFunnel:          {Code: EmptyFunnel, Message: "no sessions reached the first funnel step", Retryable: true, NextSteps: []string{"Check the step names against top_sequences output", "Adjust the steps list and retry"}},
	AnalysisFailed:       {Code: AnalysisFailed, Message: "analysis failed", Retryable: true, NextSteps: []string{"Verify the dataset handle and inputs", "Reduce top_n if needed"}},
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	// Append compact nextSteps guidance inline to aid clients lacking structured fields.
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	parts := strings.SplitN(t, ":", 2)
	if len(parts) == 0 {
		return mcp.NewToolResultError(normalize(Validation, t))
	}
	code := Code(strings.TrimSpace(parts[0]))
	msg := ""
	if len(parts) > 1 {
		msg = strings.TrimSpace(parts[1])
	}
	return mcp.NewToolResultError(normalize(code, msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// FromAnalysisError maps the core clickstream error types to their canonical
// codes, falling back to AnalysisFailed for anything unclassified.
func FromAnalysisError(err error) *mcp.CallToolResult {
	var schemaErr *clickstream.SchemaError
	if errors.As(err, &schemaErr) {
		return New(SchemaMissingColumns, schemaErr.Error())
	}
	var dateErr *clickstream.DateParseError
	if errors.As(err, &dateErr) {
		return New(DateParseFailed, dateErr.Error())
	}
	var funnelErr *clickstream.EmptyFunnelError
	if errors.As(err, &funnelErr) {
		return New(EmptyFunnel, funnelErr.Error())
	}
	return New(AnalysisFailed, err.Error())
}
