package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/mcpclick/internal/clickstream"
	"github.com/vinodismyname/mcpclick/internal/datasets"
	"github.com/vinodismyname/mcpclick/internal/runtime"
	"github.com/vinodismyname/mcpclick/internal/security"
	"github.com/vinodismyname/mcpclick/pkg/mcperr"
	"github.com/vinodismyname/mcpclick/pkg/pagination"
	"github.com/vinodismyname/mcpclick/pkg/validation"
)

// --- Input / Output Schemas (typed for discovery) ---

// OpenDatasetInput defines parameters for opening a clickstream dataset.
type OpenDatasetInput struct {
	Path string `json:"path" validate:"required,datafile_ext" jsonschema_description:"Absolute or allowed path to a clickstream export (.csv, .tsv, .xlsx)"`
}

// OpenDatasetOutput documents the response fields for open_dataset.
type OpenDatasetOutput struct {
	DatasetID       string `json:"dataset_id" jsonschema_description:"Server-assigned dataset handle ID"`
	TotalRows       int    `json:"totalRows" jsonschema_description:"Number of event rows after normalization"`
	UniqueUsers     int    `json:"uniqueUsers" jsonschema_description:"Distinct user_id values"`
	UniqueSessions  int    `json:"uniqueSessions" jsonschema_description:"Distinct session_id values"`
	MaxPayloadBytes int    `json:"maxPayloadBytes" jsonschema_description:"Effective payload size limit in bytes"`
	PreviewRowLimit int    `json:"previewRowLimit" jsonschema_description:"Default row limit for previews"`
}

// CloseDatasetInput defines parameters for closing a dataset handle.
type CloseDatasetInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID to close"`
}

// DatasetOverviewInput defines parameters for dataset overview.
type DatasetOverviewInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
}

// DatasetOverviewOutput summarizes a normalized dataset without event data.
type DatasetOverviewOutput struct {
	DatasetID      string   `json:"dataset_id"`
	TotalRows      int      `json:"totalRows"`
	UniqueUsers    int      `json:"uniqueUsers"`
	UniqueSessions int      `json:"uniqueSessions"`
	Columns        []string `json:"columns" jsonschema_description:"Canonical column order after normalization"`
}

// PreviewEventsInput defines parameters for paging through normalized events.
type PreviewEventsInput struct {
	DatasetID string `json:"dataset_id" validate:"required_without=Cursor" jsonschema_description:"Dataset handle ID"`
	Rows      int    `json:"rows,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Max rows to return per page (bounded)"`
	Cursor    string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page; takes precedence over offset"`
}

// PageMeta captures paging/truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PreviewEventsOutput documents preview rows and paging metadata.
type PreviewEventsOutput struct {
	DatasetID string              `json:"dataset_id"`
	Events    []clickstream.Event `json:"events"`
	Meta      PageMeta            `json:"meta"`
}

// RegisterFoundationTools wires dataset lifecycle and preview tools.
func RegisterFoundationTools(s *server.MCPServer, reg *Registry, limits runtime.Limits, mgr *datasets.Manager) {
	// open_dataset
	openTool := mcp.NewTool(
		"open_dataset",
		mcp.WithDescription("Open a clickstream export, normalize it (sorted by user, session, engagement time), and return a handle ID with effective limits"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute or allowed path to a clickstream export (.csv, .tsv, .xlsx)")),
		mcp.WithOutputSchema[OpenDatasetOutput](),
	)
	s.AddTool(openTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in OpenDatasetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		id, err := mgr.Open(ctx, in.Path)
		if err != nil {
			return openErrorResult(err), nil
		}
		var out OpenDatasetOutput
		_ = mgr.WithRead(id, func(data *clickstream.Dataset, _ int64) error {
			ov := data.Overview()
			out = OpenDatasetOutput{
				DatasetID:       id,
				TotalRows:       ov.TotalRows,
				UniqueUsers:     ov.UniqueUsers,
				UniqueSessions:  ov.UniqueSessions,
				MaxPayloadBytes: limits.MaxPayloadBytes,
				PreviewRowLimit: limits.PreviewRowLimit,
			}
			return nil
		})
		summary := fmt.Sprintf("dataset_id=%s rows=%d users=%d sessions=%d", id, out.TotalRows, out.UniqueUsers, out.UniqueSessions)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(openTool)

	// close_dataset
	closeTool := mcp.NewTool(
		"close_dataset",
		mcp.WithDescription("Close a previously opened dataset handle"),
		mcp.WithString("dataset_id", mcp.Required(), mcp.Description("Dataset handle ID")),
		mcp.WithOutputSchema[struct {
			Success bool `json:"success" jsonschema_description:"True when the handle was closed"`
		}](),
	)
	s.AddTool(closeTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CloseDatasetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		if err := mgr.CloseHandle(ctx, in.DatasetID); err != nil {
			if errors.Is(err, datasets.ErrHandleNotFound) {
				return mcperr.New(mcperr.InvalidHandle, ""), nil
			}
			return mcperr.Wrapf(mcperr.AnalysisFailed, "close: %v", err), nil
		}
		out := struct {
			Success bool `json:"success"`
		}{Success: true}
		res := mcp.NewToolResultStructured(out, "closed")
		res.Content = []mcp.Content{mcp.NewTextContent("closed")}
		return res, nil
	}))
	reg.Register(closeTool)

	// dataset_overview
	overviewTool := mcp.NewTool(
		"dataset_overview",
		mcp.WithDescription("Return dataset shape: total rows, unique users, unique sessions, and canonical columns (no event data)"),
		mcp.WithString("dataset_id", mcp.Required(), mcp.Description("Dataset handle ID")),
		mcp.WithOutputSchema[DatasetOverviewOutput](),
	)
	s.AddTool(overviewTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in DatasetOverviewInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		var out DatasetOverviewOutput
		err := mgr.WithRead(in.DatasetID, func(data *clickstream.Dataset, _ int64) error {
			ov := data.Overview()
			out = DatasetOverviewOutput{
				DatasetID:      in.DatasetID,
				TotalRows:      ov.TotalRows,
				UniqueUsers:    ov.UniqueUsers,
				UniqueSessions: ov.UniqueSessions,
				Columns:        clickstream.RequiredColumns(),
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, datasets.ErrHandleNotFound) {
				return mcperr.New(mcperr.InvalidHandle, ""), nil
			}
			return mcperr.Wrapf(mcperr.ReadFailed, "overview: %v", err), nil
		}
		summary := fmt.Sprintf("rows=%d users=%d sessions=%d", out.TotalRows, out.UniqueUsers, out.UniqueSessions)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(overviewTool)

	// preview_events
	previewTool := mcp.NewTool(
		"preview_events",
		mcp.WithDescription("Return a bounded page of normalized events with cursor-based pagination"),
		mcp.WithString("dataset_id", mcp.Description("Dataset handle ID (or supply cursor)")),
		mcp.WithNumber("rows", mcp.DefaultNumber(float64(limits.PreviewRowLimit)), mcp.Min(1), mcp.Max(1000), mcp.Description("Max rows to return per page")),
		mcp.WithString("cursor", mcp.Description("Opaque cursor from a previous page")),
		mcp.WithOutputSchema[PreviewEventsOutput](),
	)
	s.AddTool(previewTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in PreviewEventsInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		datasetID := in.DatasetID
		offset := 0
		rows := in.Rows
		if rows <= 0 {
			rows = limits.PreviewRowLimit
		}
		var cursorVersion int64
		if in.Cursor != "" {
			c, err := pagination.DecodeCursor(in.Cursor)
			if err != nil {
				return mcperr.New(mcperr.CursorInvalid, err.Error()), nil
			}
			datasetID = c.Did
			offset = c.Off
			rows = c.Ps
			cursorVersion = c.Dsv
		}
		if rows > limits.MaxRowsPerOp {
			rows = limits.MaxRowsPerOp
		}

		var out PreviewEventsOutput
		err := mgr.WithRead(datasetID, func(data *clickstream.Dataset, version int64) error {
			if cursorVersion != 0 && cursorVersion != version {
				return fmt.Errorf("dataset changed since cursor was issued")
			}
			total := len(data.Events)
			if offset > total {
				offset = total
			}
			end := offset + rows
			if end > total {
				end = total
			}
			page := data.Events[offset:end]
			out = PreviewEventsOutput{
				DatasetID: datasetID,
				Events:    page,
				Meta: PageMeta{
					Total:     total,
					Returned:  len(page),
					Truncated: end < total,
				},
			}
			if end < total {
				tok, err := pagination.EncodeCursor(pagination.Cursor{
					V:   1,
					Did: datasetID,
					T:   "events",
					U:   pagination.UnitRows,
					Off: pagination.NextOffset(offset, len(page)),
					Ps:  rows,
					Dsv: version,
				})
				if err != nil {
					return fmt.Errorf("cursor: %w", err)
				}
				out.Meta.NextCursor = tok
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, datasets.ErrHandleNotFound) {
				return mcperr.New(mcperr.InvalidHandle, ""), nil
			}
			return mcperr.Wrapf(mcperr.CursorInvalid, "%v", err), nil
		}

		body, err := json.Marshal(out)
		if err != nil {
			return mcperr.Wrapf(mcperr.ReadFailed, "encode: %v", err), nil
		}
		if len(body) > limits.MaxPayloadBytes {
			return mcperr.Wrapf(mcperr.PayloadTooLarge, "page is %d bytes (limit %d); reduce rows", len(body), limits.MaxPayloadBytes), nil
		}
		summary := fmt.Sprintf("returned=%d total=%d truncated=%v", out.Meta.Returned, out.Meta.Total, out.Meta.Truncated)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(previewTool)
}

// openErrorResult maps dataset open failures to canonical tool errors.
func openErrorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, security.ErrUnsupportedExtension):
		return mcperr.New(mcperr.UnsupportedFormat, "")
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.New(mcperr.PermissionDenied, "")
	case errors.Is(err, security.ErrNotFound):
		return mcperr.New(mcperr.OpenFailed, "file not found")
	case errors.Is(err, context.DeadlineExceeded):
		return mcperr.New(mcperr.BusyResource, "open dataset capacity")
	}
	var schemaErr *clickstream.SchemaError
	if errors.As(err, &schemaErr) {
		return mcperr.New(mcperr.SchemaMissingColumns, schemaErr.Error())
	}
	var dateErr *clickstream.DateParseError
	if errors.As(err, &dateErr) {
		return mcperr.New(mcperr.DateParseFailed, dateErr.Error())
	}
	return mcperr.Wrapf(mcperr.OpenFailed, "%v", err)
}
