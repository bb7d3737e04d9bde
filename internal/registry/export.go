package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/mcpclick/config"
	"github.com/vinodismyname/mcpclick/internal/clickstream"
	"github.com/vinodismyname/mcpclick/internal/datasets"
	"github.com/vinodismyname/mcpclick/internal/security"
	"github.com/vinodismyname/mcpclick/pkg/mcperr"
	"github.com/vinodismyname/mcpclick/pkg/validation"
)

// WriteValidator abstracts output path validation for export tools.
type WriteValidator interface {
	ValidateWritePath(path string) (string, error)
}

// ExportReportInput defines parameters for writing a report workbook.
type ExportReportInput struct {
	DatasetID    string   `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Path         string   `json:"path" validate:"required" jsonschema_description:"Output path for the .xlsx report (inside an allowed directory)"`
	Steps        []string `json:"steps,omitempty" validate:"omitempty,min=1,event_names" jsonschema_description:"Ordered funnel step event names"`
	RequireOrder bool     `json:"require_order,omitempty" jsonschema_description:"Require steps to occur in sequence within a session"`
	TopN         int      `json:"top_n,omitempty" validate:"omitempty,min=1,max=100" jsonschema_description:"Number of top sequences to include"`
}

// ExportReportOutput documents the written workbook.
type ExportReportOutput struct {
	Path   string   `json:"path"`
	Sheets []string `json:"sheets"`
}

// RegisterExportTools wires the export_report tool. Discovery of export_
// tools is gated by ExportToolFilter.
func RegisterExportTools(s *server.MCPServer, reg *Registry, mgr *datasets.Manager, writes WriteValidator) {
	tool := mcp.NewTool(
		"export_report",
		mcp.WithDescription("Write the full analysis report as an .xlsx workbook with one sheet per table: Overview, Top Sequences, Funnel, Drop-off, and Time Buckets. The funnel sheets are omitted when no session reaches the first step. Errors include INVALID_HANDLE, PERMISSION_DENIED, and EXPORT_FAILED."),
		mcp.WithInputSchema[ExportReportInput](),
		mcp.WithOutputSchema[ExportReportOutput](),
	)
	s.AddTool(tool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ExportReportInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}

		path := in.Path
		if writes != nil {
			canonical, err := writes.ValidateWritePath(path)
			if err != nil {
				switch {
				case errors.Is(err, security.ErrUnsupportedExtension):
					return mcperr.New(mcperr.UnsupportedFormat, "export path must end in .xlsx"), nil
				case errors.Is(err, security.ErrNotAllowed), errors.Is(err, security.ErrNotFound):
					return mcperr.New(mcperr.PermissionDenied, ""), nil
				}
				return mcperr.Wrapf(mcperr.ExportFailed, "%v", err), nil
			}
			path = canonical
		}

		cfg := clickstream.Config{
			Funnel: funnelConfig(in.Steps, in.RequireOrder),
			Buckets: clickstream.BucketConfig{
				Bounds: config.DefaultBucketBounds(),
				Labels: config.DefaultBucketLabels(),
			},
			TopN: in.TopN,
		}
		var report *clickstream.Report
		runErr := mgr.WithRead(in.DatasetID, func(data *clickstream.Dataset, _ int64) error {
			rep, err := clickstream.RunDataset(data, cfg)
			var funnelErr *clickstream.EmptyFunnelError
			if err != nil && !errors.As(err, &funnelErr) {
				return err
			}
			report = rep
			return nil
		})
		if runErr != nil {
			return analysisErrorResult(runErr), nil
		}

		sheets, err := WriteReportWorkbook(path, report)
		if err != nil {
			return mcperr.Wrapf(mcperr.ExportFailed, "%v", err), nil
		}

		out := ExportReportOutput{Path: path, Sheets: sheets}
		summary := fmt.Sprintf("wrote %s (%d sheets)", path, len(sheets))
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(tool)
}

// WriteReportWorkbook renders the report tables into an xlsx file at path.
// It is shared by the export_report tool and the CLI front end.
func WriteReportWorkbook(path string, report *clickstream.Report) ([]string, error) {
	wb := excelize.NewFile()
	defer wb.Close()
	defaultSheet := wb.GetSheetName(0)

	var sheets []string
	addSheet := func(name string, rows [][]any) error {
		if _, err := wb.NewSheet(name); err != nil {
			return err
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := wb.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
		sheets = append(sheets, name)
		return nil
	}

	ov := report.Overview
	if err := addSheet("Overview", [][]any{
		{"metric", "value"},
		{"total_rows", ov.TotalRows},
		{"unique_users", ov.UniqueUsers},
		{"unique_sessions", ov.UniqueSessions},
	}); err != nil {
		return nil, err
	}

	seqRows := [][]any{{"sequence", "sessions"}}
	for _, sc := range report.TopSequences {
		seqRows = append(seqRows, []any{sc.Sequence, sc.Sessions})
	}
	if err := addSheet("Top Sequences", seqRows); err != nil {
		return nil, err
	}

	if len(report.Funnel) > 0 {
		funnelRows := [][]any{{"step", "sessions_reached", "conversion_pct"}}
		for _, s := range report.Funnel {
			funnelRows = append(funnelRows, []any{s.Step, s.SessionsReached, s.ConversionPct})
		}
		if err := addSheet("Funnel", funnelRows); err != nil {
			return nil, err
		}

		dropRows := [][]any{{"from", "to", "sessions_lost"}}
		for _, d := range report.Dropoffs {
			dropRows = append(dropRows, []any{d.From, d.To, d.Dropped})
		}
		if err := addSheet("Drop-off", dropRows); err != nil {
			return nil, err
		}
	}

	if report.TimeBuckets != nil {
		bucketRows := [][]any{{"time_bucket", "conversion_status", "sessions"}}
		for _, r := range report.TimeBuckets.Rows {
			bucketRows = append(bucketRows, []any{r.TimeBucket, r.ConversionStatus, r.Sessions})
		}
		bucketRows = append(bucketRows, []any{"(over largest bound)", "", report.TimeBuckets.Unbucketed})
		if err := addSheet("Time Buckets", bucketRows); err != nil {
			return nil, err
		}
	}

	// Drop the default sheet created by excelize.
	if err := wb.DeleteSheet(defaultSheet); err != nil {
		return nil, err
	}
	if err := wb.SaveAs(path); err != nil {
		return nil, err
	}
	return sheets, nil
}
