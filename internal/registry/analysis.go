package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/mcpclick/config"
	"github.com/vinodismyname/mcpclick/internal/clickstream"
	"github.com/vinodismyname/mcpclick/internal/datasets"
	"github.com/vinodismyname/mcpclick/internal/runtime"
	"github.com/vinodismyname/mcpclick/pkg/mcperr"
	"github.com/vinodismyname/mcpclick/pkg/validation"
)

// TopSequencesInput defines parameters for ranking session journeys.
type TopSequencesInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	TopN      int    `json:"top_n,omitempty" validate:"omitempty,min=1,max=100" jsonschema_description:"Number of sequences to return (default 10)"`
}

// TopSequencesOutput lists the most common session journeys.
type TopSequencesOutput struct {
	DatasetID     string                      `json:"dataset_id"`
	TotalSessions int                         `json:"totalSessions"`
	Sequences     []clickstream.SequenceCount `json:"sequences"`
}

// FunnelInput defines parameters shared by the funnel-shaped tools.
type FunnelInput struct {
	DatasetID    string   `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Steps        []string `json:"steps,omitempty" validate:"omitempty,min=1,event_names" jsonschema_description:"Ordered funnel step event names (default session_start, page_view, add_to_cart, purchase)"`
	RequireOrder bool     `json:"require_order,omitempty" jsonschema_description:"Require steps to occur in sequence within a session rather than mere presence"`
}

// FunnelSummaryOutput reports per-step reach and conversion.
type FunnelSummaryOutput struct {
	DatasetID string                    `json:"dataset_id"`
	Steps     []clickstream.StepSummary `json:"steps"`
}

// DropoffOutput ranks adjacent-step session losses.
type DropoffOutput struct {
	DatasetID string                `json:"dataset_id"`
	Dropoffs  []clickstream.Dropoff `json:"dropoffs"`
}

// TimeBucketOutput cross-tabulates engagement buckets against conversion.
type TimeBucketOutput struct {
	DatasetID  string                  `json:"dataset_id"`
	Rows       []clickstream.BucketRow `json:"rows"`
	Unbucketed int                     `json:"unbucketed" jsonschema_description:"Sessions whose total engagement exceeds the largest bucket bound"`
}

// FullReportInput defines parameters for the single-call analysis report.
type FullReportInput struct {
	DatasetID    string   `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle ID"`
	Steps        []string `json:"steps,omitempty" validate:"omitempty,min=1,event_names" jsonschema_description:"Ordered funnel step event names"`
	RequireOrder bool     `json:"require_order,omitempty" jsonschema_description:"Require steps to occur in sequence within a session"`
	TopN         int      `json:"top_n,omitempty" validate:"omitempty,min=1,max=100" jsonschema_description:"Number of top sequences to include"`
}

// FullReportOutput wraps the combined report.
type FullReportOutput struct {
	DatasetID string             `json:"dataset_id"`
	Report    clickstream.Report `json:"report"`
	Note      string             `json:"note,omitempty" jsonschema_description:"Set when the funnel and drop-off sections were withheld"`
}

// RegisterAnalysisTools wires the clickstream analysis tools.
func RegisterAnalysisTools(s *server.MCPServer, reg *Registry, limits runtime.Limits, mgr *datasets.Manager) {
	_ = limits // analysis outputs are small; row limits apply at preview time

	// top_sequences
	ts := mcp.NewTool(
		"top_sequences",
		mcp.WithDescription("Rank the most common session event journeys. Each session's events are joined in engagement-time order into a journey string; ties keep first-seen order. Errors include INVALID_HANDLE and VALIDATION."),
		mcp.WithInputSchema[TopSequencesInput](),
		mcp.WithOutputSchema[TopSequencesOutput](),
	)
	s.AddTool(ts, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in TopSequencesInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		topN := in.TopN
		if topN <= 0 {
			topN = config.DefaultTopSequences
		}
		var out TopSequencesOutput
		err := mgr.WithRead(in.DatasetID, func(data *clickstream.Dataset, _ int64) error {
			seqs := clickstream.Sequences(data)
			out = TopSequencesOutput{
				DatasetID:     in.DatasetID,
				TotalSessions: len(seqs),
				Sequences:     clickstream.TopSequences(seqs, topN),
			}
			return nil
		})
		if err != nil {
			return analysisErrorResult(err), nil
		}
		summary := fmt.Sprintf("sequences=%d sessions=%d", len(out.Sequences), out.TotalSessions)
		var lines []string
		lines = append(lines, summary)
		for _, sc := range out.Sequences {
			lines = append(lines, fmt.Sprintf("- %d× %s", sc.Sessions, sc.Sequence))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(ts)

	// funnel_summary
	fs := mcp.NewTool(
		"funnel_summary",
		mcp.WithDescription("Count sessions reaching each funnel step and the conversion percentage relative to the first step. By default a session reaches a step when the event appears anywhere in it; set require_order for strict sequencing. Errors include INVALID_HANDLE, EMPTY_FUNNEL, and VALIDATION."),
		mcp.WithInputSchema[FunnelInput](),
		mcp.WithOutputSchema[FunnelSummaryOutput](),
	)
	s.AddTool(fs, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in FunnelInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		cfg := funnelConfig(in.Steps, in.RequireOrder)
		var out FunnelSummaryOutput
		err := mgr.WithRead(in.DatasetID, func(data *clickstream.Dataset, _ int64) error {
			result, err := clickstream.EvaluateFunnel(clickstream.Sequences(data), cfg)
			if err != nil {
				return err
			}
			steps, err := result.Summary()
			if err != nil {
				return err
			}
			out = FunnelSummaryOutput{DatasetID: in.DatasetID, Steps: steps}
			return nil
		})
		if err != nil {
			return analysisErrorResult(err), nil
		}
		summary := funnelText(out.Steps)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(fs)

	// dropoff_analysis
	da := mcp.NewTool(
		"dropoff_analysis",
		mcp.WithDescription("Rank adjacent funnel step pairs by the number of sessions lost between them, largest first. Uses the same membership semantics as funnel_summary. Errors include INVALID_HANDLE, EMPTY_FUNNEL, and VALIDATION."),
		mcp.WithInputSchema[FunnelInput](),
		mcp.WithOutputSchema[DropoffOutput](),
	)
	s.AddTool(da, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in FunnelInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		cfg := funnelConfig(in.Steps, in.RequireOrder)
		var out DropoffOutput
		err := mgr.WithRead(in.DatasetID, func(data *clickstream.Dataset, _ int64) error {
			result, err := clickstream.EvaluateFunnel(clickstream.Sequences(data), cfg)
			if err != nil {
				return err
			}
			// Drop-off counts are only meaningful when the funnel has an entry population.
			if _, err := result.Summary(); err != nil {
				return err
			}
			out = DropoffOutput{DatasetID: in.DatasetID, Dropoffs: clickstream.Dropoffs(result)}
			return nil
		})
		if err != nil {
			return analysisErrorResult(err), nil
		}
		summary := fmt.Sprintf("pairs=%d", len(out.Dropoffs))
		var lines []string
		lines = append(lines, summary)
		for _, d := range out.Dropoffs {
			lines = append(lines, fmt.Sprintf("- %s → %s: %d sessions lost", d.From, d.To, d.Dropped))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(da)

	// time_bucket_analysis
	tb := mcp.NewTool(
		"time_bucket_analysis",
		mcp.WithDescription("Cross-tabulate per-session total engagement time (bucketed: 0-10s, 10-30s, 30-60s, 60-120s, 120s+) against conversion status. A session converts when it reaches the final funnel step. Sessions above the largest bound are reported separately as unbucketed. Errors include INVALID_HANDLE and VALIDATION."),
		mcp.WithInputSchema[FunnelInput](),
		mcp.WithOutputSchema[TimeBucketOutput](),
	)
	s.AddTool(tb, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in FunnelInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		cfg := funnelConfig(in.Steps, in.RequireOrder)
		var out TimeBucketOutput
		err := mgr.WithRead(in.DatasetID, func(data *clickstream.Dataset, _ int64) error {
			result, err := clickstream.EvaluateFunnel(clickstream.Sequences(data), cfg)
			if err != nil {
				return err
			}
			buckets, err := clickstream.TimeBuckets(data, result, clickstream.BucketConfig{
				Bounds: config.DefaultBucketBounds(),
				Labels: config.DefaultBucketLabels(),
			})
			if err != nil {
				return err
			}
			out = TimeBucketOutput{DatasetID: in.DatasetID, Rows: buckets.Rows, Unbucketed: buckets.Unbucketed}
			return nil
		})
		if err != nil {
			return analysisErrorResult(err), nil
		}
		summary := fmt.Sprintf("rows=%d unbucketed=%d", len(out.Rows), out.Unbucketed)
		var lines []string
		lines = append(lines, summary)
		for _, r := range out.Rows {
			lines = append(lines, fmt.Sprintf("- %s / %s: %d", r.TimeBucket, r.ConversionStatus, r.Sessions))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(tb)

	// full_report
	fr := mcp.NewTool(
		"full_report",
		mcp.WithDescription("Run the complete analysis in one call: overview, top sequences, funnel conversion, drop-off ranking, and the engagement-time cross-tab. When no session reaches the first funnel step the funnel and drop-off sections are withheld and a note explains why; sequences and time buckets are still returned. Errors include INVALID_HANDLE and VALIDATION."),
		mcp.WithInputSchema[FullReportInput](),
		mcp.WithOutputSchema[FullReportOutput](),
	)
	s.AddTool(fr, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in FullReportInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		cfg := clickstream.Config{
			Funnel: funnelConfig(in.Steps, in.RequireOrder),
			Buckets: clickstream.BucketConfig{
				Bounds: config.DefaultBucketBounds(),
				Labels: config.DefaultBucketLabels(),
			},
			TopN: in.TopN,
		}
		var out FullReportOutput
		runErr := mgr.WithRead(in.DatasetID, func(data *clickstream.Dataset, _ int64) error {
			report, err := clickstream.RunDataset(data, cfg)
			var funnelErr *clickstream.EmptyFunnelError
			if err != nil && !errors.As(err, &funnelErr) {
				return err
			}
			out = FullReportOutput{DatasetID: in.DatasetID, Report: *report}
			if funnelErr != nil {
				out.Note = funnelErr.Error()
			}
			return nil
		})
		if runErr != nil {
			return analysisErrorResult(runErr), nil
		}
		summary := fmt.Sprintf("rows=%d sessions=%d sequences=%d", out.Report.Overview.TotalRows, out.Report.Overview.UniqueSessions, len(out.Report.TopSequences))
		if out.Note != "" {
			summary += " funnel=withheld"
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(fr)
}

// funnelConfig applies the default step list when none is provided.
func funnelConfig(steps []string, requireOrder bool) clickstream.FunnelConfig {
	if len(steps) == 0 {
		steps = config.DefaultFunnelSteps()
	}
	return clickstream.FunnelConfig{Steps: steps, RequireOrder: requireOrder}
}

// funnelText renders a compact per-step conversion summary.
func funnelText(steps []clickstream.StepSummary) string {
	var parts []string
	for _, s := range steps {
		parts = append(parts, fmt.Sprintf("%s=%d (%.2f%%)", s.Step, s.SessionsReached, s.ConversionPct))
	}
	return strings.Join(parts, " ")
}

// analysisErrorResult maps handle and analysis errors to canonical tool errors.
func analysisErrorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, datasets.ErrHandleNotFound) {
		return mcperr.New(mcperr.InvalidHandle, "")
	}
	if errors.Is(err, clickstream.ErrNoSteps) {
		return mcperr.New(mcperr.Validation, "steps must not be empty")
	}
	return mcperr.FromAnalysisError(err)
}
