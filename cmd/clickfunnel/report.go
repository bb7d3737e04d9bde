package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vinodismyname/mcpclick/config"
	"github.com/vinodismyname/mcpclick/internal/clickstream"
	"github.com/vinodismyname/mcpclick/internal/datasets"
	"github.com/vinodismyname/mcpclick/internal/registry"
)

var (
	repSteps        []string
	repTopN         int
	repRequireOrder bool
	repOutputPath   string
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Run the full analysis on a clickstream export and print the tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		steps := cfg.Steps
		if cmd.Flags().Changed("steps") {
			steps = repSteps
		}
		topN := cfg.TopN
		if cmd.Flags().Changed("top") {
			topN = repTopN
		}
		requireOrder := cfg.RequireOrder
		if cmd.Flags().Changed("require-order") {
			requireOrder = repRequireOrder
		}

		frame, _, err := datasets.LoadFrame(path)
		if err != nil {
			return err
		}
		analysisCfg := clickstream.Config{
			Funnel: clickstream.FunnelConfig{Steps: steps, RequireOrder: requireOrder},
			Buckets: clickstream.BucketConfig{
				Bounds: config.DefaultBucketBounds(),
				Labels: config.DefaultBucketLabels(),
			},
			TopN: topN,
		}
		report, err := clickstream.Run(frame, analysisCfg)
		var funnelErr *clickstream.EmptyFunnelError
		if err != nil && !errors.As(err, &funnelErr) {
			return err
		}

		printReport(cmd.OutOrStdout(), report, funnelErr)

		if repOutputPath != "" {
			sheets, err := registry.WriteReportWorkbook(repOutputPath, report)
			if err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nwrote %s (%d sheets)\n", repOutputPath, len(sheets))
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringSliceVar(&repSteps, "steps", nil, "ordered funnel step event names (default session_start,page_view,add_to_cart,purchase)")
	reportCmd.Flags().IntVar(&repTopN, "top", 0, "number of top sequences to show")
	reportCmd.Flags().BoolVar(&repRequireOrder, "require-order", false, "require funnel steps to occur in sequence within a session")
	reportCmd.Flags().StringVar(&repOutputPath, "output", "", "also write the report as an .xlsx workbook")
	rootCmd.AddCommand(reportCmd)
}

func printReport(w io.Writer, report *clickstream.Report, funnelErr *clickstream.EmptyFunnelError) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "OVERVIEW")
	fmt.Fprintf(tw, "rows\t%d\n", report.Overview.TotalRows)
	fmt.Fprintf(tw, "users\t%d\n", report.Overview.UniqueUsers)
	fmt.Fprintf(tw, "sessions\t%d\n", report.Overview.UniqueSessions)

	fmt.Fprintln(tw, "\nTOP SEQUENCES")
	fmt.Fprintln(tw, "sessions\tsequence")
	for _, sc := range report.TopSequences {
		fmt.Fprintf(tw, "%d\t%s\n", sc.Sessions, sc.Sequence)
	}

	if funnelErr != nil {
		fmt.Fprintf(tw, "\nFUNNEL\nskipped: %s\n", funnelErr.Error())
	} else {
		fmt.Fprintln(tw, "\nFUNNEL")
		fmt.Fprintln(tw, "step\tsessions\tconversion")
		for _, s := range report.Funnel {
			fmt.Fprintf(tw, "%s\t%d\t%.2f%%\n", s.Step, s.SessionsReached, s.ConversionPct)
		}

		fmt.Fprintln(tw, "\nDROP-OFF")
		fmt.Fprintln(tw, "from\tto\tsessions lost")
		for _, d := range report.Dropoffs {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", d.From, d.To, d.Dropped)
		}
	}

	if report.TimeBuckets != nil {
		fmt.Fprintln(tw, "\nTIME BUCKETS")
		fmt.Fprintln(tw, "bucket\tstatus\tsessions")
		for _, r := range report.TimeBuckets.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", r.TimeBucket, r.ConversionStatus, r.Sessions)
		}
		if report.TimeBuckets.Unbucketed > 0 {
			fmt.Fprintf(tw, "(over largest bound)\t\t%d\n", report.TimeBuckets.Unbucketed)
		}
	}

	tw.Flush()
}
