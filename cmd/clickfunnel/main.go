package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vinodismyname/mcpclick/pkg/version"
)

var (
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *Settings
)

var rootCmd = &cobra.Command{
	Use:     "clickfunnel",
	Short:   "Analyze clickstream exports: session journeys, funnel conversion, drop-off, and engagement buckets",
	Long:    `clickfunnel reads a clickstream export (.csv, .tsv, .xlsx) and reports the most common session journeys, per-step funnel conversion, adjacent-step drop-off, and a cross-tab of engagement time against conversion.`,
	Version: version.Version(),
}

func main() {
	cobra.OnInitialize(loadSettings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.clickfunnel/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadSettings() {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	c, err := LoadSettings(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		zlog.Warn().Err(err).Msg("failed to load config; using defaults")
		c = DefaultSettings()
	}
	cfg = c
}
