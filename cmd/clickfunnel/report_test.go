package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/mcpclick/config"
	"github.com/vinodismyname/mcpclick/internal/clickstream"
)

func sampleFrame() clickstream.Frame {
	return clickstream.Frame{
		Columns: clickstream.RequiredColumns(),
		Rows: [][]string{
			{"u1", "s1", "session_start", "20240101", "100"},
			{"u1", "s1", "page_view", "20240101", "5000"},
			{"u1", "s1", "purchase", "20240101", "9000"},
			{"u2", "s2", "session_start", "20240101", "200"},
			{"u2", "s2", "page_view", "20240101", "400"},
		},
	}
}

func TestPrintReport(t *testing.T) {
	report, err := clickstream.Run(sampleFrame(), clickstream.DefaultConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	printReport(&buf, report, nil)
	out := buf.String()

	require.Contains(t, out, "OVERVIEW")
	require.Contains(t, out, "TOP SEQUENCES")
	require.Contains(t, out, "FUNNEL")
	require.Contains(t, out, "DROP-OFF")
	require.Contains(t, out, "TIME BUCKETS")
	require.Contains(t, out, "session_start → page_view → purchase")
}

func TestPrintReport_EmptyFunnel(t *testing.T) {
	frame := clickstream.Frame{
		Columns: clickstream.RequiredColumns(),
		Rows: [][]string{
			{"u1", "s1", "scroll", "20240101", "100"},
		},
	}
	report, err := clickstream.Run(frame, clickstream.DefaultConfig())
	var funnelErr *clickstream.EmptyFunnelError
	require.ErrorAs(t, err, &funnelErr)

	var buf bytes.Buffer
	printReport(&buf, report, funnelErr)
	out := buf.String()

	require.Contains(t, out, "skipped")
	require.NotContains(t, out, "DROP-OFF")
	require.Contains(t, out, "TIME BUCKETS")
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.Equal(t, config.DefaultFunnelSteps(), s.Steps)
	require.Equal(t, config.DefaultTopSequences, s.TopN)
	require.False(t, s.RequireOrder)
}

func TestLoadSettings_File(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	content := strings.Join([]string{
		"steps:",
		"  - landing",
		"  - signup",
		"top_n: 5",
		"require_order: true",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, []string{"landing", "signup"}, s.Steps)
	require.Equal(t, 5, s.TopN)
	require.True(t, s.RequireOrder)
}
