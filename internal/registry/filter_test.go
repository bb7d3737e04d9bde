package registry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func TestExportToolFilter(t *testing.T) {
	tools := []mcp.Tool{
		{Name: "open_dataset"},
		{Name: "export_report"},
		{Name: "full_report"},
	}

	hidden := &ExportToolFilter{allowExports: false}
	got := hidden.FilterTools(context.Background(), tools)
	require.Len(t, got, 2)
	for _, tl := range got {
		require.NotEqual(t, "export_report", tl.Name)
	}

	open := &ExportToolFilter{allowExports: true}
	require.Len(t, open.FilterTools(context.Background(), tools), 3)
}

func TestNewExportToolFilterFromEnv(t *testing.T) {
	t.Setenv("MCPCLICK_ENABLE_EXPORTS", "true")
	require.True(t, NewExportToolFilterFromEnv().allowExports)

	t.Setenv("MCPCLICK_ENABLE_EXPORTS", "")
	require.False(t, NewExportToolFilterFromEnv().allowExports)
}
