package clickstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipelineFrame(t *testing.T) Frame {
	t.Helper()
	return eventFrame(t,
		[]string{"u1", "s1", "session_start", "20240101", "0"},
		[]string{"u1", "s1", "page_view", "20240101", "2000"},
		[]string{"u1", "s1", "add_to_cart", "20240101", "5000"},
		[]string{"u1", "s1", "purchase", "20240101", "8000"},
		[]string{"u1", "s2", "session_start", "20240101", "0"},
		[]string{"u1", "s2", "page_view", "20240101", "12000"},
		[]string{"u2", "s3", "session_start", "20240101", "0"},
	)
}

func TestRun_FullReport(t *testing.T) {
	rep, err := Run(pipelineFrame(t), DefaultConfig())
	require.NoError(t, err)

	require.Equal(t, Overview{TotalRows: 7, UniqueUsers: 2, UniqueSessions: 3}, rep.Overview)
	require.Len(t, rep.TopSequences, 3)
	require.Equal(t, []StepSummary{
		{Step: "session_start", SessionsReached: 3, ConversionPct: 100.00},
		{Step: "page_view", SessionsReached: 2, ConversionPct: 66.67},
		{Step: "add_to_cart", SessionsReached: 1, ConversionPct: 33.33},
		{Step: "purchase", SessionsReached: 1, ConversionPct: 33.33},
	}, rep.Funnel)
	require.Len(t, rep.Dropoffs, 3)
	require.NotNil(t, rep.TimeBuckets)
}

func TestRun_Idempotent(t *testing.T) {
	f := pipelineFrame(t)
	first, err := Run(f, DefaultConfig())
	require.NoError(t, err)
	second, err := Run(f, DefaultConfig())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestRun_EmptyDatasetPartialReport(t *testing.T) {
	rep, err := Run(eventFrame(t), DefaultConfig())

	var empty *EmptyFunnelError
	require.ErrorAs(t, err, &empty)

	// Sequence and time-bucket tables still come back.
	require.NotNil(t, rep)
	require.Empty(t, rep.TopSequences)
	require.Nil(t, rep.Funnel)
	require.Nil(t, rep.Dropoffs)
	require.NotNil(t, rep.TimeBuckets)
	require.Empty(t, rep.TimeBuckets.Rows)
}

func TestRun_SchemaErrorAbortsRun(t *testing.T) {
	_, err := Run(Frame{Columns: []string{"user_id"}}, DefaultConfig())
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestRun_DefaultsTopN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopN = 0
	rep, err := Run(pipelineFrame(t), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, rep.TopSequences)
}
