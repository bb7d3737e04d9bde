package clickstream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/mcpclick/config"
)

func defaultBuckets() BucketConfig {
	return BucketConfig{Bounds: config.DefaultBucketBounds(), Labels: config.DefaultBucketLabels()}
}

func TestBucketFor_RightClosedInclusiveLowest(t *testing.T) {
	cfg := defaultBuckets()
	cases := []struct {
		seconds float64
		want    int
	}{
		{0, 0},     // lowest bound inclusive
		{10, 0},    // boundary stays in the bucket it closes
		{10.1, 1},
		{30, 1},
		{60, 2},
		{120, 3},
		{300, 4},
		{300.1, -1}, // beyond the last bound
		{-1, -1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, cfg.bucketFor(tc.seconds), "seconds=%v", tc.seconds)
	}
}

func TestEngagementTotals_SumsPerSession(t *testing.T) {
	f := eventFrame(t,
		[]string{"u1", "s1", "session_start", "20240101", "4000"},
		[]string{"u1", "s1", "page_view", "20240101", "6000"},
		[]string{"u2", "s2", "session_start", "20240101", "0"},
	)
	d, err := Normalize(f)
	require.NoError(t, err)

	totals := EngagementTotals(d)
	require.Equal(t, []SessionEngagement{
		{SessionID: "s1", TotalMsec: 10000},
		{SessionID: "s2", TotalMsec: 0},
	}, totals)
}

func TestTimeBuckets_CrossTab(t *testing.T) {
	f := eventFrame(t,
		// s1 converts, 10000ms total = exactly 10s -> "0-10s".
		[]string{"u1", "s1", "session_start", "20240101", "4000"},
		[]string{"u1", "s1", "purchase", "20240101", "6000"},
		// s2 drops, 15s -> "10-30s".
		[]string{"u1", "s2", "session_start", "20240101", "15000"},
		// s3 drops, 0ms -> "0-10s".
		[]string{"u2", "s3", "session_start", "20240101", "0"},
	)
	d, err := Normalize(f)
	require.NoError(t, err)
	funnel, err := EvaluateFunnel(Sequences(d), defaultFunnel())
	require.NoError(t, err)

	res, err := TimeBuckets(d, funnel, defaultBuckets())
	require.NoError(t, err)
	require.Zero(t, res.Unbucketed)
	require.Equal(t, []BucketRow{
		{TimeBucket: "0-10s", ConversionStatus: "Converted", Sessions: 1},
		{TimeBucket: "0-10s", ConversionStatus: "Dropped", Sessions: 1},
		{TimeBucket: "10-30s", ConversionStatus: "Dropped", Sessions: 1},
	}, res.Rows)
}

func TestTimeBuckets_OutOfRangeReportedNotDropped(t *testing.T) {
	f := eventFrame(t,
		[]string{"u1", "s1", "session_start", "20240101", "301000"}, // 301s
		[]string{"u2", "s2", "session_start", "20240101", "5000"},
	)
	d, err := Normalize(f)
	require.NoError(t, err)
	funnel, err := EvaluateFunnel(Sequences(d), defaultFunnel())
	require.NoError(t, err)

	res, err := TimeBuckets(d, funnel, defaultBuckets())
	require.NoError(t, err)
	require.Equal(t, 1, res.Unbucketed)

	inRange := 0
	for _, row := range res.Rows {
		inRange += row.Sessions
	}
	require.Equal(t, 1, inRange)
}

func TestTimeBuckets_CountsSumToInRangeSessions(t *testing.T) {
	f := eventFrame(t,
		[]string{"u1", "s1", "session_start", "20240101", "1000"},
		[]string{"u1", "s2", "session_start", "20240101", "45000"},
		[]string{"u2", "s3", "purchase", "20240101", "125000"},
		[]string{"u2", "s4", "session_start", "20240101", "500000"},
	)
	d, err := Normalize(f)
	require.NoError(t, err)
	funnel, err := EvaluateFunnel(Sequences(d), defaultFunnel())
	require.NoError(t, err)

	res, err := TimeBuckets(d, funnel, defaultBuckets())
	require.NoError(t, err)

	total := 0
	for _, row := range res.Rows {
		total += row.Sessions
	}
	require.Equal(t, 3, total)
	require.Equal(t, 1, res.Unbucketed)
}

func TestTimeBuckets_ConfigValidation(t *testing.T) {
	d := &Dataset{}
	funnel, err := EvaluateFunnel(nil, defaultFunnel())
	require.NoError(t, err)

	_, err = TimeBuckets(d, funnel, BucketConfig{Bounds: []float64{0}})
	require.Error(t, err)

	_, err = TimeBuckets(d, funnel, BucketConfig{Bounds: []float64{0, 10}, Labels: nil})
	require.Error(t, err)

	_, err = TimeBuckets(d, funnel, BucketConfig{Bounds: []float64{0, 10, 10}, Labels: []string{"a", "b"}})
	require.Error(t, err)
}
