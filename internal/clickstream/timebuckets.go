package clickstream

import (
	"fmt"
	"sort"
)

// Conversion status labels for the time-bucket cross-tab.
const (
	StatusConverted = "Converted"
	StatusDropped   = "Dropped"
)

// BucketConfig describes the engagement-time bins in seconds. Bounds must be
// strictly increasing with len(Labels) == len(Bounds)-1. Bins are right-closed
// and the lowest bound is inclusive, so a bound value falls into the bin it
// closes and 0 lands in the first bin.
type BucketConfig struct {
	Bounds []float64 `json:"bounds"`
	Labels []string  `json:"labels"`
}

func (c BucketConfig) validate() error {
	if len(c.Bounds) < 2 {
		return fmt.Errorf("clickstream: bucket config needs at least 2 bounds, got %d", len(c.Bounds))
	}
	if len(c.Labels) != len(c.Bounds)-1 {
		return fmt.Errorf("clickstream: bucket config needs %d labels for %d bounds, got %d",
			len(c.Bounds)-1, len(c.Bounds), len(c.Labels))
	}
	for i := 1; i < len(c.Bounds); i++ {
		if c.Bounds[i] <= c.Bounds[i-1] {
			return fmt.Errorf("clickstream: bucket bounds must be strictly increasing at index %d", i)
		}
	}
	return nil
}

// bucketFor returns the bin index for a value in seconds, or -1 when the
// value lies outside every bin.
func (c BucketConfig) bucketFor(v float64) int {
	if v < c.Bounds[0] || v > c.Bounds[len(c.Bounds)-1] {
		return -1
	}
	for i := 1; i < len(c.Bounds); i++ {
		if v <= c.Bounds[i] {
			return i - 1
		}
	}
	return -1
}

// SessionEngagement is one session's summed engagement duration.
type SessionEngagement struct {
	SessionID string  `json:"session_id"`
	TotalMsec float64 `json:"total_msec"`
}

// EngagementTotals sums engagement milliseconds per session, independent of
// any funnel. Output is ordered by session ID ascending.
func EngagementTotals(d *Dataset) []SessionEngagement {
	index := make(map[string]int)
	var out []SessionEngagement
	for _, ev := range d.Events {
		i, ok := index[ev.SessionID]
		if !ok {
			i = len(out)
			index[ev.SessionID] = i
			out = append(out, SessionEngagement{SessionID: ev.SessionID})
		}
		out[i].TotalMsec += ev.EngagementMsec
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// BucketRow is one non-empty cell of the bucket × conversion cross-tab.
type BucketRow struct {
	TimeBucket       string `json:"time_bucket"`
	ConversionStatus string `json:"conversion_status"`
	Sessions         int    `json:"sessions"`
}

// TimeBucketResult is the cross-tab plus the count of sessions whose
// engagement fell beyond the last bound. Those sessions are reported, never
// silently dropped.
type TimeBucketResult struct {
	Rows       []BucketRow `json:"rows"`
	Unbucketed int         `json:"unbucketed_sessions"`
}

// TimeBuckets cross-tabulates engagement-time bins against terminal-step
// conversion status. Rows are emitted in bucket order, Converted before
// Dropped, non-empty cells only.
func TimeBuckets(d *Dataset, funnel *FunnelResult, cfg BucketConfig) (*TimeBucketResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	converted := funnel.TerminalMembership()

	type cellKey struct {
		bucket    int
		converted bool
	}
	counts := make(map[cellKey]int)
	res := &TimeBucketResult{}
	for _, se := range EngagementTotals(d) {
		seconds := se.TotalMsec / 1000
		b := cfg.bucketFor(seconds)
		if b < 0 {
			res.Unbucketed++
			continue
		}
		counts[cellKey{bucket: b, converted: converted[se.SessionID]}]++
	}

	for b := range cfg.Labels {
		for _, conv := range []bool{true, false} {
			n := counts[cellKey{bucket: b, converted: conv}]
			if n == 0 {
				continue
			}
			status := StatusDropped
			if conv {
				status = StatusConverted
			}
			res.Rows = append(res.Rows, BucketRow{
				TimeBucket:       cfg.Labels[b],
				ConversionStatus: status,
				Sessions:         n,
			})
		}
	}
	return res, nil
}
