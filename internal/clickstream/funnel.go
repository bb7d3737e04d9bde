package clickstream

import (
	"errors"
	"math"
)

// FunnelConfig is the ordered list of step names plus matching semantics.
type FunnelConfig struct {
	Steps []string `json:"steps"`

	// RequireOrder demands steps be reached in configured order: step i only
	// counts when it occurs after the event matched for step i-1. Off by
	// default, matching the reference behavior of plain set containment
	// anywhere in the session.
	RequireOrder bool `json:"require_order,omitempty"`
}

// StepSummary is one row of the funnel summary table.
type StepSummary struct {
	Step            string  `json:"step"`
	SessionsReached int     `json:"sessions_reached"`
	ConversionPct   float64 `json:"conversion_pct"`
}

// SessionMembership records which configured steps one session reached.
// Reached is parallel to the step list.
type SessionMembership struct {
	SessionID string `json:"session_id"`
	Reached   []bool `json:"reached"`
}

// FunnelResult carries per-step counts and the full membership matrix for
// downstream drop-off and time-bucket analysis.
type FunnelResult struct {
	Steps      []string            `json:"steps"`
	Counts     []int               `json:"counts"`
	Membership []SessionMembership `json:"membership"`
}

// ErrNoSteps rejects funnel configurations without a single step.
var ErrNoSteps = errors.New("clickstream: funnel requires at least one step")

// EvaluateFunnel computes step membership for every session. Duplicate events
// in a sequence never change a membership boolean.
func EvaluateFunnel(seqs []SessionSequence, cfg FunnelConfig) (*FunnelResult, error) {
	if len(cfg.Steps) == 0 {
		return nil, ErrNoSteps
	}
	res := &FunnelResult{
		Steps:  append([]string(nil), cfg.Steps...),
		Counts: make([]int, len(cfg.Steps)),
	}
	for _, s := range seqs {
		var reached []bool
		if cfg.RequireOrder {
			reached = orderedMembership(s.Events, res.Steps)
		} else {
			reached = containsMembership(s.Events, res.Steps)
		}
		for i, ok := range reached {
			if ok {
				res.Counts[i]++
			}
		}
		res.Membership = append(res.Membership, SessionMembership{SessionID: s.SessionID, Reached: reached})
	}
	return res, nil
}

func containsMembership(events, steps []string) []bool {
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		seen[e] = struct{}{}
	}
	out := make([]bool, len(steps))
	for i, step := range steps {
		_, out[i] = seen[step]
	}
	return out
}

// orderedMembership walks the session once, matching steps as a subsequence.
func orderedMembership(events, steps []string) []bool {
	out := make([]bool, len(steps))
	next := 0
	for _, e := range events {
		if next < len(steps) && e == steps[next] {
			out[next] = true
			next++
		}
	}
	return out
}

// Summary computes the conversion table in configured step order. Step 0 is
// always 100.00; a zero step-0 count surfaces an *EmptyFunnelError instead of
// NaN or infinity.
func (r *FunnelResult) Summary() ([]StepSummary, error) {
	if len(r.Counts) == 0 || r.Counts[0] == 0 {
		return nil, &EmptyFunnelError{Step: r.Steps[0]}
	}
	first := float64(r.Counts[0])
	out := make([]StepSummary, len(r.Steps))
	for i, step := range r.Steps {
		out[i] = StepSummary{
			Step:            step,
			SessionsReached: r.Counts[i],
			ConversionPct:   round2(float64(r.Counts[i]) / first * 100),
		}
	}
	return out, nil
}

// TerminalMembership reports whether each session reached the last configured
// step, the "Converted" criterion for time-bucket analysis.
func (r *FunnelResult) TerminalMembership() map[string]bool {
	last := len(r.Steps) - 1
	out := make(map[string]bool, len(r.Membership))
	for _, m := range r.Membership {
		out[m.SessionID] = m.Reached[last]
	}
	return out
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
