package clickstream

import (
	"sort"
	"strings"
)

// SequenceSeparator joins event names into a rendered, comparable sequence key.
const SequenceSeparator = " → "

// SessionSequence is one session's ordered list of event names. Duplicates and
// repeats are preserved; the order comes from the normalized dataset.
type SessionSequence struct {
	SessionID string   `json:"session_id"`
	Events    []string `json:"events"`
}

// Rendered returns the sequence joined with SequenceSeparator.
func (s SessionSequence) Rendered() string {
	return strings.Join(s.Events, SequenceSeparator)
}

// Sequences groups normalized events into per-session sequences, preserving
// row order within each group. Output is ordered by session ID ascending.
func Sequences(d *Dataset) []SessionSequence {
	index := make(map[string]int)
	var out []SessionSequence
	for _, ev := range d.Events {
		i, ok := index[ev.SessionID]
		if !ok {
			i = len(out)
			index[ev.SessionID] = i
			out = append(out, SessionSequence{SessionID: ev.SessionID})
		}
		out[i].Events = append(out[i].Events, ev.EventName)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// SequenceCount is one row of the top-sequence ranking.
type SequenceCount struct {
	Sequence string `json:"sequence"`
	Sessions int    `json:"sessions"`
}

// TopSequences ranks rendered sequences by session count descending and
// returns the first n. Ties keep first-encountered order; zero sessions or a
// non-positive n yield an empty ranking.
func TopSequences(seqs []SessionSequence, n int) []SequenceCount {
	if n <= 0 {
		return nil
	}
	counts := make(map[string]int, len(seqs))
	var order []string
	for _, s := range seqs {
		key := s.Rendered()
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	out := make([]SequenceCount, 0, len(order))
	for _, key := range order {
		out = append(out, SequenceCount{Sequence: key, Sessions: counts[key]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sessions > out[j].Sessions })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
