package clickstream

import "sort"

// Dropoff is one adjacent-step transition and the sessions lost across it.
type Dropoff struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Dropped int    `json:"dropped_sessions"`
}

// Dropoffs counts, for each adjacent step pair, sessions that reached the
// earlier step but not the later one, sorted descending by dropped count.
// Ties keep original adjacency order. Funnels with fewer than two steps yield
// an empty table.
func Dropoffs(r *FunnelResult) []Dropoff {
	if len(r.Steps) < 2 {
		return nil
	}
	out := make([]Dropoff, 0, len(r.Steps)-1)
	for i := 0; i+1 < len(r.Steps); i++ {
		d := Dropoff{From: r.Steps[i], To: r.Steps[i+1]}
		for _, m := range r.Membership {
			if m.Reached[i] && !m.Reached[i+1] {
				d.Dropped++
			}
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Dropped > out[j].Dropped })
	return out
}
