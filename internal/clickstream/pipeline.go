package clickstream

import (
	"errors"

	"github.com/vinodismyname/mcpclick/config"
)

// Config collects every analysis parameter for one pipeline run.
type Config struct {
	Funnel  FunnelConfig `json:"funnel"`
	Buckets BucketConfig `json:"buckets"`
	TopN    int          `json:"top_n"`
}

// DefaultConfig returns the reference parameters: the GA4 four-step funnel,
// five engagement buckets, top 10 sequences.
func DefaultConfig() Config {
	return Config{
		Funnel: FunnelConfig{Steps: config.DefaultFunnelSteps()},
		Buckets: BucketConfig{
			Bounds: config.DefaultBucketBounds(),
			Labels: config.DefaultBucketLabels(),
		},
		TopN: config.DefaultTopSequences,
	}
}

// Report bundles the derived tables of one run. Each table is a fresh value;
// nothing aliases the input frame, so repeated runs over the same input are
// byte-identical.
type Report struct {
	Overview     Overview          `json:"overview"`
	TopSequences []SequenceCount   `json:"top_sequences"`
	Funnel       []StepSummary     `json:"funnel,omitempty"`
	Dropoffs     []Dropoff         `json:"dropoffs,omitempty"`
	TimeBuckets  *TimeBucketResult `json:"time_buckets,omitempty"`
}

// Run executes the full pipeline over a raw frame: schema validation,
// normalization, sequence aggregation, funnel evaluation, drop-off and
// time-bucket analysis. Schema and date errors abort the run. An
// *EmptyFunnelError is returned together with a partial report: sequence and
// time-bucket tables are still populated, only the conversion and drop-off
// tables are withheld.
func Run(f Frame, cfg Config) (*Report, error) {
	d, err := Normalize(f)
	if err != nil {
		return nil, err
	}
	return RunDataset(d, cfg)
}

// RunDataset executes the pipeline over an already-normalized dataset.
func RunDataset(d *Dataset, cfg Config) (*Report, error) {
	if cfg.TopN <= 0 {
		cfg.TopN = config.DefaultTopSequences
	}
	seqs := Sequences(d)
	rep := &Report{
		Overview:     d.Overview(),
		TopSequences: TopSequences(seqs, cfg.TopN),
	}

	funnel, err := EvaluateFunnel(seqs, cfg.Funnel)
	if err != nil {
		return nil, err
	}
	buckets, err := TimeBuckets(d, funnel, cfg.Buckets)
	if err != nil {
		return nil, err
	}
	rep.TimeBuckets = buckets

	summary, err := funnel.Summary()
	if err != nil {
		var empty *EmptyFunnelError
		if errors.As(err, &empty) {
			return rep, err
		}
		return nil, err
	}
	rep.Funnel = summary
	rep.Dropoffs = Dropoffs(funnel)
	return rep, nil
}
