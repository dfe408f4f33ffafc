// Package scoring blends normalized metric scores into one weighted
// composite per subject on a 0-100 scale.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// Composite scale and weight tolerance.
const (
	compositeScale  = 100
	weightTolerance = 1e-6
)

// Weights configures the contribution of each component to the
// composite. The five weights must sum to 1.
type Weights struct {
	NPS         float64 `koanf:"nps"`
	Readmission float64 `koanf:"readmission"`
	Wait        float64 `koanf:"wait"`
	Followup    float64 `koanf:"followup"`
	Volume      float64 `koanf:"volume"`
}

// DefaultWeights returns the stock weighting: satisfaction dominates,
// readmission is next, the rest share the remainder evenly.
func DefaultWeights() Weights {
	return Weights{
		NPS:         0.30,
		Readmission: 0.25,
		Wait:        0.15,
		Followup:    0.15,
		Volume:      0.15,
	}
}

// Validate rejects negative weights and any set not summing to 1
// within tolerance. The engine fails fast on invalid weights; a cycle
// never runs with them.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"nps":         w.NPS,
		"readmission": w.Readmission,
		"wait":        w.Wait,
		"followup":    w.Followup,
		"volume":      w.Volume,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s weight is negative", ErrInvalidWeights, name)
		}
	}
	sum := w.NPS + w.Readmission + w.Wait + w.Followup + w.Volume
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// Input carries one subject's normalized components plus the raw values
// echoed into the persisted score row.
type Input struct {
	SubjectID   string
	SubjectName string

	ResponsesCount int
	NPSPct         float64
	ReadmissionPct float64
	AvgWaitMinutes *float64
	FollowupPct    float64

	NPSNorm         float64
	ReadmissionNorm float64
	WaitNorm        float64
	FollowupNorm    float64
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights overrides the component weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// Scorer computes composite scores for one cycle's population.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with configuration options. Callers must
// validate weights before constructing the scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns the active component weights.
func (s *Scorer) Weights() Weights { return s.weights }

// Score computes one subject's composite. maxResponses is the largest
// response count across the population this cycle, used to saturate the
// volume adjustment.
func (s *Scorer) Score(in Input, maxResponses int, computedAt time.Time) model.CompositeScore {
	vol := VolumeAdjustment(in.ResponsesCount, maxResponses)
	composite := compositeScale * (in.NPSNorm*s.weights.NPS +
		in.ReadmissionNorm*s.weights.Readmission +
		in.WaitNorm*s.weights.Wait +
		in.FollowupNorm*s.weights.Followup +
		vol*s.weights.Volume)

	return model.CompositeScore{
		SubjectID:        in.SubjectID,
		SubjectName:      in.SubjectName,
		ResponsesCount:   in.ResponsesCount,
		NPSPct:           in.NPSPct,
		ReadmissionPct:   in.ReadmissionPct,
		AvgWaitMinutes:   in.AvgWaitMinutes,
		FollowupPct:      in.FollowupPct,
		NPSNorm:          in.NPSNorm,
		ReadmissionNorm:  in.ReadmissionNorm,
		WaitNorm:         in.WaitNorm,
		FollowupNorm:     in.FollowupNorm,
		VolumeAdjustment: vol,
		Composite:        composite,
		ComputedAt:       computedAt,
	}
}

// VolumeAdjustment dampens the reward for sample volume with a log
// curve: ln(1+n) / ln(1+maxN), capped at 1. Near-zero samples score
// near zero so a lucky small-sample subject is not over-rewarded, and
// the cap keeps very high volumes from compounding further.
func VolumeAdjustment(responses, maxResponses int) float64 {
	if maxResponses <= 0 || responses < 0 {
		return 0
	}
	adj := math.Log1p(float64(responses)) / math.Log1p(float64(maxResponses))
	return math.Min(1, adj)
}
