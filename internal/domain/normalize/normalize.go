// Package normalize rescales raw metric values to [0,1] against the
// current subject population.
package normalize

import (
	"github.com/caredash/kpiengine/internal/domain/model"
)

// Direction states whether higher or lower raw values are better for a
// metric. Lower-is-better metrics are inverted after rescaling.
type Direction int

// Metric directions.
const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// NullPolicy states how subjects with a missing raw value are scored.
type NullPolicy int

// Null policies. NullAsZero is the default: a missing rate metric
// usually means zero volume, which scores worst-case. NullAsWorst
// substitutes the population maximum before rescaling; wait time uses
// it so doctors without wait data are penalized rather than rewarded.
const (
	NullAsZero NullPolicy = iota
	NullAsWorst
)

// Normalize rescales one metric's population of raw values to [0,1].
// Bounds come from the non-null values only. A degenerate population
// (no values, or max equal to min - single subject or all tied) yields
// zero for every subject: a population with no discriminating signal
// awards no credit.
func Normalize(metric string, values map[string]*float64, dir Direction, policy NullPolicy) []model.NormalizedScore {
	var (
		min, max float64
		seen     bool
	)
	for _, v := range values {
		if v == nil {
			continue
		}
		if !seen || *v < min {
			min = *v
		}
		if !seen || *v > max {
			max = *v
		}
		seen = true
	}

	scores := make([]model.NormalizedScore, 0, len(values))
	degenerate := !seen || max == min
	for subjectID, v := range values {
		s := model.NormalizedScore{
			SubjectID: subjectID,
			Metric:    metric,
			RawValue:  v,
		}
		switch {
		case degenerate:
			s.Normalized = 0
		case v == nil && policy == NullAsZero:
			s.Normalized = 0
		default:
			raw := max // NullAsWorst substitution
			if v != nil {
				raw = *v
			}
			n := (raw - min) / (max - min)
			if dir == LowerIsBetter {
				n = 1 - n
			}
			s.Normalized = clamp01(n)
		}
		scores = append(scores, s)
	}

	return scores
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
