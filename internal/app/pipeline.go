package service

import (
	"sort"

	"time"

	"github.com/caredash/kpiengine/internal/domain/extract"
	"github.com/caredash/kpiengine/internal/domain/model"
	"github.com/caredash/kpiengine/internal/domain/normalize"
	"github.com/caredash/kpiengine/internal/domain/scoring"
)

// scoreAll turns one cycle's raw rows into composite scores for every
// doctor in the registry. Doctors with no rows for a metric enter the
// population with a nil value; the null policy of each metric decides
// how they score.
func (s *Service) scoreAll(snap *extract.Snapshot, rows []model.RawMetricRow, computedAt time.Time) []model.CompositeScore {
	type doctorRaw struct {
		nps       *float64
		readm     *float64
		wait      *float64
		followup  *float64
		responses int
	}

	raw := make(map[string]*doctorRaw, len(snap.Doctors))
	names := make(map[string]string, len(snap.Doctors))
	for _, d := range snap.Doctors {
		raw[d.DoctorID] = &doctorRaw{}
		names[d.DoctorID] = d.Name
	}

	maxResponses := 0
	for _, row := range rows {
		if row.SubjectType != model.SubjectDoctor {
			continue
		}
		dr, ok := raw[row.SubjectID]
		if !ok {
			// Subject outside the registry; skip rather than score a
			// doctor we cannot name.
			continue
		}
		switch row.Metric {
		case model.MetricNPSPct:
			dr.nps = row.Value
			dr.responses = row.SampleSize
			if row.SampleSize > maxResponses {
				maxResponses = row.SampleSize
			}
		case model.MetricReadmission:
			dr.readm = row.Value
		case model.MetricAvgWait:
			dr.wait = row.Value
		case model.MetricFollowup:
			dr.followup = row.Value
		}
	}

	npsVals := make(map[string]*float64, len(raw))
	readmVals := make(map[string]*float64, len(raw))
	waitVals := make(map[string]*float64, len(raw))
	followVals := make(map[string]*float64, len(raw))
	for id, dr := range raw {
		npsVals[id] = dr.nps
		readmVals[id] = dr.readm
		waitVals[id] = dr.wait
		followVals[id] = dr.followup
	}

	norms := make(map[string]map[string]float64, 4)
	norms[model.MetricNPSPct] = indexNorms(normalize.Normalize(model.MetricNPSPct, npsVals, normalize.HigherIsBetter, normalize.NullAsZero))
	norms[model.MetricReadmission] = indexNorms(normalize.Normalize(model.MetricReadmission, readmVals, normalize.LowerIsBetter, normalize.NullAsZero))
	norms[model.MetricAvgWait] = indexNorms(normalize.Normalize(model.MetricAvgWait, waitVals, normalize.LowerIsBetter, normalize.NullAsWorst))
	norms[model.MetricFollowup] = indexNorms(normalize.Normalize(model.MetricFollowup, followVals, normalize.HigherIsBetter, normalize.NullAsZero))

	scores := make([]model.CompositeScore, 0, len(raw))
	for id, dr := range raw {
		in := scoring.Input{
			SubjectID:       id,
			SubjectName:     names[id],
			ResponsesCount:  dr.responses,
			NPSPct:          deref(dr.nps),
			ReadmissionPct:  deref(dr.readm),
			AvgWaitMinutes:  dr.wait,
			FollowupPct:     deref(dr.followup),
			NPSNorm:         norms[model.MetricNPSPct][id],
			ReadmissionNorm: norms[model.MetricReadmission][id],
			WaitNorm:        norms[model.MetricAvgWait][id],
			FollowupNorm:    norms[model.MetricFollowup][id],
		}
		scores = append(scores, s.scorer.Score(in, maxResponses, computedAt))
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Composite != scores[j].Composite {
			return scores[i].Composite > scores[j].Composite
		}
		return scores[i].SubjectID < scores[j].SubjectID
	})
	return scores
}

func indexNorms(ns []model.NormalizedScore) map[string]float64 {
	out := make(map[string]float64, len(ns))
	for _, n := range ns {
		out[n.SubjectID] = n.Normalized
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
