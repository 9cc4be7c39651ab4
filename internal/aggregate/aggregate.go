// Package aggregate normalizes raw score payloads into chart-ready series.
package aggregate

import (
	"math"
	"sort"

	"gradeboard/internal/model"
)

// Aggregate derives the three plot series from one score payload.
// Malformed fields degrade to empty series rather than erroring: the
// server response is untrusted and a partial shape must still render
// as "no data". When the server supplies only a scalar class average,
// the comparison series is a constant fill across all labels; that is
// an approximation, not a per-item class distribution.
func Aggregate(raw model.ScoreResult) model.SeriesBundle {
	bundle := model.SeriesBundle{
		Labels:        append([]string(nil), raw.Labels...),
		StudentScores: append([]float64(nil), raw.Scores...),
	}
	switch {
	case raw.Statistics != nil && raw.Statistics.Average != nil:
		avg := *raw.Statistics.Average
		series := make([]float64, len(bundle.Labels))
		for i := range series {
			series[i] = avg
		}
		bundle.ClassAvgSeries = series
	case len(raw.ClassAvg) > 0:
		bundle.ClassAvgSeries = append([]float64(nil), raw.ClassAvg...)
	}
	return bundle
}

// Summary computes the class statistics locally for payloads that omit
// them. Percentiles use linear interpolation between closest ranks.
func Summary(scores []float64) model.Statistics {
	if len(scores) == 0 {
		return model.Statistics{}
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg := sum / float64(len(sorted))

	return model.Statistics{
		Average: &avg,
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		P25:     percentile(sorted, 0.25),
		P50:     percentile(sorted, 0.50),
		P75:     percentile(sorted, 0.75),
	}
}

// percentile expects sorted input.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	idx := int(math.Floor(pos))
	if idx >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(idx)
	return sorted[idx]*(1-frac) + sorted[idx+1]*frac
}
