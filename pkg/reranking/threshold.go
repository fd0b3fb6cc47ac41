package reranking

import (
	"math"
	"sort"
)

// Threshold decision branches, in evaluation order.
const (
	ReasonInsufficientScores     = "insufficient_scores"
	ReasonClearWinner            = "clear_winner"
	ReasonHighMean               = "high_mean"
	ReasonHighVariance           = "high_variance"
	ReasonLowScores              = "low_scores"
	ReasonDefault                = "default"
	ReasonFallbackBelowThreshold = "fallback_below_threshold"
)

// AdaptiveThreshold derives a cutoff from the score distribution. Scores are
// clamped to [0,1] first; std dev is the population form.
func AdaptiveThreshold(scores []float64, base float64) (float64, string) {
	if len(scores) < 2 {
		return base, ReasonInsufficientScores
	}

	clamped := make([]float64, len(scores))
	for i, s := range scores {
		clamped[i] = clamp01(s)
	}
	sorted := append([]float64(nil), clamped...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	mean := 0.0
	for _, s := range clamped {
		mean += s
	}
	mean /= float64(len(clamped))

	variance := 0.0
	for _, s := range clamped {
		variance += (s - mean) * (s - mean)
	}
	std := math.Sqrt(variance / float64(len(clamped)))

	switch {
	case sorted[0]-sorted[1] > 0.3:
		return sorted[0] - 0.01, ReasonClearWinner
	case mean > 0.5:
		return math.Max(mean-0.5*std, base), ReasonHighMean
	case std > 0.2:
		return math.Max(mean, base), ReasonHighVariance
	case sorted[0] < 0.3:
		return 0.5 * sorted[0], ReasonLowScores
	default:
		return math.Max(mean-std, base), ReasonDefault
	}
}

// selectCandidates sorts candidates by score descending and truncates to
// topK. With applyThreshold it also filters by the adaptive threshold and
// records the decision on the first surviving element.
func selectCandidates(candidates []Candidate, scores []float64, topK int, applyThreshold bool, base float64) []Candidate {
	scored := make([]Candidate, len(candidates))
	for i := range candidates {
		scored[i] = candidates[i]
		scored[i].Score = clamp01(scores[i])
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if !applyThreshold {
		if topK > 0 && len(scored) > topK {
			scored = scored[:topK]
		}
		return scored
	}

	threshold, reason := AdaptiveThreshold(scores, base)

	kept := make([]Candidate, 0, len(scored))
	for _, c := range scored {
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		kept = scored[:1]
		reason = ReasonFallbackBelowThreshold
	}
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}

	first := kept[0]
	meta := make(map[string]any, len(first.Metadata)+2)
	for k, v := range first.Metadata {
		meta[k] = v
	}
	meta["threshold_used"] = threshold
	meta["threshold_reason"] = reason
	kept[0].Metadata = meta

	return kept
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
