package reconcile

import (
	"sort"
)

const (
	// feeSlackCents is how far a variance may sit from a plausible fee
	// and still count as explained by that fee.
	feeSlackCents = 50

	// Typical card-processing fee formula, used when the actual fee is
	// unknown: 2.9% of the charged total plus 30 cents.
	estFeeRate       = 0.029
	estFeeFixedCents = 30
)

// bundleHit is a combination of invoices explaining one payment.
type bundleHit struct {
	Combo             []Candidate
	TotalCents        int64
	VarianceCents     int64 // payment minus combination total, sign preserved
	Confidence        float64
	EstimatedFeeCents int64 // 0 when the actual fee was known
	Tiebreak          TiebreakScore
}

// dpEntry records one achievable sum: which candidates produced it and
// how many. Fewer items wins when two combinations reach the same sum,
// so the search itself prefers simpler explanations.
type dpEntry struct {
	combo []int // indices into the sorted candidate slice
	count int
}

// findBundle searches for the subset of candidate invoices whose total
// best approximates the payment's gross amount. The processor fee is
// subtracted from gross before the business is credited, so the fee
// explains the variance, never the match itself: variance close to a
// plausible fee keeps confidence high, unexplained variance drags it
// down.
//
// The search is a bounded subset-sum DP in integer cents. The table is
// capped by construction: at most MaxBundleCandidates items enter, and
// sums beyond the tolerance band are never recorded.
func findBundle(p Payment, candidates []Candidate, cfg Config) *bundleHit {
	target := p.AmountCents
	if target <= 0 || len(candidates) == 0 {
		return nil
	}

	// Zero and negative amounts cannot contribute to a sum.
	usable := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.AmountCents > 0 {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	// Descending amount order tends to reach minimal-cardinality
	// combinations first. Ordering heuristic only, not a correctness
	// requirement.
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].AmountCents > usable[j].AmountCents
	})

	band := int64(float64(target) * cfg.FuzzyMatchTolerance)
	lower := target - band
	upper := target + band

	table := map[int64]dpEntry{0: {}}

	for idx, c := range usable {
		// Snapshot current sums so a candidate is used at most once,
		// sorted so that equal-count ties resolve the same way every
		// run.
		sums := make([]int64, 0, len(table))
		for s := range table {
			sums = append(sums, s)
		}
		sort.Slice(sums, func(i, j int) bool { return sums[i] < sums[j] })

		for _, s := range sums {
			next := s + c.AmountCents
			if next > upper {
				continue
			}
			prev := table[s]
			if existing, ok := table[next]; ok && existing.count <= prev.count+1 {
				continue
			}
			combo := make([]int, len(prev.combo)+1)
			copy(combo, prev.combo)
			combo[len(prev.combo)] = idx
			table[next] = dpEntry{combo: combo, count: prev.count + 1}
		}
	}

	// Pick the achievable sum closest to target, scanning only the band
	// at or below it: a combination may undershoot the gross payment by
	// up to the tolerance (the fee explains the shortfall) but never
	// exceed it. Sums above target stay in the table as intermediate
	// states only.
	var (
		found     bool
		bestSum   int64
		bestDelta int64
	)
	for s, e := range table {
		if e.count == 0 || s < lower || s > target {
			continue
		}
		delta := target - s
		if !found || delta < bestDelta {
			found, bestSum, bestDelta = true, s, delta
		}
	}
	if !found {
		return nil
	}

	entry := table[bestSum]
	combo := make([]Candidate, len(entry.combo))
	var totalDays float64
	for i, idx := range entry.combo {
		combo[i] = usable[idx]
		totalDays += usable[idx].DayDistance
	}

	hit := &bundleHit{
		Combo:         combo,
		TotalCents:    bestSum,
		VarianceCents: target - bestSum,
		Tiebreak: TiebreakScore{
			ComboSize:        len(combo),
			AvgDayDistance:   totalDays / float64(len(combo)),
			AbsVarianceCents: bestDelta,
		},
	}

	hit.Confidence, hit.EstimatedFeeCents = scoreBundle(p, bestSum, bestDelta, cfg.Thresholds)

	// Bundled matches below medium confidence are not worth surfacing
	// even as suggestions.
	if hit.Confidence < cfg.Thresholds.Medium {
		return nil
	}

	return hit
}

// scoreBundle computes fee-aware confidence for a combination. Variance
// is expected and does not itself lower confidence; only variance that
// no plausible fee explains does.
func scoreBundle(p Payment, comboTotal, absVariance int64, th Thresholds) (confidence float64, estFee int64) {
	if absVariance <= exactToleranceCents {
		return th.High, 0
	}

	if p.FeeCents > 0 {
		feeDelta := absVariance - p.FeeCents
		if feeDelta < 0 {
			feeDelta = -feeDelta
		}
		if feeDelta <= feeSlackCents {
			return th.High, 0
		}
		// Degrade proportionally to how far the variance sits from the
		// known fee, floored at LOW.
		confidence = th.High - float64(feeDelta)/float64(p.FeeCents)*(th.High-th.Low)
		if confidence < th.Low {
			confidence = th.Low
		}
		return confidence, 0
	}

	// Fee unknown: compare against the typical processing fee for this
	// combination total.
	estFee = int64(estFeeRate*float64(comboTotal)) + estFeeFixedCents
	feeDelta := absVariance - estFee
	if feeDelta < 0 {
		feeDelta = -feeDelta
	}

	switch {
	case feeDelta <= feeSlackCents:
		return th.High, estFee
	case feeDelta <= estFee:
		// Fee-sized disagreement: degrade, but never below MEDIUM since
		// the estimate itself is a guess.
		confidence = th.High - float64(feeDelta)/float64(estFee)*(th.High-th.Medium)
		if confidence < th.Medium {
			confidence = th.Medium
		}
		return confidence, estFee
	case float64(absVariance) <= 0.05*float64(p.AmountCents):
		return th.Medium, estFee
	default:
		return th.Low, estFee
	}
}
