package reconcile

import (
	"math"
	"sort"
)

// fuzzyHit is one single-invoice match within tolerance, with its score
// breakdown.
type fuzzyHit struct {
	Candidate     Candidate
	AmountScore   float64
	TimingScore   float64
	Confidence    float64
	VarianceCents int64 // payment minus invoice, sign preserved
}

// timingScore is a step function of day-distance: same day is perfect,
// within a week is near-perfect, within a month is plausible, anything
// further barely counts.
func timingScore(dayDistance float64) float64 {
	switch {
	case dayDistance == 0:
		return 1.0
	case dayDistance <= 7:
		return 0.9
	case dayDistance <= 30:
		return 0.7
	default:
		return 0.3
	}
}

// findFuzzy returns single-invoice matches within the relative amount
// tolerance, scored by blending amount closeness with date proximity.
// Only hits at or above the LOW threshold are returned, best first.
func findFuzzy(p Payment, candidates []Candidate, cfg Config) []fuzzyHit {
	var hits []fuzzyHit

	for _, c := range candidates {
		if c.AmountCents <= 0 {
			continue
		}

		relDiff := math.Abs(float64(c.AmountCents-p.AmountCents)) / float64(c.AmountCents)
		if relDiff > cfg.FuzzyMatchTolerance {
			continue
		}

		amountScore := 1 - relDiff
		timing := timingScore(c.DayDistance)
		confidence := 0.7*amountScore + 0.3*timing

		if confidence < cfg.Thresholds.Low {
			continue
		}

		hits = append(hits, fuzzyHit{
			Candidate:     c,
			AmountScore:   amountScore,
			TimingScore:   timing,
			Confidence:    confidence,
			VarianceCents: p.AmountCents - c.AmountCents,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence > hits[j].Confidence
	})

	return hits
}
