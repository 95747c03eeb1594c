package reconcile

import (
	"math"
	"sort"
)

// FilterCandidates narrows the open-invoice universe to a small,
// temporally plausible set for one payment, before any combinatorial
// work. The candidate cap bounds the subset-sum search that follows;
// a valid combination using a low-relevance invoice past the cap is
// missed and resolves to unmatched.
//
// Invoices without a usable date are skipped rather than failing the run.
func FilterCandidates(p Payment, invoices []Invoice, cfg Config) []Candidate {
	window := float64(cfg.MaxDateVarianceDays)

	candidates := make([]Candidate, 0, len(invoices))
	for _, inv := range invoices {
		date, ok := inv.MatchDate()
		if !ok {
			continue
		}

		dayDist := math.Abs(date.Sub(p.CreatedAt).Hours() / 24)
		if dayDist > window {
			continue
		}

		amountCents := inv.AmountCents()

		// An invoice larger than the payment beyond tolerance cannot be
		// part of a sum that equals the payment.
		if amountCents-p.AmountCents > int64(float64(amountCents)*cfg.FuzzyMatchTolerance) {
			continue
		}

		candidates = append(candidates, Candidate{
			Invoice:     inv,
			AmountCents: amountCents,
			DayDistance: dayDist,
		})
	}

	// Soft customer narrowing: only applies when at least one candidate
	// actually shares the payment's customer hint.
	if p.CustomerHint != "" {
		sameCustomer := candidates[:0:0]
		for _, c := range candidates {
			if c.Invoice.Customer == p.CustomerHint {
				sameCustomer = append(sameCustomer, c)
			}
		}
		if len(sameCustomer) > 0 {
			candidates = sameCustomer
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DayDistance < candidates[j].DayDistance
	})

	if len(candidates) > cfg.MaxBundleCandidates {
		candidates = candidates[:cfg.MaxBundleCandidates]
	}

	return candidates
}
