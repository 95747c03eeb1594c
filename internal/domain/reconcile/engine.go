// Package reconcile implements the cash reconciliation core: matching
// incoming processor payments to one or more outstanding invoices under
// three tiers of confidence (exact, fuzzy, bundled), with a bounded
// subset-sum search and fee-aware scoring behind the bundled tier.
//
// The core is single-threaded, synchronous and stateless between calls.
// It performs no I/O and never fails for well-formed input: every payment
// resolves to a match or to the unmatched terminal state, which is the
// designed escape hatch for ambiguous cases, not an error.
//
// Input is assumed validated and well-typed; the feed boundary rejects
// malformed dates and amounts before they reach this package.
package reconcile

import "math"

// reviewVariancePercent flags matched payments whose variance still
// deserves a human look.
const reviewVariancePercent = 5.0

// highConfidenceFloor is the summary's bar for counting a match as high
// confidence. Deliberately a little below the HIGH tier so that
// near-certain fuzzy matches count toward the match rate.
const highConfidenceFloor = 0.90

// Engine runs the matchers in priority order per payment. The first
// successful tier wins: an exact hit is never reconsidered in favor of a
// fuzzy or bundled one, because exact matches are maximally trustworthy.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Reconcile matches every payment against the open invoices and returns
// one PaymentMatch per payment, in input order, plus the rollup summary.
func (e *Engine) Reconcile(payments []Payment, invoices []Invoice) *Result {
	matches := make([]PaymentMatch, len(payments))
	for i, p := range payments {
		matches[i] = e.MatchPayment(p, invoices)
	}
	return &Result{
		Matches: matches,
		Summary: Summarize(matches),
	}
}

// MatchPayment resolves a single payment: exact, then fuzzy, then
// bundled, then unmatched. Each payment's matching is independent, so
// callers may run this concurrently across payments as long as they
// merge results back in input order.
func (e *Engine) MatchPayment(p Payment, invoices []Invoice) PaymentMatch {
	candidates := FilterCandidates(p, invoices, e.cfg)

	if c := findExact(p, candidates); c != nil {
		return e.exactMatch(p, c)
	}

	if hits := findFuzzy(p, candidates, e.cfg); len(hits) > 0 {
		best := hits[0]
		if best.Confidence >= e.cfg.ConfidenceThreshold {
			return e.fuzzyMatch(p, best)
		}
	}

	if hit := findBundle(p, candidates, e.cfg); hit != nil {
		return e.bundledMatch(p, hit)
	}

	return e.unmatched(p)
}

func (e *Engine) exactMatch(p Payment, c *Candidate) PaymentMatch {
	variance := p.AmountCents - c.AmountCents
	pct := variancePercent(variance, c.AmountCents)

	return PaymentMatch{
		PaymentID:           p.ID,
		InvoiceIDs:          []string{c.Invoice.ID},
		JobIDs:              []string{c.Invoice.JobID},
		Confidence:          e.cfg.Thresholds.High,
		MatchType:           MatchExact,
		VarianceCents:       variance,
		VariancePercent:     pct,
		RequiresHumanReview: e.needsReview(MatchExact, e.cfg.Thresholds.High, pct),
		SuggestedAction:     ActionAutoMatch,
		Rationale: Rationale{
			Reason:        "invoice amount equals payment to the cent",
			TimingScore:   timingScore(c.DayDistance),
			VarianceCents: variance,
		},
	}
}

func (e *Engine) fuzzyMatch(p Payment, hit fuzzyHit) PaymentMatch {
	pct := variancePercent(hit.VarianceCents, hit.Candidate.AmountCents)

	action := ActionAutoMatch
	if hit.Confidence < e.cfg.Thresholds.High || math.Abs(pct) > reviewVariancePercent {
		action = ActionReviewVariance
	}

	return PaymentMatch{
		PaymentID:           p.ID,
		InvoiceIDs:          []string{hit.Candidate.Invoice.ID},
		JobIDs:              []string{hit.Candidate.Invoice.JobID},
		Confidence:          hit.Confidence,
		MatchType:           MatchFuzzy,
		VarianceCents:       hit.VarianceCents,
		VariancePercent:     pct,
		RequiresHumanReview: e.needsReview(MatchFuzzy, hit.Confidence, pct),
		SuggestedAction:     action,
		Rationale: Rationale{
			Reason:        "single invoice within amount tolerance",
			AmountScore:   hit.AmountScore,
			TimingScore:   hit.TimingScore,
			VarianceCents: hit.VarianceCents,
			KnownFeeCents: p.FeeCents,
		},
	}
}

func (e *Engine) bundledMatch(p Payment, hit *bundleHit) PaymentMatch {
	invoiceIDs := make([]string, len(hit.Combo))
	jobIDs := make([]string, len(hit.Combo))
	for i, c := range hit.Combo {
		invoiceIDs[i] = c.Invoice.ID
		jobIDs[i] = c.Invoice.JobID
	}

	pct := variancePercent(hit.VarianceCents, hit.TotalCents)

	action := ActionReviewBundled
	if hit.Confidence >= e.cfg.Thresholds.High {
		action = ActionAutoMatch
	}

	tiebreak := hit.Tiebreak
	return PaymentMatch{
		PaymentID:           p.ID,
		InvoiceIDs:          invoiceIDs,
		JobIDs:              jobIDs,
		Confidence:          hit.Confidence,
		MatchType:           MatchBundled,
		VarianceCents:       hit.VarianceCents,
		VariancePercent:     pct,
		RequiresHumanReview: e.needsReview(MatchBundled, hit.Confidence, pct),
		SuggestedAction:     action,
		Rationale: Rationale{
			Reason:            "invoice combination explains payment net of fees",
			VarianceCents:     hit.VarianceCents,
			KnownFeeCents:     p.FeeCents,
			EstimatedFeeCents: hit.EstimatedFeeCents,
			Tiebreak:          &tiebreak,
		},
	}
}

func (e *Engine) unmatched(p Payment) PaymentMatch {
	return PaymentMatch{
		PaymentID:           p.ID,
		InvoiceIDs:          []string{},
		JobIDs:              []string{},
		Confidence:          e.cfg.Thresholds.ManualReview,
		MatchType:           MatchUnmatched,
		VarianceCents:       p.AmountCents,
		VariancePercent:     100,
		RequiresHumanReview: true,
		SuggestedAction:     ActionManualInvestigation,
		Rationale: Rationale{
			Reason:        "no invoice or combination explains this payment",
			VarianceCents: p.AmountCents,
			KnownFeeCents: p.FeeCents,
		},
	}
}

// needsReview derives the human-review flag. It is never independently
// settable: unmatched payments, sub-medium confidence, and out-of-bounds
// variance all force a review.
func (e *Engine) needsReview(mt MatchType, confidence, variancePct float64) bool {
	if mt == MatchUnmatched {
		return true
	}
	if confidence < e.cfg.Thresholds.Medium {
		return true
	}
	return math.Abs(variancePct) > reviewVariancePercent
}

// Summarize computes the rollup for a finished run.
func Summarize(matches []PaymentMatch) Summary {
	s := Summary{TotalPayments: len(matches)}
	for _, m := range matches {
		if m.Confidence >= highConfidenceFloor {
			s.HighConfidenceMatches++
		}
		if m.RequiresHumanReview {
			s.RequiresReview++
		}
	}
	if s.TotalPayments > 0 {
		s.MatchRatePercent = float64(s.HighConfidenceMatches) / float64(s.TotalPayments) * 100
	}
	return s
}

// variancePercent is the signed variance as a percentage of the matched
// invoice total.
func variancePercent(varianceCents, totalCents int64) float64 {
	if totalCents == 0 {
		return 0
	}
	return float64(varianceCents) / float64(totalCents) * 100
}
