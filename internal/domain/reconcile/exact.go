package reconcile

// exactToleranceCents is how far an "exact" amount may drift: one cent,
// covering processors that round the final cent differently.
const exactToleranceCents = 1

// findExact returns the single candidate whose amount equals the payment
// to the cent, or nil. Candidates are already inside the timing window,
// so amount equality is the only test left. Iteration follows the
// filtered (date-proximity) order, which makes the result deterministic
// when several invoices carry the identical amount.
func findExact(p Payment, candidates []Candidate) *Candidate {
	for i := range candidates {
		diff := p.AmountCents - candidates[i].AmountCents
		if diff < 0 {
			diff = -diff
		}
		if diff <= exactToleranceCents {
			return &candidates[i]
		}
	}
	return nil
}
