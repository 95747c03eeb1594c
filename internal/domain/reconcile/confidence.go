package reconcile

// Thresholds are the ordered confidence tiers used throughout matching.
// They are comparison thresholds only and are never combined with other
// units without explicit scaling.
type Thresholds struct {
	High         float64
	Medium       float64
	Low          float64
	ManualReview float64
}

// DefaultThresholds returns the canonical tier values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:         0.95,
		Medium:       0.75,
		Low:          0.50,
		ManualReview: 0.25,
	}
}

// Config holds the tunable knobs of the matching engine. Zero values are
// not usable; start from DefaultConfig.
type Config struct {
	// ConfidenceThreshold is the minimum fuzzy-match confidence required
	// to accept a single-invoice fuzzy match.
	ConfidenceThreshold float64

	// FuzzyMatchTolerance is the relative amount tolerance for fuzzy
	// matching and for the bundled search band.
	FuzzyMatchTolerance float64

	// MaxDateVarianceDays is the candidate filter date window.
	MaxDateVarianceDays int

	// MaxBundleCandidates caps how many invoices enter the subset-sum
	// search. This bounds the DP table by construction.
	MaxBundleCandidates int

	Thresholds Thresholds
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.75,
		FuzzyMatchTolerance: 0.03,
		MaxDateVarianceDays: 30,
		MaxBundleCandidates: 20,
		Thresholds:          DefaultThresholds(),
	}
}
