package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
)

// PrintHeader prints the application header.
func PrintHeader(paymentsPath, invoicesPath string) {
	fmt.Printf("cashrecon: %s vs %s\n\n", paymentsPath, invoicesPath)
}

// PrintResult prints a human-readable reconciliation result.
func PrintResult(result *reconcile.Result) {
	for _, match := range result.Matches {
		flag := " "
		if match.RequiresHumanReview {
			flag = "!"
		}
		invoices := strings.Join(match.InvoiceIDs, ",")
		if invoices == "" {
			invoices = "-"
		}
		fmt.Printf("%s %-12s %-9s conf=%.2f variance=%+d (%.2f%%) invoices=%s action=%s\n",
			flag, match.PaymentID, match.MatchType, match.Confidence,
			match.VarianceCents, match.VariancePercent, invoices, match.SuggestedAction)
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Summary: Payments=%d HighConfidence=%d NeedsReview=%d MatchRate=%.1f%%\n",
		result.Summary.TotalPayments,
		result.Summary.HighConfidenceMatches,
		result.Summary.RequiresReview,
		result.Summary.MatchRatePercent)
}

// PrintResultJSON writes the full result as JSON to stdout.
func PrintResultJSON(result *reconcile.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
