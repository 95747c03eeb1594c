package cli

import (
	"fmt"

	"github.com/fieldbooks/cashrecon/internal/adapters/feed"
	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/config"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/logging"
)

// RunReconcile runs a one-shot reconciliation of two feed files and prints
// the result. It talks to no database; use the server for persisted runs.
func RunReconcile(cfg *config.Config, flags *ReconcileFlags) error {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "reconcile")

	paymentsPath := flags.PaymentsPath
	if paymentsPath == "" {
		paymentsPath = cfg.Feeds.PaymentsPath
	}
	invoicesPath := flags.InvoicesPath
	if invoicesPath == "" {
		invoicesPath = cfg.Feeds.InvoicesPath
	}
	if paymentsPath == "" || invoicesPath == "" {
		return fmt.Errorf("both -payments and -invoices feeds are required")
	}

	payments, err := feed.LoadPayments(paymentsPath)
	if err != nil {
		return fmt.Errorf("loading payment feed: %w", err)
	}
	invoices, skipped, err := feed.LoadInvoices(invoicesPath)
	if err != nil {
		return fmt.Errorf("loading invoice feed: %w", err)
	}
	if skipped > 0 {
		logger.Warn("skipped invoices with bad dates", "count", skipped)
	}

	logger.Debug("feeds loaded", "payments", len(payments), "invoices", len(invoices))

	engine := reconcile.NewEngine(cfg.EngineConfig())
	result := engine.Reconcile(payments, invoices)

	if flags.JSONOutput {
		return PrintResultJSON(result)
	}

	PrintHeader(paymentsPath, invoicesPath)
	PrintResult(result)
	return nil
}
