package cli

import "flag"

// ReconcileFlags are the flags for the one-shot reconcile command.
type ReconcileFlags struct {
	PaymentsPath string
	InvoicesPath string
	ConfigPath   string
	JSONOutput   bool
	Verbose      bool
}

// ParseReconcileFlags parses command line flags for the reconcile command.
func ParseReconcileFlags() *ReconcileFlags {
	flags := &ReconcileFlags{}
	flag.StringVar(&flags.PaymentsPath, "payments", "", "Path to the payment feed (JSON)")
	flag.StringVar(&flags.InvoicesPath, "invoices", "", "Path to the invoice feed (JSON)")
	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file (optional)")
	flag.BoolVar(&flags.JSONOutput, "json", false, "Emit the full result as JSON")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port       int
	ConfigPath string
	Verbose    bool
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags() *ServeFlags {
	flags := &ServeFlags{}
	flag.IntVar(&flags.Port, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file (optional)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}
