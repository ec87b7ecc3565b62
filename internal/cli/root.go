package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root tempo command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tempo",
		Short: "Time-travel testing for circuit breakers",
		Long: `Tempo lets you test circuit breaker behavior without waiting for real
time to pass. Fast-forward time, simulate outages, enforce time
budgets, and watch breaker transitions live.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newSimulateCmd(),
		newBudgetCmd(),
		newGenerateCmd(),
	)

	return root
}
