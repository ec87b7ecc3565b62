package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Tempo/internal/config"
	"github.com/SmitUplenchwar2687/Tempo/internal/scenario"
)

func newGenerateCmd() *cobra.Command {
	var (
		output      string
		count       int
		keys        int
		duration    time.Duration
		pattern     string
		failureRate float64
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample scenario files and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate scenario" to create a sample scenario JSON file.
Use "generate config" to create an example config JSON file.`,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario",
		Short: "Generate a sample scenario JSON file",
		Long: `Creates a scripted call timeline with configurable parameters.

Patterns:
  steady    Evenly distributed calls with a uniform failure rate
  burst     Concentrated bursts with quiet periods
  outage    Every call in the middle third fails`,
		Example: `  tempo generate scenario --output outage.json --count 100 --keys 5
  tempo generate scenario --output burst.json --count 200 --pattern burst --duration 10m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "scenario.json"
			}

			script, err := scenario.Generate(scenario.Options{
				Count:       count,
				Keys:        keys,
				Duration:    duration,
				Pattern:     pattern,
				FailureRate: failureRate,
				Seed:        seed,
			})
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating file: %w", err)
			}
			defer f.Close()

			if err := script.WriteJSON(f); err != nil {
				return fmt.Errorf("writing scenario: %w", err)
			}

			fmt.Printf("Generated %d calls to %s\n", len(script.Events), output)
			fmt.Printf("  Keys:     %d\n", keys)
			fmt.Printf("  Duration: %s\n", duration)
			fmt.Printf("  Pattern:  %s\n", pattern)
			return nil
		},
	}

	scenarioCmd.Flags().StringVar(&output, "output", "scenario.json", "output file path")
	scenarioCmd.Flags().IntVar(&count, "count", 100, "number of calls to generate")
	scenarioCmd.Flags().IntVar(&keys, "keys", 3, "number of distinct keys")
	scenarioCmd.Flags().DurationVar(&duration, "duration", 5*time.Minute, "virtual time span for generated calls")
	scenarioCmd.Flags().StringVar(&pattern, "pattern", "outage", "scenario pattern (steady, burst, outage)")
	scenarioCmd.Flags().Float64Var(&failureRate, "failure-rate", 0.1, "base failure rate for generated calls")
	scenarioCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time-based)")

	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example config JSON file",
		Example: `  tempo generate config --output tempo.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "tempo.json"
			}
			if err := config.WriteExample(output); err != nil {
				return err
			}
			fmt.Printf("Generated example config at %s\n", output)
			return nil
		},
	}

	configCmd.Flags().StringVar(&output, "output", "tempo.json", "output file path")

	cmd.AddCommand(scenarioCmd, configCmd)
	return cmd
}
