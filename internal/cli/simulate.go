package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Tempo/internal/scenario"
	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

func newSimulateCmd() *cobra.Command {
	var (
		file        string
		threshold   float64
		minSamples  int64
		window      time.Duration
		cooldown    time.Duration
		probes      int
		count       int
		keys        int
		duration    time.Duration
		pattern     string
		failureRate float64
		seed        int64
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted outage scenario through a circuit breaker",
		Long: `Plays a scripted call timeline through a circuit breaker on a virtual
clock. The whole scenario is scheduled up front and drained in one
pass, so hours of traffic run in milliseconds while trips, cooldowns,
and recoveries happen exactly where their timestamps say.

Without --file a synthetic scenario is generated; use the generation
flags to shape it.`,
		Example: `  tempo simulate --file outage.json
  tempo simulate --pattern outage --count 200 --duration 10m
  tempo simulate --threshold 0.25 --cooldown 1m --pattern burst --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				script *scenario.Script
				err    error
			)
			if file != "" {
				script, err = scenario.LoadFile(file)
			} else {
				script, err = scenario.Generate(scenario.Options{
					Count:       count,
					Keys:        keys,
					Duration:    duration,
					Pattern:     pattern,
					FailureRate: failureRate,
					Seed:        seed,
				})
			}
			if err != nil {
				return err
			}

			vc := clock.NewVirtualClock(time.Now().Truncate(time.Second))
			br, err := breaker.New(breaker.Config{
				FailureThreshold: threshold,
				MinSamples:       minSamples,
				Window:           window,
				Cooldown:         cooldown,
				HalfOpenProbes:   probes,
			}, vc, nil)
			if err != nil {
				return err
			}

			if !outputJSON {
				fmt.Printf("Simulating %d calls over %s of virtual time...\n\n", len(script.Events), script.End())
			}

			runner := scenario.NewRunner(br, vc)
			var results []scenario.Result
			summary, err := runner.Run(context.Background(), script, func(res scenario.Result) {
				if outputJSON {
					results = append(results, res)
					return
				}
				status := "ALLOW"
				if !res.Decision.Allowed {
					status = "REJECT"
				}
				outcome := "ok"
				if res.Event.Fail {
					outcome = "fail"
				}
				fmt.Printf("  [%s] +%-8s key=%s outcome=%s state=%s\n",
					status, res.Event.At, res.Event.Key, outcome, res.Decision.StateName)
			})
			if err != nil {
				return err
			}

			if outputJSON {
				out := map[string]interface{}{
					"results": results,
					"summary": summary,
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Println()
			fmt.Println("--- Simulation Summary ---")
			fmt.Printf("  Total calls:   %d\n", summary.Total)
			fmt.Printf("  Allowed:       %d\n", summary.Allowed)
			fmt.Printf("  Rejected:      %d\n", summary.Rejected)
			fmt.Printf("  Failures:      %d\n", summary.Failures)
			fmt.Printf("  Virtual time:  %s\n", summary.Duration)
			fmt.Printf("  Wall time:     %s\n", summary.WallDuration.Round(time.Millisecond))

			if len(summary.PerKey) > 1 {
				fmt.Println()
				fmt.Println("  Per key:")
				for key, ks := range summary.PerKey {
					fmt.Printf("    %s: %d allowed, %d rejected, %d failures\n", key, ks.Allowed, ks.Rejected, ks.Failures)
				}
			}

			if summary.Rejected > 0 {
				fmt.Println()
				fmt.Println(strings.Repeat("=", 50))
				fmt.Printf("The breaker shed %d calls (%.1f%%) during the outage\n",
					summary.Rejected, float64(summary.Rejected)/float64(summary.Total)*100)
				fmt.Println(strings.Repeat("=", 50))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to scenario JSON file (omit to generate one)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "failure rate that trips the breaker (0, 1]")
	cmd.Flags().Int64Var(&minSamples, "min-samples", 5, "minimum calls in the window before tripping")
	cmd.Flags().DurationVar(&window, "window", time.Minute, "failure rate observation window")
	cmd.Flags().DurationVar(&cooldown, "cooldown", 30*time.Second, "how long an open breaker waits before probing")
	cmd.Flags().IntVar(&probes, "probes", 1, "consecutive probe successes needed to close")
	cmd.Flags().IntVar(&count, "count", 100, "number of calls to generate")
	cmd.Flags().IntVar(&keys, "keys", 3, "number of distinct keys to generate")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Minute, "virtual time span for generated calls")
	cmd.Flags().StringVar(&pattern, "pattern", "outage", "scenario pattern (steady, burst, outage)")
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0.1, "base failure rate for generated calls")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}
