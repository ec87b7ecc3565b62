package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

func newBudgetCmd() *cobra.Command {
	var (
		duration    time.Duration
		checkpoints []string
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Walk checkpoints through a time budget on a virtual clock",
		Long: `Creates a time budget on a virtual clock and records the given
checkpoints at their offsets, printing the resulting ledger. A
checkpoint past the budget stops the walk with the full ledger and
the overage, exactly as a budgeted workload would fail in code.

Checkpoints are name:offset pairs, e.g. fetch:5s,parse:13s,render:26s.`,
		Example: `  tempo budget --duration 15s --checkpoints one:5s,two:13s,three:26s
  tempo budget --duration 1m --checkpoints load:10s,transform:45s --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(checkpoints) == 0 {
				return fmt.Errorf("--checkpoints is required")
			}
			marks, err := parseCheckpoints(checkpoints)
			if err != nil {
				return err
			}

			vc, release, err := clock.StartVirtual(time.Now().Truncate(time.Second))
			if err != nil {
				return err
			}
			defer release()

			b, err := clock.NewTimeBudget(vc, duration)
			if err != nil {
				return err
			}

			var exceeded *clock.TimeBudgetExceededError
			for _, m := range marks {
				m := m
				if err := vc.Schedule(m.offset, func(ctx context.Context, c clock.Clock) error {
					return b.RecordEntryAndCheck(m.name)
				}); err != nil {
					return err
				}
			}

			last := marks[len(marks)-1].offset
			if err := vc.AdvanceBy(context.Background(), last); err != nil {
				if !errors.As(err, &exceeded) {
					return err
				}
			}

			if outputJSON {
				out := map[string]interface{}{
					"entries":  b.Entries(),
					"exceeded": exceeded != nil,
				}
				if exceeded != nil {
					out["error"] = exceeded.Error()
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Printf("Budget: %s starting at %s\n\n", clock.FormatDuration(duration), b.StartTime().Format(time.RFC3339))
			for _, e := range b.Entries() {
				fmt.Printf("  %s\n", e)
			}
			if exceeded != nil {
				fmt.Println()
				fmt.Println(strings.Repeat("=", 50))
				fmt.Println(exceeded.Error())
				fmt.Println(strings.Repeat("=", 50))
				return fmt.Errorf("budget exceeded by %s", clock.FormatDuration(exceeded.Entries[len(exceeded.Entries)-1].Excess))
			}
			fmt.Printf("\nAll checkpoints inside the budget (%s remaining)\n", clock.FormatDuration(b.Remaining()))
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 15*time.Second, "budget duration")
	cmd.Flags().StringSliceVar(&checkpoints, "checkpoints", nil, "comma-separated name:offset checkpoints")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output the ledger as JSON")

	return cmd
}

type checkpoint struct {
	name   string
	offset time.Duration
}

func parseCheckpoints(specs []string) ([]checkpoint, error) {
	marks := make([]checkpoint, 0, len(specs))
	for _, spec := range specs {
		name, offset, ok := strings.Cut(spec, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid checkpoint %q, want name:offset", spec)
		}
		d, err := time.ParseDuration(offset)
		if err != nil {
			return nil, fmt.Errorf("invalid checkpoint offset in %q: %w", spec, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("checkpoint offset must not be negative in %q", spec)
		}
		marks = append(marks, checkpoint{name: name, offset: d})
	}
	return marks, nil
}
