package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Tempo/internal/config"
	"github.com/SmitUplenchwar2687/Tempo/internal/journal"
	"github.com/SmitUplenchwar2687/Tempo/internal/server"
	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
	"github.com/SmitUplenchwar2687/Tempo/pkg/storage"
)

func newServeCmd() *cobra.Command {
	var (
		addr        string
		configFile  string
		threshold   float64
		minSamples  int64
		window      time.Duration
		cooldown    time.Duration
		probes      int
		nodeID      string
		journalFile string
		storageOpts storageOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Tempo HTTP server with a circuit breaker",
		Long: `Starts an HTTP server exposing circuit breaker decisions and state.

Endpoints:
  GET  /                  Server info and current time
  GET  /health            Health check
  GET  /api/check/:key    Ask whether a call to the key may proceed
  POST /api/report/:key   Record a call outcome (?fail=true for failures)
  GET  /api/state         Breaker state for every key
  GET  /api/trips/:key    Shared trip count for a key
  GET  /dashboard         Live visual dashboard
  WS   /ws                WebSocket for transition and budget events`,
		Example: `  tempo serve
  tempo serve --addr :9090 --threshold 0.25 --window 30s --cooldown 1m
  tempo serve --storage redis --redis-host localhost --redis-port 6379
  tempo serve --config tempo.json --journal events.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configFile != "" {
				loaded, err := config.LoadFile(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Breaker.FailureThreshold = threshold
			}
			if cmd.Flags().Changed("min-samples") {
				cfg.Breaker.MinSamples = minSamples
			}
			if cmd.Flags().Changed("window") {
				cfg.Breaker.Window = window
			}
			if cmd.Flags().Changed("cooldown") {
				cfg.Breaker.Cooldown = cooldown
			}
			if cmd.Flags().Changed("probes") {
				cfg.Breaker.HalfOpenProbes = probes
			}
			if cmd.Flags().Changed("node-id") {
				cfg.Breaker.NodeID = nodeID
			}
			storageOpts.applyConfigIfUnset(cmd, &cfg.Storage)
			if err := storageOpts.normalize(); err != nil {
				return err
			}
			cfg.Storage = storageOpts.toConfig()

			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := cfg.NewStorage()
			if err != nil {
				return err
			}
			if closer, ok := store.(*storage.RedisStorage); ok {
				defer closer.Close()
			}

			clk := clock.NewRealClock()
			br, err := breaker.New(cfg.Breaker, clk, store)
			if err != nil {
				return err
			}

			jrnl := journal.New(nil)
			detach := jrnl.Attach(clk, br)
			defer detach()

			srv := server.New(cfg.Server.Addr, br, clk, jrnl)

			log.Printf("Dashboard: http://localhost%s/dashboard", cfg.Server.Addr)
			log.Printf("API:       http://localhost%s/api/check/{key}", cfg.Server.Addr)

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Println("shutting down...")
				if journalFile != "" {
					log.Printf("exporting %d events to %s", jrnl.Len(), journalFile)
					if err := jrnl.ExportFile(journalFile); err != nil {
						log.Printf("error exporting journal: %v", err)
					}
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&configFile, "config", "", "path to JSON config file")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "failure rate that trips the breaker (0, 1]")
	cmd.Flags().Int64Var(&minSamples, "min-samples", 5, "minimum calls in the window before tripping")
	cmd.Flags().DurationVar(&window, "window", time.Minute, "failure rate observation window")
	cmd.Flags().DurationVar(&cooldown, "cooldown", 30*time.Second, "how long an open breaker waits before probing")
	cmd.Flags().IntVar(&probes, "probes", 1, "consecutive probe successes needed to close")
	cmd.Flags().StringVar(&nodeID, "node-id", "", "replica name in shared trip counters")
	cmd.Flags().StringVar(&journalFile, "journal", "", "export journal events to JSON file on shutdown")
	storageOpts.addFlags(cmd)

	return cmd
}
