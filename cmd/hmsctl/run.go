package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Soamid/evogil-sub000/internal/logging"
	"github.com/Soamid/evogil-sub000/internal/metrics"
	"github.com/Soamid/evogil-sub000/internal/storage"
	"github.com/Soamid/evogil-sub000/pkg/hms"
)

type runFlags struct {
	configPath  string
	runID       string
	problem     string
	dimensions  int
	seed        int64
	metaepochs  int
	costBudget  float64
	maxLevel    int
	workers     int
	metricsAddr string
	out         string
	jsonOut     bool
}

func newRunCmd(store *storeFlags) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an optimization and persist its final result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, store, flags)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&flags.configPath, "config", "c", "", "config file (toml, yaml or json)")
	fs.StringVar(&flags.runID, "run-id", "", "run id (random when empty)")
	fs.StringVar(&flags.problem, "problem", "", "benchmark problem")
	fs.IntVar(&flags.dimensions, "dims", 0, "decision space dimensions")
	fs.Int64Var(&flags.seed, "seed", 0, "random seed")
	fs.IntVar(&flags.metaepochs, "metaepochs", 0, "number of rounds")
	fs.Float64Var(&flags.costBudget, "cost-budget", 0, "stop once the weighted cost reaches this value")
	fs.IntVar(&flags.maxLevel, "max-level", 0, "deepest tree level; must match the configured levels")
	fs.IntVar(&flags.workers, "workers", 0, "parallel evaluations per deme")
	fs.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	fs.StringVar(&flags.out, "out", "", "write the final run record to this file")
	fs.BoolVar(&flags.jsonOut, "json", false, "print the final run record as JSON")
	return cmd
}

func runRun(cmd *cobra.Command, store *storeFlags, flags runFlags) error {
	cfg, err := hms.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	applyRunOverrides(cmd, &cfg, flags)

	if flags.metricsAddr != "" {
		shutdown, err := serveMetrics(flags.metricsAddr)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	client, err := openClient(cmd, store)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	out := cmd.OutOrStdout()
	record, err := client.Run(cmd.Context(), hms.RunRequest{
		Config: cfg,
		OnRound: func(round hms.RoundSummary) {
			if flags.jsonOut {
				return
			}
			fmt.Fprintf(out, "round=%d cost=%s total_cost=%s hypervolume=%.6f nodes=%d alive=%d ripe=%d\n",
				round.Round,
				humanize.Commaf(round.Cost),
				humanize.Commaf(round.TotalCost),
				round.Hypervolume,
				round.Nodes,
				round.AliveNodes,
				round.RipeNodes,
			)
		},
	})
	if err != nil {
		return err
	}

	if flags.out != "" {
		payload, err := storage.EncodeRun(record)
		if err != nil {
			return err
		}
		if err := os.WriteFile(flags.out, payload, 0o644); err != nil {
			return err
		}
	}
	if flags.jsonOut {
		return writeJSON(out, record)
	}
	fmt.Fprintf(out, "run_id=%s problem=%s rounds=%d total_cost=%s hypervolume=%.6f nodes=%d population=%d\n",
		record.ID,
		record.Problem,
		len(record.Rounds),
		humanize.Commaf(record.TotalCost),
		record.Hypervolume,
		len(record.Nodes),
		len(record.Population),
	)
	return nil
}

// applyRunOverrides copies only the flags the user actually set.
func applyRunOverrides(cmd *cobra.Command, cfg *hms.Config, flags runFlags) {
	fs := cmd.Flags()
	if fs.Changed("run-id") {
		cfg.RunID = flags.runID
	}
	if fs.Changed("problem") {
		cfg.Problem = flags.problem
	}
	if fs.Changed("dims") {
		cfg.Dimensions = flags.dimensions
	}
	if fs.Changed("seed") {
		cfg.Seed = flags.seed
	}
	if fs.Changed("metaepochs") {
		cfg.Metaepochs = flags.metaepochs
	}
	if fs.Changed("cost-budget") {
		cfg.CostBudget = flags.costBudget
	}
	if fs.Changed("max-level") {
		cfg.MaxLevel = flags.maxLevel
	}
	if fs.Changed("workers") {
		cfg.Workers = flags.workers
	}
}

func serveMetrics(addr string) (func(), error) {
	metrics.RegisterMetrics()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log := logging.Component("hmsctl")
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", listener.Addr().String()).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
