package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Soamid/evogil-sub000/pkg/hms"
)

func newRunsCmd(store *storeFlags) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			client, err := openClient(cmd, store)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(cmd.Context(), hms.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(out, "run_id=%s created_at=%s problem=%s rounds=%d total_cost=%s hypervolume=%.6f nodes=%d\n",
					run.ID,
					run.CreatedAtUTC,
					run.Problem,
					run.Rounds,
					humanize.Commaf(run.TotalCost),
					run.Hypervolume,
					run.Nodes,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")
	return cmd
}

func newShowCmd(store *storeFlags) *cobra.Command {
	var runID, file string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the rounds and final tree of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := loadRecord(cmd, store, runID, file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, record)
			}
			fmt.Fprintf(out, "run_id=%s problem=%s seed=%d created_at=%s total_cost=%s hypervolume=%.6f\n",
				record.ID, record.Problem, record.Seed, record.CreatedAtUTC,
				humanize.Commaf(record.TotalCost), record.Hypervolume)
			for _, round := range record.Rounds {
				fmt.Fprintf(out, "round=%d cost=%s hypervolume=%.6f nodes=%d alive=%d ripe=%d\n",
					round.Round, humanize.Commaf(round.Cost), round.Hypervolume,
					round.Nodes, round.AliveNodes, round.RipeNodes)
			}
			for _, node := range record.Nodes {
				fmt.Fprintf(out, "%snode=%d level=%d state=%s population=%d cost=%s sprouts=%d\n",
					strings.Repeat("  ", node.Level), node.ID, node.Level, nodeState(node),
					node.PopulationLen, humanize.Comma(int64(node.Cost)), node.Sprouts)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "id", "", "run id")
	cmd.Flags().StringVar(&file, "file", "", "read the run record from a file written by run --out")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the record as JSON")
	return cmd
}

func newPopulationCmd(store *storeFlags) *cobra.Command {
	var runID, file string
	cmd := &cobra.Command{
		Use:   "population",
		Short: "Print the finalized population of a run, one individual per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := loadRecord(cmd, store, runID, file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ind := range record.Population {
				fmt.Fprintf(out, "%s | %s\n", formatVector(ind.Objectives), formatVector(ind.X))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "id", "", "run id")
	cmd.Flags().StringVar(&file, "file", "", "read the run record from a file written by run --out")
	return cmd
}

func newProblemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List the benchmark problems",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range hms.Problems() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func nodeState(node hms.NodeStatus) string {
	switch {
	case node.Alive:
		return "alive"
	case node.Ripe:
		return "ripe"
	default:
		return "dead"
	}
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.6f", x)
	}
	return strings.Join(parts, " ")
}
