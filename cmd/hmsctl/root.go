package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Soamid/evogil-sub000/internal/storage"
	"github.com/Soamid/evogil-sub000/pkg/hms"
)

type storeFlags struct {
	kind   string
	dbPath string
}

func newRootCmd() *cobra.Command {
	var store storeFlags
	root := &cobra.Command{
		Use:   "hmsctl",
		Short: "Hierarchic multi-deme optimization runs",
		Long: `hmsctl runs a tree of NSGA-II demes on a benchmark problem, persists the
final result of every run and inspects stored runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&store.kind, "store", "memory", "store backend: memory|sqlite")
	root.PersistentFlags().StringVar(&store.dbPath, "db-path", "hms.db", "sqlite database path")

	root.AddCommand(
		newRunCmd(&store),
		newRunsCmd(&store),
		newShowCmd(&store),
		newPopulationCmd(&store),
		newProblemsCmd(),
	)
	return root
}

func openClient(cmd *cobra.Command, store *storeFlags) (*hms.Client, error) {
	client, err := hms.New(hms.Options{StoreKind: store.kind, DBPath: store.dbPath})
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// loadRecord reads a run from a record file when one is given, otherwise
// from the store.
func loadRecord(cmd *cobra.Command, store *storeFlags, runID, file string) (hms.RunRecord, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return hms.RunRecord{}, err
		}
		return storage.DecodeRun(data)
	}
	if runID == "" {
		return hms.RunRecord{}, fmt.Errorf("either --id or --file is required")
	}
	client, err := openClient(cmd, store)
	if err != nil {
		return hms.RunRecord{}, err
	}
	defer func() {
		_ = client.Close()
	}()
	return client.Show(cmd.Context(), runID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
