package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vampireman/internal/config"
	"github.com/nvandessel/vampireman/internal/pathutil"
	"github.com/nvandessel/vampireman/internal/store"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the runs recorded in an output directory",
		Long: `List the runs recorded in the dataset index of an output directory,
newest first.

The output directory is taken from --output, or from the configuration
given with --config.

Examples:
  vampireman list --output ./datasets_out
  vampireman list --config run.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			index, err := openIndex(cmd)
			if err != nil {
				return err
			}
			defer index.Close()

			runs, err := index.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				if runs == nil {
					runs = []store.Run{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			fmt.Fprintf(out, "%-8s  %-20s  %-20s  %-12s  %10s  %s\n", "ID", "CREATED", "SEED", "CELLS", "DATAPOINTS", "STATUS")
			for _, r := range runs {
				cells := fmt.Sprintf("%dx%dx%d", r.NumberCells[0], r.NumberCells[1], r.NumberCells[2])
				fmt.Fprintf(out, "%-8s  %-20s  %-20d  %-12s  %10d  %s\n",
					shortID(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Seed, cells, r.NumberDatapoints, r.Status)
			}
			return nil
		},
	}

	addOutputFlag(cmd)

	return cmd
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().String("output", "", "Output directory of the dataset (default: output_directory of --config)")
}

// resolveOutputDir returns --output, falling back to the configured output
// directory.
func resolveOutputDir(cmd *cobra.Command) (string, error) {
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return "", err
		}
		out = cfg.General.OutputDirectory
	}
	return pathutil.OutputDir(out)
}

// openIndex opens the dataset index of the resolved output directory. It
// does not create one.
func openIndex(cmd *cobra.Command) (*store.SQLiteDatasetStore, error) {
	out, err := resolveOutputDir(cmd)
	if err != nil {
		return nil, err
	}
	path := store.IndexPath(out)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no dataset index in %s, run 'vampireman run' first", pathutil.RedactPath(out))
	}
	index, err := store.NewSQLiteDatasetStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset index: %w", err)
	}
	return index, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
