package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vampireman/internal/config"
	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/logging"
	"github.com/nvandessel/vampireman/internal/manifest"
	"github.com/nvandessel/vampireman/internal/noise"
	"github.com/nvandessel/vampireman/internal/pathutil"
	"github.com/nvandessel/vampireman/internal/render"
	"github.com/nvandessel/vampireman/internal/simulation"
	"github.com/nvandessel/vampireman/internal/store"
	"github.com/nvandessel/vampireman/internal/variation"
)

// newCommandRunner builds the process runner for the simulate stage.
// Tests replace it with a fake.
var newCommandRunner = func(stdout, stderr io.Writer) simulation.CommandRunner {
	return simulation.ExecRunner{Stdout: stdout, Stderr: stderr}
}

// stages selects the pipeline steps of a run.
type stages struct {
	vary     bool
	render   bool
	simulate bool
}

func parseStages(s string) (stages, error) {
	var st stages
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "all":
			st = stages{vary: true, render: true, simulate: true}
		case "vary":
			st.vary = true
		case "render":
			st.render = true
		case "simulate":
			st.simulate = true
		default:
			return st, fmt.Errorf("unknown stage %q (valid: vary, render, simulate, all)", strings.TrimSpace(part))
		}
	}
	if st == (stages{}) {
		return st, errors.New("no stages selected")
	}
	if st.render && !st.vary {
		return st, errors.New("the render stage needs the vary stage")
	}
	return st, nil
}

// runSummary is what a run reports when it finishes.
type runSummary struct {
	RunID      string   `json:"run_id,omitempty"`
	Seed       *int64   `json:"seed,omitempty"`
	OutputDir  string   `json:"output_dir"`
	Datapoints int      `json:"datapoints"`
	Rendered   []string `json:"rendered,omitempty"`
	Simulated  int      `json:"simulated"`
	Skipped    int      `json:"skipped"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a dataset",
		Long: `Generate a dataset from a run configuration.

Stages:
  vary      resolve every parameter for every datapoint, write the manifest
            (dataset.vmp) and record the run in the dataset index
  render    write the mesh, boundary files and one datapoint-<i> directory
            per datapoint holding pflotran.in and its field files
  simulate  run pflotran in every datapoint directory

Without vary, simulate works on the datapoint directories already present
in the output directory.

Field files (<name>_field.arrow) are Apache Arrow IPC, not HDF5. pflotran.in
references them through its HDF5 DATASET keywords, so a stock pflotran build
cannot read them. Convert the field files to HDF5 with the same file names
and column layout before running the simulate stage against a real
simulator.

Examples:
  vampireman run --config run.yaml
  vampireman run --config run.yaml --stages all
  vampireman run --config run.yaml --stages simulate --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			stagesFlag, _ := cmd.Flags().GetString("stages")
			force, _ := cmd.Flags().GetBool("force")

			st, err := parseStages(stagesFlag)
			if err != nil {
				return err
			}
			cfg, configPath, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			summary, err := runStages(cmd.Context(), cmd, cfg, configPath, st, force)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}
			out := cmd.OutOrStdout()
			if summary.RunID != "" {
				fmt.Fprintf(out, "Run %s (seed %d)\n", summary.RunID, *summary.Seed)
			}
			fmt.Fprintf(out, "  Output:     %s\n", summary.OutputDir)
			fmt.Fprintf(out, "  Datapoints: %d\n", summary.Datapoints)
			if st.render {
				fmt.Fprintf(out, "  Rendered:   %d\n", len(summary.Rendered))
			}
			if st.simulate {
				fmt.Fprintf(out, "  Simulated:  %d (skipped %d)\n", summary.Simulated, summary.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().String("stages", "vary,render", "Comma-separated stages to run: vary, render, simulate or all")
	cmd.Flags().Bool("force", false, "Simulate datapoints that already hold results")

	return cmd
}

func runStages(ctx context.Context, cmd *cobra.Command, cfg *config.Config, configPath string, st stages, force bool) (*runSummary, error) {
	g := cfg.General
	outDir, err := pathutil.OutputDir(g.OutputDirectory)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	logger := logging.NewLogger(g.LogLevel, g.LogFormat, cmd.ErrOrStderr())
	summary := &runSummary{OutputDir: outDir}

	var (
		runID string
		index *store.SQLiteDatasetStore
		dirs  []string
	)
	defer func() {
		if index != nil {
			index.Close()
		}
	}()

	if st.vary {
		trace := logging.NewTraceLog(outDir, g.LogLevel)
		defer trace.Close()

		basis, err := noise.NewBasis(g.NoiseBasis, g.NoiseOctaves)
		if err != nil {
			return nil, err
		}
		ds := cfg.Dataset()
		if g.RandomSeed == nil {
			logger.Warn("no random_seed configured, seeding from the clock", "seed", ds.Seed())
		}

		engine := variation.NewEngine(logger, variation.WithBasis(basis), variation.WithTrace(trace))
		if err := engine.Run(ds); err != nil {
			return nil, fmt.Errorf("variation failed: %w", err)
		}
		seed := ds.Seed()
		summary.Seed = &seed
		summary.Datapoints = len(ds.Datapoints)

		if err := writeSnapshot(cfg, outDir); err != nil {
			return nil, err
		}

		runID = manifest.NewRunID()
		summary.RunID = runID
		m := manifest.Build(ds, runID, time.Now().UTC())
		m.Metadata = map[string]string{"vampireman_version": version}
		if configPath != "" {
			m.Metadata["config"] = configPath
		}
		manifestPath := filepath.Join(outDir, constants.ManifestFile)
		if err := manifest.Write(manifestPath, m); err != nil {
			return nil, fmt.Errorf("writing manifest: %w", err)
		}
		logger.Info("wrote manifest", "path", manifestPath, "run_id", runID)

		index, err = store.NewSQLiteDatasetStore(store.IndexPath(outDir))
		if err != nil {
			return nil, fmt.Errorf("opening dataset index: %w", err)
		}
		if err := index.RecordRun(ctx, m, outDir, configPath); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}

		if st.render {
			stage, err := render.NewStage(outDir, g.TimeToSimulate, logger)
			if err != nil {
				return nil, err
			}
			dirs, err = stage.Render(ctx, ds)
			if err != nil {
				return nil, fmt.Errorf("rendering failed: %w", err)
			}
			summary.Rendered = dirs
			if err := index.SetStatus(ctx, runID, store.StatusRendered); err != nil {
				return nil, err
			}
		}
	}

	if !st.simulate {
		return summary, nil
	}

	if dirs == nil {
		dirs, err = render.FindDatapointDirs(outDir)
		if err != nil {
			return nil, err
		}
		if len(dirs) == 0 {
			return nil, fmt.Errorf("no datapoint directories in %s", pathutil.RedactPath(outDir))
		}
		summary.Datapoints = len(dirs)
		runID, index = existingRun(ctx, outDir, logger)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	simOut := cmd.OutOrStdout()
	if jsonOut {
		simOut = cmd.ErrOrStderr()
	}
	runner := simulation.NewRunner(logger, simulation.Options{
		Mpirun: g.Mpirun,
		Procs:  g.MpirunProcs,
		Mute:   g.MuteSimulationOutput,
		Force:  force,
	}, newCommandRunner(simOut, cmd.ErrOrStderr()))

	results, err := runner.Run(ctx, dirs)
	for _, r := range results {
		if r.Skipped {
			summary.Skipped++
		} else {
			summary.Simulated++
		}
	}
	if err != nil {
		return nil, err
	}

	if index != nil && runID != "" {
		if err := index.SetStatus(ctx, runID, store.StatusSimulated); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// existingRun finds the run recorded for an output directory from its
// manifest. Either result is empty when the directory has none.
func existingRun(ctx context.Context, outDir string, logger *slog.Logger) (string, *store.SQLiteDatasetStore) {
	header, err := manifest.ReadHeader(filepath.Join(outDir, constants.ManifestFile))
	if err != nil {
		logger.Warn("no readable manifest, run status will not be updated", "error", err)
		return "", nil
	}
	indexPath := store.IndexPath(outDir)
	if _, err := os.Stat(indexPath); err != nil {
		return header.RunID, nil
	}
	index, err := store.NewSQLiteDatasetStore(indexPath)
	if err != nil {
		logger.Warn("cannot open dataset index", "error", err)
		return header.RunID, nil
	}
	if _, err := index.GetRun(ctx, header.RunID); err != nil {
		logger.Warn("run not found in dataset index", "run_id", header.RunID, "error", err)
		index.Close()
		return header.RunID, nil
	}
	return header.RunID, index
}

// writeSnapshot stores the effective configuration next to the dataset.
func writeSnapshot(cfg *config.Config, outDir string) error {
	data, err := cfg.MarshalYAML()
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	path := filepath.Join(outDir, constants.ConfigSnapshotFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing configuration snapshot: %w", err)
	}
	return nil
}
