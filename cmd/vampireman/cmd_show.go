package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vampireman/internal/models"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run",
		Long: `Show a run from the dataset index: its settings and parameters, the
resolved values of one datapoint, or one parameter across all datapoints.
The run id may be abbreviated to any unique prefix.

Examples:
  vampireman show 0b6c3f5e --output ./datasets_out
  vampireman show 0b6c3f5e --datapoint 3
  vampireman show 0b6c3f5e --parameter temperature --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			datapoint, _ := cmd.Flags().GetInt("datapoint")
			parameter, _ := cmd.Flags().GetString("parameter")
			if datapoint >= 0 && parameter != "" {
				return fmt.Errorf("cannot specify both --datapoint and --parameter")
			}

			index, err := openIndex(cmd)
			if err != nil {
				return err
			}
			defer index.Close()

			ctx := cmd.Context()
			run, err := index.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			out := cmd.OutOrStdout()

			switch {
			case datapoint >= 0:
				values, err := index.DatapointValues(ctx, run.ID, datapoint)
				if err != nil {
					return err
				}
				if jsonOut {
					return enc.Encode(map[string]interface{}{"run_id": run.ID, "datapoint": datapoint, "values": values})
				}
				fmt.Fprintf(out, "Run %s, datapoint %d\n", run.ID, datapoint)
				names := make([]string, 0, len(values))
				for name := range values {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  %-20s %s\n", name, describe(values[name]))
				}
				return nil

			case parameter != "":
				values, err := index.ParameterValues(ctx, run.ID, parameter)
				if err != nil {
					return err
				}
				if len(values) == 0 {
					return fmt.Errorf("run %s has no parameter %q", shortID(run.ID), parameter)
				}
				if jsonOut {
					return enc.Encode(map[string]interface{}{"run_id": run.ID, "parameter": parameter, "values": values})
				}
				fmt.Fprintf(out, "Run %s, parameter %s\n", run.ID, parameter)
				for i, v := range values {
					fmt.Fprintf(out, "  %4d  %s\n", i, describe(v))
				}
				return nil
			}

			params, err := index.Parameters(ctx, run.ID)
			if err != nil {
				return err
			}
			if jsonOut {
				return enc.Encode(map[string]interface{}{"run": run, "parameters": params})
			}
			printRun(out, run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.Seed, run.Status, run.OutputDir, run.ConfigPath)
			fmt.Fprintf(out, "Cells:      %d x %d x %d\n", run.NumberCells[0], run.NumberCells[1], run.NumberCells[2])
			fmt.Fprintf(out, "Datapoints: %d\n", run.NumberDatapoints)
			fmt.Fprintf(out, "\nParameters:\n")
			for _, p := range params {
				dist := string(p.Distribution)
				if dist == "" {
					dist = "-"
				}
				fmt.Fprintf(out, "  %-20s %-16s %-6s %-7s %s\n", p.Name, p.Section, p.Vary, dist, p.Kind)
			}
			return nil
		},
	}

	addOutputFlag(cmd)
	cmd.Flags().Int("datapoint", -1, "Show the resolved values of this datapoint")
	cmd.Flags().String("parameter", "", "Show this parameter across all datapoints")

	return cmd
}

func printRun(w io.Writer, id, created string, seed int64, status, outputDir, configPath string) {
	fmt.Fprintf(w, "Run:        %s\n", id)
	fmt.Fprintf(w, "Created:    %s\n", created)
	fmt.Fprintf(w, "Seed:       %d\n", seed)
	fmt.Fprintf(w, "Status:     %s\n", status)
	fmt.Fprintf(w, "Output:     %s\n", outputDir)
	if configPath != "" {
		fmt.Fprintf(w, "Config:     %s\n", configPath)
	}
}

// describe renders a value summary on one line.
func describe(s models.Summary) string {
	switch s.Kind {
	case models.KindScalar:
		if s.Value != nil {
			return num(*s.Value)
		}
	case models.KindRange, models.KindNoise:
		if s.Min != nil && s.Max != nil {
			return fmt.Sprintf("%s [%s, %s]", s.Kind, num(*s.Min), num(*s.Max))
		}
	case models.KindField:
		if s.Shape != nil && s.Min != nil && s.Max != nil && s.Mean != nil {
			return fmt.Sprintf("field %dx%dx%d min %s max %s mean %s",
				s.Shape[0], s.Shape[1], s.Shape[2], num(*s.Min), num(*s.Max), num(*s.Mean))
		}
	case models.KindTimeSeries:
		return "series " + series(s.Series)
	case models.KindHeatPump:
		loc := "unplaced"
		if s.Location != nil {
			loc = fmt.Sprintf("(%s, %s, %s)", num(s.Location[0]), num(s.Location[1]), num(s.Location[2]))
		}
		return fmt.Sprintf("heat pump at %s temp %s rate %s", loc, series(s.InjectionTemp), series(s.InjectionRate))
	case models.KindHeatPumpGroup:
		if s.Value != nil {
			return fmt.Sprintf("group of %s", num(*s.Value))
		}
	}
	return string(s.Kind)
}

func series(points []models.SeriesPoint) string {
	if len(points) == 1 && points[0].Time == 0 {
		return num(points[0].Value)
	}
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = num(p.Time) + ": " + num(p.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
