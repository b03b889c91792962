package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vampireman/internal/logging"
	"github.com/nvandessel/vampireman/internal/noise"
	"github.com/nvandessel/vampireman/internal/variation"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a run configuration",
		Long: `Validate a run configuration without writing anything.

Besides the static checks this expands heat pump groups and converts
declared locations, so naming clashes and saturated grids surface here.

Examples:
  vampireman validate --config run.yaml
  vampireman validate --config run.hcl --print   # print the effective configuration as YAML`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			printCfg, _ := cmd.Flags().GetBool("print")

			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			basis, err := noise.NewBasis(cfg.General.NoiseBasis, cfg.General.NoiseOctaves)
			if err != nil {
				return err
			}
			ds := cfg.Dataset()
			if err := variation.NewEngine(logging.Discard(), variation.WithBasis(basis)).Prepare(ds); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if printCfg {
				data, err := cfg.MarshalYAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"config":          path,
					"valid":           true,
					"hydrogeological": len(ds.Hydrogeological),
					"heatpumps":       len(ds.HeatPumps),
					"datapoints":      cfg.General.NumberDatapoints,
				})
			}

			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "  Hydrogeological parameters: %d\n", len(ds.Hydrogeological))
			fmt.Fprintf(cmd.OutOrStdout(), "  Heat pumps:                 %d\n", len(ds.HeatPumps))
			fmt.Fprintf(cmd.OutOrStdout(), "  Datapoints:                 %d\n", cfg.General.NumberDatapoints)
			return nil
		},
	}

	cmd.Flags().Bool("print", false, "Print the effective configuration as YAML")

	return cmd
}
