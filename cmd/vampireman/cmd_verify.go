package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/manifest"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [manifest]",
		Short: "Verify dataset manifest integrity",
		Long: `Verify the integrity of a dataset manifest by checking its SHA-256 checksum.
Without an argument the manifest of the output directory is checked.

Examples:
  vampireman verify ./datasets_out/dataset.vmp
  vampireman verify --output ./datasets_out`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				out, err := resolveOutputDir(cmd)
				if err != nil {
					return err
				}
				path = filepath.Join(out, constants.ManifestFile)
			}

			header, err := manifest.ReadHeader(path)
			if err == nil {
				err = manifest.Verify(path)
			}
			if err != nil {
				if jsonOut {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"file":    path,
						"valid":   false,
						"error":   err.Error(),
						"message": "Checksum verification FAILED",
					})
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "FAILED: %v\n", err)
					fmt.Fprintf(cmd.OutOrStdout(), "  File: %s\n", path)
				}
				return fmt.Errorf("manifest verification failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"file":       path,
					"valid":      true,
					"run_id":     header.RunID,
					"datapoints": header.DatapointCount,
					"parameters": header.ParameterCount,
					"message":    "Checksum OK",
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: checksum verified\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  File:       %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "  Run:        %s\n", header.RunID)
			fmt.Fprintf(cmd.OutOrStdout(), "  Datapoints: %d\n", header.DatapointCount)
			return nil
		},
	}

	addOutputFlag(cmd)

	return cmd
}
