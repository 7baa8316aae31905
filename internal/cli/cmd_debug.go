package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	debugpkg "github.com/Sabuj-CSE11/NearbyWeather/internal/debug"
)

func newDebugCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug",
		Short:   "Diagnostics helpers",
		Example: "  nearbyweather debug bundle --output ./nearbyweather-debug.json",
	}
	cmd.AddCommand(newDebugBundleCommand(deps))
	return cmd
}

func newDebugBundleCommand(deps commandDeps) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Collect sanitized diagnostics into a JSON bundle",
		Long: "bundle snapshots build info, platform and store health into a JSON " +
			"file for bug reports. Stored readings themselves are never included.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("debug bundle does not accept positional arguments")
			}
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("debug bundle requires --output")
			}

			bundle := debugpkg.NewBundle()
			bundle.Version = map[string]any{
				"version":    deps.build.Version,
				"commit":     deps.build.Commit,
				"build_time": deps.build.BuildTime,
			}

			// An unreachable store is itself a finding, so the bundle is
			// written either way.
			err := withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				stats, err := svc.worker.Stats(ctx)
				if err != nil {
					return err
				}
				bundle.Store = map[string]any{
					"path":           stats.Path,
					"schema_version": stats.SchemaVersion,
					"total_records":  stats.TotalRecords,
					"collections":    stats.Collections,
				}
				bundle.AddCheck("store", true, "reachable, schema v%d", stats.SchemaVersion)

				if _, err := os.Stat(stats.Path + "-wal"); err == nil {
					bundle.AddCheck("wal", true, "write-ahead log present")
				} else {
					bundle.AddCheck("wal", true, "write-ahead log checkpointed away")
				}
				return nil
			})
			if err != nil {
				bundle.AddCheck("store", false, "%v", err)
			}

			if err := debugpkg.WriteBundle(outputPath, bundle); err != nil {
				return mapCommandError(err)
			}
			if deps.globals.JSON {
				return printJSON(deps.out, map[string]any{"output": outputPath})
			}
			fmt.Fprintf(deps.out, "wrote debug bundle to %s\n", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Path of the bundle file to write")
	return cmd
}
