package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

type statusOutput struct {
	Path          string           `json:"path"`
	SchemaVersion int              `json:"schema_version"`
	TotalRecords  int64            `json:"total_records"`
	Collections   map[string]int64 `json:"collections"`
}

func newStatusCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store path, schema version and record counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("status does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				stats, err := svc.worker.Stats(ctx)
				if err != nil {
					return err
				}

				out := statusOutput{
					Path:          stats.Path,
					SchemaVersion: stats.SchemaVersion,
					TotalRecords:  stats.TotalRecords,
					Collections:   stats.Collections,
				}
				if deps.globals.JSON {
					return printJSON(deps.out, out)
				}

				fmt.Fprintf(deps.out, "path:           %s\n", out.Path)
				fmt.Fprintf(deps.out, "schema version: %d\n", out.SchemaVersion)
				fmt.Fprintf(deps.out, "total records:  %d\n", out.TotalRecords)

				collections := make([]string, 0, len(out.Collections))
				for collection := range out.Collections {
					collections = append(collections, collection)
				}
				sort.Strings(collections)
				for _, collection := range collections {
					fmt.Fprintf(deps.out, "  %-32s %d\n", collection, out.Collections[collection])
				}
				return nil
			})
		},
	}
}
