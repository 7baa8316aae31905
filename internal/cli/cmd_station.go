package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/weather"
)

func newStationCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "station",
		Short: "Manage bookmarked weather stations",
	}
	cmd.AddCommand(
		newStationAddCommand(deps),
		newStationListCommand(deps),
		newStationRemoveCommand(deps),
		newStationWatchCommand(deps),
	)
	return cmd
}

func newStationAddCommand(deps commandDeps) *cobra.Command {
	var (
		id      int64
		name    string
		country string
		lat     float64
		lon     float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Bookmark a station",
		Example: "  nearbyweather station add --id 2643743 --name London --country GB " +
			"--lat 51.5072 --lon -0.1276",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("station add does not accept positional arguments")
			}
			if id <= 0 {
				return usageErrorf("station add requires --id > 0")
			}
			if strings.TrimSpace(name) == "" {
				return usageErrorf("station add requires --name")
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				station := weather.Station{
					Identifier:  id,
					Name:        name,
					Country:     country,
					Coordinates: weather.Coordinates{Latitude: lat, Longitude: lon},
				}
				if err := svc.stations.Bookmark(ctx, station); err != nil {
					return err
				}
				fmt.Fprintf(deps.out, "bookmarked station %s (%d)\n", name, id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Station identifier")
	cmd.Flags().StringVar(&name, "name", "", "Station name")
	cmd.Flags().StringVar(&country, "country", "", "Country code")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in decimal degrees")
	return cmd
}

func newStationListCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Short:   "List bookmarked stations",
		Aliases: []string{"list"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("station ls does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				stations, err := svc.stations.Bookmarks(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, stations)
				}
				if len(stations) == 0 {
					fmt.Fprintln(deps.out, "no stations bookmarked")
					return nil
				}
				for _, station := range stations {
					fmt.Fprintf(deps.out, "%-10d %-24s %-3s %9.4f %9.4f\n",
						station.Identifier,
						station.Name,
						station.Country,
						station.Coordinates.Latitude,
						station.Coordinates.Longitude,
					)
				}
				return nil
			})
		},
	}
	return cmd
}

func newStationRemoveCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <station-id>",
		Short:   "Remove a station bookmark",
		Aliases: []string{"remove"},
		RunE: func(cmd *cobra.Command, args []string) error {
			stationID, err := parseStationArg(args, "station rm")
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				if err := svc.stations.Unbookmark(ctx, stationID); err != nil {
					return err
				}
				fmt.Fprintf(deps.out, "removed station bookmark %d\n", stationID)
				return nil
			})
		},
	}
	return cmd
}

func newStationWatchCommand(deps commandDeps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream bookmark changes as JSON lines until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("station watch does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				stream, err := svc.stations.ObserveBookmarks(ctx)
				if err != nil {
					return err
				}
				defer stream.Close()
				return watchCollection(ctx, deps.out, stream, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many emissions (0 = run until interrupted)")
	return cmd
}
