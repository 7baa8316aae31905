package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/app"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/weather"
)

func newWeatherCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Manage stored weather readings",
	}
	cmd.AddCommand(
		newWeatherSetCommand(deps),
		newWeatherListCommand(deps),
		newWeatherShowCommand(deps),
		newWeatherRemoveCommand(deps),
		newWeatherClearCommand(deps),
		newWeatherWatchCommand(deps),
	)
	return cmd
}

func listKindFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "list", string(app.ListNearby), "Weather list (bookmarked or nearby)")
}

func parseStationArg(args []string, command string) (int64, error) {
	if len(args) != 1 {
		return 0, usageErrorf("%s requires exactly one station id argument", command)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("%s: station id must be a positive integer, got %q", command, args[0])
	}
	return id, nil
}

// readReadings decodes weather readings from path ("-" or empty = stdin).
// Accepts a single object or an array.
func readReadings(in io.Reader, path string) ([]weather.Information, error) {
	reader := in
	if path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open readings file: %w", err)
		}
		defer file.Close()
		reader = file
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}

	var list []weather.Information
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single weather.Information
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, usageErrorf("input is neither a reading nor an array of readings: %v", err)
	}
	return []weather.Information{single}, nil
}

func newWeatherSetCommand(deps commandDeps) *cobra.Command {
	var list string

	cmd := &cobra.Command{
		Use:   "set [file]",
		Short: "Store weather readings from a JSON file or stdin",
		Example: "  nearbyweather weather set --list nearby readings.json\n" +
			"  curl -s $URL | nearbyweather weather set --list bookmarked -",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := app.ParseListKind(list)
			if err != nil {
				return mapCommandError(err)
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			readings, err := readReadings(cmd.InOrStdin(), path)
			if err != nil {
				return mapCommandError(err)
			}
			if len(readings) == 0 {
				return usageErrorf("no readings in input")
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				if err := svc.weather.Store(ctx, kind, readings); err != nil {
					return err
				}
				fmt.Fprintf(deps.out, "stored %d %s reading(s)\n", len(readings), kind)
				return nil
			})
		},
	}
	listKindFlag(cmd, &list)
	return cmd
}

func newWeatherListCommand(deps commandDeps) *cobra.Command {
	var list string

	cmd := &cobra.Command{
		Use:     "ls",
		Short:   "List stored weather readings",
		Aliases: []string{"list"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("weather ls does not accept positional arguments")
			}
			kind, err := app.ParseListKind(list)
			if err != nil {
				return mapCommandError(err)
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				readings, err := svc.weather.List(ctx, kind)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, readings)
				}

				prefs, err := svc.prefs.Get(ctx)
				if err != nil {
					return err
				}
				if len(readings) == 0 {
					fmt.Fprintf(deps.out, "no %s readings stored\n", kind)
					return nil
				}
				weather.SortInformation(readings, prefs.SortingOrientation, nil)
				for _, reading := range readings {
					printReading(deps.out, reading, prefs.TemperatureUnit)
				}
				return nil
			})
		},
	}
	listKindFlag(cmd, &list)
	return cmd
}

func printReading(out io.Writer, reading weather.Information, unit weather.TemperatureUnit) {
	fmt.Fprintf(out, "%-10d %-24s %8s  %-7s %s\n",
		reading.StationID,
		reading.StationName,
		unit.Format(reading.Temperature),
		reading.Condition,
		reading.ObservedAt.UTC().Format(time.RFC3339),
	)
}

func newWeatherShowCommand(deps commandDeps) *cobra.Command {
	var list string

	cmd := &cobra.Command{
		Use:   "show <station-id>",
		Short: "Show one station's stored reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := app.ParseListKind(list)
			if err != nil {
				return mapCommandError(err)
			}
			stationID, err := parseStationArg(args, "weather show")
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				reading, found, err := svc.weather.Station(ctx, kind, stationID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%w: station %d in %s weather", app.ErrNotFound, stationID, kind)
				}
				if deps.globals.JSON {
					return printJSON(deps.out, reading)
				}

				prefs, err := svc.prefs.Get(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(deps.out, "station:     %s (%d)\n", reading.StationName, reading.StationID)
				fmt.Fprintf(deps.out, "coordinates: %.4f, %.4f\n", reading.Coordinates.Latitude, reading.Coordinates.Longitude)
				fmt.Fprintf(deps.out, "temperature: %s\n", prefs.TemperatureUnit.Format(reading.Temperature))
				fmt.Fprintf(deps.out, "humidity:    %.0f%%\n", reading.Humidity)
				fmt.Fprintf(deps.out, "pressure:    %.0f hPa\n", reading.Pressure)
				fmt.Fprintf(deps.out, "wind:        %.1f m/s at %.0f°\n", reading.WindSpeed, reading.WindDirection)
				fmt.Fprintf(deps.out, "clouds:      %.0f%%\n", reading.CloudCoverage)
				fmt.Fprintf(deps.out, "condition:   %s\n", reading.Condition)
				fmt.Fprintf(deps.out, "observed:    %s\n", reading.ObservedAt.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	listKindFlag(cmd, &list)
	return cmd
}

func newWeatherRemoveCommand(deps commandDeps) *cobra.Command {
	var list string

	cmd := &cobra.Command{
		Use:     "rm <station-id>",
		Short:   "Remove one station's reading",
		Aliases: []string{"remove"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := app.ParseListKind(list)
			if err != nil {
				return mapCommandError(err)
			}
			stationID, err := parseStationArg(args, "weather rm")
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				if err := svc.weather.Remove(ctx, kind, stationID); err != nil {
					return err
				}
				fmt.Fprintf(deps.out, "removed station %d from %s weather\n", stationID, kind)
				return nil
			})
		},
	}
	listKindFlag(cmd, &list)
	return cmd
}

func newWeatherClearCommand(deps commandDeps) *cobra.Command {
	var list string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all readings of a list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("weather clear does not accept positional arguments")
			}
			kind, err := app.ParseListKind(list)
			if err != nil {
				return mapCommandError(err)
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				removed, err := svc.weather.Clear(ctx, kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(deps.out, "removed %d %s reading(s)\n", removed, kind)
				return nil
			})
		},
	}
	listKindFlag(cmd, &list)
	return cmd
}

func newWeatherWatchCommand(deps commandDeps) *cobra.Command {
	var (
		list    string
		station int64
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream list changes as JSON lines until interrupted",
		Example: "  nearbyweather weather watch --list nearby\n" +
			"  nearbyweather weather watch --list bookmarked --station 2643743 --limit 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("weather watch does not accept positional arguments")
			}
			kind, err := app.ParseListKind(list)
			if err != nil {
				return mapCommandError(err)
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				if station > 0 {
					stream, err := svc.weather.ObserveStation(ctx, kind, station)
					if err != nil {
						return err
					}
					defer stream.Close()
					return watchResource(ctx, deps.out, stream, limit)
				}

				stream, err := svc.weather.ObserveList(ctx, kind)
				if err != nil {
					return err
				}
				defer stream.Close()
				return watchCollection(ctx, deps.out, stream, limit)
			})
		},
	}
	listKindFlag(cmd, &list)
	cmd.Flags().Int64Var(&station, "station", 0, "Watch a single station instead of the whole list")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many emissions (0 = run until interrupted)")
	return cmd
}
