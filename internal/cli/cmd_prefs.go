package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/weather"
)

func newPrefsCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage display preferences",
	}
	cmd.AddCommand(
		newPrefsShowCommand(deps),
		newPrefsSetCommand(deps),
		newPrefsResetCommand(deps),
		newPrefsWatchCommand(deps),
	)
	return cmd
}

func printPreferences(deps commandDeps, prefs weather.Preferences) error {
	if deps.globals.JSON {
		return printJSON(deps.out, prefs)
	}
	fmt.Fprintf(deps.out, "temperature unit: %s\n", prefs.TemperatureUnit)
	fmt.Fprintf(deps.out, "distance unit:    %s\n", prefs.DistanceUnit)
	fmt.Fprintf(deps.out, "sorting:          %s\n", prefs.SortingOrientation)
	fmt.Fprintf(deps.out, "nearby results:   %d\n", prefs.AmountOfNearbyResults)
	return nil
}

func newPrefsShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs show does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				prefs, err := svc.prefs.Get(ctx)
				if err != nil {
					return err
				}
				return printPreferences(deps, prefs)
			})
		},
	}
}

func newPrefsSetCommand(deps commandDeps) *cobra.Command {
	var (
		temperatureUnit string
		distanceUnit    string
		sorting         string
		nearbyResults   int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update preferences (only the given flags change)",
		Example: "  nearbyweather prefs set --temperature-unit fahrenheit\n" +
			"  nearbyweather prefs set --sorting temperature --nearby-results 25",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs set does not accept positional arguments")
			}
			if !cmd.Flags().Changed("temperature-unit") &&
				!cmd.Flags().Changed("distance-unit") &&
				!cmd.Flags().Changed("sorting") &&
				!cmd.Flags().Changed("nearby-results") {
				return usageErrorf("prefs set requires at least one flag")
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				prefs, err := svc.prefs.Get(ctx)
				if err != nil {
					return err
				}

				if cmd.Flags().Changed("temperature-unit") {
					prefs.TemperatureUnit = weather.TemperatureUnit(temperatureUnit)
				}
				if cmd.Flags().Changed("distance-unit") {
					prefs.DistanceUnit = weather.DistanceUnit(distanceUnit)
				}
				if cmd.Flags().Changed("sorting") {
					prefs.SortingOrientation = weather.SortingOrientation(sorting)
				}
				if cmd.Flags().Changed("nearby-results") {
					prefs.AmountOfNearbyResults = nearbyResults
				}

				if err := svc.prefs.Set(ctx, prefs); err != nil {
					return err
				}
				return printPreferences(deps, prefs)
			})
		},
	}
	cmd.Flags().StringVar(&temperatureUnit, "temperature-unit", "", "celsius, fahrenheit or kelvin")
	cmd.Flags().StringVar(&distanceUnit, "distance-unit", "", "metric or imperial")
	cmd.Flags().StringVar(&sorting, "sorting", "", "name, temperature or distance")
	cmd.Flags().IntVar(&nearbyResults, "nearby-results", 0, "Number of nearby stations to keep (1-50)")
	return cmd
}

func newPrefsResetCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset preferences to the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs reset does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				if err := svc.prefs.Reset(ctx); err != nil {
					return err
				}
				return printPreferences(deps, weather.DefaultPreferences())
			})
		},
	}
}

func newPrefsWatchCommand(deps commandDeps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream preference changes as JSON lines until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs watch does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, svc services) error {
				stream, err := svc.prefs.Observe(ctx)
				if err != nil {
					return err
				}
				defer stream.Close()
				return watchResource(ctx, deps.out, stream, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many emissions (0 = run until interrupted)")
	return cmd
}
