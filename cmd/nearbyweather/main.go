package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/cli"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/version"
)

func main() {
	// A .env file is optional; NEARBYWEATHER_* variables from it feed the
	// configuration loader.
	_ = godotenv.Load()

	cmd := cli.NewRootCommand(os.Stdout, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
	if err := cmd.Execute(); err != nil {
		var withExitCode interface{ ExitCode() int }
		if errors.As(err, &withExitCode) {
			os.Exit(withExitCode.ExitCode())
		}
		os.Exit(1)
	}
}
