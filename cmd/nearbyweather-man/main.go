package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/cli"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/version"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "dist/man", "output directory for generated man pages")
	flag.Parse()

	err := cli.GenerateManPages(outDir, cli.BuildInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "nearbyweather-man: %v\n", err)
		os.Exit(1)
	}
}
