// Command europe-provinces filters a global admin-1 GeoJSON down to the
// provinces and states of Europe.
//
// Usage:
//
//	go run ./cmd/europe-provinces \
//	    -countries ne_110m_admin_0_countries.geojson \
//	    -provinces ne_10m_admin_1_states_provinces.geojson
//
// Every flag can also be set through a GEOSIEVE_* environment variable or a
// .env file in the working directory. Flags win over the environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/andreiashu/geosieve"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

type options struct {
	countries string
	provinces string
	out       string
	report    string
	profile   string
	dataDir   string
	workers   int
	logLevel  string
}

func main() {
	_ = godotenv.Load(".env")

	opts := parseOptions()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(opts.logLevel)}))

	if err := run(opts, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	if opts.countries == "" || opts.provinces == "" {
		return fmt.Errorf("both -countries and -provinces are required")
	}

	profile := geosieve.EuropeProfile()
	if opts.profile != "" {
		p, err := geosieve.LoadProfile(opts.profile)
		if err != nil {
			return err
		}
		profile = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sieveOpts := []geosieve.Option{
		geosieve.WithDataDir(opts.dataDir),
		geosieve.WithProfile(profile),
		geosieve.WithLogger(logger),
	}
	if opts.workers > 0 {
		sieveOpts = append(sieveOpts, geosieve.WithWorkers(opts.workers))
	}
	s, err := geosieve.New(sieveOpts...)
	if err != nil {
		return err
	}

	res, err := s.Run(ctx, opts.countries, opts.provinces, opts.out)
	if err != nil {
		return err
	}

	if opts.report != "" {
		if err := res.Report().WriteFile(opts.report); err != nil {
			return err
		}
	}

	fmt.Printf("%s provinces kept -> %s (attribute %s, spatial %s, dropped %s)\n",
		humanize.Comma(int64(res.Len())), opts.out,
		humanize.Comma(int64(res.Stats.Attribute)),
		humanize.Comma(int64(res.Stats.Spatial)),
		humanize.Comma(int64(res.Stats.Unmatched)))
	return nil
}

// parseOptions applies flag > environment > default precedence.
func parseOptions() options {
	countries := flag.String("countries", "", "Country-level GeoJSON (admin-0)")
	provinces := flag.String("provinces", "", "Province-level GeoJSON (admin-1)")
	out := flag.String("out", "", "Output GeoJSON path (default: eu_provinces.geo.json)")
	report := flag.String("report", "", "Optional JSON report of spatially resolved records")
	profile := flag.String("profile", "", "Optional YAML region profile")
	dataDir := flag.String("data-dir", "", "Directory holding countryInfo.txt (default: ./geosieve-data)")
	workers := flag.String("workers", "", "Concurrent classification workers (default: number of CPUs)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	return options{
		countries: configValue(*countries, "GEOSIEVE_COUNTRIES", ""),
		provinces: configValue(*provinces, "GEOSIEVE_PROVINCES", ""),
		out:       configValue(*out, "GEOSIEVE_OUT", "eu_provinces.geo.json"),
		report:    configValue(*report, "GEOSIEVE_REPORT", ""),
		profile:   configValue(*profile, "GEOSIEVE_PROFILE", ""),
		dataDir:   configValue(*dataDir, "GEOSIEVE_DATA_DIR", "./geosieve-data"),
		workers:   intConfigValue(*workers, "GEOSIEVE_WORKERS", 0),
		logLevel:  configValue(*logLevel, "GEOSIEVE_LOG_LEVEL", "info"),
	}
}

func configValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func intConfigValue(flagValue, envKey string, defaultValue int) int {
	v := configValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
