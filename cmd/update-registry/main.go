// Command update-registry downloads the Geonames country table used to
// derive ISO 3166-1 alpha-2 codes when a country dataset lacks them.
//
// Usage:
//
//	go run ./cmd/update-registry [-data-dir ./geosieve-data]
//
// An existing countryInfo.txt is left alone; delete it to force a refresh.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/andreiashu/geosieve"
)

func main() {
	dataDir := flag.String("data-dir", "./geosieve-data", "Directory to store countryInfo.txt in")
	flag.Parse()

	fmt.Println("Fetching country code registry...")

	if err := geosieve.DownloadRegistry(*dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	reg, err := geosieve.LoadGeonamesRegistry(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Registry ready: %d countries in %s\n", len(reg.Countries), *dataDir)
}
