package geosieve

import (
	"bufio"
	"compress/bzip2"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CodeRegistry maps ISO 3166-1 alpha-3 codes to alpha-2 codes.
// Alpha2 returns ErrCodeNotFound for codes it does not know; any other error
// means the registry itself is unusable.
type CodeRegistry interface {
	Alpha2(alpha3 string) (string, error)
}

// RegistryFile is the Geonames country table the default registry reads.
const RegistryFile = "countryInfo.txt"

// registryURL is where DownloadRegistry fetches RegistryFile from.
var registryURL = "https://download.geonames.org/export/dump/countryInfo.txt"

// CountryInfo is one row of the Geonames country table.
type CountryInfo struct {
	ISO        string // alpha-2
	ISO3       string // alpha-3
	ISONumeric int16
	Country    string
	Continent  string // Geonames continent code, e.g. "EU"
}

// GeonamesRegistry is a CodeRegistry backed by countryInfo.txt.
// Safe for concurrent use once loaded.
type GeonamesRegistry struct {
	Countries []CountryInfo
	byISO3    map[string]int
}

// LoadGeonamesRegistry reads countryInfo.txt, or countryInfo.txt.bz2, from dataDir.
// A missing file is reported as ErrLookupUnavailable.
func LoadGeonamesRegistry(dataDir string) (*GeonamesRegistry, error) {
	fh, cleanup, err := openOptionallyBzippedFile(filepath.Join(dataDir, RegistryFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	defer cleanup()
	return ParseGeonamesRegistry(fh)
}

// ParseGeonamesRegistry parses the tab-separated Geonames country table.
// Comment lines start with '#'.
func ParseGeonamesRegistry(r io.Reader) (*GeonamesRegistry, error) {
	reg := &GeonamesRegistry{byISO3: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)

	for scanner.Scan() {
		t := scanner.Text()
		if len(t) == 0 || t[0] == '#' {
			continue
		}

		fields := strings.Split(t, "\t")
		if len(fields) < 9 || fields[0] == "" || fields[0] == "0" {
			continue
		}

		isoNumeric, _ := strconv.Atoi(fields[2])
		ci := CountryInfo{
			ISO:        toUpper(fields[0]),
			ISO3:       toUpper(fields[1]),
			ISONumeric: int16(isoNumeric),
			Country:    fields[4],
			Continent:  fields[8],
		}
		if ci.ISO3 == "" {
			continue
		}
		reg.byISO3[ci.ISO3] = len(reg.Countries)
		reg.Countries = append(reg.Countries, ci)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading country table: %v", ErrLookupUnavailable, err)
	}
	if len(reg.Countries) == 0 {
		return nil, fmt.Errorf("%w: country table is empty", ErrLookupUnavailable)
	}
	return reg, nil
}

// Alpha2 implements CodeRegistry.
func (g *GeonamesRegistry) Alpha2(alpha3 string) (string, error) {
	idx, ok := g.byISO3[toUpper(alpha3)]
	if !ok || g.Countries[idx].ISO == "" {
		return "", fmt.Errorf("%w: %s", ErrCodeNotFound, alpha3)
	}
	return g.Countries[idx].ISO, nil
}

// StaticRegistry is an in-memory CodeRegistry keyed by alpha-3 code.
type StaticRegistry map[string]string

// Alpha2 implements CodeRegistry.
func (s StaticRegistry) Alpha2(alpha3 string) (string, error) {
	if iso2, ok := s[toUpper(alpha3)]; ok {
		return iso2, nil
	}
	return "", fmt.Errorf("%w: %s", ErrCodeNotFound, alpha3)
}

func openOptionallyBzippedFile(file string) (io.Reader, func() error, error) {
	fh, err := os.Open(file + ".bz2")
	if err != nil {
		fh, err = os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", file, err)
		}
		return fh, fh.Close, nil
	}
	return bzip2.NewReader(fh), fh.Close, nil
}

// downloadMu serializes registry downloads so concurrent callers never
// interleave writes into the same file.
var downloadMu sync.Mutex

// httpClient is a shared HTTP client with reasonable timeouts.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// DownloadRegistry fetches countryInfo.txt into dataDir unless it is already there.
func DownloadRegistry(dataDir string) error {
	downloadMu.Lock()
	defer downloadMu.Unlock()

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	localPath := filepath.Join(dataDir, RegistryFile)
	if _, err := os.Stat(localPath); err == nil {
		return nil
	}
	if err := downloadFile(registryURL, localPath); err != nil {
		return fmt.Errorf("downloading country table: %w", err)
	}

	// Make sure what we fetched parses before anyone relies on it.
	if _, err := LoadGeonamesRegistry(dataDir); err != nil {
		os.Remove(localPath)
		return err
	}
	return nil
}

func downloadFile(url, path string) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}

	// Partial files are removed on any failure, including a failed Close.
	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(path)
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", path, err)
	}
	success = true
	return nil
}
