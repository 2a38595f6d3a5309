// Package geosieve picks the provinces and states of one continent out of a
// global admin-1 dataset.
//
// A run builds a ReferenceSet of accepted country codes and names from an
// admin-0 dataset, matches every admin-1 record against it by attribute, and
// sends the records no attribute could decide to a spatial test: the record's
// centroid, computed in an equal-area projection, must touch the union of the
// region's country polygons. The surviving records are projected onto a small
// output schema and written as GeoJSON.
//
//	s, err := geosieve.New(geosieve.WithDataDir("./geosieve-data"))
//	if err != nil {
//	    return err
//	}
//	res, err := s.Run(ctx, "ne_110m_admin_0_countries.geojson",
//	    "ne_10m_admin_1_states_provinces.geojson", "eu_provinces.geo.json")
package geosieve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// Config contains the options of a Sieve.
type Config struct {
	DataDir  string       // directory holding countryInfo.txt (default: "./geosieve-data")
	Profile  Profile      // target region (default: EuropeProfile())
	Registry CodeRegistry // short-code lookup; loaded from DataDir when nil
	Workers  int          // classification goroutines (default: runtime.NumCPU())
	Logger   *slog.Logger // default: discards everything
}

// Option is a functional option for configuring a Sieve.
type Option func(*Config)

// WithDataDir sets the directory the default code registry is loaded from.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithProfile sets the target region profile.
func WithProfile(p Profile) Option {
	return func(c *Config) {
		c.Profile = p
	}
}

// WithRegistry sets the short-code lookup used when the country dataset has
// no short codes. It replaces the registry loaded from the data directory.
func WithRegistry(reg CodeRegistry) Option {
	return func(c *Config) {
		c.Registry = reg
	}
}

// WithWorkers bounds the number of records classified concurrently.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() *Config {
	return &Config{
		DataDir: "./geosieve-data",
		Profile: EuropeProfile(),
		Workers: runtime.NumCPU(),
	}
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// Sieve runs the classification pipeline. It holds no per-run state and is
// safe for concurrent use.
type Sieve struct {
	config *Config
	proj   *LAEA
	chain  FieldChain
	log    *slog.Logger
}

// New creates a Sieve. The profile is validated first; the error wraps
// ErrInvalidProfile. When no registry is given it tries to load
// countryInfo.txt from the data directory; a missing file only disables the
// short-code backfill.
func New(opts ...Option) (*Sieve, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Profile.validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	s := &Sieve{
		config: cfg,
		proj:   NewLAEA(cfg.Profile.Projection),
		chain:  NewFieldChain(cfg.Profile.CandidateFields),
		log:    orDiscard(cfg.Logger),
	}

	if cfg.Registry == nil {
		reg, err := LoadGeonamesRegistry(cfg.DataDir)
		if err != nil {
			s.log.Info("code registry not loaded", "dir", cfg.DataDir, "error", err)
		} else {
			cfg.Registry = reg
		}
	}
	return s, nil
}

// Profile returns the profile the Sieve classifies against.
func (s *Sieve) Profile() Profile {
	return s.config.Profile
}

// Run loads both datasets, classifies the provinces and writes the result
// to outPath. Load and write failures are returned unretried.
func (s *Sieve) Run(ctx context.Context, countriesPath, provincesPath, outPath string) (*Result, error) {
	countries, err := ReadDataset(countriesPath, "countries")
	if err != nil {
		return nil, err
	}
	provinces, err := ReadDataset(provincesPath, "provinces")
	if err != nil {
		return nil, err
	}

	res, err := s.Classify(ctx, countries, provinces)
	if err != nil {
		return nil, err
	}
	if err := res.WriteFile(outPath); err != nil {
		return nil, err
	}
	s.log.Info("result written", "path", outPath, "records", res.Len())
	return res, nil
}

// Classify builds the reference set from countries and classifies provinces against it.
func (s *Sieve) Classify(ctx context.Context, countries, provinces *Dataset) (*Result, error) {
	ref, err := BuildReferenceSet(countries, s.config.Profile, s.config.Registry, s.log)
	if err != nil {
		return nil, fmt.Errorf("building reference set: %w", err)
	}
	return s.ClassifyWith(ctx, ref, provinces)
}

// ClassifyWith classifies provinces against an existing reference set.
//
// The attribute tier runs over every record first, then the spatial tier
// over the records it left undecided. Both passes fan out over a bounded
// worker pool and write into index-addressed slots, so the result does not
// depend on scheduling.
func (s *Sieve) ClassifyWith(ctx context.Context, ref *ReferenceSet, provinces *Dataset) (*Result, error) {
	records := make([]ProvinceRecord, provinces.Len())

	err := s.forEach(ctx, provinces.Features, func(i int, f *geojson.Feature) {
		props := provinces.Props(f)
		d := ClassifyAttributes(props, ref, s.chain)
		records[i] = ProvinceRecord{
			Index:    i,
			Feature:  f,
			Props:    props,
			Tier:     d.Tier(),
			Decision: d,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("attribute tier: %w", err)
	}

	err = s.forEach(ctx, provinces.Features, func(i int, f *geojson.Feature) {
		if records[i].Tier != TierUnmatched {
			return
		}
		out := ResolveSpatial(f.Geometry, ref, s.proj)
		records[i].Spatial = &out
		records[i].Tier = out.Tier
	})
	if err != nil {
		return nil, fmt.Errorf("spatial tier: %w", err)
	}

	for _, rec := range records {
		if rec.Spatial != nil && rec.Spatial.Excluded() {
			s.log.Warn("record excluded from spatial fallback",
				"index", rec.Index, "error", rec.Spatial.Err)
		}
	}

	res := Assemble(provinces, records, s.config.Profile)
	res.ref = ref
	res.chain = s.chain

	s.log.Info("provinces classified",
		"total", res.Stats.Total,
		"attribute", res.Stats.Attribute,
		"spatial", res.Stats.Spatial,
		"unmatched", res.Stats.Unmatched,
		"excluded", res.Stats.Excluded)
	return res, nil
}

// forEach calls fn for every feature on at most Workers goroutines.
// It stops scheduling new work once ctx is cancelled.
func (s *Sieve) forEach(ctx context.Context, features []*geojson.Feature, fn func(int, *geojson.Feature)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, f := range features {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// gctx is always cancelled once Wait returns; only the caller's ctx tells
	// whether the loop stopped early.
	return ctx.Err()
}
