// Package cache persists assembled dataset tables as compressed CSV files,
// one file per (place, dataset kind). Existence of the file is the sole
// completion marker: a crash mid-fetch leaves no file and the next run
// refetches that kind from scratch.
package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
	"github.com/swissmobility/heatmap-fetcher/pkg/logging"
)

// FileExt is the cache file extension: CSV inside gzip.
const FileExt = ".csv.gz"

var (
	// ErrCacheMiss indicates no cache file exists for the (place, kind) pair.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCorrupted indicates the cache file exists but cannot be
	// deserialized into the expected schema.
	ErrCorrupted = errors.New("corrupted cache file")
)

// Store is a file-backed cache of assembled dataset tables.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logging.NewLogger("cache"),
	}, nil
}

// Dir returns the cache root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the cache file path for a (place, kind) pair, e.g.
// data/ArosaHourlyDensity.csv.gz.
func (s *Store) Path(place string, kind heatmap.Kind) string {
	return filepath.Join(s.dir, place+kind.Label()+FileExt)
}

// Exists reports whether a completed cache file exists for the pair.
func (s *Store) Exists(place string, kind heatmap.Kind) bool {
	info, err := os.Stat(s.Path(place, kind))
	return err == nil && !info.IsDir()
}

// SaveTiles persists the tile table for a place.
func (s *Store) SaveTiles(place string, tiles []heatmap.Tile) error {
	return s.save(place, heatmap.KindTiles, tilesHeader, encodeTiles(tiles))
}

// LoadTiles loads the cached tile table for a place.
func (s *Store) LoadTiles(place string) ([]heatmap.Tile, error) {
	rows, err := s.load(place, heatmap.KindTiles, tilesHeader)
	if err != nil {
		return nil, err
	}
	return decodeTiles(rows)
}

// SaveDailyDensity persists the daily density table for a place.
func (s *Store) SaveDailyDensity(place string, records []heatmap.DensityRecord) error {
	return s.save(place, heatmap.KindDailyDensity, dailyDensityHeader, encodeDailyDensity(records))
}

// LoadDailyDensity loads the cached daily density table for a place.
func (s *Store) LoadDailyDensity(place string) ([]heatmap.DensityRecord, error) {
	rows, err := s.load(place, heatmap.KindDailyDensity, dailyDensityHeader)
	if err != nil {
		return nil, err
	}
	return decodeDailyDensity(rows)
}

// SaveHourlyDensity persists the hourly density table for a place.
func (s *Store) SaveHourlyDensity(place string, records []heatmap.DensityRecord) error {
	return s.save(place, heatmap.KindHourlyDensity, hourlyDensityHeader, encodeHourlyDensity(records))
}

// LoadHourlyDensity loads the cached hourly density table for a place.
func (s *Store) LoadHourlyDensity(place string) ([]heatmap.DensityRecord, error) {
	rows, err := s.load(place, heatmap.KindHourlyDensity, hourlyDensityHeader)
	if err != nil {
		return nil, err
	}
	return decodeHourlyDensity(rows)
}

// SaveDailyDemographics persists the daily demographics table for a place.
func (s *Store) SaveDailyDemographics(place string, records []heatmap.DemographicsRecord) error {
	return s.save(place, heatmap.KindDailyDemographics, dailyDemographicsHeader, encodeDailyDemographics(records))
}

// LoadDailyDemographics loads the cached daily demographics table.
func (s *Store) LoadDailyDemographics(place string) ([]heatmap.DemographicsRecord, error) {
	rows, err := s.load(place, heatmap.KindDailyDemographics, dailyDemographicsHeader)
	if err != nil {
		return nil, err
	}
	return decodeDailyDemographics(rows)
}

// SaveHourlyDemographics persists the expanded hourly demographics table.
func (s *Store) SaveHourlyDemographics(place string, rows []heatmap.DemographicsRow) error {
	return s.save(place, heatmap.KindHourlyDemographics, hourlyDemographicsHeader, encodeHourlyDemographics(rows))
}

// LoadHourlyDemographics loads the cached hourly demographics table.
func (s *Store) LoadHourlyDemographics(place string) ([]heatmap.DemographicsRow, error) {
	rows, err := s.load(place, heatmap.KindHourlyDemographics, hourlyDemographicsHeader)
	if err != nil {
		return nil, err
	}
	return decodeHourlyDemographics(rows)
}

// save writes header+rows to a temp file and renames it into place, so a
// crash never leaves a half-written cache file.
func (s *Store) save(place string, kind heatmap.Kind, header []string, rows [][]string) error {
	path := s.Path(place, kind)

	tmp, err := os.CreateTemp(s.dir, "."+place+kind.Label()+".tmp-*")
	if err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op after a successful rename
		os.Remove(tmpPath)
	}()

	gz := gzip.NewWriter(tmp)
	w := csv.NewWriter(gz)

	if err := w.Write(header); err != nil {
		tmp.Close()
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("write cache header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("write cache rows: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("close gzip stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		cacheErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("rename cache file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		cacheBytesWritten.Add(float64(info.Size()))
	}

	s.logger.Debug().
		Str("place", place).
		Str("kind", string(kind)).
		Int("rows", len(rows)).
		Msg("Cache file written")

	return nil
}

// load reads a cache file and validates its header against the expected
// schema.
func (s *Store) load(place string, kind heatmap.Kind, header []string) ([][]string, error) {
	path := s.Path(place, kind)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cacheMisses.WithLabelValues(string(kind)).Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		cacheErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	defer gz.Close()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = len(header)

	got, err := r.Read()
	if err != nil {
		cacheErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: missing header: %v", ErrCorrupted, err)
	}
	for i := range header {
		if got[i] != header[i] {
			cacheErrors.WithLabelValues("load").Inc()
			return nil, fmt.Errorf("%w: header %v does not match schema %v", ErrCorrupted, got, header)
		}
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			cacheErrors.WithLabelValues("load").Inc()
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		rows = append(rows, row)
	}

	cacheHits.WithLabelValues(string(kind)).Inc()
	return rows, nil
}
