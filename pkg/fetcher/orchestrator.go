// Package fetcher coordinates the per-place acquisition pipeline: resolve
// the place, skip dataset kinds already cached, fetch and assemble the
// rest, and persist each completed table. A worker pool runs many places
// concurrently.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/swissmobility/heatmap-fetcher/pkg/batch"
	"github.com/swissmobility/heatmap-fetcher/pkg/cache"
	"github.com/swissmobility/heatmap-fetcher/pkg/client"
	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
	"github.com/swissmobility/heatmap-fetcher/pkg/logging"
	"github.com/swissmobility/heatmap-fetcher/pkg/places"
)

// Orchestrator fetches all five dataset kinds for one place. Failures are
// contained per dataset kind: one failed kind never aborts its siblings,
// except an auth failure, which is fatal for the whole run.
type Orchestrator struct {
	client   *client.Client
	store    *cache.Store
	resolver *places.Resolver
	day      time.Time
	logger   zerolog.Logger
}

// Config holds the orchestrator's collaborators.
type Config struct {
	Client   *client.Client
	Store    *cache.Store
	Resolver *places.Resolver

	// Day is the calendar day the four measurement kinds cover.
	Day time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.Day.IsZero() {
		return nil, fmt.Errorf("day is required")
	}

	return &Orchestrator{
		client:   cfg.Client,
		store:    cfg.Store,
		resolver: cfg.Resolver,
		day:      batch.DayStart(cfg.Day),
		logger:   logging.NewLogger("orchestrator"),
	}, nil
}

// Report is the outcome of one place's run.
type Report struct {
	Place string

	// ResolveErr is set when the place name could not be resolved; no
	// kinds were attempted.
	ResolveErr error

	// CacheHits lists kinds skipped because their cache file exists.
	CacheHits []heatmap.Kind

	// Fetched lists kinds fetched and cached during this run.
	Fetched []heatmap.Kind

	// Errors maps each failed kind to its error.
	Errors map[heatmap.Kind]error

	// AuthFatal marks that an auth error was seen; the run cannot make
	// progress and the pool stops claiming new places.
	AuthFatal bool
}

// Failed reports whether anything went wrong for the place.
func (r Report) Failed() bool {
	return r.ResolveErr != nil || len(r.Errors) > 0
}

// FetchPlace runs the five dataset kinds for one place.
func (o *Orchestrator) FetchPlace(ctx context.Context, place string) Report {
	report := Report{Place: place, Errors: make(map[heatmap.Kind]error)}
	logger := o.logger.With().Str("place", place).Logger()

	officialID, err := o.resolver.Resolve(place)
	if err != nil {
		logger.Warn().Err(err).Msg("Place resolution failed")
		report.ResolveErr = err
		placesProcessedTotal.WithLabelValues("resolve_failed").Inc()
		return report
	}

	tileIDs, err := o.ensureTiles(ctx, &report, logger, place, officialID)
	if err != nil {
		// Without the tile set none of the measurement kinds can be
		// requested; mark them failed and stop here.
		for _, kind := range heatmap.Kinds[1:] {
			if !o.store.Exists(place, kind) {
				report.Errors[kind] = fmt.Errorf("tile set unavailable: %w", err)
			}
		}
		report.AuthFatal = report.AuthFatal || client.IsAuthError(err)
		placesProcessedTotal.WithLabelValues("failed").Inc()
		return report
	}

	for _, kind := range heatmap.Kinds[1:] {
		if ctx.Err() != nil {
			report.Errors[kind] = fmt.Errorf("run cancelled: %w", ctx.Err())
			continue
		}
		if o.store.Exists(place, kind) {
			logger.Debug().Str("kind", string(kind)).Msg("Cache hit, skipping")
			report.CacheHits = append(report.CacheHits, kind)
			kindsProcessedTotal.WithLabelValues(string(kind), "cache_hit").Inc()
			continue
		}

		if err := o.fetchKind(ctx, place, kind, tileIDs); err != nil {
			logger.Error().Err(err).Str("kind", string(kind)).Msg("Dataset kind failed")
			report.Errors[kind] = err
			kindsProcessedTotal.WithLabelValues(string(kind), "failed").Inc()
			if client.IsAuthError(err) {
				// No token, no progress: skip the remaining kinds
				report.AuthFatal = true
				break
			}
			continue
		}

		logger.Info().Str("kind", string(kind)).Msg("Dataset kind fetched and cached")
		report.Fetched = append(report.Fetched, kind)
		kindsProcessedTotal.WithLabelValues(string(kind), "fetched").Inc()
	}

	if report.Failed() {
		placesProcessedTotal.WithLabelValues("failed").Inc()
	} else {
		placesProcessedTotal.WithLabelValues("succeeded").Inc()
	}
	return report
}

// ensureTiles returns the place's tile IDs, from cache when possible,
// fetching and caching them otherwise.
func (o *Orchestrator) ensureTiles(ctx context.Context, report *Report, logger zerolog.Logger, place string, officialID int32) ([]int64, error) {
	if o.store.Exists(place, heatmap.KindTiles) {
		tiles, err := o.store.LoadTiles(place)
		if err != nil {
			report.Errors[heatmap.KindTiles] = err
			kindsProcessedTotal.WithLabelValues(string(heatmap.KindTiles), "failed").Inc()
			return nil, err
		}
		logger.Debug().Int("tiles", len(tiles)).Msg("Tile set loaded from cache")
		report.CacheHits = append(report.CacheHits, heatmap.KindTiles)
		kindsProcessedTotal.WithLabelValues(string(heatmap.KindTiles), "cache_hit").Inc()
		return tileIDs(tiles), nil
	}

	raw, err := o.client.FetchTiles(ctx, officialID)
	if err != nil {
		report.Errors[heatmap.KindTiles] = err
		kindsProcessedTotal.WithLabelValues(string(heatmap.KindTiles), "failed").Inc()
		return nil, err
	}
	tiles := heatmap.AssembleTiles(raw)
	if err := o.store.SaveTiles(place, tiles); err != nil {
		report.Errors[heatmap.KindTiles] = err
		kindsProcessedTotal.WithLabelValues(string(heatmap.KindTiles), "failed").Inc()
		return nil, err
	}

	logger.Info().Int("tiles", len(tiles)).Msg("Tile set fetched and cached")
	report.Fetched = append(report.Fetched, heatmap.KindTiles)
	kindsProcessedTotal.WithLabelValues(string(heatmap.KindTiles), "fetched").Inc()
	return tileIDs(tiles), nil
}

// fetchKind fetches, assembles, and caches one measurement kind. The
// cache file appears only after the full table assembled, so a crash or
// failure leaves no partial file.
func (o *Orchestrator) fetchKind(ctx context.Context, place string, kind heatmap.Kind, tiles []int64) error {
	chunks := batch.Chunks(tiles, o.client.MaxTilesPerRequest())

	switch kind {
	case heatmap.KindDailyDensity:
		var raw []heatmap.RawTile
		for _, chunk := range chunks {
			part, err := o.client.Fetch(ctx, kind, chunk, o.day)
			if err != nil {
				return err
			}
			raw = append(raw, part...)
		}
		return o.store.SaveDailyDensity(place, heatmap.AssembleDailyDensity(raw))

	case heatmap.KindDailyDemographics:
		var raw []heatmap.RawTile
		for _, chunk := range chunks {
			part, err := o.client.Fetch(ctx, kind, chunk, o.day)
			if err != nil {
				return err
			}
			raw = append(raw, part...)
		}
		return o.store.SaveDailyDemographics(place, heatmap.AssembleDailyDemographics(raw))

	case heatmap.KindHourlyDensity:
		hours := batch.Hours(o.day)
		builder := heatmap.NewHourlyDensityBuilder()
		for _, ts := range hours {
			for _, chunk := range chunks {
				part, err := o.client.Fetch(ctx, kind, chunk, ts)
				if err != nil {
					return err
				}
				builder.Add(ts, part)
			}
		}
		return o.store.SaveHourlyDensity(place, builder.Table(tiles, hours))

	case heatmap.KindHourlyDemographics:
		hours := batch.Hours(o.day)
		builder := heatmap.NewHourlyDemographicsBuilder()
		for _, ts := range hours {
			for _, chunk := range chunks {
				part, err := o.client.Fetch(ctx, kind, chunk, ts)
				if err != nil {
					return err
				}
				builder.Add(ts, part)
			}
		}
		return o.store.SaveHourlyDemographics(place, builder.Table(tiles, hours))

	default:
		return fmt.Errorf("kind %q is not a measurement kind", kind)
	}
}

func tileIDs(tiles []heatmap.Tile) []int64 {
	ids := make([]int64, len(tiles))
	for i, t := range tiles {
		ids[i] = t.TileID
	}
	return ids
}
