// Package heatmap defines the data model for the mobility heatmap pipeline:
// tiles, density and demographics records, and the canonical per-place
// tables assembled from provider responses.
package heatmap

import "time"

// TimestampLayout is the ISO-8601 layout (no zone) used by the provider in
// hourly request paths. The same layout keys cache files so that request
// construction and response joining never disagree.
const TimestampLayout = "2006-01-02T15:04:05"

// DateLayout is the layout used in daily request paths.
const DateLayout = "2006-01-02"

// AgeBuckets is the number of buckets in a demographics age distribution
// (0-19, 20-39, 40-64, 65+).
const AgeBuckets = 4

// Kind identifies one of the five independently fetched and cached
// dataset kinds.
type Kind string

const (
	KindTiles              Kind = "tiles"
	KindDailyDensity       Kind = "daily_density"
	KindHourlyDensity      Kind = "hourly_density"
	KindDailyDemographics  Kind = "daily_demographics"
	KindHourlyDemographics Kind = "hourly_demographics"
)

// Kinds lists all dataset kinds in the order the orchestrator processes them.
// Tiles come first so the other four can reuse the fetched tile set.
var Kinds = []Kind{
	KindTiles,
	KindHourlyDemographics,
	KindHourlyDensity,
	KindDailyDensity,
	KindDailyDemographics,
}

// Hourly reports whether the kind is addressed per hour rather than per day.
func (k Kind) Hourly() bool {
	return k == KindHourlyDensity || k == KindHourlyDemographics
}

// Label returns the cache file label for the kind.
func (k Kind) Label() string {
	switch k {
	case KindTiles:
		return "Tiles"
	case KindHourlyDemographics:
		return "HourlyDemographics"
	case KindHourlyDensity:
		return "HourlyDensity"
	case KindDailyDensity:
		return "DensityDaily"
	case KindDailyDemographics:
		return "DemographicsDaily"
	}
	return string(k)
}

// Tile is one geographic grid cell with its bounding box. Tile identifiers
// are stable across time and dataset kinds for the same place.
type Tile struct {
	TileID int64
	LLLat  float64
	LLLon  float64
	URLat  float64
	URLon  float64
}

// DensityRecord is one dwell-density measurement. A nil Score means the
// provider suppressed the tile for that timestamp (k-anonymization); that
// is data, not an error. Timestamp is zero for the daily variant.
type DensityRecord struct {
	TileID    int64
	Timestamp time.Time
	Score     *int64
}

// DemographicsRecord is one dwell-demographics measurement. AgeDistribution
// and MaleProportion may independently be absent. Timestamp is zero for the
// daily variant.
type DemographicsRecord struct {
	TileID          int64
	Timestamp       time.Time
	AgeDistribution *[AgeBuckets]float64
	MaleProportion  *float64
}

// DemographicsRow is one row of the expanded hourly demographics table.
// A present age distribution expands into AgeBuckets rows with AgeCat
// 0..3; a tile with no distribution yields a single row with nil AgeCat
// and nil AgeShare, keeping MaleProportion if present.
type DemographicsRow struct {
	TileID         int64
	Timestamp      time.Time
	AgeCat         *int
	AgeShare       *float64
	MaleProportion *float64
}

// RawTile is one tile entry as returned by any provider endpoint. Fields
// irrelevant to the queried endpoint stay nil/zero. Tiles the provider
// omitted are not represented here at all; the assembler decides how to
// mark absence.
type RawTile struct {
	TileID          int64     `json:"tileId"`
	LL              *RawPoint `json:"ll,omitempty"`
	UR              *RawPoint `json:"ur,omitempty"`
	Score           *int64    `json:"score,omitempty"`
	AgeDistribution []float64 `json:"ageDistribution,omitempty"`
	MaleProportion  *float64  `json:"maleProportion,omitempty"`
}

// RawPoint is a coordinate pair in a grid response.
type RawPoint struct {
	X float64 `json:"x"` // longitude
	Y float64 `json:"y"` // latitude
}
