package heatmap

import (
	"sort"
	"time"
)

// AssembleTiles builds the canonical tile table from grid responses,
// ordered by tile ID ascending.
func AssembleTiles(raw []RawTile) []Tile {
	tiles := make([]Tile, 0, len(raw))
	for _, r := range raw {
		t := Tile{TileID: r.TileID}
		if r.LL != nil {
			t.LLLat = r.LL.Y
			t.LLLon = r.LL.X
		}
		if r.UR != nil {
			t.URLat = r.UR.Y
			t.URLon = r.UR.X
		}
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].TileID < tiles[j].TileID })
	return tiles
}

// AssembleDailyDensity builds the daily density table from the accumulated
// batch responses for one day. Only tiles the provider returned appear;
// daily tables carry no absence markers. Ordered by tile ID ascending.
func AssembleDailyDensity(raw []RawTile) []DensityRecord {
	records := make([]DensityRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, DensityRecord{TileID: r.TileID, Score: r.Score})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].TileID < records[j].TileID })
	return records
}

// AssembleDailyDemographics builds the daily demographics table from the
// accumulated batch responses for one day. Ordered by tile ID ascending.
func AssembleDailyDemographics(raw []RawTile) []DemographicsRecord {
	records := make([]DemographicsRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, DemographicsRecord{
			TileID:          r.TileID,
			AgeDistribution: toAgeDistribution(r.AgeDistribution),
			MaleProportion:  r.MaleProportion,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].TileID < records[j].TileID })
	return records
}

// HourlyDensityBuilder accumulates per-(batch, hour) density responses and
// produces the complete hourly table for one place and day.
type HourlyDensityBuilder struct {
	scores map[int64]map[time.Time]*int64
}

// NewHourlyDensityBuilder returns an empty builder.
func NewHourlyDensityBuilder() *HourlyDensityBuilder {
	return &HourlyDensityBuilder{scores: make(map[int64]map[time.Time]*int64)}
}

// Add records one response for one hour. Tiles missing from raw stay
// unrecorded; Table marks them as suppressed.
func (b *HourlyDensityBuilder) Add(ts time.Time, raw []RawTile) {
	for _, r := range raw {
		byHour, ok := b.scores[r.TileID]
		if !ok {
			byHour = make(map[time.Time]*int64)
			b.scores[r.TileID] = byHour
		}
		byHour[ts] = r.Score
	}
}

// Table emits one record per requested (tile, hour) pair, with a nil score
// wherever the provider never mentioned the pair. Ordered by tile ID
// ascending, then timestamp ascending.
func (b *HourlyDensityBuilder) Table(tiles []int64, hours []time.Time) []DensityRecord {
	sorted := sortedTileIDs(tiles)
	records := make([]DensityRecord, 0, len(sorted)*len(hours))
	for _, id := range sorted {
		for _, ts := range hours {
			rec := DensityRecord{TileID: id, Timestamp: ts}
			if byHour, ok := b.scores[id]; ok {
				rec.Score = byHour[ts]
			}
			records = append(records, rec)
		}
	}
	return records
}

// HourlyDemographicsBuilder accumulates per-(batch, hour) demographics
// responses and produces the expanded hourly table for one place and day.
type HourlyDemographicsBuilder struct {
	entries map[int64]map[time.Time]demographicsEntry
}

type demographicsEntry struct {
	ageDistribution []float64
	maleProportion  *float64
}

// NewHourlyDemographicsBuilder returns an empty builder.
func NewHourlyDemographicsBuilder() *HourlyDemographicsBuilder {
	return &HourlyDemographicsBuilder{entries: make(map[int64]map[time.Time]demographicsEntry)}
}

// Add records one response for one hour.
func (b *HourlyDemographicsBuilder) Add(ts time.Time, raw []RawTile) {
	for _, r := range raw {
		byHour, ok := b.entries[r.TileID]
		if !ok {
			byHour = make(map[time.Time]demographicsEntry)
			b.entries[r.TileID] = byHour
		}
		byHour[ts] = demographicsEntry{
			ageDistribution: r.AgeDistribution,
			maleProportion:  r.MaleProportion,
		}
	}
}

// Table emits the expanded table: a present age distribution becomes
// AgeBuckets rows tagged 0..3; a (tile, hour) with no distribution, or one
// the provider never mentioned, becomes a single row with nil AgeCat.
// Ordered by tile ID ascending, then timestamp ascending, then age
// category ascending.
func (b *HourlyDemographicsBuilder) Table(tiles []int64, hours []time.Time) []DemographicsRow {
	sorted := sortedTileIDs(tiles)
	rows := make([]DemographicsRow, 0, len(sorted)*len(hours))
	for _, id := range sorted {
		for _, ts := range hours {
			var entry demographicsEntry
			if byHour, ok := b.entries[id]; ok {
				entry = byHour[ts]
			}
			if len(entry.ageDistribution) == 0 {
				rows = append(rows, DemographicsRow{
					TileID:         id,
					Timestamp:      ts,
					MaleProportion: entry.maleProportion,
				})
				continue
			}
			for cat, share := range entry.ageDistribution {
				rows = append(rows, DemographicsRow{
					TileID:         id,
					Timestamp:      ts,
					AgeCat:         &cat,
					AgeShare:       &share,
					MaleProportion: entry.maleProportion,
				})
			}
		}
	}
	return rows
}

func toAgeDistribution(values []float64) *[AgeBuckets]float64 {
	if len(values) != AgeBuckets {
		return nil
	}
	var dist [AgeBuckets]float64
	copy(dist[:], values)
	return &dist
}

func sortedTileIDs(tiles []int64) []int64 {
	sorted := make([]int64, len(tiles))
	copy(sorted, tiles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}
