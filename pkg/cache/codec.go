package cache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
)

// CSV schemas per dataset kind. Optional values serialize as empty fields;
// an empty field decodes back to nil, keeping suppression distinct from
// zero.
var (
	tilesHeader              = []string{"tile_id", "ll_lat", "ll_lon", "ur_lat", "ur_lon"}
	dailyDensityHeader       = []string{"tile_id", "score"}
	hourlyDensityHeader      = []string{"tile_id", "time", "score"}
	dailyDemographicsHeader  = []string{"tile_id", "age_0_19", "age_20_39", "age_40_64", "age_65_plus", "male_proportion"}
	hourlyDemographicsHeader = []string{"tile_id", "time", "age_cat", "age_share", "male_proportion"}
)

func encodeTiles(tiles []heatmap.Tile) [][]string {
	rows := make([][]string, 0, len(tiles))
	for _, t := range tiles {
		rows = append(rows, []string{
			formatInt(t.TileID),
			formatFloat(t.LLLat),
			formatFloat(t.LLLon),
			formatFloat(t.URLat),
			formatFloat(t.URLon),
		})
	}
	return rows
}

func decodeTiles(rows [][]string) ([]heatmap.Tile, error) {
	tiles := make([]heatmap.Tile, 0, len(rows))
	for _, row := range rows {
		id, err := parseInt(row[0])
		if err != nil {
			return nil, corrupt("tile_id", row[0], err)
		}
		coords := make([]float64, 4)
		for i := 0; i < 4; i++ {
			coords[i], err = strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, corrupt(tilesHeader[i+1], row[i+1], err)
			}
		}
		tiles = append(tiles, heatmap.Tile{
			TileID: id,
			LLLat:  coords[0],
			LLLon:  coords[1],
			URLat:  coords[2],
			URLon:  coords[3],
		})
	}
	return tiles, nil
}

func encodeDailyDensity(records []heatmap.DensityRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{formatInt(rec.TileID), formatOptInt(rec.Score)})
	}
	return rows
}

func decodeDailyDensity(rows [][]string) ([]heatmap.DensityRecord, error) {
	records := make([]heatmap.DensityRecord, 0, len(rows))
	for _, row := range rows {
		id, err := parseInt(row[0])
		if err != nil {
			return nil, corrupt("tile_id", row[0], err)
		}
		score, err := parseOptInt(row[1])
		if err != nil {
			return nil, corrupt("score", row[1], err)
		}
		records = append(records, heatmap.DensityRecord{TileID: id, Score: score})
	}
	return records, nil
}

func encodeHourlyDensity(records []heatmap.DensityRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			formatInt(rec.TileID),
			rec.Timestamp.Format(heatmap.TimestampLayout),
			formatOptInt(rec.Score),
		})
	}
	return rows
}

func decodeHourlyDensity(rows [][]string) ([]heatmap.DensityRecord, error) {
	records := make([]heatmap.DensityRecord, 0, len(rows))
	for _, row := range rows {
		id, err := parseInt(row[0])
		if err != nil {
			return nil, corrupt("tile_id", row[0], err)
		}
		ts, err := time.Parse(heatmap.TimestampLayout, row[1])
		if err != nil {
			return nil, corrupt("time", row[1], err)
		}
		score, err := parseOptInt(row[2])
		if err != nil {
			return nil, corrupt("score", row[2], err)
		}
		records = append(records, heatmap.DensityRecord{TileID: id, Timestamp: ts, Score: score})
	}
	return records, nil
}

func encodeDailyDemographics(records []heatmap.DemographicsRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{formatInt(rec.TileID), "", "", "", "", formatOptFloat(rec.MaleProportion)}
		if rec.AgeDistribution != nil {
			for i, share := range rec.AgeDistribution {
				row[i+1] = formatFloat(share)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func decodeDailyDemographics(rows [][]string) ([]heatmap.DemographicsRecord, error) {
	records := make([]heatmap.DemographicsRecord, 0, len(rows))
	for _, row := range rows {
		id, err := parseInt(row[0])
		if err != nil {
			return nil, corrupt("tile_id", row[0], err)
		}
		rec := heatmap.DemographicsRecord{TileID: id}

		// All-empty age columns mean the distribution was absent
		if row[1] != "" {
			var dist [heatmap.AgeBuckets]float64
			for i := 0; i < heatmap.AgeBuckets; i++ {
				dist[i], err = strconv.ParseFloat(row[i+1], 64)
				if err != nil {
					return nil, corrupt(dailyDemographicsHeader[i+1], row[i+1], err)
				}
			}
			rec.AgeDistribution = &dist
		}

		rec.MaleProportion, err = parseOptFloat(row[5])
		if err != nil {
			return nil, corrupt("male_proportion", row[5], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeHourlyDemographics(rows []heatmap.DemographicsRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, rec := range rows {
		ageCat := ""
		if rec.AgeCat != nil {
			ageCat = strconv.Itoa(*rec.AgeCat)
		}
		out = append(out, []string{
			formatInt(rec.TileID),
			rec.Timestamp.Format(heatmap.TimestampLayout),
			ageCat,
			formatOptFloat(rec.AgeShare),
			formatOptFloat(rec.MaleProportion),
		})
	}
	return out
}

func decodeHourlyDemographics(rows [][]string) ([]heatmap.DemographicsRow, error) {
	records := make([]heatmap.DemographicsRow, 0, len(rows))
	for _, row := range rows {
		id, err := parseInt(row[0])
		if err != nil {
			return nil, corrupt("tile_id", row[0], err)
		}
		ts, err := time.Parse(heatmap.TimestampLayout, row[1])
		if err != nil {
			return nil, corrupt("time", row[1], err)
		}
		rec := heatmap.DemographicsRow{TileID: id, Timestamp: ts}

		if row[2] != "" {
			cat, err := strconv.Atoi(row[2])
			if err != nil {
				return nil, corrupt("age_cat", row[2], err)
			}
			rec.AgeCat = &cat
		}
		rec.AgeShare, err = parseOptFloat(row[3])
		if err != nil {
			return nil, corrupt("age_share", row[3], err)
		}
		rec.MaleProportion, err = parseOptFloat(row[4])
		if err != nil {
			return nil, corrupt("male_proportion", row[4], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptInt(v *int64) string {
	if v == nil {
		return ""
	}
	return formatInt(*v)
}

func parseOptInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseInt(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func corrupt(field, value string, err error) error {
	return fmt.Errorf("%w: field %s value %q: %v", ErrCorrupted, field, value, err)
}
