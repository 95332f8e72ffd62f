package heatmap

import (
	"testing"
	"time"
)

func hoursFor(day time.Time) []time.Time {
	hours := make([]time.Time, 24)
	for i := range hours {
		hours[i] = day.Add(time.Duration(i) * time.Hour)
	}
	return hours
}

func TestAssembleTiles(t *testing.T) {
	raw := []RawTile{
		{TileID: 200, LL: &RawPoint{X: 9.68, Y: 46.77}, UR: &RawPoint{X: 9.69, Y: 46.78}},
		{TileID: 100, LL: &RawPoint{X: 9.67, Y: 46.77}, UR: &RawPoint{X: 9.68, Y: 46.78}},
	}

	tiles := AssembleTiles(raw)

	if len(tiles) != 2 {
		t.Fatalf("got %d tiles, want 2", len(tiles))
	}
	if tiles[0].TileID != 100 || tiles[1].TileID != 200 {
		t.Errorf("tiles not ordered by ID: %+v", tiles)
	}
	// Provider x/y map to lon/lat
	if tiles[0].LLLon != 9.67 || tiles[0].LLLat != 46.77 {
		t.Errorf("lower-left mapping wrong: %+v", tiles[0])
	}
	if tiles[0].URLon != 9.68 || tiles[0].URLat != 46.78 {
		t.Errorf("upper-right mapping wrong: %+v", tiles[0])
	}
}

func TestAssembleDailyDensityKeepsPresentOnly(t *testing.T) {
	s1, s2 := int64(1351), int64(875)
	raw := []RawTile{
		{TileID: 44460297, Score: &s2},
		{TileID: 44394309, Score: &s1},
	}

	records := AssembleDailyDensity(raw)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].TileID != 44394309 || records[1].TileID != 44460297 {
		t.Errorf("records not ordered by tile ID: %+v", records)
	}
	if *records[0].Score != 1351 {
		t.Errorf("score = %d, want 1351", *records[0].Score)
	}
}

func TestHourlyDensityCompleteness(t *testing.T) {
	day := time.Date(2020, time.January, 27, 0, 0, 0, 0, time.UTC)
	hours := hoursFor(day)
	tiles := []int64{200, 100} // unsorted on purpose

	b := NewHourlyDensityBuilder()
	// Tile 100 has a score every hour; tile 200 is always suppressed
	for i, ts := range hours {
		score := int64(5 + i)
		b.Add(ts, []RawTile{{TileID: 100, Score: &score}})
	}

	records := b.Table(tiles, hours)

	// Exactly T x 24 keys regardless of suppression
	if len(records) != 48 {
		t.Fatalf("got %d records, want 48", len(records))
	}

	var withScore, suppressed int
	for _, rec := range records {
		if rec.Score != nil {
			withScore++
			if rec.TileID != 100 {
				t.Errorf("unexpected score for tile %d", rec.TileID)
			}
		} else {
			suppressed++
			if rec.TileID != 200 {
				t.Errorf("tile %d at %v missing without suppression", rec.TileID, rec.Timestamp)
			}
		}
	}
	if withScore != 24 || suppressed != 24 {
		t.Errorf("withScore=%d suppressed=%d, want 24/24", withScore, suppressed)
	}

	// Ordered by tile ID then timestamp
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.TileID > cur.TileID {
			t.Fatalf("tile order violated at %d", i)
		}
		if prev.TileID == cur.TileID && !prev.Timestamp.Before(cur.Timestamp) {
			t.Fatalf("timestamp order violated at %d", i)
		}
	}
}

func TestHourlyDensityPartialHour(t *testing.T) {
	day := time.Date(2020, time.January, 27, 0, 0, 0, 0, time.UTC)
	hours := hoursFor(day)

	b := NewHourlyDensityBuilder()
	// Tile present at hour 0 only
	score := int64(52)
	b.Add(hours[0], []RawTile{{TileID: 44394309, Score: &score}})

	records := b.Table([]int64{44394309}, hours)

	if len(records) != 24 {
		t.Fatalf("got %d records, want 24", len(records))
	}
	if records[0].Score == nil || *records[0].Score != 52 {
		t.Errorf("hour 0 score = %v, want 52", records[0].Score)
	}
	for _, rec := range records[1:] {
		if rec.Score != nil {
			t.Errorf("hour %v should be suppressed", rec.Timestamp)
		}
	}
}

func TestHourlyDemographicsExpansion(t *testing.T) {
	day := time.Date(2020, time.January, 27, 0, 0, 0, 0, time.UTC)
	hours := hoursFor(day)[:1] // single hour keeps the test focused
	male := 0.4727686941623688

	b := NewHourlyDemographicsBuilder()
	b.Add(hours[0], []RawTile{
		{
			TileID:          26994514,
			AgeDistribution: []float64{0.1925, 0.2758, 0.3622, 0.1694},
			MaleProportion:  &male,
		},
		{
			TileID:         44394309,
			MaleProportion: &male,
		},
	})

	rows := b.Table([]int64{26994514, 44394309, 99999999}, hours)

	// 4 expanded rows + 1 no-distribution row + 1 never-mentioned row
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6", len(rows))
	}

	// Tile 26994514: four rows with categories 0..3
	for i := 0; i < AgeBuckets; i++ {
		row := rows[i]
		if row.TileID != 26994514 {
			t.Fatalf("row %d tile = %d", i, row.TileID)
		}
		if row.AgeCat == nil || *row.AgeCat != i {
			t.Errorf("row %d age_cat = %v, want %d", i, row.AgeCat, i)
		}
		if row.AgeShare == nil {
			t.Errorf("row %d missing age share", i)
		}
		if row.MaleProportion == nil || *row.MaleProportion != male {
			t.Errorf("row %d male proportion = %v, want %v", i, row.MaleProportion, male)
		}
	}

	// Tile 44394309: one row, nil category, male proportion kept
	noDist := rows[4]
	if noDist.TileID != 44394309 || noDist.AgeCat != nil || noDist.AgeShare != nil {
		t.Errorf("no-distribution row wrong: %+v", noDist)
	}
	if noDist.MaleProportion == nil || *noDist.MaleProportion != male {
		t.Errorf("no-distribution row lost male proportion: %+v", noDist)
	}

	// Tile 99999999: never mentioned by the provider, still one marker row
	absent := rows[5]
	if absent.TileID != 99999999 || absent.AgeCat != nil || absent.AgeShare != nil || absent.MaleProportion != nil {
		t.Errorf("absent tile row wrong: %+v", absent)
	}
}

func TestAssembleDailyDemographics(t *testing.T) {
	male := 0.493218
	raw := []RawTile{
		{TileID: 44554639, MaleProportion: &male},
		{TileID: 44271906, AgeDistribution: []float64{0.214, 0.277, 0.374, 0.135}, MaleProportion: &male},
	}

	records := AssembleDailyDemographics(raw)

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].TileID != 44271906 {
		t.Errorf("records not ordered: %+v", records)
	}
	if records[0].AgeDistribution == nil {
		t.Error("distribution lost in assembly")
	}
	if records[1].AgeDistribution != nil {
		t.Error("absent distribution should stay nil")
	}
}

func TestToAgeDistributionRejectsWrongLength(t *testing.T) {
	if got := toAgeDistribution([]float64{0.5, 0.5}); got != nil {
		t.Errorf("expected nil for short distribution, got %v", got)
	}
	if got := toAgeDistribution(nil); got != nil {
		t.Errorf("expected nil for absent distribution, got %v", got)
	}
}
