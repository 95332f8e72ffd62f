package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestPathNaming(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		kind heatmap.Kind
		want string
	}{
		{heatmap.KindTiles, "ArosaTiles.csv.gz"},
		{heatmap.KindHourlyDemographics, "ArosaHourlyDemographics.csv.gz"},
		{heatmap.KindHourlyDensity, "ArosaHourlyDensity.csv.gz"},
		{heatmap.KindDailyDensity, "ArosaDensityDaily.csv.gz"},
		{heatmap.KindDailyDemographics, "ArosaDemographicsDaily.csv.gz"},
	}

	for _, tt := range tests {
		if got := filepath.Base(store.Path("Arosa", tt.kind)); got != tt.want {
			t.Errorf("Path(Arosa, %s) basename = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t)

	if store.Exists("Arosa", heatmap.KindTiles) {
		t.Error("Exists should be false before save")
	}

	if err := store.SaveTiles("Arosa", []heatmap.Tile{{TileID: 100}}); err != nil {
		t.Fatalf("SaveTiles failed: %v", err)
	}

	if !store.Exists("Arosa", heatmap.KindTiles) {
		t.Error("Exists should be true after save")
	}
	if store.Exists("Arosa", heatmap.KindDailyDensity) {
		t.Error("Exists must be per dataset kind")
	}
}

func TestTilesRoundTrip(t *testing.T) {
	store := newTestStore(t)

	tiles := []heatmap.Tile{
		{TileID: 44394309, LLLat: 46.77, LLLon: 9.67, URLat: 46.78, URLon: 9.68},
		{TileID: 44460297, LLLat: 46.78, LLLon: 9.67, URLat: 46.79, URLon: 9.68},
	}
	if err := store.SaveTiles("Arosa", tiles); err != nil {
		t.Fatalf("SaveTiles failed: %v", err)
	}

	loaded, err := store.LoadTiles("Arosa")
	if err != nil {
		t.Fatalf("LoadTiles failed: %v", err)
	}
	if len(loaded) != len(tiles) {
		t.Fatalf("loaded %d tiles, want %d", len(loaded), len(tiles))
	}
	for i := range tiles {
		if loaded[i] != tiles[i] {
			t.Errorf("tile %d = %+v, want %+v", i, loaded[i], tiles[i])
		}
	}
}

func TestHourlyDensityPreservesSuppression(t *testing.T) {
	store := newTestStore(t)

	score := int64(42)
	ts := time.Date(2020, time.January, 27, 13, 0, 0, 0, time.UTC)
	records := []heatmap.DensityRecord{
		{TileID: 100, Timestamp: ts, Score: &score},
		{TileID: 200, Timestamp: ts, Score: nil}, // suppressed
	}

	if err := store.SaveHourlyDensity("Arosa", records); err != nil {
		t.Fatalf("SaveHourlyDensity failed: %v", err)
	}

	loaded, err := store.LoadHourlyDensity("Arosa")
	if err != nil {
		t.Fatalf("LoadHourlyDensity failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d records, want 2", len(loaded))
	}
	if loaded[0].Score == nil || *loaded[0].Score != 42 {
		t.Errorf("record 0 score = %v, want 42", loaded[0].Score)
	}
	if loaded[1].Score != nil {
		t.Errorf("record 1 score = %v, want nil (suppressed, not zero)", *loaded[1].Score)
	}
	if !loaded[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", loaded[0].Timestamp, ts)
	}
}

func TestHourlyDemographicsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2020, time.January, 27, 6, 0, 0, 0, time.UTC)
	cat := 2
	share := 0.363481
	male := 0.497038
	rows := []heatmap.DemographicsRow{
		{TileID: 44290729, Timestamp: ts, AgeCat: &cat, AgeShare: &share, MaleProportion: &male},
		{TileID: 44394309, Timestamp: ts, MaleProportion: &male}, // no distribution
	}

	if err := store.SaveHourlyDemographics("Arosa", rows); err != nil {
		t.Fatalf("SaveHourlyDemographics failed: %v", err)
	}

	loaded, err := store.LoadHourlyDemographics("Arosa")
	if err != nil {
		t.Fatalf("LoadHourlyDemographics failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d rows, want 2", len(loaded))
	}
	if loaded[0].AgeCat == nil || *loaded[0].AgeCat != 2 {
		t.Errorf("row 0 age_cat = %v, want 2", loaded[0].AgeCat)
	}
	if loaded[0].AgeShare == nil || *loaded[0].AgeShare != share {
		t.Errorf("row 0 age_share = %v, want %v", loaded[0].AgeShare, share)
	}
	if loaded[1].AgeCat != nil || loaded[1].AgeShare != nil {
		t.Errorf("row 1 should have nil category and share: %+v", loaded[1])
	}
	if loaded[1].MaleProportion == nil || *loaded[1].MaleProportion != male {
		t.Errorf("row 1 male_proportion = %v, want %v", loaded[1].MaleProportion, male)
	}
}

func TestDailyDemographicsDistribution(t *testing.T) {
	store := newTestStore(t)

	male := 0.49828359484672546
	dist := [heatmap.AgeBuckets]float64{0.214, 0.277, 0.374, 0.135}
	records := []heatmap.DemographicsRecord{
		{TileID: 44271906, AgeDistribution: &dist, MaleProportion: &male},
		{TileID: 44554639, MaleProportion: &male},
	}

	if err := store.SaveDailyDemographics("Arosa", records); err != nil {
		t.Fatalf("SaveDailyDemographics failed: %v", err)
	}

	loaded, err := store.LoadDailyDemographics("Arosa")
	if err != nil {
		t.Fatalf("LoadDailyDemographics failed: %v", err)
	}
	if loaded[0].AgeDistribution == nil || *loaded[0].AgeDistribution != dist {
		t.Errorf("distribution = %v, want %v", loaded[0].AgeDistribution, dist)
	}
	if loaded[1].AgeDistribution != nil {
		t.Errorf("absent distribution decoded as %v, want nil", *loaded[1].AgeDistribution)
	}
}

func TestLoadMissingIsCacheMiss(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadTiles("Nowhere")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestLoadCorruptedFile(t *testing.T) {
	store := newTestStore(t)

	path := store.Path("Arosa", heatmap.KindTiles)
	if err := os.WriteFile(path, []byte("not gzip at all"), 0o644); err != nil {
		t.Fatalf("write junk file: %v", err)
	}

	_, err := store.LoadTiles("Arosa")
	if !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}

func TestLoadWrongSchemaIsCorrupted(t *testing.T) {
	store := newTestStore(t)

	// A valid daily density file is not a valid tiles file
	score := int64(1)
	if err := store.SaveDailyDensity("Arosa", []heatmap.DensityRecord{{TileID: 100, Score: &score}}); err != nil {
		t.Fatalf("SaveDailyDensity failed: %v", err)
	}
	if err := os.Rename(store.Path("Arosa", heatmap.KindDailyDensity), store.Path("Arosa", heatmap.KindTiles)); err != nil {
		t.Fatalf("rename: %v", err)
	}

	_, err := store.LoadTiles("Arosa")
	if !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted for schema mismatch, got %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveTiles("Arosa", []heatmap.Tile{{TileID: 1}}); err != nil {
		t.Fatalf("SaveTiles failed: %v", err)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly the cache file, got %d entries", len(entries))
	}
}
