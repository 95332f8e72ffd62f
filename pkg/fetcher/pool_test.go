package fetcher

import (
	"context"
	"testing"

	"github.com/swissmobility/heatmap-fetcher/internal/testutil"
	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
)

func TestPoolRun(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	setHealthyResponses(mock)

	orch, store := newTestOrchestrator(t, mock)
	pool := NewPool(orch, 2)

	placeNames := []string{"Arosa", "Bulle"}
	reports := pool.Run(context.Background(), placeNames)

	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	// Reports come back in input order regardless of worker scheduling
	for i, place := range placeNames {
		if reports[i].Place != place {
			t.Errorf("reports[%d].Place = %q, want %q", i, reports[i].Place, place)
		}
		if reports[i].Failed() {
			t.Errorf("place %q failed: %+v", place, reports[i].Errors)
		}
	}

	for _, place := range placeNames {
		for _, kind := range heatmap.Kinds {
			if !store.Exists(place, kind) {
				t.Errorf("cache file missing for (%s, %s)", place, kind)
			}
		}
	}
}

func TestPoolRun_FailedPlaceDoesNotAbortOthers(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	setHealthyResponses(mock)

	orch, _ := newTestOrchestrator(t, mock)
	pool := NewPool(orch, 2)

	// Atlantis is not in the reference table
	reports := pool.Run(context.Background(), []string{"Atlantis", "Arosa"})

	if reports[0].ResolveErr == nil {
		t.Error("expected resolve error for Atlantis")
	}
	if reports[1].Failed() {
		t.Errorf("Arosa should have succeeded: %+v", reports[1].Errors)
	}
}

func TestPoolRun_AuthFailureStopsRun(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/grids/municipalities/", testutil.NewUnauthorizedResponse())

	orch, _ := newTestOrchestrator(t, mock)
	// Single worker makes the cancellation order deterministic
	pool := NewPool(orch, 1)

	reports := pool.Run(context.Background(), []string{"Arosa", "Bulle"})

	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if !reports[0].AuthFatal {
		t.Error("first report should be auth-fatal")
	}
	// The queued place is reported but never fetched
	if !reports[1].Failed() {
		t.Error("queued place should be reported as not processed")
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("request count = %d, want 1 (no work after auth failure)", mock.GetRequestCount())
	}
}

func TestSummarize(t *testing.T) {
	reports := []Report{
		{Place: "Arosa", Fetched: heatmap.Kinds},
		{Place: "Bulle", Errors: map[heatmap.Kind]error{
			heatmap.KindHourlyDensity: context.DeadlineExceeded,
		}},
		{Place: "Atlantis", ResolveErr: context.Canceled},
	}

	summary := Summarize(reports)

	if summary.Places != 3 {
		t.Errorf("Places = %d, want 3", summary.Places)
	}
	if len(summary.Succeeded) != 1 || summary.Succeeded[0] != "Arosa" {
		t.Errorf("Succeeded = %v", summary.Succeeded)
	}
	if kinds := summary.Failures["Bulle"]; len(kinds) != 1 || kinds[0] != heatmap.KindHourlyDensity {
		t.Errorf("Failures[Bulle] = %v", kinds)
	}
	if len(summary.ResolveFailed) != 1 || summary.ResolveFailed[0] != "Atlantis" {
		t.Errorf("ResolveFailed = %v", summary.ResolveFailed)
	}
}
