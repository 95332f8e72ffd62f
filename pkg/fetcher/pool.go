package fetcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
	"github.com/swissmobility/heatmap-fetcher/pkg/logging"
)

// Pool runs the orchestrator over many places with a fixed number of
// long-lived workers draining a shared queue. Shutdown is signalled by
// closing the queue and cancelling the shared context; each worker
// finishes its in-flight place before exiting, so there is no mid-fetch
// cancellation of an HTTP call already underway.
type Pool struct {
	orchestrator *Orchestrator
	workers      int
	logger       zerolog.Logger
}

// NewPool creates a pool with the given worker count.
func NewPool(orchestrator *Orchestrator, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		orchestrator: orchestrator,
		workers:      workers,
		logger:       logging.NewLogger("pool"),
	}
}

// Run processes every place and returns one report per place, in input
// order. It blocks until the queue is fully drained and all workers have
// exited. An auth-fatal report cancels the run: queued places are
// reported as failed without being fetched.
func (p *Pool) Run(ctx context.Context, placeNames []string) []Report {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan string)
	results := make(chan Report, len(placeNames))

	go func() {
		defer close(queue)
		for _, place := range placeNames {
			select {
			case queue <- place:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, cancel, i, queue, results, &wg)
	}

	wg.Wait()
	close(results)

	reports := make(map[string]Report, len(placeNames))
	for report := range results {
		reports[report.Place] = report
	}

	// Places the cancellation left unprocessed still get a report
	ordered := make([]Report, 0, len(placeNames))
	for _, place := range placeNames {
		if report, ok := reports[place]; ok {
			ordered = append(ordered, report)
			continue
		}
		ordered = append(ordered, Report{
			Place:      place,
			ResolveErr: fmt.Errorf("not processed: %w", context.Cause(ctx)),
		})
	}
	return ordered
}

// worker drains the queue, one full place (all five dataset kinds) at a
// time.
func (p *Pool) worker(ctx context.Context, cancel context.CancelFunc, id int, queue <-chan string, results chan<- Report, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := p.logger.With().Int("worker_id", id).Logger()

	processed := 0
	for place := range queue {
		activeWorkers.Inc()
		logger.Info().Str("place", place).Msg("Processing place")

		report := p.orchestrator.FetchPlace(ctx, place)
		results <- report
		processed++
		activeWorkers.Dec()

		if report.AuthFatal {
			logger.Error().Str("place", place).Msg("Authentication failed, stopping the run")
			cancel()
			return
		}
	}

	if processed > 0 {
		logger.Debug().Int("places_processed", processed).Msg("Worker completed")
	}
}

// Summary aggregates a run's reports for end-of-run reporting.
type Summary struct {
	Places    int
	Succeeded []string
	// Failures maps each failed place to its failed kinds.
	Failures map[string][]heatmap.Kind
	// ResolveFailed lists places that never resolved.
	ResolveFailed []string
	AuthFatal     bool
}

// Summarize collapses reports into a Summary.
func Summarize(reports []Report) Summary {
	summary := Summary{
		Places:   len(reports),
		Failures: make(map[string][]heatmap.Kind),
	}
	for _, report := range reports {
		if report.AuthFatal {
			summary.AuthFatal = true
		}
		if report.ResolveErr != nil {
			summary.ResolveFailed = append(summary.ResolveFailed, report.Place)
			continue
		}
		if !report.Failed() {
			summary.Succeeded = append(summary.Succeeded, report.Place)
			continue
		}
		kinds := make([]heatmap.Kind, 0, len(report.Errors))
		for kind := range report.Errors {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		summary.Failures[report.Place] = kinds
	}
	return summary
}
