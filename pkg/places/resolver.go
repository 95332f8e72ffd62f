// Package places maps human place names to the provider's official
// numeric identifiers, backed by the federal commune reference workbook,
// and keeps the ledger of places processed across runs.
package places

import (
	"fmt"
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/rs/zerolog"

	"github.com/swissmobility/heatmap-fetcher/pkg/logging"
)

// SuggestionThreshold is the minimum similarity for a candidate to be
// suggested.
const SuggestionThreshold = 0.5

// MaxSuggestions bounds the suggestion list.
const MaxSuggestions = 5

// Place is one entry of the official reference table.
type Place struct {
	Name       string
	OfficialID int32
}

// UnknownPlaceError is returned when a name has no exact match in the
// reference table.
type UnknownPlaceError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownPlaceError) Error() string {
	return fmt.Sprintf("unknown place %q", e.Name)
}

// Suggestion is one ranked candidate for a misspelled place name.
type Suggestion struct {
	Name  string
	Score float64
}

// Resolver resolves place names against the reference table. Matching is
// exact and case-sensitive; Suggest covers the near-miss case.
type Resolver struct {
	places []Place
	logger zerolog.Logger
}

// NewResolver creates a resolver over the given reference table.
func NewResolver(places []Place) *Resolver {
	return &Resolver{
		places: places,
		logger: logging.NewLogger("resolver"),
	}
}

// Resolve maps a place name to its official identifier. The reference
// data can, pathologically, list one name under several identifiers; the
// first match wins and the duplicates are logged.
func (r *Resolver) Resolve(name string) (int32, error) {
	var matches []int32
	for _, p := range r.places {
		if p.Name == name {
			matches = append(matches, p.OfficialID)
		}
	}
	if len(matches) == 0 {
		return 0, &UnknownPlaceError{Name: name}
	}
	if len(matches) > 1 {
		r.logger.Debug().
			Str("place", name).
			Ints32("official_ids", matches).
			Msg("Place name maps to multiple identifiers, using the first")
	}
	return matches[0], nil
}

// Suggest ranks all reference names by string similarity to name,
// descending, and returns the top candidates above the threshold.
func (r *Resolver) Suggest(name string) []Suggestion {
	lev := metrics.NewLevenshtein()

	var candidates []Suggestion
	for _, p := range r.places {
		score := strutil.Similarity(name, p.Name, lev)
		if score > SuggestionThreshold {
			candidates = append(candidates, Suggestion{Name: p.Name, Score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > MaxSuggestions {
		candidates = candidates[:MaxSuggestions]
	}
	return candidates
}

// Clean filters names to those with an exact match, logging suggestions
// for every rejected name. Dropping unmatched names is a validation
// policy: a misspelled place must not silently fetch the wrong data.
func (r *Resolver) Clean(names []string) []string {
	valid := make([]string, 0, len(names))
	for _, name := range names {
		if _, err := r.Resolve(name); err == nil {
			valid = append(valid, name)
			continue
		}

		suggestions := r.Suggest(name)
		candidates := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			candidates = append(candidates, s.Name)
		}
		r.logger.Warn().
			Str("place", name).
			Strs("suggestions", candidates).
			Msg("Place not found in official records, ignoring")
	}
	return valid
}
