// Package batch splits tile requests along the provider's two axes: tile
// batches bounded by the maximum tiles-per-request limit, and hourly time
// windows for the hourly endpoints.
package batch

import "time"

// MaxTilesPerRequest is the provider's hard limit on tiles per call.
const MaxTilesPerRequest = 100

// HoursPerDay is the number of hourly windows per calendar day.
const HoursPerDay = 24

// Chunks splits ids into contiguous batches of at most size elements,
// preserving order and covering every element exactly once. Batches alias
// the input slice; callers must not mutate them. An empty input yields no
// batches.
func Chunks(ids []int64, size int) [][]int64 {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	batches := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// Hours expands a calendar day into its 24 hourly timestamps, 00:00
// through 23:00, strictly increasing, all on the given date and in its
// location.
func Hours(day time.Time) []time.Time {
	start := DayStart(day)
	hours := make([]time.Time, HoursPerDay)
	for i := range hours {
		hours[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return hours
}

// DayStart truncates a timestamp to the start of its calendar day,
// keeping the location. Daily endpoints are addressed by this value.
func DayStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}
