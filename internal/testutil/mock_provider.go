// Package testutil provides testing utilities for the heatmap pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock provider endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProvider is a configurable mock heatmap provider for testing.
// Handlers are matched by longest registered path prefix, so one handler
// can cover every hourly timestamp of an endpoint family.
type MockProvider struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	RequestPaths      []string
	LastRequestHeader http.Header
}

// NewMockProvider creates a new mock provider server.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestPaths = append(mock.RequestPaths, r.URL.Path)
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		var handler http.HandlerFunc
		longest := -1
		for prefix, h := range mock.handlers {
			if strings.HasPrefix(r.URL.Path, prefix) && len(prefix) > longest {
				handler = h
				longest = len(prefix)
			}
		}
		mock.mu.RUnlock()

		if handler != nil {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestPaths = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a path prefix.
func (m *MockProvider) SetHandler(prefix string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[prefix] = handler
}

// SetResponse configures a fixed response for a path prefix.
func (m *MockProvider) SetResponse(prefix string, resp MockResponse) {
	m.SetHandler(prefix, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockProvider) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestPaths returns a copy of the request paths seen so far.
func (m *MockProvider) GetRequestPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, len(m.RequestPaths))
	copy(paths, m.RequestPaths)
	return paths
}

// defaultHandler answers any unregistered path with an empty tile set.
func (m *MockProvider) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"tiles": []}`))
}

// GridTile is one tile entry for a grid response body.
type GridTile struct {
	TileID int64
	LLX    float64
	LLY    float64
	URX    float64
	URY    float64
}

// NewGridResponse builds a 200 grid response body for the given tiles.
func NewGridResponse(tiles ...GridTile) MockResponse {
	entries := make([]map[string]any, 0, len(tiles))
	for _, t := range tiles {
		entries = append(entries, map[string]any{
			"tileId": t.TileID,
			"ll":     map[string]float64{"x": t.LLX, "y": t.LLY},
			"ur":     map[string]float64{"x": t.URX, "y": t.URY},
		})
	}
	return newTilesResponse(entries)
}

// NewDensityResponse builds a 200 density response for the given scores.
// Tiles absent from scores are simply not mentioned (suppression).
func NewDensityResponse(scores map[int64]int64) MockResponse {
	entries := make([]map[string]any, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, map[string]any{"tileId": id, "score": score})
	}
	return newTilesResponse(entries)
}

// DemographicsTile is one tile entry for a demographics response body.
type DemographicsTile struct {
	TileID          int64
	AgeDistribution []float64 // nil to omit
	MaleProportion  *float64  // nil to omit
}

// NewDemographicsResponse builds a 200 demographics response.
func NewDemographicsResponse(tiles ...DemographicsTile) MockResponse {
	entries := make([]map[string]any, 0, len(tiles))
	for _, t := range tiles {
		entry := map[string]any{"tileId": t.TileID}
		if t.AgeDistribution != nil {
			entry["ageDistribution"] = t.AgeDistribution
		}
		if t.MaleProportion != nil {
			entry["maleProportion"] = *t.MaleProportion
		}
		entries = append(entries, entry)
	}
	return newTilesResponse(entries)
}

func newTilesResponse(entries []map[string]any) MockResponse {
	body, err := json.Marshal(map[string]any{"tiles": entries})
	if err != nil {
		panic(fmt.Sprintf("marshal mock response: %v", err))
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewBodyErrorResponse builds a 200 response whose body carries a provider
// error status, as the grid endpoint does for unknown municipalities.
func NewBodyErrorResponse(status int, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"status": %d, "message": %q}`, status, message),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message": "Invalid access token"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
