// Command heatmap-fetch downloads per-tile mobility density and
// demographics for a list of places and caches the assembled tables
// locally so repeated runs avoid redundant network calls.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/swissmobility/heatmap-fetcher/pkg/cache"
	"github.com/swissmobility/heatmap-fetcher/pkg/client"
	"github.com/swissmobility/heatmap-fetcher/pkg/fetcher"
	"github.com/swissmobility/heatmap-fetcher/pkg/heatmap"
	"github.com/swissmobility/heatmap-fetcher/pkg/logging"
	"github.com/swissmobility/heatmap-fetcher/pkg/places"
)

// defaultTokenURL is the provider's OAuth2 client-credentials endpoint.
const defaultTokenURL = "https://consent.swisscom.com/o/oauth2/token"

const defaultPlaces = "Saas-Fee,Evolène,Arosa,Bulle"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "heatmap-fetch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	var (
		placesFlag = flag.String("places", defaultPlaces, "comma-separated place names to fetch")
		dayFlag    = flag.String("day", "2020-01-27", "calendar day to fetch (YYYY-MM-DD)")
		dataDir    = flag.String("data-dir", filepath.Join(".", "data"), "cache directory")
		workers    = flag.Int("workers", 2, "number of parallel workers")
		baseURL    = flag.String("base-url", client.DefaultBaseURL, "provider base URL")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		pretty     = flag.Bool("pretty", false, "human-readable log output")
	)
	flag.Parse()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(*logLevel),
		Pretty: *pretty,
		Output: os.Stderr,
	})

	day, err := time.Parse(heatmap.DateLayout, *dayFlag)
	if err != nil {
		return fmt.Errorf("parse -day: %w", err)
	}
	placeNames := splitPlaces(*placesFlag)
	if len(placeNames) == 0 {
		return fmt.Errorf("no places given")
	}

	ctx := context.Background()
	start := time.Now()

	token, err := acquireToken(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	resolver, err := loadResolver(ctx, *dataDir)
	if err != nil {
		return err
	}
	placeNames = resolver.Clean(placeNames)
	if len(placeNames) == 0 {
		return fmt.Errorf("no valid places left after validation")
	}

	cfg := client.DefaultConfig(token)
	cfg.BaseURL = *baseURL
	apiClient, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	store, err := cache.NewStore(*dataDir)
	if err != nil {
		return fmt.Errorf("create cache store: %w", err)
	}

	orchestrator, err := fetcher.NewOrchestrator(fetcher.Config{
		Client:   apiClient,
		Store:    store,
		Resolver: resolver,
		Day:      day,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	pool := fetcher.NewPool(orchestrator, *workers)
	reports := pool.Run(ctx, placeNames)
	summary := fetcher.Summarize(reports)

	logger.Info().
		Int("places", summary.Places).
		Int("succeeded", len(summary.Succeeded)).
		Int("failed", len(summary.Failures)).
		Dur("duration", time.Since(start)).
		Msg("Run complete")
	for place, kinds := range summary.Failures {
		names := make([]string, 0, len(kinds))
		for _, kind := range kinds {
			names = append(names, string(kind))
		}
		logger.Error().Str("place", place).Strs("kinds", names).Msg("Place had failed dataset kinds")
	}
	for _, place := range summary.ResolveFailed {
		logger.Error().Str("place", place).Msg("Place was not processed")
	}

	ledger := places.NewLedger(filepath.Join(*dataDir, "CityList.json"))
	if err := ledger.Append(summary.Succeeded); err != nil {
		logger.Error().Err(err).Msg("Failed to update place ledger")
	}

	if summary.AuthFatal {
		return fmt.Errorf("authentication failed, run aborted")
	}
	if len(summary.Failures) > 0 || len(summary.ResolveFailed) > 0 {
		return fmt.Errorf("%d of %d places incomplete", len(summary.Failures)+len(summary.ResolveFailed), summary.Places)
	}
	return nil
}

// acquireToken exchanges client credentials for a bearer token once at
// startup; the token is read-only shared state afterwards.
func acquireToken(ctx context.Context) (string, error) {
	clientID := os.Getenv("CLIENT_ID")
	clientSecret := os.Getenv("CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("CLIENT_ID and CLIENT_SECRET must be set")
	}

	tokenURL := os.Getenv("TOKEN_URL")
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	token, err := cc.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// loadResolver loads the commune reference workbook, downloading it on
// first use.
func loadResolver(ctx context.Context, dataDir string) (*places.Resolver, error) {
	workbookPath := filepath.Join(dataDir, "commune.xlsx")
	if _, err := os.Stat(workbookPath); os.IsNotExist(err) {
		if err := places.DownloadWorkbook(ctx, places.DefaultWorkbookURL, workbookPath); err != nil {
			return nil, fmt.Errorf("download commune workbook: %w", err)
		}
	}

	table, err := places.LoadWorkbook(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("load commune workbook: %w", err)
	}
	return places.NewResolver(table), nil
}

// splitPlaces parses the comma-separated places flag, trimming blanks.
func splitPlaces(s string) []string {
	parts := strings.Split(s, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
