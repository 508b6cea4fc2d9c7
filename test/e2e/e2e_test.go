// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"homescout-workers/internal/common/camunda"
	"homescout-workers/internal/common/config"
	"homescout-workers/internal/common/database"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/match"
	"homescout-workers/internal/models"

	analyzeproperty "homescout-workers/internal/workers/analysis/analyze-property"
	savelisting "homescout-workers/internal/workers/listing/save-listing"
	savepreferences "homescout-workers/internal/workers/preferences/save-preferences"
	searchlistings "homescout-workers/internal/workers/search/search-listings"
)

var zapLog *zap.Logger

func TestMain(m *testing.M) {
	if os.Getenv("E2E_TESTS") != "true" {
		fmt.Println("Skipping e2e tests, set E2E_TESTS=true to run them against live services")
		os.Exit(0)
	}

	zapLog, _ = zap.NewProduction()

	code := m.Run()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Log("🚀 Starting full e2e run against live services...")

	pg, es, rdb := assertAllServicesConnectivity(t, ctx, cfg)
	defer pg.Close()
	defer rdb.Close()

	createDatabaseTables(t, ctx, pg)
	require.NoError(t, es.EnsureListingIndex(ctx, cfg.Database.Elasticsearch.ListingIndex))

	log := logger.NewZapAdapter(zapLog)
	userID := fmt.Sprintf("e2e-user-%d", time.Now().UnixNano())
	sourceURL := fmt.Sprintf("https://example.se/bostad/e2e-%d", time.Now().UnixNano())

	// --- 1. Save a listing ---
	saveHandler := savelisting.NewHandler(
		&savelisting.Config{
			ListingIndex: cfg.Database.Elasticsearch.ListingIndex,
			Timeout:      10 * time.Second,
		},
		pg.DB, es.Client, rdb.Client, log,
	)

	listing := models.ExtractedListing{
		SourceURL: sourceURL,
		Title:     "Ljus trea med balkong",
		Location:  "Södermalm, Stockholm",
		Price:     4500000,
		Rooms:     "3 rum",
		Size:      "72 m²",
		Features:  []string{"Balkong", "Hiss", "Diskmaskin"},
	}

	saved, err := saveHandler.Execute(ctx, &savelisting.Input{Listing: listing})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ListingID)
	assert.True(t, saved.Indexed, "listing should reach the search index")

	// Saving the same source URL twice must be rejected
	_, err = saveHandler.Execute(ctx, &savelisting.Input{Listing: listing})
	require.Error(t, err)
	assert.ErrorIs(t, err, savelisting.ErrDuplicateListing)

	// --- 2. Save preferences for a fresh user ---
	prefsHandler := savepreferences.NewHandler(
		&savepreferences.Config{MaxPreferences: 50, Timeout: 10 * time.Second},
		pg.DB, rdb.Client, match.DefaultCatalog(), log,
	)

	prefsOut, err := prefsHandler.Execute(ctx, &savepreferences.Input{
		UserID: userID,
		Preferences: []match.Requirement{
			{FeatureID: "balcony", Value: true, Importance: 3},
			{FeatureID: "elevator", Value: true, Importance: 2},
			{FeatureID: "price", Value: map[string]interface{}{"max": float64(5000000)}, Importance: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, prefsOut.SavedCount)

	// --- 3. Analyze the saved listing against those preferences ---
	analyzeHandler := analyzeproperty.NewHandler(
		&analyzeproperty.Config{CacheTTL: time.Minute, Timeout: 30 * time.Second},
		pg.DB, rdb.Client, match.DefaultCatalog(), log,
	)

	analysis, err := analyzeHandler.Execute(ctx, &analyzeproperty.Input{
		ListingID: saved.ListingID,
		UserID:    userID,
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ListingID, analysis.ListingID)
	assert.Greater(t, analysis.Percentage, 0, "balcony, elevator and price should all match")
	assert.Len(t, analysis.Matches, 3)

	// --- 4. Search for the listing ---
	refreshIndex(t, ctx, es, cfg.Database.Elasticsearch.ListingIndex)

	searchHandler := searchlistings.NewHandler(
		&searchlistings.Config{
			ListingIndex: cfg.Database.Elasticsearch.ListingIndex,
			MaxResults:   20,
			CacheTTL:     30 * time.Second,
			Timeout:      10 * time.Second,
		},
		es.Client, rdb.Client, log,
	)

	results, err := searchHandler.Execute(ctx, &searchlistings.Input{
		Keywords: "balkong",
		Location: "Stockholm",
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, results.Total, 1)

	found := false
	for _, r := range results.Results {
		if r.ID == saved.ListingID {
			found = true
			assert.Equal(t, "Ljus trea med balkong", r.Title)
		}
	}
	assert.True(t, found, "saved listing should appear in search results")

	t.Log("✅ Full pipeline verified: save -> preferences -> analyze -> search")
}

func TestZeebeConnectivity(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	client, err := camunda.NewClient(cfg.Camunda.BrokerAddress)
	require.NoError(t, err, "Zeebe broker must be reachable")
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, client.HealthCheck(ctx))

	// Topology through the retry wrapper, the way process deployments run it
	topology, err := client.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return client.GetClient().NewTopologyCommand().Send(ctx)
	}, "topology")
	require.NoError(t, err)
	require.NotNil(t, topology)
}

func assertAllServicesConnectivity(t *testing.T, ctx context.Context, cfg *config.Config) (*database.PostgresClient, *database.ElasticsearchClient, *database.RedisClient) {
	t.Helper()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "PostgreSQL must be reachable")

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)
	require.NoError(t, es.Ping(), "Elasticsearch must be reachable")

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	require.NoError(t, rdb.Ping(ctx), "Redis must be reachable")

	return pg, es, rdb
}

func createDatabaseTables(t *testing.T, ctx context.Context, pg *database.PostgresClient) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			location TEXT,
			price NUMERIC,
			rooms TEXT,
			size TEXT,
			raw_features JSONB,
			extracted_by TEXT,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			user_id TEXT NOT NULL,
			feature_id TEXT NOT NULL,
			value JSONB,
			importance INT,
			updated_at TIMESTAMPTZ,
			PRIMARY KEY (user_id, feature_id)
		)`,
		`CREATE TABLE IF NOT EXISTS buyers (
			id TEXT PRIMARY KEY,
			email TEXT,
			phone TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			email TEXT,
			phone TEXT
		)`,
	}

	for _, stmt := range statements {
		_, err := pg.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
}

// refreshIndex forces newly indexed documents to become searchable right away.
func refreshIndex(t *testing.T, ctx context.Context, es *database.ElasticsearchClient, index string) {
	t.Helper()

	res, err := es.Client.Indices.Refresh(
		es.Client.Indices.Refresh.WithContext(ctx),
		es.Client.Indices.Refresh.WithIndex(index),
	)
	require.NoError(t, err)
	defer res.Body.Close()
	require.False(t, res.IsError())
}
