// internal/workers/analysis/compare-properties/handler_test.go
package compareproperties

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/match"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *Config {
	return &Config{
		CacheTTL:    10 * time.Minute,
		Timeout:     10 * time.Second,
		MaxListings: 10,
	}
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock
}

func setupTestRedis(t *testing.T) *redis.Client {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func testListings() []ListingData {
	return []ListingData{
		{ID: "a", Location: "Uppsala", Rooms: "2 rum", Size: "48 m²", Features: []string{}},
		{ID: "b", Location: "Stockholm", Rooms: "3 rum", Size: "70 m²", Features: []string{"Balkong"}},
		{ID: "c", Location: "Stockholm", Rooms: "4 rum", Size: "95 m²", Features: []string{"Balkong", "Hiss"}},
	}
}

func testRequirements() []match.Requirement {
	return []match.Requirement{
		{FeatureID: "balcony", Value: true, Importance: 4},
		{FeatureID: "elevator", Value: true, Importance: 2},
		{FeatureID: "rooms", Value: map[string]interface{}{"min": float64(3)}, Importance: 3},
	}
}

func TestHandler_Execute_InlineComparison(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, setupTestRedis(t), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		UserID:       "user-1",
		Listings:     testListings(),
		Requirements: testRequirements(),
	})

	require.NoError(t, err)
	require.Len(t, output.Results, 3)

	// results keep input order
	assert.Equal(t, "a", output.Results[0].ListingID)
	assert.Equal(t, "b", output.Results[1].ListingID)
	assert.Equal(t, "c", output.Results[2].ListingID)

	assert.Equal(t, 0, output.Results[0].Percentage)
	assert.Equal(t, 78, output.Results[1].Percentage)
	assert.Equal(t, 100, output.Results[2].Percentage)

	assert.Equal(t, []int{2, 1, 0}, output.Ranking)
	assert.Equal(t, "c", output.BestID)
}

func TestHandler_Execute_TieKeepsInputOrder(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, setupTestRedis(t), nil, logger.NewTestLogger(t))

	twins := []ListingData{
		{ID: "first", Features: []string{"Balkong"}},
		{ID: "second", Features: []string{"Balkong"}},
	}

	output, err := handler.Execute(context.Background(), &Input{
		Listings: twins,
		Requirements: []match.Requirement{
			{FeatureID: "balcony", Value: true, Importance: 2},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, output.Ranking)
	assert.Equal(t, "first", output.BestID)
}

func TestHandler_Execute_FetchListingsFromDB(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	raw1, _ := json.Marshal([]string{"Balkong"})
	raw2, _ := json.Marshal([]string{})

	mock.ExpectQuery("SELECT id, title, location").
		WithArgs("x").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "location", "price", "rooms", "size", "raw_features"}).
			AddRow("x", "A", "Lund", 2000000.0, "3 rum", "66 m²", raw1))
	mock.ExpectQuery("SELECT id, title, location").
		WithArgs("y").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "location", "price", "rooms", "size", "raw_features"}).
			AddRow("y", "B", "Lund", 1800000.0, "2 rum", "52 m²", raw2))

	handler := NewHandler(createTestConfig(), db, setupTestRedis(t), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		ListingIDs: []string{"x", "y"},
		Requirements: []match.Requirement{
			{FeatureID: "balcony", Value: true, Importance: 1},
		},
	})

	require.NoError(t, err)
	require.Len(t, output.Results, 2)
	assert.Equal(t, "x", output.BestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ListingNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, title, location").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	handler := NewHandler(createTestConfig(), db, setupTestRedis(t), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ListingIDs: []string{"missing"}})

	assert.Nil(t, output)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestHandler_Execute_EmptyInput(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, setupTestRedis(t), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	assert.Nil(t, output)
	assert.ErrorIs(t, err, ErrComparisonFailed)
}

func TestHandler_Execute_TooManyListings(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()

	cfg := createTestConfig()
	cfg.MaxListings = 2
	handler := NewHandler(cfg, db, setupTestRedis(t), nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		ListingIDs: []string{"a", "b", "c"},
	})

	assert.Nil(t, output)
	assert.ErrorIs(t, err, ErrComparisonFailed)
}
