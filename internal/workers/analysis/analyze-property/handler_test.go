// internal/workers/analysis/analyze-property/handler_test.go
package analyzeproperty

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	commonerrors "homescout-workers/internal/common/errors"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/match"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		CacheTTL: 10 * time.Minute,
		Timeout:  10 * time.Second,
	}
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	return db, mock
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()}), srv
}

func createTestListing() *ListingData {
	return &ListingData{
		ID:       "listing-123",
		Title:    "Ljus trea med balkong",
		Location: "Stockholm",
		Price:    3500000,
		Rooms:    "3 rum",
		Size:     "72 m²",
		Features: []string{"Balkong", "Hiss", "Diskmaskin"},
	}
}

func createTestRequirements() []match.Requirement {
	return []match.Requirement{
		{FeatureID: "balcony", Value: true, Importance: 4},
		{FeatureID: "elevator", Value: true, Importance: 2},
		{FeatureID: "garden", Value: true, Importance: 1},
		{FeatureID: "rooms", Value: map[string]interface{}{"min": float64(2)}, Importance: 3},
		{FeatureID: "location", Value: "stockholm", Importance: 2},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_WithInlineData(t *testing.T) {
	tests := []struct {
		name               string
		listing            *ListingData
		requirements       []match.Requirement
		expectedPercentage int
		validateOutput     func(t *testing.T, output *Output)
	}{
		{
			name:               "full match",
			listing:            createTestListing(),
			requirements:       createTestRequirements()[:2],
			expectedPercentage: 100,
			validateOutput: func(t *testing.T, output *Output) {
				assert.True(t, output.Matches["balcony"].Matched)
				assert.True(t, output.Matches["elevator"].Matched)
			},
		},
		{
			name:               "partial match with location substring",
			listing:            createTestListing(),
			requirements:       createTestRequirements(),
			expectedPercentage: 92, // 11 of 12, garden misses
			validateOutput: func(t *testing.T, output *Output) {
				assert.False(t, output.Matches["garden"].Matched)
				assert.True(t, output.Matches["location"].Matched)
				assert.True(t, output.Matches["rooms"].Matched)
			},
		},
		{
			name:               "no requirements",
			listing:            createTestListing(),
			requirements:       []match.Requirement{},
			expectedPercentage: 0,
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, 0, output.MaxScore)
				assert.Empty(t, output.Matches)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := setupMockDB(t)
			defer db.Close()
			rdb, _ := setupTestRedis(t)

			handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), &Input{
				UserID:       "user-123",
				Listing:      tt.listing,
				Requirements: tt.requirements,
			})

			require.NoError(t, err)
			require.NotNil(t, output)
			assert.Equal(t, tt.expectedPercentage, output.Percentage)
			assert.Equal(t, tt.listing.ID, output.ListingID)
			if tt.validateOutput != nil {
				tt.validateOutput(t, output)
			}
		})
	}
}

func TestHandler_Execute_FetchListingFromDB(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	rawFeatures, _ := json.Marshal([]string{"Balkong"})
	mock.ExpectQuery("SELECT id, title, location").
		WithArgs("listing-456").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "location", "price", "rooms", "size", "raw_features"}).
			AddRow("listing-456", "Tvåa i centrum", "Göteborg", 2100000.0, "2 rum", "54 m²", rawFeatures))

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		ListingID: "listing-456",
		Requirements: []match.Requirement{
			{FeatureID: "balcony", Value: true, Importance: 3},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 100, output.Percentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ListingCachedAfterFetch(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, srv := setupTestRedis(t)

	rawFeatures, _ := json.Marshal([]string{"Hiss"})
	mock.ExpectQuery("SELECT id, title, location").
		WithArgs("listing-789").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "location", "price", "rooms", "size", "raw_features"}).
			AddRow("listing-789", "Etta", "Malmö", 1500000.0, "1 rum", "31 m²", rawFeatures))

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{ListingID: "listing-789"})
	require.NoError(t, err)

	assert.True(t, srv.Exists("listing:listing-789"))

	// Second call must be served from cache, no further DB expectations
	_, err = handler.Execute(context.Background(), &Input{ListingID: "listing-789"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ListingNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectQuery("SELECT id, title, location").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ListingID: "missing"})

	assert.Nil(t, output)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestHandler_Execute_ListingLoadFailureIsRetried(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectQuery("SELECT id, title, location").
		WithArgs("listing-123").
		WillReturnError(sql.ErrConnDone)

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ListingID: "listing-123"})

	assert.Nil(t, output)
	assert.ErrorIs(t, err, ErrQueryFailed)

	// A transient database failure fails the job with retries left instead
	// of raising a terminal BPMN error.
	failure := commonerrors.Resolve(taxonomyError(&Input{ListingID: "listing-123"}, err), 2)
	assert.True(t, failure.Retryable)
	assert.Equal(t, "QUERY_EXECUTION_FAILED", failure.BPMN.Code)
}

func TestHandler_Execute_MissingInput(t *testing.T) {
	db, _ := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	assert.Nil(t, output)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestHandler_Execute_PreferencesFromDB(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, srv := setupTestRedis(t)

	boolTrue, _ := json.Marshal(true)
	rangeVal, _ := json.Marshal(map[string]interface{}{"min": 2})
	mock.ExpectQuery("SELECT feature_id, value, importance").
		WithArgs("user-42").
		WillReturnRows(sqlmock.NewRows([]string{"feature_id", "value", "importance"}).
			AddRow("balcony", boolTrue, 4).
			AddRow("rooms", rangeVal, 2))

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		UserID:  "user-42",
		Listing: createTestListing(),
	})

	require.NoError(t, err)
	assert.Equal(t, 100, output.Percentage)
	assert.Equal(t, 6, output.MaxScore)
	assert.True(t, srv.Exists("prefs:user:user-42"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Preference fetch failure degrades to an unscored result, the job still completes.
func TestHandler_Execute_PreferenceFetchFailureIsSoft(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	rdb, _ := setupTestRedis(t)

	mock.ExpectQuery("SELECT feature_id, value, importance").
		WithArgs("user-err").
		WillReturnError(sql.ErrConnDone)

	handler := NewHandler(createTestConfig(), db, rdb, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		UserID:  "user-err",
		Listing: createTestListing(),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, output.MaxScore)
	assert.Equal(t, 0, output.Percentage)
}
