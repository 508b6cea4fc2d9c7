// internal/workers/listing/extract-listing/handler_test.go
package extractlisting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/models"
)

func createTestConfig() *Config {
	return &Config{
		ExtractorBaseURL: "http://localhost:8080",
		APIKey:           "test-key",
		MaxRetries:       1,
		Timeout:          5 * time.Second,
	}
}

func createExtractorResponse(listing *models.ExtractedListing, pageText, errMsg string) string {
	response := map[string]interface{}{
		"pageText": pageText,
	}
	if listing != nil {
		response["listing"] = listing
	}
	if errMsg != "" {
		response["error"] = errMsg
	}
	data, _ := json.Marshal(response)
	return string(data)
}

func createTestListing() *models.ExtractedListing {
	return &models.ExtractedListing{
		SourceURL: "https://www.hemnet.se/bostad/lagenhet-3rum-sodermalm",
		Title:     "Ljus trea med balkong",
		Location:  "Södermalm, Stockholm",
		Price:     4950000,
		Rooms:     "3 rum",
		Size:      "72 m²",
		Features:  []string{"Balkong", "Hiss", "Diskmaskin"},
	}
}

func TestHandler_Execute_Success(t *testing.T) {
	listing := createTestListing()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/extract", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var reqBody map[string]string
		json.NewDecoder(r.Body).Decode(&reqBody)
		assert.Equal(t, listing.SourceURL, reqBody["url"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(createExtractorResponse(listing, "", "")))
	}))
	defer server.Close()

	config := createTestConfig()
	config.ExtractorBaseURL = server.URL
	handler := NewHandler(config, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: listing.SourceURL})

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.False(t, output.ExtractionFailed)
	require.NotNil(t, output.Listing)
	assert.Equal(t, "Ljus trea med balkong", output.Listing.Title)
	assert.Equal(t, []string{"Balkong", "Hiss", "Diskmaskin"}, output.Listing.Features)
}

func TestHandler_Execute_FillsMissingSourceURL(t *testing.T) {
	listing := createTestListing()
	listing.SourceURL = ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(createExtractorResponse(listing, "", "")))
	}))
	defer server.Close()

	config := createTestConfig()
	config.ExtractorBaseURL = server.URL
	handler := NewHandler(config, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: "https://example.com/listing/1"})

	require.NoError(t, err)
	assert.False(t, output.ExtractionFailed)
	assert.Equal(t, "https://example.com/listing/1", output.Listing.SourceURL)
}

func TestHandler_Execute_FallbackRouting(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		responseBody   string
		expectPageText string
	}{
		{
			name:           "extractor reports failure with page text",
			statusCode:     http.StatusUnprocessableEntity,
			responseBody:   createExtractorResponse(nil, "<html>raw page</html>", "no structured data found"),
			expectPageText: "<html>raw page</html>",
		},
		{
			name:         "ok status without listing",
			statusCode:   http.StatusOK,
			responseBody: createExtractorResponse(nil, "", ""),
		},
		{
			name:         "malformed response body",
			statusCode:   http.StatusOK,
			responseBody: "not json {{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			config := createTestConfig()
			config.ExtractorBaseURL = server.URL
			handler := NewHandler(config, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), &Input{URL: "https://example.com/listing/1"})

			require.NoError(t, err)
			require.NotNil(t, output)
			assert.True(t, output.ExtractionFailed)
			assert.Nil(t, output.Listing)
			assert.NotEmpty(t, output.FailureReason)
			assert.Equal(t, tt.expectPageText, output.PageText)
		})
	}
}

func TestHandler_Execute_SchemaRejectsBadListing(t *testing.T) {
	listing := createTestListing()
	listing.Title = ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(createExtractorResponse(listing, "<html>page</html>", "")))
	}))
	defer server.Close()

	config := createTestConfig()
	config.ExtractorBaseURL = server.URL
	handler := NewHandler(config, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: listing.SourceURL})

	require.NoError(t, err)
	assert.True(t, output.ExtractionFailed)
	assert.Contains(t, output.FailureReason, "validation")
	assert.Equal(t, "<html>page</html>", output.PageText)
}

func TestHandler_Execute_RetriesServerErrors(t *testing.T) {
	attempts := 0
	listing := createTestListing()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(createExtractorResponse(listing, "", "")))
	}))
	defer server.Close()

	config := createTestConfig()
	config.ExtractorBaseURL = server.URL
	config.MaxRetries = 2
	handler := NewHandler(config, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: listing.SourceURL})

	require.NoError(t, err)
	assert.False(t, output.ExtractionFailed)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestHandler_Execute_ExhaustedRetriesFallBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := createTestConfig()
	config.ExtractorBaseURL = server.URL
	handler := NewHandler(config, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{URL: "https://example.com/listing/1"})

	require.NoError(t, err)
	assert.True(t, output.ExtractionFailed)
	assert.Contains(t, output.FailureReason, "500")
}

func TestHandler_Execute_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(10 * time.Second):
			return
		}
	}))
	defer server.Close()

	config := createTestConfig()
	config.ExtractorBaseURL = server.URL
	config.Timeout = 50 * time.Millisecond
	handler := NewHandler(config, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	output, err := handler.Execute(ctx, &Input{URL: "https://example.com/listing/1"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtractionTimeout),
		"Expected EXTRACTION_TIMEOUT, got: %v", err)
	assert.Nil(t, output)
}
