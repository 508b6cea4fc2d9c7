// internal/workers/search/search-listings/handler.go
package searchlistings

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	commonerrors "homescout-workers/internal/common/errors"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/common/metrics"
	"homescout-workers/internal/workers/search/search-listings/queries"
)

const (
	TaskType = "search-listings"
)

var (
	ErrSearchFailed  = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout = errors.New("SEARCH_TIMEOUT")
	ErrIndexMissing  = errors.New("INDEX_NOT_FOUND")
)

type Handler struct {
	config      *Config
	esClient    *elasticsearch.Client
	redisClient *redis.Client
	logger      logger.Logger
	errors      *commonerrors.ErrorHandler
}

func NewHandler(config *Config, esClient *elasticsearch.Client, redisClient *redis.Client, log logger.Logger) *Handler {
	wlog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      config,
		esClient:    esClient,
		redisClient: redisClient,
		logger:      wlog,
		errors:      commonerrors.NewErrorHandler(wlog),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(context.Background(), client, job, fmt.Errorf("parse input: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, taxonomyError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Size <= 0 || input.Size > h.config.MaxResults {
		input.Size = h.config.MaxResults
	}
	if input.From < 0 {
		input.From = 0
	}

	cacheKey := h.buildCacheKey(ctx, input)
	if val, err := h.redisClient.Get(ctx, cacheKey).Result(); err == nil {
		var cached Output
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			metrics.CacheHits.WithLabelValues("search").Inc()
			cached.FromCache = true
			return &cached, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("search").Inc()

	lq := queries.ListingQuery{
		Index:    h.config.ListingIndex,
		Keywords: input.Keywords,
		Location: input.Location,
		PriceMin: input.PriceMin,
		PriceMax: input.PriceMax,
		RoomsMin: input.RoomsMin,
		Features: input.Features,
		SortBy:   input.SortBy,
	}
	lq.Pagination.From = input.From
	lq.Pagination.Size = input.Size

	req, err := queries.BuildSearchRequest(lq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	res, err := req.Do(ctx, h.esClient)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		// The index is created at startup, so a 404 means it was dropped
		// out from under the worker.
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrIndexMissing, h.config.ListingIndex)
		}
		return nil, fmt.Errorf("%w: search returned %d", ErrSearchFailed, res.StatusCode)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source ListingSummary `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	results := make([]ListingSummary, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		results = append(results, hit.Source)
	}

	output := &Output{
		Results: results,
		Total:   r.Hits.Total.Value,
	}

	if payload, err := json.Marshal(output); err == nil {
		if err := h.redisClient.Set(ctx, cacheKey, payload, h.config.CacheTTL).Err(); err != nil {
			h.logger.Warn("failed to cache search results", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	h.logger.Info("search completed", map[string]interface{}{
		"total":    output.Total,
		"returned": len(results),
	})

	return output, nil
}

// buildCacheKey folds the current write version into the key so every saved
// listing implicitly expires all cached result pages.
func (h *Handler) buildCacheKey(ctx context.Context, input *Input) string {
	version, err := h.redisClient.Get(ctx, "listings:version").Result()
	if err != nil {
		version = "0"
	}
	payload, _ := json.Marshal(input)
	return fmt.Sprintf("search:v%s:%x", version, sha1.Sum(payload))
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

// taxonomyError maps the package sentinels onto the shared error taxonomy
// so transient Elasticsearch failures retry instead of raising BPMN errors.
func taxonomyError(err error) error {
	switch {
	case errors.Is(err, ErrSearchTimeout):
		return commonerrors.NewSearchTimeoutError("listing-search")
	case errors.Is(err, ErrIndexMissing):
		return commonerrors.NewIndexNotFoundError(strings.TrimPrefix(err.Error(), ErrIndexMissing.Error()+": "))
	case errors.Is(err, ErrSearchFailed):
		return commonerrors.NewSearchQueryFailedError("listing-search", err)
	}
	return err
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
