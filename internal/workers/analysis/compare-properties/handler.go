// internal/workers/analysis/compare-properties/handler.go
package compareproperties

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	commonerrors "homescout-workers/internal/common/errors"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/common/metrics"
	"homescout-workers/internal/match"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "compare-properties"
)

var (
	ErrComparisonFailed = errors.New("COMPARISON_FAILED")
	ErrListingNotFound  = errors.New("LISTING_NOT_FOUND")
)

type Handler struct {
	config  *Config
	db      *sql.DB
	redis   *redis.Client
	catalog []match.FeatureDefinition
	logger  logger.Logger
	errors  *commonerrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, redis *redis.Client, catalog []match.FeatureDefinition, log logger.Logger) *Handler {
	if catalog == nil {
		catalog = match.DefaultCatalog()
	}
	wlog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		db:      db,
		redis:   redis,
		catalog: catalog,
		logger:  wlog,
		errors:  commonerrors.NewErrorHandler(wlog),
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

// taxonomyError maps the package sentinels onto the shared error taxonomy.
func taxonomyError(err error) error {
	switch {
	case errors.Is(err, ErrListingNotFound):
		return commonerrors.NewListingNotFoundError(strings.TrimPrefix(err.Error(), ErrListingNotFound.Error()+": "))
	case errors.Is(err, ErrComparisonFailed):
		return commonerrors.NewComparisonFailedError(err)
	}
	return err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	listings := input.Listings
	if listings == nil {
		if len(input.ListingIDs) == 0 {
			return nil, fmt.Errorf("%w: listingIds or listings required", ErrComparisonFailed)
		}
		if len(input.ListingIDs) > h.config.MaxListings {
			return nil, fmt.Errorf("%w: at most %d listings per comparison", ErrComparisonFailed, h.config.MaxListings)
		}
		for _, id := range input.ListingIDs {
			listing, err := h.getListing(ctx, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("%w: %s", ErrListingNotFound, id)
				}
				return nil, fmt.Errorf("%w: %v", ErrComparisonFailed, err)
			}
			listings = append(listings, *listing)
		}
	}

	requirements := input.Requirements
	if requirements == nil && input.UserID != "" {
		var err error
		requirements, err = h.getRequirements(ctx, input.UserID)
		if err != nil {
			h.logger.Warn("failed to fetch preferences", map[string]interface{}{
				"userId": input.UserID,
				"error":  err,
			})
		}
	}

	featureSets := make([]match.Features, 0, len(listings))
	for _, listing := range listings {
		features := match.Normalize(match.RawListing{
			Rooms:    listing.Rooms,
			Size:     listing.Size,
			Features: listing.Features,
		})
		features["location"] = listing.Location
		features["price"] = listing.Price
		featureSets = append(featureSets, features)
	}

	scored := match.CompareAll(featureSets, requirements, h.catalog)
	ranking := match.Rank(scored)

	results := make([]ListingResult, len(scored))
	for i, r := range scored {
		results[i] = ListingResult{
			ListingID:  listings[i].ID,
			Score:      r.Score,
			MaxScore:   r.MaxScore,
			Percentage: r.Percentage,
			Matches:    r.Matches,
		}
		metrics.MatchScorePercentage.Observe(float64(r.Percentage))
	}

	output := &Output{Results: results, Ranking: ranking}
	if len(ranking) > 0 {
		output.BestID = results[ranking[0]].ListingID
	}

	h.logger.Info("comparison completed", map[string]interface{}{
		"userId":        input.UserID,
		"listings":      len(results),
		"bestListingId": output.BestID,
	})

	return output, nil
}

func (h *Handler) getListing(ctx context.Context, listingID string) (*ListingData, error) {
	cacheKey := "listing:" + listingID
	if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
		var listing ListingData
		if err := json.Unmarshal([]byte(val), &listing); err == nil {
			metrics.CacheHits.WithLabelValues("listing").Inc()
			return &listing, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("listing").Inc()

	row := h.db.QueryRowContext(ctx, `
		SELECT id, title, location, price, rooms, size, raw_features
		FROM listings WHERE id = $1`, listingID)

	var listing ListingData
	var rawFeatures []byte
	err := row.Scan(&listing.ID, &listing.Title, &listing.Location, &listing.Price, &listing.Rooms, &listing.Size, &rawFeatures)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rawFeatures, &listing.Features); err != nil {
		listing.Features = []string{}
	}

	data, _ := json.Marshal(listing)
	h.redis.Set(ctx, cacheKey, data, h.config.CacheTTL)

	return &listing, nil
}

func (h *Handler) getRequirements(ctx context.Context, userID string) ([]match.Requirement, error) {
	cacheKey := "prefs:user:" + userID
	if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
		var reqs []match.Requirement
		if err := json.Unmarshal([]byte(val), &reqs); err == nil {
			return reqs, nil
		}
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT feature_id, value, importance
		FROM preferences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []match.Requirement
	for rows.Next() {
		var req match.Requirement
		var rawValue []byte
		if err := rows.Scan(&req.FeatureID, &rawValue, &req.Importance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawValue, &req.Value); err != nil {
			req.Value = nil
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	data, _ := json.Marshal(reqs)
	h.redis.Set(ctx, cacheKey, data, h.config.CacheTTL)

	return reqs, nil
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
