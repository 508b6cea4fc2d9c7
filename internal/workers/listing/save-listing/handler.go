// internal/workers/listing/save-listing/handler.go
package savelisting

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	commonerrors "homescout-workers/internal/common/errors"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/match"
	"homescout-workers/internal/models"
)

const (
	TaskType = "save-listing"
)

// listingsVersionKey is bumped on every write so cached search results go stale.
const listingsVersionKey = "listings:version"

var (
	ErrListingSaveFailed = errors.New("LISTING_SAVE_FAILED")
	ErrDuplicateListing  = errors.New("DUPLICATE_LISTING")
)

type Handler struct {
	config      *Config
	db          *sql.DB
	esClient    *elasticsearch.Client
	redisClient *redis.Client
	logger      logger.Logger
	errors      *commonerrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, esClient *elasticsearch.Client, redisClient *redis.Client, log logger.Logger) *Handler {
	wlog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      config,
		db:          db,
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
		h.errors.HandleJobError(context.Background(), client, job,
			commonerrors.NewInvalidListingPayloadError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, h.taxonomyError(&input, err))
		return
	}

	h.completeJob(client, job, output)
}

// taxonomyError maps the package sentinels onto the shared error taxonomy
// so the handler applies the code's retry policy.
func (h *Handler) taxonomyError(input *Input, err error) error {
	switch {
	case errors.Is(err, ErrDuplicateListing):
		return commonerrors.NewDuplicateListingError(input.Listing.SourceURL)
	case errors.Is(err, ErrListingSaveFailed):
		return commonerrors.NewListingSaveFailedError(err)
	}
	return err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	listing := input.Listing
	if strings.TrimSpace(listing.SourceURL) == "" || strings.TrimSpace(listing.Title) == "" {
		return nil, fmt.Errorf("%w: listing needs sourceUrl and title", ErrListingSaveFailed)
	}

	extractedBy := input.ExtractedBy
	if extractedBy == "" {
		extractedBy = "scraper"
	}

	// Duplicate check by source URL
	var exists bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM listings
			WHERE source_url = $1
		)`, listing.SourceURL).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: duplicate check failed: %v", ErrListingSaveFailed, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: listing already saved for %s", ErrDuplicateListing, listing.SourceURL)
	}

	listingID := uuid.New().String()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	rawFeaturesJSON, err := json.Marshal(listing.Features)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal features: %v", ErrListingSaveFailed, err)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO listings (
			id, source_url, title, location, price, rooms, size,
			raw_features, extracted_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		listingID,
		listing.SourceURL,
		listing.Title,
		listing.Location,
		listing.Price,
		listing.Rooms,
		listing.Size,
		rawFeaturesJSON,
		extractedBy,
		createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: insert failed: %v", ErrListingSaveFailed, err)
	}

	// Secondary stores are non-critical, log and move on
	indexed := h.indexListing(ctx, listingID, &listing, extractedBy, createdAt)

	if err := h.redisClient.Incr(ctx, listingsVersionKey).Err(); err != nil {
		h.logger.Warn("failed to bump listings cache version", map[string]interface{}{
			"error":     err.Error(),
			"listingId": listingID,
		})
	}

	h.logger.Info("listing saved", map[string]interface{}{
		"listingId":   listingID,
		"sourceUrl":   listing.SourceURL,
		"extractedBy": extractedBy,
		"indexed":     indexed,
	})

	return &Output{
		ListingID: listingID,
		CreatedAt: createdAt,
		Indexed:   indexed,
	}, nil
}

func (h *Handler) indexListing(ctx context.Context, id string, listing *models.ExtractedListing, extractedBy, createdAt string) bool {
	// rooms and size arrive as portal free text; the numeric companions
	// back the range filters in search-listings
	normalized := match.Normalize(match.RawListing{
		Rooms:    listing.Rooms,
		Size:     listing.Size,
		Features: listing.Features,
	})

	doc := map[string]interface{}{
		"id":          id,
		"sourceUrl":   listing.SourceURL,
		"title":       listing.Title,
		"location":    listing.Location,
		"price":       listing.Price,
		"rooms":       listing.Rooms,
		"rooms_count": normalized["rooms"],
		"size":        listing.Size,
		"size_sqm":    normalized["size"],
		"features":    listing.Features,
		"extractedBy": extractedBy,
		"createdAt":   createdAt,
	}
	body, _ := json.Marshal(doc)

	req := esapi.IndexRequest{
		Index:      h.config.ListingIndex,
		DocumentID: id,
		Body:       strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, h.esClient)
	if err != nil {
		h.logger.Warn("elasticsearch index failed", map[string]interface{}{
			"error":     err.Error(),
			"listingId": id,
		})
		return false
	}
	defer res.Body.Close()

	if res.IsError() {
		h.logger.Warn("elasticsearch index failed", map[string]interface{}{
			"status":    res.StatusCode,
			"listingId": id,
		})
		return false
	}

	return true
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
