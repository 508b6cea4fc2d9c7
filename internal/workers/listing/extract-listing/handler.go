// internal/workers/listing/extract-listing/handler.go
package extractlisting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	commonerrors "homescout-workers/internal/common/errors"
	commonhttp "homescout-workers/internal/common/http"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/common/validation"
	"homescout-workers/internal/models"
)

const (
	TaskType = "extract-listing"
)

var (
	ErrExtractionTimeout = errors.New("EXTRACTION_TIMEOUT")
	ErrInvalidInput      = errors.New("INVALID_LISTING_PAYLOAD")
)

// listingSchema constrains what the scraper may hand back before it is
// treated as a structured listing.
var listingSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"sourceUrl", "title"},
	"properties": map[string]interface{}{
		"sourceUrl": map[string]interface{}{"type": "string", "minLength": 1},
		"title":     map[string]interface{}{"type": "string", "minLength": 1},
		"location":  map[string]interface{}{"type": "string"},
		"price":     map[string]interface{}{"type": "number", "minimum": 0},
		"rooms":     map[string]interface{}{"type": "string"},
		"size":      map[string]interface{}{"type": "string"},
		"features": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}

type Handler struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
	errors *commonerrors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	wlog := log.WithFields(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: wlog,
		errors: commonerrors.NewErrorHandler(wlog),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(input.URL) == "" {
		h.failJob(client, job, fmt.Errorf("%w: url is required", ErrInvalidInput))
		return
	}
	if !validation.ValidateURL(input.URL) {
		h.failJob(client, job, fmt.Errorf("%w: malformed url %q", ErrInvalidInput, input.URL))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	body, _ := json.Marshal(map[string]string{"url": input.URL})

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrExtractionTimeout
			}
		}

		req, err := http.NewRequest("POST", h.config.ExtractorBaseURL+"/api/extract", bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("build extractor request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if h.config.APIKey != "" {
			req.Header.Set("X-Api-Key", h.config.APIKey)
		}

		resp, lastErr = h.client.DoWithContext(ctx, req)
		if lastErr == nil {
			// 5xx is retryable, anything else is a final answer
			if resp.StatusCode < http.StatusInternalServerError {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("extractor returned %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			return nil, ErrExtractionTimeout
		}
		if lastErr != nil && isTimeout(lastErr) {
			return nil, ErrExtractionTimeout
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeout(lastErr) {
			return nil, ErrExtractionTimeout
		}
		return h.fallbackOutput("", lastErr.Error()), nil
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Listing  *models.ExtractedListing `json:"listing"`
		PageText string                   `json:"pageText"`
		Error    string                   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return h.fallbackOutput("", fmt.Sprintf("decode extractor response: %v", err)), nil
	}

	if resp.StatusCode != http.StatusOK || apiResponse.Listing == nil {
		reason := apiResponse.Error
		if reason == "" {
			reason = fmt.Sprintf("extractor returned %d without a listing", resp.StatusCode)
		}
		return h.fallbackOutput(apiResponse.PageText, reason), nil
	}

	if apiResponse.Listing.SourceURL == "" {
		apiResponse.Listing.SourceURL = input.URL
	}

	if err := h.validateListing(apiResponse.Listing); err != nil {
		return h.fallbackOutput(apiResponse.PageText, err.Error()), nil
	}

	h.logger.Info("listing extracted", map[string]interface{}{
		"url":          input.URL,
		"title":        apiResponse.Listing.Title,
		"featureCount": len(apiResponse.Listing.Features),
	})

	return &Output{Listing: apiResponse.Listing}, nil
}

func isTimeout(err error) bool {
	return strings.Contains(err.Error(), "timeout") ||
		strings.Contains(err.Error(), "deadline") ||
		strings.Contains(err.Error(), "Client.Timeout")
}

func (h *Handler) validateListing(listing *models.ExtractedListing) error {
	schemaLoader := gojsonschema.NewGoLoader(listingSchema)
	documentLoader := gojsonschema.NewGoLoader(listing)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("listing validation failed: %v", errs)
	}

	return nil
}

// fallbackOutput completes the job with extractionFailed set so the BPMN
// gateway can route to the AI extraction path instead of retrying here.
func (h *Handler) fallbackOutput(pageText, reason string) *Output {
	h.logger.Warn("extraction failed, routing to AI fallback", map[string]interface{}{
		"reason":      reason,
		"hasPageText": pageText != "",
	})
	return &Output{
		ExtractionFailed: true,
		PageText:         pageText,
		FailureReason:    reason,
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

// failJob maps the package sentinels onto the shared error taxonomy and
// lets the handler decide between a retried job and a BPMN error.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	var resolved error
	switch {
	case errors.Is(err, ErrExtractionTimeout):
		resolved = commonerrors.NewExtractionTimeoutError()
	case errors.Is(err, ErrInvalidInput):
		resolved = commonerrors.NewInvalidListingPayloadError(err.Error())
	default:
		resolved = commonerrors.NewExtractionFailedError(err)
	}
	h.errors.HandleJobError(context.Background(), client, job, resolved)
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
