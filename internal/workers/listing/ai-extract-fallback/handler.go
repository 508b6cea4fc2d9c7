// internal/workers/listing/ai-extract-fallback/handler.go
package aiextractfallback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "homescout-workers/internal/common/errors"
	commonhttp "homescout-workers/internal/common/http"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/models"
)

const (
	TaskType = "ai-extract-fallback"
)

var (
	ErrAIExtractionFailed = errors.New("AI_EXTRACTION_FAILED")
	ErrExtractionTimeout  = errors.New("EXTRACTION_TIMEOUT")
)

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
		// No client timeout, the job context bounds the call
		client: commonhttp.NewClient(0),
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
		h.failJob(client, job, fmt.Errorf("parse input: %w", err))
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
	if strings.TrimSpace(input.PageText) == "" {
		return nil, fmt.Errorf("%w: page text is empty", ErrAIExtractionFailed)
	}

	requestBody := map[string]interface{}{
		"prompt":   h.buildPrompt(input),
		"model":    h.config.Model,
		"url":      input.URL,
		"pageText": input.PageText,
	}
	body, _ := json.Marshal(requestBody)

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

		resp, lastErr = h.client.PostJSON(ctx, h.config.GenAIBaseURL+"/api/ai/extract", h.config.APIKey, body)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			return nil, ErrExtractionTimeout
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrExtractionTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrAIExtractionFailed, lastErr)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrAIExtractionFailed)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Listing    *models.ExtractedListing `json:"listing"`
		Confidence float64                  `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrAIExtractionFailed, err)
	}
	if apiResponse.Listing == nil {
		return nil, fmt.Errorf("%w: response carried no listing", ErrAIExtractionFailed)
	}

	listing := h.sanitizeListing(apiResponse.Listing, input.URL)
	if listing.Title == "" {
		return nil, fmt.Errorf("%w: extracted listing has no title", ErrAIExtractionFailed)
	}

	confidence := apiResponse.Confidence
	if confidence < 0.0 || confidence > 1.0 {
		confidence = 0.5
	}

	h.logger.Info("listing extracted by AI", map[string]interface{}{
		"url":          input.URL,
		"title":        listing.Title,
		"featureCount": len(listing.Features),
		"confidence":   confidence,
	})

	return &Output{
		Listing:     listing,
		ExtractedBy: "ai",
		Confidence:  confidence,
	}, nil
}

// sanitizeListing clamps and defaults fields the model may have mangled.
func (h *Handler) sanitizeListing(raw *models.ExtractedListing, url string) *models.ExtractedListing {
	listing := &models.ExtractedListing{
		SourceURL: strings.TrimSpace(raw.SourceURL),
		Title:     strings.TrimSpace(raw.Title),
		Location:  strings.TrimSpace(raw.Location),
		Price:     raw.Price,
		Rooms:     strings.TrimSpace(raw.Rooms),
		Size:      strings.TrimSpace(raw.Size),
	}
	if listing.SourceURL == "" {
		listing.SourceURL = url
	}
	if listing.Price < 0 {
		listing.Price = 0
	}
	for _, f := range raw.Features {
		f = strings.TrimSpace(f)
		if f != "" {
			listing.Features = append(listing.Features, f)
		}
	}
	return listing
}

func (h *Handler) buildPrompt(input *Input) string {
	var parts []string
	parts = append(parts, "Extract the property listing from the page text below.")
	parts = append(parts, "Return JSON with title, location, price, rooms, size and a features array.")
	parts = append(parts, "Use null for anything the page does not state. Do not invent values.")
	parts = append(parts, fmt.Sprintf("\nSource URL: %s", input.URL))
	return strings.Join(parts, "\n")
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
	resolved := err
	switch {
	case errors.Is(err, ErrExtractionTimeout):
		resolved = commonerrors.NewExtractionTimeoutError()
	case errors.Is(err, ErrAIExtractionFailed):
		resolved = commonerrors.NewAIExtractionFailedError(err)
	}
	h.errors.HandleJobError(context.Background(), client, job, resolved)
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
