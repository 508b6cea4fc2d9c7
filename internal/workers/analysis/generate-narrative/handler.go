// internal/workers/analysis/generate-narrative/handler.go
package generatenarrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "homescout-workers/internal/common/errors"
	commonhttp "homescout-workers/internal/common/http"
	"homescout-workers/internal/common/logger"
)

const (
	TaskType = "generate-narrative"
)

var (
	ErrNarrativeTimeout = errors.New("NARRATIVE_TIMEOUT")
	ErrNarrativeFailed  = errors.New("NARRATIVE_FAILED")
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
	prompt := h.buildPrompt(input)
	requestBody := map[string]interface{}{
		"prompt":      prompt,
		"model":       h.config.Model,
		"max_tokens":  h.config.MaxTokens,
		"temperature": h.config.Temperature,
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
				return nil, ErrNarrativeTimeout
			}
		}

		resp, lastErr = h.client.PostJSON(ctx, h.config.GenAIBaseURL+"/api/ai/generate", h.config.APIKey, body)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			return nil, ErrNarrativeTimeout
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrNarrativeTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrNarrativeFailed, lastErr)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrNarrativeFailed)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrNarrativeFailed, err)
	}

	if strings.TrimSpace(apiResponse.Text) == "" {
		return nil, fmt.Errorf("%w: empty narrative", ErrNarrativeFailed)
	}
	if apiResponse.Confidence < 0.0 || apiResponse.Confidence > 1.0 {
		apiResponse.Confidence = 0.5
	}

	h.logger.Info("narrative generated", map[string]interface{}{
		"listingId":  input.ListingID,
		"confidence": apiResponse.Confidence,
		"length":     len(apiResponse.Text),
	})

	return &Output{
		Narrative:  apiResponse.Text,
		Confidence: apiResponse.Confidence,
	}, nil
}

func (h *Handler) buildPrompt(input *Input) string {
	var parts []string

	if input.Language == "sv" {
		parts = append(parts, "Du är en bostadsrådgivare. Sammanfatta hur väl bostaden matchar köparens önskemål, baserat ENDAST på datan nedan.")
	} else {
		parts = append(parts, "You are a housing advisor. Summarize how well this listing matches the buyer's wishes, based ONLY on the data below.")
	}

	parts = append(parts, fmt.Sprintf("\nListing: %s (%s)", input.ListingTitle, input.Location))
	parts = append(parts, fmt.Sprintf("Overall match: %d%%", input.Percentage))

	var matched, missed []string
	for _, fm := range input.Matches {
		if fm.Matched {
			matched = append(matched, fm.FeatureLabel)
		} else {
			missed = append(missed, fm.FeatureLabel)
		}
	}
	sort.Strings(matched)
	sort.Strings(missed)

	if len(matched) > 0 {
		parts = append(parts, fmt.Sprintf("Matched wishes: %s", strings.Join(matched, ", ")))
	}
	if len(missed) > 0 {
		parts = append(parts, fmt.Sprintf("Unmet wishes: %s", strings.Join(missed, ", ")))
	}

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Lead with the strongest matches")
	parts = append(parts, "- Mention unmet wishes honestly, without exaggerating them")
	parts = append(parts, "- Two to four sentences, no bullet points")
	parts = append(parts, "- Return confidence score between 0.0 and 1.0")

	parts = append(parts, "\nSummary:")

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
	case errors.Is(err, ErrNarrativeTimeout):
		resolved = commonerrors.NewNarrativeTimeoutError()
	case errors.Is(err, ErrNarrativeFailed):
		resolved = commonerrors.NewNarrativeFailedError(err)
	}
	h.errors.HandleJobError(context.Background(), client, job, resolved)
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
