// internal/workers/preferences/save-preferences/handler.go
package savepreferences

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
	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"

	commonerrors "homescout-workers/internal/common/errors"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/match"
)

const (
	TaskType = "save-preferences"
)

var (
	ErrPreferencesInvalid    = errors.New("PREFERENCES_INVALID")
	ErrPreferencesSaveFailed = errors.New("PREFERENCES_SAVE_FAILED")
)

type Handler struct {
	config      *Config
	db          *sql.DB
	redisClient *redis.Client
	catalog     []match.FeatureDefinition
	logger      logger.Logger
	errors      *commonerrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, redisClient *redis.Client, catalog []match.FeatureDefinition, log logger.Logger) *Handler {
	if catalog == nil {
		catalog = match.DefaultCatalog()
	}
	wlog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      config,
		db:          db,
		redisClient: redisClient,
		catalog:     catalog,
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
			commonerrors.NewPreferencesInvalidError(fmt.Sprintf("parse input: %v", err)))
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

// taxonomyError maps the package sentinels onto the shared error taxonomy
// so invalid payloads throw while transient save failures retry.
func taxonomyError(err error) error {
	switch {
	case errors.Is(err, ErrPreferencesInvalid):
		return commonerrors.NewPreferencesInvalidError(err.Error())
	case errors.Is(err, ErrPreferencesSaveFailed):
		return commonerrors.NewPreferencesSaveFailedError(err)
	}
	return err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.validate(input); err != nil {
		return nil, err
	}

	updatedAt := time.Now().UTC().Format(time.RFC3339)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrPreferencesSaveFailed, err)
	}
	defer tx.Rollback()

	// Replace the user's whole set in one transaction
	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = $1`, input.UserID); err != nil {
		return nil, fmt.Errorf("%w: delete failed: %v", ErrPreferencesSaveFailed, err)
	}

	for _, pref := range input.Preferences {
		valueJSON, err := json.Marshal(pref.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal value for %s: %v", ErrPreferencesSaveFailed, pref.FeatureID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO preferences (user_id, feature_id, value, importance, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			input.UserID,
			pref.FeatureID,
			valueJSON,
			pref.Importance,
			updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: insert %s failed: %v", ErrPreferencesSaveFailed, pref.FeatureID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit failed: %v", ErrPreferencesSaveFailed, err)
	}

	// Drop the cached copy so the next analysis reads fresh rows
	cacheKey := fmt.Sprintf("prefs:user:%s", input.UserID)
	if err := h.redisClient.Del(ctx, cacheKey).Err(); err != nil {
		h.logger.Warn("failed to invalidate preference cache", map[string]interface{}{
			"error":  err.Error(),
			"userId": input.UserID,
		})
	}

	h.logger.Info("preferences saved", map[string]interface{}{
		"userId":     input.UserID,
		"savedCount": len(input.Preferences),
	})

	return &Output{
		UserID:     input.UserID,
		SavedCount: len(input.Preferences),
		UpdatedAt:  updatedAt,
	}, nil
}

func (h *Handler) validate(input *Input) error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrPreferencesInvalid)
	}
	if len(input.Preferences) > h.config.MaxPreferences {
		return fmt.Errorf("%w: at most %d preferences allowed, got %d",
			ErrPreferencesInvalid, h.config.MaxPreferences, len(input.Preferences))
	}

	seen := make(map[string]bool, len(input.Preferences))
	for _, pref := range input.Preferences {
		if pref.FeatureID == "" {
			return fmt.Errorf("%w: preference without featureId", ErrPreferencesInvalid)
		}
		def, ok := match.FindFeature(h.catalog, pref.FeatureID)
		if !ok {
			return fmt.Errorf("%w: unknown feature %q", ErrPreferencesInvalid, pref.FeatureID)
		}
		if pref.Importance < 0 || pref.Importance > 4 {
			return fmt.Errorf("%w: importance for %s must be 0-4, got %d",
				ErrPreferencesInvalid, pref.FeatureID, pref.Importance)
		}
		if err := validateValueShape(def, match.ResolveValue(pref.Value)); err != nil {
			return fmt.Errorf("%w: value for %s %v", ErrPreferencesInvalid, pref.FeatureID, err)
		}
		if seen[pref.FeatureID] {
			return fmt.Errorf("%w: duplicate feature %q", ErrPreferencesInvalid, pref.FeatureID)
		}
		seen[pref.FeatureID] = true
	}
	return nil
}

// validateValueShape checks a preference value against the schema its
// feature type implies. Number features accept a bare target or a
// {min,max} range object; select values must be one of the catalog options.
func validateValueShape(def match.FeatureDefinition, value interface{}) error {
	var schema map[string]interface{}
	switch def.Type {
	case match.FeatureBoolean:
		schema = map[string]interface{}{"type": "boolean"}
	case match.FeatureNumber:
		schema = map[string]interface{}{
			"oneOf": []interface{}{
				map[string]interface{}{"type": "number"},
				map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"min": map[string]interface{}{"type": "number"},
						"max": map[string]interface{}{"type": "number"},
					},
					"additionalProperties": false,
					"minProperties":        1,
				},
			},
		}
	case match.FeatureSelect:
		schema = map[string]interface{}{"type": "string"}
		if len(def.Options) > 0 {
			options := make([]interface{}, 0, len(def.Options))
			for _, option := range def.Options {
				options = append(options, option)
			}
			schema["enum"] = options
		}
	default:
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("could not be checked: %v", err)
	}
	if !result.Valid() {
		return fmt.Errorf("does not fit the %s shape", def.Type)
	}
	return nil
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
