// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// JobFailure is the resolved outcome for a failed job: either a bounded
// retry or a BPMN error the process can route on.
type JobFailure struct {
	BPMN      *BPMNError
	Code      ErrorCode
	Retries   int
	Retryable bool
}

// Resolve normalizes any worker error and decides between retrying and
// throwing. remainingRetries caps the retry count so a job that Camunda
// already retried down to N cannot be bumped back up.
func Resolve(err error, remainingRetries int32) JobFailure {
	stdErr := normalize(err)
	retries := GetRetryCount(stdErr.Code)
	if int(remainingRetries) < retries {
		retries = int(remainingRetries)
	}
	return JobFailure{
		BPMN:      ConvertToBPMNError(stdErr),
		Code:      stdErr.Code,
		Retries:   retries,
		Retryable: retries > 0,
	}
}

func normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ErrorHandler reports resolved failures back to Zeebe.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError resolves err and reports it to Zeebe, either failing the
// job with a decremented retry budget or throwing a BPMN error the process
// can route on.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	failure := Resolve(err, job.Retries-1)
	h.logFailure(job, failure)

	if failure.Retryable {
		h.failJob(ctx, client, job, failure)
		return
	}
	h.throwBPMNError(ctx, client, job, failure.BPMN)
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, failure JobFailure) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(failure.Retries)).
		ErrorMessage(failure.BPMN.Message)

	if varsJSON := marshalErrorVariables(failure.BPMN); varsJSON != "" {
		if cmdWithVars, err := cmd.VariablesFromString(varsJSON); err == nil {
			_, _ = cmdWithVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if varsJSON := marshalErrorVariables(bpmnErr); varsJSON != "" {
		if cmdWithVars, err := cmd.VariablesFromString(varsJSON); err == nil {
			_, _ = cmdWithVars.Send(ctx)
			return
		}
	}
	_, _ = cmd.Send(ctx)
}

func marshalErrorVariables(bpmnErr *BPMNError) string {
	vars := bpmnErr.ToErrorVariables()
	if len(vars) == 0 {
		return ""
	}
	varsJSON, err := json.Marshal(vars)
	if err != nil || string(varsJSON) == "null" {
		return ""
	}
	return string(varsJSON)
}

func (h *ErrorHandler) logFailure(job entities.Job, failure JobFailure) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(failure.Code),
		"bpmnErrorCode":    failure.BPMN.Code,
		"message":          failure.BPMN.Message,
		"retryable":        failure.Retryable,
		"retries":          failure.Retries,
		"errorCategory":    GetErrorCategory(failure.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
