// internal/common/errors/handler_test.go
package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_RetryableTechnicalError(t *testing.T) {
	stdErr := NewListingSaveFailedError(fmt.Errorf("connection reset"))

	failure := Resolve(stdErr, 3)

	assert.True(t, failure.Retryable)
	assert.Equal(t, 3, failure.Retries)
	assert.Equal(t, ErrCodeListingSaveFailed, failure.Code)
	assert.Equal(t, "LISTING_SAVE_FAILED", failure.BPMN.Code)
}

func TestResolve_RemainingRetriesCapTheCount(t *testing.T) {
	stdErr := NewSearchQueryFailedError("keyword", fmt.Errorf("es unavailable"))

	failure := Resolve(stdErr, 1)

	assert.True(t, failure.Retryable)
	assert.Equal(t, 1, failure.Retries)
}

func TestResolve_ExhaustedRetriesBecomeThrow(t *testing.T) {
	stdErr := NewNotificationSendFailedError("email", fmt.Errorf("ses throttled"))

	failure := Resolve(stdErr, 0)

	assert.False(t, failure.Retryable)
	assert.Equal(t, 0, failure.Retries)
}

func TestResolve_BusinessErrorNeverRetries(t *testing.T) {
	stdErr := NewPreferencesInvalidError("unknown feature \"sauna\"")

	failure := Resolve(stdErr, 3)

	assert.False(t, failure.Retryable)
	assert.Equal(t, 0, failure.Retries)
	assert.Equal(t, "PREFERENCES_INVALID", failure.BPMN.Code)
}

func TestResolve_TimeoutGetsPartialRetry(t *testing.T) {
	failure := Resolve(NewExtractionTimeoutError(), 5)

	assert.True(t, failure.Retryable)
	assert.Equal(t, 2, failure.Retries)
}

func TestResolve_UnknownErrorNormalized(t *testing.T) {
	failure := Resolve(fmt.Errorf("boom"), 3)

	assert.False(t, failure.Retryable)
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), failure.Code)
	assert.Equal(t, "INTERNAL_ERROR", failure.BPMN.Code)
	assert.Equal(t, "boom", failure.BPMN.Details)
}

func TestResolve_RetryBudgetDrainsToThrow(t *testing.T) {
	stdErr := NewListingSaveFailedError(fmt.Errorf("insert failed"))

	// A fresh job arrives with 3 retries; each failure resolves against
	// one fewer so the budget drains instead of resetting.
	remaining := int32(3)
	var granted []int
	for {
		failure := Resolve(stdErr, remaining-1)
		if !failure.Retryable {
			assert.Equal(t, "LISTING_SAVE_FAILED", failure.BPMN.Code)
			break
		}
		granted = append(granted, failure.Retries)
		remaining = int32(failure.Retries)
	}

	assert.Equal(t, []int{2, 1}, granted)
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeListingSaveFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeNarrativeTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicateListing))
	assert.False(t, IsRetryableErrorCode(ErrCodePreferencesInvalid))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "EXTRACTION", GetErrorCategory(ErrCodeExtractionFailed))
	assert.Equal(t, "PREFERENCES", GetErrorCategory(ErrCodePreferencesInvalid))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchTimeout))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeNarrativeFailed))
	assert.Equal(t, "ANALYSIS", GetErrorCategory(ErrCodeComparisonFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrorCode("SOMETHING_ELSE")))
}

func TestToErrorVariables_MergesExtraVariables(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewDuplicateListingError("listing-42"))

	vars := bpmnErr.ToErrorVariables()

	assert.Equal(t, "DUPLICATE_LISTING", vars["errorCode"])
	assert.Equal(t, "DUPLICATE_LISTING", vars["originalErrorCode"])
	assert.Contains(t, vars, "timestamp")
}
