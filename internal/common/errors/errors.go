// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeExtractionFailed      ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout     ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeAIExtractionFailed    ErrorCode = "AI_EXTRACTION_FAILED"
	ErrCodeInvalidListingPayload ErrorCode = "INVALID_LISTING_PAYLOAD"

	ErrCodeListingSaveFailed ErrorCode = "LISTING_SAVE_FAILED"
	ErrCodeDuplicateListing  ErrorCode = "DUPLICATE_LISTING"

	ErrCodePreferencesInvalid    ErrorCode = "PREFERENCES_INVALID"
	ErrCodePreferencesSaveFailed ErrorCode = "PREFERENCES_SAVE_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeListingNotFound          ErrorCode = "LISTING_NOT_FOUND"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeAnalysisFailed   ErrorCode = "ANALYSIS_FAILED"
	ErrCodeComparisonFailed ErrorCode = "COMPARISON_FAILED"

	ErrCodeNarrativeFailed  ErrorCode = "NARRATIVE_FAILED"
	ErrCodeNarrativeTimeout ErrorCode = "NARRATIVE_TIMEOUT"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewExtractionFailedError creates a retryable extractor API error.
func NewExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Listing extraction API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionTimeoutError creates a retryable extractor timeout error.
func NewExtractionTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionTimeout,
		Message:   "Listing extraction API timeout",
		Details:   "API call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAIExtractionFailedError creates a retryable AI fallback extraction error.
func NewAIExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAIExtractionFailed,
		Message:   "AI fallback extraction error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidListingPayloadError creates a non-retryable payload validation error.
func NewInvalidListingPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidListingPayload,
		Message:   "Listing payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewListingSaveFailedError creates a retryable listing persistence error.
func NewListingSaveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeListingSaveFailed,
		Message:   "Listing save operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateListingError creates a non-retryable duplicate listing error.
func NewDuplicateListingError(listingID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateListing,
		Message:   "Listing already exists",
		Details:   fmt.Sprintf("listingId: %s", listingID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferencesInvalidError creates a non-retryable preference validation error.
func NewPreferencesInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferencesInvalid,
		Message:   "Preference data validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferencesSaveFailedError creates a retryable preference persistence error.
func NewPreferencesSaveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferencesSaveFailed,
		Message:   "Preference save operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewListingNotFoundError creates a non-retryable listing lookup error.
func NewListingNotFoundError(listingID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeListingNotFound,
		Message:   "Listing not found",
		Details:   fmt.Sprintf("listingId: %s", listingID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Elasticsearch query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Elasticsearch index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisFailedError creates a non-retryable analysis error.
func NewAnalysisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisFailed,
		Message:   "Property analysis failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewComparisonFailedError creates a non-retryable comparison error.
func NewComparisonFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeComparisonFailed,
		Message:   "Property comparison failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNarrativeFailedError creates a retryable narrative generation error.
func NewNarrativeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNarrativeFailed,
		Message:   "Narrative generation API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNarrativeTimeoutError creates a retryable narrative timeout error.
func NewNarrativeTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNarrativeTimeout,
		Message:   "Narrative generation timeout",
		Details:   "GenAI call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes (same as internal).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeExtractionFailed:              "EXTRACTION_FAILED",
	ErrCodeExtractionTimeout:             "EXTRACTION_TIMEOUT",
	ErrCodeAIExtractionFailed:            "AI_EXTRACTION_FAILED",
	ErrCodeInvalidListingPayload:         "INVALID_LISTING_PAYLOAD",
	ErrCodeListingSaveFailed:             "LISTING_SAVE_FAILED",
	ErrCodeDuplicateListing:              "DUPLICATE_LISTING",
	ErrCodePreferencesInvalid:            "PREFERENCES_INVALID",
	ErrCodePreferencesSaveFailed:         "PREFERENCES_SAVE_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:                  "QUERY_TIMEOUT",
	ErrCodeListingNotFound:               "LISTING_NOT_FOUND",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:             "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:                 "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:                 "INDEX_NOT_FOUND",
	ErrCodeAnalysisFailed:                "ANALYSIS_FAILED",
	ErrCodeComparisonFailed:              "COMPARISON_FAILED",
	ErrCodeNarrativeFailed:               "NARRATIVE_FAILED",
	ErrCodeNarrativeTimeout:              "NARRATIVE_TIMEOUT",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeListingSaveFailed,
		ErrCodePreferencesSaveFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExtractionFailed,
		ErrCodeAIExtractionFailed,
		ErrCodeNarrativeFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeExtractionTimeout:
		return 2 // Partial retry for timeouts

	case ErrCodeNarrativeTimeout:
		return 1 // As per BPMN boundary event

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "PREFERENCES"):
		return "PREFERENCES"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "NARRATIVE"):
		return "AI"
	case strings.Contains(codeStr, "ANALYSIS") || strings.Contains(codeStr, "COMPARISON"):
		return "ANALYSIS"
	case strings.Contains(codeStr, "LISTING"):
		return "LISTING"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
