// internal/workers/notification/send-notification/models.go
package sendnotification

type Input struct {
	RecipientID      string                 `json:"recipientId"`
	RecipientType    string                 `json:"recipientType"` // "buyer" or "agent"
	NotificationType string                 `json:"notificationType"`
	ListingID        string                 `json:"listingId,omitempty"`
	Priority         string                 `json:"priority,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent" or "disabled"; send failures fail the job
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Notification types
const (
	TypeNewMatch        = "new_match"
	TypeAnalysisReady   = "analysis_ready"
	TypeComparisonReady = "comparison_ready"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
)

// Recipient types
const (
	RecipientTypeBuyer = "buyer"
	RecipientTypeAgent = "agent"
)
