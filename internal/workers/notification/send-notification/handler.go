// internal/workers/notification/send-notification/handler.go
package sendnotification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	commonaws "homescout-workers/internal/common/aws"
	commonerrors "homescout-workers/internal/common/errors"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/common/validation"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-notification"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// notificationTemplate is one entry in the template registry file.
type notificationTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Handler struct {
	config      *Config
	db          *sql.DB
	logger      logger.Logger
	errors      *commonerrors.ErrorHandler
	sesClient   SESService
	snsClient   SNSService
	templateMap map[string]notificationTemplate
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) (*Handler, error) {
	templateData, err := loadTemplates(config.TemplateRegistry)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	sesClient, err := commonaws.NewSESClient(context.Background(), config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("create SES client: %w", err)
	}
	snsClient, err := commonaws.NewSNSClient(context.Background(), config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("create SNS client: %w", err)
	}

	wlog := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      config,
		db:          db,
		logger:      wlog,
		errors:      commonerrors.NewErrorHandler(wlog),
		sesClient:   sesClient,
		snsClient:   snsClient,
		templateMap: templateData,
	}, nil
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
		resolved := err
		if errors.Is(err, ErrNotificationSendFailed) {
			resolved = commonerrors.NewNotificationSendFailedError(input.NotificationType, err)
		}
		h.errors.HandleJobError(context.Background(), client, job, resolved)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	email, phone, err := h.getRecipientContact(ctx, input.RecipientID, input.RecipientType)
	if err != nil {
		h.logger.Warn("recipient not found", map[string]interface{}{
			"recipientId": input.RecipientID,
			"type":        input.RecipientType,
		})
		return &Output{
			NotificationID: uuid.New().String(),
			Status:         StatusDisabled,
			SentAt:         time.Now().UTC().Format(time.RFC3339),
		}, nil
	}

	// Malformed contact rows disable the channel instead of erroring mid-send
	if email != "" && !validation.ValidateEmail(email) {
		h.logger.Warn("invalid email on file, skipping email channel", map[string]interface{}{
			"recipientId": input.RecipientID,
		})
		email = ""
	}
	if phone != "" && !validation.ValidatePhone(phone) {
		h.logger.Warn("invalid phone on file, skipping SMS channel", map[string]interface{}{
			"recipientId": input.RecipientID,
		})
		phone = ""
	}

	template, exists := h.templateMap[input.NotificationType]
	if !exists {
		return nil, fmt.Errorf("template not found for type: %s", input.NotificationType)
	}

	// Build data map for template rendering
	data := map[string]interface{}{
		"recipientId":      input.RecipientID,
		"notificationType": input.NotificationType,
		"listingId":        input.ListingID,
		"priority":         input.Priority,
	}

	// Merge metadata if present
	if input.Metadata != nil {
		for k, v := range input.Metadata {
			data[k] = v
		}
	}

	subject := renderTemplate(template.Subject, data)
	body := renderTemplate(template.Body, data)

	sentAt := time.Now().UTC().Format(time.RFC3339)
	notificationID := uuid.New().String()

	// Track what was sent
	emailSent := false
	smsSent := false

	// Send email if enabled and email exists
	if h.config.EmailEnabled && email != "" {
		if err := h.sendEmail(ctx, email, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error": err,
				"email": email,
			})
			return nil, fmt.Errorf("%w: email: %v", ErrNotificationSendFailed, err)
		}
		emailSent = true
	}

	// Send SMS only if: enabled AND phone exists AND priority is high
	if h.config.SMSEnabled && phone != "" && input.Priority == "high" {
		if err := h.sendSMS(ctx, phone, body); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error": err,
				"phone": phone,
			})
			return nil, fmt.Errorf("%w: sms: %v", ErrNotificationSendFailed, err)
		}
		smsSent = true
	}

	// Determine status based on what was sent
	status := StatusDisabled
	if emailSent || smsSent {
		status = StatusSent
	}

	return &Output{
		NotificationID: notificationID,
		Status:         status,
		SentAt:         sentAt,
	}, nil
}

func (h *Handler) getRecipientContact(ctx context.Context, recipientID, recipientType string) (string, string, error) {
	var email, phone string
	var query string

	switch recipientType {
	case RecipientTypeBuyer:
		query = `SELECT email, phone FROM buyers WHERE id = $1`
	case RecipientTypeAgent:
		query = `SELECT email, phone FROM agents WHERE id = $1`
	default:
		return "", "", fmt.Errorf("invalid recipient type: %s", recipientType)
	}

	err := h.db.QueryRowContext(ctx, query, recipientID).Scan(&email, &phone)
	return email, phone, err
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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

// Simplified template rendering with placeholder removal for missing values
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Remove any remaining placeholders (missing values)
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

// loadTemplates reads the template registry file when one is configured,
// falling back to the built-in set when the path is empty.
func loadTemplates(path string) (map[string]notificationTemplate, error) {
	if path == "" {
		return builtinTemplates(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template registry %s: %w", path, err)
	}

	var templates map[string]notificationTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse template registry %s: %w", path, err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("template registry %s has no templates", path)
	}
	return templates, nil
}

func builtinTemplates() map[string]notificationTemplate {
	return map[string]notificationTemplate{
		TypeNewMatch: {
			Subject: "New match: {{listingTitle}}",
			Body:    "A new listing matches your wishes: {{listingTitle}} in {{location}} scored {{percentage}}%.",
		},
		TypeAnalysisReady: {
			Subject: "Your property analysis is ready",
			Body:    "The analysis for {{listingTitle}} is done. Match score: {{percentage}}%. {{narrative}}",
		},
		TypeComparisonReady: {
			Subject: "Your property comparison is ready",
			Body:    "We compared {{listingCount}} properties for you. Best match: {{bestTitle}} with {{percentage}}%.",
		},
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
