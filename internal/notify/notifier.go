// Package notify publishes registration lifecycle events for downstream
// consumers (messaging, receipts). Delivery is best effort: a publish
// failure is logged and never blocks the registration flow.
package notify

import (
	"context"

	"regdesk/pkg/kafka"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

const (
	EventRegistrationReceived  = "registration.received"
	EventRegistrationConfirmed = "registration.confirmed"
	EventRegistrationPaid      = "registration.paid"
	EventRegistrationCanceled  = "registration.canceled"

	eventSource = "regdesk"
)

// RegistrationEvent is the payload published for every lifecycle event.
type RegistrationEvent struct {
	RegistrationID string  `json:"registration_id"`
	SessionID      string  `json:"session_id"`
	SessionTitle   string  `json:"session_title,omitempty"`
	StudentID      string  `json:"student_id"`
	StudentName    string  `json:"student_name,omitempty"`
	StudentEmail   string  `json:"student_email,omitempty"`
	StudentPhone   string  `json:"student_phone,omitempty"`
	Status         string  `json:"status"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	PaymentRef     string  `json:"payment_ref,omitempty"`
}

// Notifier publishes registration lifecycle events.
type Notifier interface {
	RegistrationEvent(ctx context.Context, eventType string, event *RegistrationEvent)
}

// ReceiptRequester asks the receipts pipeline to render a payment
// receipt for a paid registration.
type ReceiptRequester interface {
	RequestReceipt(ctx context.Context, event *RegistrationEvent)
}

type kafkaNotifier struct {
	notifications *kafka.Producer
	receipts      *kafka.Producer
	log           *logger.Logger
}

// NewKafkaNotifier publishes events to the notifications and receipts
// topics through the shared producer stack.
func NewKafkaNotifier(notifications, receipts *kafka.Producer, log *logger.Logger) *kafkaNotifier {
	return &kafkaNotifier{
		notifications: notifications,
		receipts:      receipts,
		log:           log,
	}
}

func (n *kafkaNotifier) RegistrationEvent(ctx context.Context, eventType string, event *RegistrationEvent) {
	msg := kafka.NewMessage().
		WithKey(event.SessionID).
		WithValue(event).
		WithEventType(eventType).
		WithSource(eventSource).
		Build()

	if err := n.notifications.Publish(ctx, msg); err != nil {
		n.log.Error("failed to publish registration event",
			"event_type", eventType,
			"registration_id", event.RegistrationID,
			"error", err)
	}
}

func (n *kafkaNotifier) RequestReceipt(ctx context.Context, event *RegistrationEvent) {
	msg := kafka.NewMessage().
		WithKey(event.RegistrationID).
		WithValue(event).
		WithEventType(EventRegistrationPaid).
		WithSource(eventSource).
		Build()

	if err := n.receipts.Publish(ctx, msg); err != nil {
		n.log.Error("failed to request receipt",
			"registration_id", event.RegistrationID,
			"error", err)
	}
}

type logNotifier struct {
	log *logger.Logger
}

// NewLogNotifier is the fallback used when no Kafka brokers are
// configured; events land in the structured log instead.
func NewLogNotifier(log *logger.Logger) *logNotifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) RegistrationEvent(_ context.Context, eventType string, event *RegistrationEvent) {
	n.log.Info("registration event",
		"event_type", eventType,
		"registration_id", event.RegistrationID,
		"session_id", event.SessionID,
		"student_id", event.StudentID,
		"status", event.Status)
}

func (n *logNotifier) RequestReceipt(_ context.Context, event *RegistrationEvent) {
	n.log.Info("receipt requested",
		"registration_id", event.RegistrationID,
		"payment_ref", event.PaymentRef,
		"amount", event.Amount,
		"currency", event.Currency)
}

// EventTypeForStatus maps a registration status to its lifecycle event.
// Pending maps to received; unknown statuses return "".
func EventTypeForStatus(status string) string {
	switch status {
	case model.RegistrationPending:
		return EventRegistrationReceived
	case model.RegistrationConfirmed:
		return EventRegistrationConfirmed
	case model.RegistrationPaid:
		return EventRegistrationPaid
	case model.RegistrationCanceled:
		return EventRegistrationCanceled
	}
	return ""
}
