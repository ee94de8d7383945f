package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/infra/gateway"
	"course-checkout/internal/infra/signature"
	"course-checkout/internal/store"

	"gorm.io/datatypes"
)

const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
)

// Ack statuses.
const (
	AckProcessed = billing.WebhookOutcomeProcessed
	AckIgnored   = billing.WebhookOutcomeIgnored
	AckReceived  = billing.WebhookOutcomeReceived
	AckDuplicate = "duplicate"
)

// Delivery is one webhook request exactly as received.
type Delivery struct {
	Body      []byte
	Signature string
	EventID   string
}

type Ack struct {
	Status           string `json:"status"`
	EnrollmentID     string `json:"enrollmentId,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string          `json:"id"`
	OrderID string          `json:"order_id"`
	Method  string          `json:"method"`
	Status  string          `json:"status"`
	Amount  int64           `json:"amount"`
	Notes   json.RawMessage `json:"notes"`
}

func (e paymentEntity) notes() map[string]string {
	var raw interface{}
	if len(e.Notes) == 0 || json.Unmarshal(e.Notes, &raw) != nil {
		return map[string]string{}
	}
	return gateway.NotesFrom(raw)
}

// WebhookProcessor verifies and applies gateway payment events.
type WebhookProcessor struct {
	store      store.Store
	reconciler *Reconciler
	secret     string
}

func NewWebhookProcessor(st store.Store, rec *Reconciler, secret string) *WebhookProcessor {
	return &WebhookProcessor{store: st, reconciler: rec, secret: secret}
}

// Handle returns an error only for configuration problems and bad
// signatures. Once the signature checks out every outcome is an Ack, so the
// gateway never retries a delivery it has already handed over.
func (w *WebhookProcessor) Handle(ctx context.Context, d Delivery, accepted ...string) (*Ack, error) {
	if w.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrConfiguration)
	}
	ok, err := signature.Verify(w.secret, d.Body, d.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if !ok {
		return nil, ErrVerificationFailed
	}

	var env webhookEnvelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		log.Printf("webhook: verified body is not valid JSON: %v", err)
		return &Ack{Status: AckIgnored}, nil
	}
	entity := env.Payload.Payment.Entity

	eventID := d.EventID
	if eventID == "" {
		eventID = "sig:" + d.Signature
	}
	if done := w.record(ctx, eventID, env.Event, entity, d.Body); done {
		return &Ack{Status: AckDuplicate}, nil
	}

	if !slices.Contains(accepted, env.Event) {
		w.finish(ctx, eventID, billing.WebhookOutcomeIgnored, "")
		return &Ack{Status: AckIgnored}, nil
	}

	if entity.OrderID == "" || entity.ID == "" {
		log.Printf("ANOMALY: webhook %s (%s) has no order or payment id", eventID, env.Event)
		w.finish(ctx, eventID, billing.WebhookOutcomeAnomaly, "missing order_id or payment id")
		return &Ack{Status: AckIgnored}, nil
	}

	var method *string
	if entity.Method != "" {
		method = &entity.Method
	}
	res, err := w.reconciler.Reconcile(ctx, ReconcileInput{
		OrderID:    entity.OrderID,
		PaymentID:  entity.ID,
		Method:     method,
		NoteUserID: entity.notes()["userId"],
		Via:        billing.SourceWebhook,
	})
	if err != nil {
		outcome := billing.WebhookOutcomeError
		if errors.Is(err, ErrAnomaly) {
			outcome = billing.WebhookOutcomeAnomaly
		}
		log.Printf("webhook %s for order %s not reconciled: %v", eventID, entity.OrderID, err)
		w.finish(ctx, eventID, outcome, err.Error())
		return &Ack{Status: AckReceived}, nil
	}

	w.finish(ctx, eventID, billing.WebhookOutcomeProcessed, "")
	return &Ack{
		Status:           AckProcessed,
		EnrollmentID:     res.EnrollmentID,
		AlreadyProcessed: res.AlreadyProcessed,
	}, nil
}

// record logs the delivery and reports whether an earlier delivery with the
// same id was already processed. An ignored delivery does not count: the
// same event may reach an endpoint that accepts its type.
func (w *WebhookProcessor) record(ctx context.Context, eventID, eventType string, entity paymentEntity, body []byte) bool {
	evt := &billing.WebhookEvent{
		EventID:   eventID,
		EventType: eventType,
		OrderID:   nonEmpty(entity.OrderID),
		PaymentID: nonEmpty(entity.ID),
		Payload:   datatypes.JSON(body),
		Outcome:   billing.WebhookOutcomeReceived,
	}
	err := w.store.RecordWebhookEvent(ctx, evt)
	if err == nil {
		return false
	}
	if !errors.Is(err, store.ErrDuplicate) {
		log.Printf("webhook %s: event log write failed: %v", eventID, err)
		return false
	}

	prev, err := w.store.FindWebhookEvent(ctx, eventID)
	if err != nil {
		log.Printf("webhook %s: event log read failed: %v", eventID, err)
		return false
	}
	if prev.Outcome == billing.WebhookOutcomeProcessed {
		log.Printf("webhook %s already processed, skipping", eventID)
		return true
	}
	return false
}

func (w *WebhookProcessor) finish(ctx context.Context, eventID, outcome, errMsg string) {
	if err := w.store.FinishWebhookEvent(ctx, eventID, outcome, errMsg); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("webhook %s: event log update failed: %v", eventID, err)
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
