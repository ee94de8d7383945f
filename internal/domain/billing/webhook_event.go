package billing

import (
	"time"

	"gorm.io/datatypes"
)

const (
	WebhookOutcomeReceived  = "received"
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeAnomaly   = "anomaly"
	WebhookOutcomeError     = "error"
)

// WebhookEvent logs every signature-verified gateway callback. EventID is
// unique so redeliveries can be recognised.
type WebhookEvent struct {
	ID          uint           `gorm:"primaryKey"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_webhook_events_event_id"`
	EventType   string         `gorm:"type:varchar(64);not null;index"`
	OrderID     *string        `gorm:"type:varchar(64);index"`
	PaymentID   *string        `gorm:"type:varchar(64)"`
	Payload     datatypes.JSON `gorm:"not null"`
	Outcome     string         `gorm:"type:varchar(16);not null;default:'received'"`
	Error       string         `gorm:"type:text"`
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
