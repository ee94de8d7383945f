package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderCompleted OrderStatus = "completed"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
)

// IsTerminalSuccess treats completed and paid as the same confirmed state.
func (s OrderStatus) IsTerminalSuccess() bool {
	return s == OrderCompleted || s == OrderPaid
}

// Order is keyed by the id the payment gateway minted. Pricing columns are a
// snapshot taken at creation and are never rewritten.
type Order struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	CourseID  string `gorm:"type:varchar(64);not null;index:idx_orders_user_course,priority:2"`
	UserID    string `gorm:"type:varchar(128);not null;index:idx_orders_user_course,priority:1"`
	UserEmail string

	OriginalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Discount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	FinalAmountMinor int64           `gorm:"column:final_amount_minor;not null"`
	Currency         string          `gorm:"type:varchar(8);not null"`
	CouponCode       *string         `gorm:"type:varchar(64)"`
	Receipt          string          `gorm:"type:varchar(40)"`
	Notes            datatypes.JSONMap

	Status          OrderStatus `gorm:"type:varchar(16);not null;index"`
	PaymentID       *string     `gorm:"type:varchar(64);index"`
	Signature       *string     `gorm:"type:varchar(128)"`
	PaymentMethod   *string     `gorm:"type:varchar(32)"`
	WebhookReceived bool        `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}

// OrderUpdate is a status transition plus the payment facts that justify it.
type OrderUpdate struct {
	Status          OrderStatus
	PaymentID       *string
	Signature       *string
	PaymentMethod   *string
	WebhookReceived bool
	PaidAt          *time.Time
}

// OrderAnnotation carries corroborating metadata for an order that is already
// terminal. Applying it never touches status or amounts; payment fields are
// only filled when still empty.
type OrderAnnotation struct {
	WebhookReceived bool
	PaymentID       *string
	PaymentMethod   *string
}

// AmountPaid converts the stored minor-unit amount back to major units.
func (o *Order) AmountPaid() decimal.Decimal {
	return FromMinorUnits(o.FinalAmountMinor)
}
