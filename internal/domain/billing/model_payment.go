package billing

import "time"

// Payment is the append-only audit row written once per verified payment.
type Payment struct {
	ID          string  `gorm:"primaryKey;type:varchar(36)"`
	OrderID     string  `gorm:"type:varchar(64);not null;index"`
	PaymentID   string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_payments_payment_id"`
	UserID      string  `gorm:"type:varchar(128);not null;index"`
	CourseID    string  `gorm:"type:varchar(64);not null"`
	AmountMinor int64   `gorm:"not null"`
	Currency    string  `gorm:"type:varchar(8);not null"`
	Method      *string `gorm:"type:varchar(32)"`
	Source      Source  `gorm:"type:varchar(32);not null"`
	CreatedAt   time.Time
}
