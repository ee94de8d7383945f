package enrollments

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const StatusActive Status = "active"

// Enrollment grants a user access to a course. The composite unique index
// guarantees at most one row per (user, course).
type Enrollment struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	UserID     string `gorm:"type:varchar(128);not null;uniqueIndex:idx_enrollments_user_course,priority:1"`
	CourseID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_enrollments_user_course,priority:2"`
	CourseName string

	Status   Status `gorm:"type:varchar(16);not null"`
	Progress int    `gorm:"not null;default:0"`

	PaymentID     *string         `gorm:"type:varchar(64)"`
	OrderID       *string         `gorm:"type:varchar(64);index"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PaymentMethod *string         `gorm:"type:varchar(32)"`
	Source        string          `gorm:"type:varchar(32);not null"`

	EnrolledAt time.Time
	UpdatedAt  time.Time
}
