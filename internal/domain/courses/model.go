package courses

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID         string `gorm:"primaryKey;type:varchar(64)"`
	Title      string `gorm:"not null"`
	Instructor string
	Thumbnail  string
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency   string          `gorm:"type:varchar(8)"`

	// nil means the catalog never set the flag; only an explicit false blocks checkout.
	Published *bool

	StripePriceID *string `gorm:"column:stripe_price_id;uniqueIndex:idx_courses_stripe_price_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Course) IsUnpublished() bool {
	return c.Published != nil && !*c.Published
}
