package courses

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

var hundred = decimal.NewFromInt(100)

type Coupon struct {
	Code      string          `gorm:"primaryKey;type:varchar(64)"`
	Type      CouponType      `gorm:"type:varchar(16);not null"`
	Value     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Active    bool            `gorm:"not null;default:false"`
	ExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeCode upper-cases and trims a user supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Applicable reports whether the coupon may be used at now: it must be active
// and carry an expiry strictly in the future.
func (c *Coupon) Applicable(now time.Time) bool {
	if c == nil || !c.Active || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.After(now)
}

// DiscountFor returns the raw discount for price. The caller clamps the final
// amount, so a fixed coupon larger than the price is returned as-is.
func (c *Coupon) DiscountFor(price decimal.Decimal) decimal.Decimal {
	switch c.Type {
	case CouponPercentage:
		return price.Mul(c.Value).Div(hundred)
	case CouponFixed:
		return c.Value
	default:
		return decimal.Zero
	}
}
