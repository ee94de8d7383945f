package billing

import (
	"time"

	"course-checkout/internal/domain/courses"

	"github.com/shopspring/decimal"
)

// DefaultMinAmountMinor is the smallest amount the gateway will charge (1.00 in
// major units).
const DefaultMinAmountMinor int64 = 100

var minorPerMajor = decimal.NewFromInt(100)

// Quote is the pricing snapshot persisted on an order.
type Quote struct {
	Original    decimal.Decimal
	Discount    decimal.Decimal
	Final       decimal.Decimal
	AmountMinor int64
	CouponCode  *string
}

// PriceCourse applies coupon to price when it is applicable at now. A nil or
// unusable coupon leaves the price untouched. The final price never goes
// below zero.
func PriceCourse(price decimal.Decimal, coupon *courses.Coupon, now time.Time) Quote {
	q := Quote{
		Original: price,
		Discount: decimal.Zero,
	}

	if coupon.Applicable(now) {
		q.Discount = coupon.DiscountFor(price)
		code := coupon.Code
		q.CouponCode = &code
	}

	q.Final = price.Sub(q.Discount)
	if q.Final.IsNegative() {
		q.Final = decimal.Zero
	}
	q.AmountMinor = ToMinorUnits(q.Final)
	return q
}

// ToMinorUnits multiplies by 100 and rounds to the nearest integer.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorPerMajor).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
