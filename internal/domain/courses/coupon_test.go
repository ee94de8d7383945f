package courses

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCoupon_Applicable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		coupon *Coupon
		want   bool
	}{
		{name: "nil coupon", coupon: nil, want: false},
		{name: "active with future expiry", coupon: &Coupon{Active: true, ExpiresAt: &future}, want: true},
		{name: "inactive", coupon: &Coupon{Active: false, ExpiresAt: &future}, want: false},
		{name: "expired", coupon: &Coupon{Active: true, ExpiresAt: &past}, want: false},
		{name: "expires exactly now", coupon: &Coupon{Active: true, ExpiresAt: &now}, want: false},
		{name: "no expiry", coupon: &Coupon{Active: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.Applicable(now))
		})
	}
}

func TestCoupon_DiscountFor(t *testing.T) {
	price := decimal.NewFromInt(1000)

	pct := &Coupon{Type: CouponPercentage, Value: decimal.NewFromInt(20)}
	assert.True(t, pct.DiscountFor(price).Equal(decimal.NewFromInt(200)))

	fixed := &Coupon{Type: CouponFixed, Value: decimal.NewFromInt(150)}
	assert.True(t, fixed.DiscountFor(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(150)))

	unknown := &Coupon{Type: "bogus", Value: decimal.NewFromInt(10)}
	assert.True(t, unknown.DiscountFor(price).IsZero())
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE20", NormalizeCode("  save20 "))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestCourse_IsUnpublished(t *testing.T) {
	yes, no := true, false
	assert.False(t, (&Course{}).IsUnpublished())
	assert.False(t, (&Course{Published: &yes}).IsUnpublished())
	assert.True(t, (&Course{Published: &no}).IsUnpublished())
}
