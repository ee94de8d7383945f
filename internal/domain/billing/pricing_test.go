package billing

import (
	"testing"
	"time"

	"course-checkout/internal/domain/courses"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCourse(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name         string
		price        int64
		coupon       *courses.Coupon
		wantDiscount int64
		wantFinal    int64
		wantMinor    int64
		wantCoupon   bool
	}{
		{
			name:       "no coupon",
			price:      999,
			wantFinal:  999,
			wantMinor:  99900,
			wantCoupon: false,
		},
		{
			name:         "twenty percent off",
			price:        1000,
			coupon:       &courses.Coupon{Code: "SAVE20", Type: courses.CouponPercentage, Value: decimal.NewFromInt(20), Active: true, ExpiresAt: &future},
			wantDiscount: 200,
			wantFinal:    800,
			wantMinor:    80000,
			wantCoupon:   true,
		},
		{
			name:      "expired coupon is ignored",
			price:     1000,
			coupon:    &courses.Coupon{Code: "OLD", Type: courses.CouponPercentage, Value: decimal.NewFromInt(20), Active: true, ExpiresAt: &past},
			wantFinal: 1000,
			wantMinor: 100000,
		},
		{
			name:      "inactive coupon is ignored",
			price:     1000,
			coupon:    &courses.Coupon{Code: "OFF", Type: courses.CouponFixed, Value: decimal.NewFromInt(100), ExpiresAt: &future},
			wantFinal: 1000,
			wantMinor: 100000,
		},
		{
			name:         "fixed coupon larger than price clamps to zero",
			price:        100,
			coupon:       &courses.Coupon{Code: "BIG", Type: courses.CouponFixed, Value: decimal.NewFromInt(150), Active: true, ExpiresAt: &future},
			wantDiscount: 150,
			wantFinal:    0,
			wantMinor:    0,
			wantCoupon:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := PriceCourse(decimal.NewFromInt(tt.price), tt.coupon, now)

			assert.True(t, q.Original.Equal(decimal.NewFromInt(tt.price)), "original %s", q.Original)
			assert.True(t, q.Discount.Equal(decimal.NewFromInt(tt.wantDiscount)), "discount %s", q.Discount)
			assert.True(t, q.Final.Equal(decimal.NewFromInt(tt.wantFinal)), "final %s", q.Final)
			assert.False(t, q.Final.IsNegative())
			assert.Equal(t, tt.wantMinor, q.AmountMinor)
			if tt.wantCoupon {
				require.NotNil(t, q.CouponCode)
				assert.Equal(t, tt.coupon.Code, *q.CouponCode)
			} else {
				assert.Nil(t, q.CouponCode)
			}
		})
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(99900), ToMinorUnits(decimal.NewFromInt(999)))
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.RequireFromString("9.995")))
	assert.Equal(t, int64(99), ToMinorUnits(decimal.RequireFromString("0.99")))

	assert.True(t, FromMinorUnits(99900).Equal(decimal.NewFromInt(999)))
	assert.True(t, FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
}

func TestReceiptID(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	short := ReceiptID(now, "abc")
	assert.LessOrEqual(t, len(short), MaxReceiptLen)
	assert.Contains(t, short, "_abc_")

	long := ReceiptID(now, "a-very-long-course-identifier-that-keeps-going-and-going")
	assert.LessOrEqual(t, len(long), MaxReceiptLen)
	assert.Contains(t, long, "_a-very-l_")

	assert.NotEqual(t, ReceiptID(now, "abc"), ReceiptID(now, "abc"))
}

func TestOrderStatus_IsTerminalSuccess(t *testing.T) {
	assert.True(t, OrderCompleted.IsTerminalSuccess())
	assert.True(t, OrderPaid.IsTerminalSuccess())
	assert.False(t, OrderCreated.IsTerminalSuccess())
	assert.False(t, OrderFailed.IsTerminalSuccess())

	assert.Equal(t, OrderPaid, SourceWebhook.TerminalStatus())
	assert.Equal(t, OrderCompleted, SourceVerification.TerminalStatus())
	assert.Equal(t, OrderCompleted, SourceRepair.TerminalStatus())
}
