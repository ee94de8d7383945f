package stripe

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
)

func TestCoursePriceFrom(t *testing.T) {
	p := &stripe.Price{
		ID:         "price_1",
		Active:     true,
		Currency:   stripe.CurrencyINR,
		UnitAmount: 99900,
		Product: &stripe.Product{
			Name:     "Go in Practice",
			Active:   true,
			Metadata: map[string]string{"course_id": "go-101"},
		},
	}

	cp, ok := CoursePriceFrom(p)
	require.True(t, ok)
	assert.Equal(t, "go-101", cp.CourseID)
	assert.Equal(t, "Go in Practice", cp.Title)
	assert.True(t, cp.Price.Equal(decimal.NewFromInt(999)))
	assert.Equal(t, "INR", cp.Currency)
	assert.Equal(t, "price_1", cp.PriceID)
	assert.True(t, cp.Published)
}

func TestCoursePriceFrom_PriceMetadataWins(t *testing.T) {
	p := &stripe.Price{
		Active:     true,
		UnitAmount: 1999,
		Metadata:   map[string]string{"course_id": "override", "title": "Promo", "visible": "false"},
		Product:    &stripe.Product{Active: true, Metadata: map[string]string{"course_id": "base"}},
	}
	cp, ok := CoursePriceFrom(p)
	require.True(t, ok)
	assert.Equal(t, "override", cp.CourseID)
	assert.Equal(t, "Promo", cp.Title)
	assert.True(t, cp.Price.Equal(decimal.RequireFromString("19.99")))
	assert.False(t, cp.Published)
}

func TestCoursePriceFrom_Skips(t *testing.T) {
	_, ok := CoursePriceFrom(nil)
	assert.False(t, ok)

	_, ok = CoursePriceFrom(&stripe.Price{Active: true})
	assert.False(t, ok, "no product")

	_, ok = CoursePriceFrom(&stripe.Price{Active: true, Product: &stripe.Product{Name: "Merch"}})
	assert.False(t, ok, "no course_id")

	_, ok = CoursePriceFrom(&stripe.Price{Product: &stripe.Product{Metadata: map[string]string{"course_id": "x"}}})
	assert.False(t, ok, "inactive price")
}

func TestCoursePriceFrom_ArchivedProductIsUnpublished(t *testing.T) {
	cp, ok := CoursePriceFrom(&stripe.Price{
		Active:  true,
		Product: &stripe.Product{Active: false, Metadata: map[string]string{"course_id": "old"}},
	})
	require.True(t, ok)
	assert.False(t, cp.Published)
}
