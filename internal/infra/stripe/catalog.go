// Package stripe reads course prices from the Stripe catalog.
package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// CoursePrice is one sellable course as described in Stripe.
type CoursePrice struct {
	CourseID  string
	Title     string
	Price     decimal.Decimal
	Currency  string
	PriceID   string
	Published bool
}

type Catalog struct {
	api *client.API
}

func NewCatalog(secretKey string) *Catalog {
	return &Catalog{api: client.New(secretKey, nil)}
}

// ListCoursePrices returns every active one-time price whose price or product
// metadata names a course_id, plus how many prices were skipped.
func (c *Catalog) ListCoursePrices(ctx context.Context) ([]CoursePrice, int, error) {
	params := &stripe.PriceListParams{}
	params.Context = ctx
	params.Active = stripe.Bool(true)
	params.Type = stripe.String(string(stripe.PriceTypeOneTime))
	params.AddExpand("data.product")

	var out []CoursePrice
	skipped := 0

	it := c.api.Prices.List(params)
	for it.Next() {
		cp, ok := CoursePriceFrom(it.Price())
		if !ok {
			skipped++
			continue
		}
		out = append(out, cp)
	}
	if err := it.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to fetch Stripe prices: %w", err)
	}
	return out, skipped, nil
}

// CoursePriceFrom maps a Stripe price with an expanded product. Price
// metadata wins over product metadata. A product that is archived or marked
// visible=false yields an unpublished course.
func CoursePriceFrom(p *stripe.Price) (CoursePrice, bool) {
	if p == nil || !p.Active || p.Product == nil {
		return CoursePrice{}, false
	}

	courseID := meta(p.Metadata, "course_id")
	if courseID == "" {
		courseID = meta(p.Product.Metadata, "course_id")
	}
	if courseID == "" {
		return CoursePrice{}, false
	}

	title := meta(p.Metadata, "title")
	if title == "" {
		title = p.Product.Name
	}

	published := p.Product.Active
	if meta(p.Metadata, "visible") == "false" || meta(p.Product.Metadata, "visible") == "false" {
		published = false
	}

	return CoursePrice{
		CourseID:  courseID,
		Title:     title,
		Price:     decimal.New(p.UnitAmount, -2),
		Currency:  strings.ToUpper(string(p.Currency)),
		PriceID:   p.ID,
		Published: published,
	}, true
}

func meta(m map[string]string, key string) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[key])
}
