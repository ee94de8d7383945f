package service

import (
	"context"
	"fmt"

	"course-checkout/internal/domain/courses"
	"course-checkout/internal/infra/stripe"
	"course-checkout/internal/store"
)

type PriceCatalog interface {
	ListCoursePrices(ctx context.Context) ([]stripe.CoursePrice, int, error)
}

// CacheInvalidator drops cached course entries after they change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

type CatalogSync struct {
	catalog PriceCatalog
	store   store.Store
	cache   CacheInvalidator
}

func NewCatalogSync(catalog PriceCatalog, st store.Store, cache CacheInvalidator) *CatalogSync {
	return &CatalogSync{catalog: catalog, store: st, cache: cache}
}

type SyncReport struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}

// SyncCourses upserts title, price, currency and visibility for every course
// priced in the catalog. Existing orders keep their own pricing snapshot.
func (s *CatalogSync) SyncCourses(ctx context.Context) (SyncReport, error) {
	var report SyncReport
	if s.catalog == nil {
		return report, fmt.Errorf("%w: course catalog not configured", ErrConfiguration)
	}

	prices, skipped, err := s.catalog.ListCoursePrices(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	report.Skipped = skipped

	ids := make([]string, 0, len(prices))
	for _, p := range prices {
		published := p.Published
		priceID := p.PriceID
		c := &courses.Course{
			ID:            p.CourseID,
			Title:         p.Title,
			Price:         p.Price,
			Currency:      p.Currency,
			Published:     &published,
			StripePriceID: &priceID,
		}
		if err := s.store.UpsertCourse(ctx, c); err != nil {
			return report, fmt.Errorf("%w: upsert course %s: %w", ErrInternal, p.CourseID, err)
		}
		ids = append(ids, p.CourseID)
		report.Synced++
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, ids...)
	}
	return report, nil
}
