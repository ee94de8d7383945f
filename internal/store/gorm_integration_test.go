//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"course-checkout/database"
	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/enrollments"
	"course-checkout/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newPostgresStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("checkout"),
		postgres.WithPassword("checkout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return store.NewGorm(db)
}

func seedCreatedOrder(t *testing.T, st store.Store, id string) {
	t.Helper()
	require.NoError(t, st.CreateOrder(context.Background(), &billing.Order{
		ID:               id,
		CourseID:         "go-101",
		UserID:           "user-1",
		OriginalPrice:    decimal.NewFromInt(499),
		Discount:         decimal.Zero,
		FinalAmountMinor: 49900,
		Currency:         "INR",
		Status:           billing.OrderCreated,
	}))
}

func TestGormStore_Postgres(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()

	t.Run("transition applies only from the expected status", func(t *testing.T) {
		seedCreatedOrder(t, st, "order_tx1")
		pay := "pay_1"
		now := time.Now()

		ok, err := st.TransitionOrder(ctx, "order_tx1", billing.OrderCreated, billing.OrderUpdate{
			Status: billing.OrderCompleted, PaymentID: &pay, PaidAt: &now,
		})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = st.TransitionOrder(ctx, "order_tx1", billing.OrderCreated, billing.OrderUpdate{Status: billing.OrderFailed})
		require.NoError(t, err)
		assert.False(t, ok)

		o, err := st.FindOrder(ctx, "order_tx1")
		require.NoError(t, err)
		assert.Equal(t, billing.OrderCompleted, o.Status)
	})

	t.Run("annotate keeps the first payment id", func(t *testing.T) {
		seedCreatedOrder(t, st, "order_an1")
		first, second, method := "pay_first", "pay_second", "upi"

		require.NoError(t, st.AnnotateOrder(ctx, "order_an1", billing.OrderAnnotation{PaymentID: &first}))
		require.NoError(t, st.AnnotateOrder(ctx, "order_an1", billing.OrderAnnotation{
			WebhookReceived: true, PaymentID: &second, PaymentMethod: &method,
		}))

		o, err := st.FindOrder(ctx, "order_an1")
		require.NoError(t, err)
		require.NotNil(t, o.PaymentID)
		assert.Equal(t, first, *o.PaymentID)
		require.NotNil(t, o.PaymentMethod)
		assert.Equal(t, method, *o.PaymentMethod)
		assert.True(t, o.WebhookReceived)
		assert.Equal(t, billing.OrderCreated, o.Status)

		assert.ErrorIs(t, st.AnnotateOrder(ctx, "missing", billing.OrderAnnotation{WebhookReceived: true}), store.ErrNotFound)
	})

	t.Run("second enrollment for the same pair is a duplicate", func(t *testing.T) {
		mk := func(id string) *enrollments.Enrollment {
			return &enrollments.Enrollment{
				ID: id, UserID: "user-dup", CourseID: "go-101",
				Status: enrollments.StatusActive, AmountPaid: decimal.NewFromInt(499),
				Source: "verification", EnrolledAt: time.Now(),
			}
		}
		require.NoError(t, st.CreateEnrollment(ctx, mk("enr-a")))
		assert.ErrorIs(t, st.CreateEnrollment(ctx, mk("enr-b")), store.ErrDuplicate)

		e, err := st.FindEnrollment(ctx, "user-dup", "go-101")
		require.NoError(t, err)
		assert.Equal(t, "enr-a", e.ID)
	})

	t.Run("webhook event ids are unique", func(t *testing.T) {
		ev := func() *billing.WebhookEvent {
			return &billing.WebhookEvent{EventID: "evt_1", EventType: "payment.captured", Payload: []byte(`{}`), Outcome: billing.WebhookOutcomeReceived}
		}
		require.NoError(t, st.RecordWebhookEvent(ctx, ev()))
		assert.ErrorIs(t, st.RecordWebhookEvent(ctx, ev()), store.ErrDuplicate)

		require.NoError(t, st.FinishWebhookEvent(ctx, "evt_1", billing.WebhookOutcomeProcessed, ""))
		got, err := st.FindWebhookEvent(ctx, "evt_1")
		require.NoError(t, err)
		assert.Equal(t, billing.WebhookOutcomeProcessed, got.Outcome)
		assert.NotNil(t, got.ProcessedAt)
	})

	t.Run("orphaned orders are paid orders without enrollment", func(t *testing.T) {
		seedCreatedOrder(t, st, "order_orphan")
		now := time.Now()
		ok, err := st.TransitionOrder(ctx, "order_orphan", billing.OrderCreated, billing.OrderUpdate{Status: billing.OrderPaid, PaidAt: &now})
		require.NoError(t, err)
		require.True(t, ok)

		orphans, err := st.ListOrphanedOrders(ctx, 10)
		require.NoError(t, err)
		ids := make([]string, 0, len(orphans))
		for _, o := range orphans {
			ids = append(ids, o.ID)
		}
		// order_tx1 belongs to user-1 who has no enrollment yet either.
		assert.ElementsMatch(t, []string{"order_tx1", "order_orphan"}, ids)
	})

	t.Run("failed transaction rolls back every write", func(t *testing.T) {
		seedCreatedOrder(t, st, "order_rb")
		boom := errors.New("boom")

		err := st.InTx(ctx, func(tx store.Store) error {
			if _, err := tx.LockOrder(ctx, "order_rb"); err != nil {
				return err
			}
			if _, err := tx.TransitionOrder(ctx, "order_rb", billing.OrderCreated, billing.OrderUpdate{Status: billing.OrderCompleted}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		o, err := st.FindOrder(ctx, "order_rb")
		require.NoError(t, err)
		assert.Equal(t, billing.OrderCreated, o.Status)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, st.Ping(ctx))
	})
}
