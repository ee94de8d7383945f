package routes

import (
	"net/http"

	adminapi "course-checkout/internal/api/admin"
	ordersapi "course-checkout/internal/api/orders"
	paymentsapi "course-checkout/internal/api/payments"
	"course-checkout/internal/api/paymentwebhook"
	"course-checkout/internal/app/http/middleware"
	"course-checkout/internal/infra/identity"
	"course-checkout/internal/store"

	"github.com/gin-gonic/gin"
)

// Deps carries everything the HTTP surface needs. Handlers never reach for
// globals.
type Deps struct {
	Store        store.Store
	Verifier     identity.Verifier
	Orders       *ordersapi.Handler
	Payments     *paymentsapi.Handler
	Webhooks     *paymentwebhook.Handler
	Admin        *adminapi.Handler
	Limiter      *middleware.IPRateLimiter
	MaxJSONBytes int64
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Webhooks get the untouched body; no sanitizing or auth in front.
	r.POST("/webhooks/payment", d.Webhooks.Payment)
	r.POST("/webhooks/razorpay", d.Webhooks.Razorpay)

	r.GET("/health", func(c *gin.Context) {
		if err := d.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(d.Verifier))
	auth.GET("/orders/:orderId", d.Orders.GetOrder)

	// Authenticated and sanitized
	checkout := auth.Group("/")
	if d.Limiter != nil {
		checkout.Use(d.Limiter.Middleware())
	}
	checkout.Use(middleware.SanitizeAndCleanInputMiddleware(d.MaxJSONBytes))
	checkout.POST("/orders", d.Orders.CreateOrder)
	checkout.POST("/payments/verify", d.Payments.VerifyPayment)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Verifier), middleware.RequireRole("admin"))
	admin.GET("/orders", d.Admin.ListOrders)
	admin.GET("/payments", d.Admin.ListPayments)
	admin.POST("/orders/:id/reconcile", d.Admin.ReconcileOrder)
	admin.POST("/courses/sync", d.Admin.SyncCourses)
	admin.POST("/repair", d.Admin.RunRepair)
}
