package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"course-checkout/internal/api/apierr"
	"course-checkout/internal/domain/billing"
	"course-checkout/internal/service"
	"course-checkout/internal/store"

	"github.com/gin-gonic/gin"
)

type AdminOrder struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	UserEmail       string  `json:"user_email"`
	CourseID        string  `json:"course_id"`
	Status          string  `json:"status"`
	AmountMinor     int64   `json:"amount_minor"`
	Currency        string  `json:"currency"`
	OriginalPrice   string  `json:"original_price"`
	Discount        string  `json:"discount"`
	CouponCode      *string `json:"coupon_code,omitempty"`
	PaymentID       *string `json:"payment_id,omitempty"`
	PaymentMethod   *string `json:"payment_method,omitempty"`
	WebhookReceived bool    `json:"webhook_received"`
	CreatedAt       string  `json:"created_at"`
	PaidAt          *string `json:"paid_at,omitempty"`
}

type AdminPayment struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	PaymentID   string  `json:"payment_id"`
	UserID      string  `json:"user_id"`
	CourseID    string  `json:"course_id"`
	AmountMinor int64   `json:"amount_minor"`
	Currency    string  `json:"currency"`
	Method      *string `json:"method,omitempty"`
	Source      string  `json:"source"`
	CreatedAt   string  `json:"created_at"`
}

type GatewayConfirmer interface {
	ConfirmFromGateway(ctx context.Context, orderID, paymentID string) (*service.ReconcileResult, error)
}

type CourseSyncer interface {
	SyncCourses(ctx context.Context) (service.SyncReport, error)
}

type Repairer interface {
	Repair(ctx context.Context, limit int) (service.RepairReport, error)
}

type Handler struct {
	store    store.Store
	confirm  GatewayConfirmer
	syncer   CourseSyncer
	repairer Repairer
}

func NewHandler(st store.Store, confirm GatewayConfirmer, syncer CourseSyncer, repairer Repairer) *Handler {
	return &Handler{store: st, confirm: confirm, syncer: syncer, repairer: repairer}
}

func (h *Handler) ListOrders(c *gin.Context) {
	filter := store.OrderFilter{
		Status: billing.OrderStatus(c.Query("status")),
		UserID: c.Query("user_id"),
		Limit:  queryInt(c, "limit"),
	}
	orders, err := h.store.ListOrders(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}

	out := make([]AdminOrder, 0, len(orders))
	for _, o := range orders {
		var paidAt *string
		if o.PaidAt != nil {
			s := o.PaidAt.Format(time.RFC3339)
			paidAt = &s
		}
		out = append(out, AdminOrder{
			ID:              o.ID,
			UserID:          o.UserID,
			UserEmail:       o.UserEmail,
			CourseID:        o.CourseID,
			Status:          string(o.Status),
			AmountMinor:     o.FinalAmountMinor,
			Currency:        o.Currency,
			OriginalPrice:   o.OriginalPrice.StringFixed(2),
			Discount:        o.Discount.StringFixed(2),
			CouponCode:      o.CouponCode,
			PaymentID:       o.PaymentID,
			PaymentMethod:   o.PaymentMethod,
			WebhookReceived: o.WebhookReceived,
			CreatedAt:       o.CreatedAt.Format(time.RFC3339),
			PaidAt:          paidAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ListPayments(c *gin.Context) {
	payments, err := h.store.ListPayments(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	out := make([]AdminPayment, 0, len(payments))
	for _, p := range payments {
		out = append(out, AdminPayment{
			ID:          p.ID,
			OrderID:     p.OrderID,
			PaymentID:   p.PaymentID,
			UserID:      p.UserID,
			CourseID:    p.CourseID,
			AmountMinor: p.AmountMinor,
			Currency:    p.Currency,
			Method:      p.Method,
			Source:      string(p.Source),
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

type reconcileRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

func (h *Handler) ReconcileOrder(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentId is required"})
		return
	}

	res, err := h.confirm.ConfirmFromGateway(c.Request.Context(), c.Param("id"), req.PaymentID)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SyncCourses(c *gin.Context) {
	report, err := h.syncer.SyncCourses(c.Request.Context())
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) RunRepair(c *gin.Context) {
	report, err := h.repairer.Repair(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
