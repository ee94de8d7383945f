package orders

import (
	"context"
	"net/http"

	"course-checkout/internal/api/apierr"
	"course-checkout/internal/app/http/middleware"
	"course-checkout/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*service.OrderView, error)
	GetOrder(ctx context.Context, orderID, callerID string) (*service.OrderStatusView, error)
}

type Handler struct {
	orders OrderService
}

func NewHandler(orders OrderService) *Handler {
	return &Handler{orders: orders}
}

type createOrderRequest struct {
	CourseID   string  `json:"courseId" binding:"required"`
	CouponCode *string `json:"couponCode"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	userID, email := middleware.Caller(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "courseId is required"})
		return
	}

	view, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		UserID:     userID,
		UserEmail:  email,
		CourseID:   req.CourseID,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) GetOrder(c *gin.Context) {
	userID, _ := middleware.Caller(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	view, err := h.orders.GetOrder(c.Request.Context(), c.Param("orderId"), userID)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
