package payments

import (
	"context"
	"net/http"

	"course-checkout/internal/api/apierr"
	"course-checkout/internal/app/http/middleware"
	"course-checkout/internal/service"

	"github.com/gin-gonic/gin"
)

type Verifier interface {
	VerifyPayment(ctx context.Context, in service.VerifyInput) (*service.ReconcileResult, error)
}

type Handler struct {
	verifier Verifier
}

func NewHandler(v Verifier) *Handler {
	return &Handler{verifier: v}
}

// verifyRequest also accepts the field names the checkout widget returns.
type verifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`

	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (r verifyRequest) normalized() (orderID, paymentID, signature string) {
	return firstNonEmpty(r.OrderID, r.RazorpayOrderID),
		firstNonEmpty(r.PaymentID, r.RazorpayPaymentID),
		firstNonEmpty(r.Signature, r.RazorpaySignature)
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	userID, email := middleware.Caller(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Unauthorized"})
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body"})
		return
	}
	orderID, paymentID, sig := req.normalized()

	res, err := h.verifier.VerifyPayment(c.Request.Context(), service.VerifyInput{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: sig,
		UserID:    userID,
		UserEmail: email,
	})
	if err != nil {
		status, _ := apierr.Status(err)
		c.JSON(status, gin.H{"ok": false, "error": apierr.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"enrollmentId":     res.EnrollmentID,
		"courseId":         res.CourseID,
		"orderId":          res.OrderID,
		"alreadyProcessed": res.AlreadyProcessed,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
