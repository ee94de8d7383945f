package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"course-checkout/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"
)

type Processor interface {
	Handle(ctx context.Context, d service.Delivery, accepted ...string) (*service.Ack, error)
}

type Handler struct {
	processor Processor
	maxBytes  int64
}

func NewHandler(p Processor, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = 65536
	}
	return &Handler{processor: p, maxBytes: maxBytes}
}

// Payment acts on captured payments only.
func (h *Handler) Payment(c *gin.Context) {
	h.handle(c, service.EventPaymentCaptured)
}

// Razorpay also treats an authorized payment as proof of purchase.
func (h *Handler) Razorpay(c *gin.Context) {
	h.handle(c, service.EventPaymentCaptured, service.EventPaymentAuthorized)
}

func (h *Handler) handle(c *gin.Context, accepted ...string) {
	payload, err := readBody(c, h.maxBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading request body"})
		return
	}

	ack, err := h.processor.Handle(c.Request.Context(), service.Delivery{
		Body:      payload,
		Signature: c.GetHeader(SignatureHeader),
		EventID:   c.GetHeader(EventIDHeader),
	}, accepted...)
	switch {
	case errors.Is(err, service.ErrConfiguration):
		log.Printf("payment webhook rejected: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		return
	case err != nil:
		log.Println("payment webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	c.JSON(http.StatusOK, ack)
}

// readBody returns the body bytes untouched; they are what the signature
// covers.
func readBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
