package gateway

import "strings"

const (
	PaymentCreated    = "created"
	PaymentAuthorized = "authorized"
	PaymentCaptured   = "captured"
	PaymentRefunded   = "refunded"
	PaymentFailed     = "failed"
)

// NormalizePaymentStatus lower-cases and trims gateway payment states and
// collapses partial refunds into refunded.
func NormalizePaymentStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "unknown"
	case "partially_refunded":
		return PaymentRefunded
	default:
		return s
	}
}

// IsSettled reports whether money has moved for a payment in status s.
func IsSettled(s string) bool {
	switch NormalizePaymentStatus(s) {
	case PaymentAuthorized, PaymentCaptured:
		return true
	}
	return false
}
