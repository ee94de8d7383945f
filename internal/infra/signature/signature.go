// Package signature checks gateway HMAC-SHA256 signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrMissingSecret means the service is misconfigured, not that the signature
// is wrong.
var ErrMissingSecret = errors.New("signature: secret not configured")

// Sign returns the lowercase hex HMAC-SHA256 of message.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate is the hex HMAC-SHA256 of message under
// secret. A malformed candidate is simply not authentic.
func Verify(secret string, message []byte, candidate string) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}
	got, err := hex.DecodeString(strings.TrimSpace(candidate))
	if err != nil || len(got) != sha256.Size {
		return false, nil
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), got), nil
}

// PaymentMessage is the canonical payload signed for client-side payment
// confirmations.
func PaymentMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
