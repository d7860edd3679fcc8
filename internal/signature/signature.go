// Package signature verifies payment gateway signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrMissingField is returned when an input required for verification is blank.
var ErrMissingField = errors.New("missing_signature_field")

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func Sign(orderID, paymentID, secret string) string {
	return digest([]byte(orderID+"|"+paymentID), secret)
}

// Verify reports whether signature matches the checkout payload for orderID
// and paymentID. Blank inputs are a caller error, not a mismatch.
func Verify(orderID, paymentID, signature, secret string) (bool, error) {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(paymentID) == "" || strings.TrimSpace(signature) == "" {
		return false, ErrMissingField
	}
	if secret == "" {
		return false, nil
	}
	expected := Sign(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))), nil
}

// VerifyWebhook reports whether signature is the hex HMAC-SHA256 of body
// under the webhook secret.
func VerifyWebhook(body []byte, signature, secret string) (bool, error) {
	if len(body) == 0 || strings.TrimSpace(signature) == "" {
		return false, ErrMissingField
	}
	if secret == "" {
		return false, nil
	}
	return hmac.Equal([]byte(digest(body, secret)), []byte(strings.TrimSpace(signature))), nil
}

// SignWebhook returns the signature a gateway would send for body.
func SignWebhook(body []byte, secret string) string {
	return digest(body, secret)
}

func digest(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
