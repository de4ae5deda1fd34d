package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Headers sent with every delivery.
const (
	HeaderID        = "X-Echo-Webhook-ID"
	HeaderEvent     = "X-Echo-Webhook-Event"
	HeaderSignature = "X-Echo-Webhook-Signature"
	HeaderTimestamp = "X-Echo-Webhook-Timestamp"
	HeaderDelivery  = "X-Echo-Webhook-Delivery"

	signaturePrefix = "sha256="
)

// Sign returns "sha256=<hex hmac>" of body keyed by secret. An empty secret is
// a valid key.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header produced by Sign in constant time.
func Verify(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
