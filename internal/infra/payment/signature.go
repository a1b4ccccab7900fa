package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignBody computes the hex HMAC-SHA256 of a raw webhook body.
func SignBody(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a provider webhook signature header against the raw
// body. Constant-time comparison; an empty secret never verifies.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignBody(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
