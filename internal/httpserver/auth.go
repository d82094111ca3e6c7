package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Webhook authenticity headers. The mail provider signs the raw body;
// the chat platform echoes back a shared secret.
const (
	SignatureHeader  = "X-Webhook-Signature"
	ChatSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// VerifySignature checks a hex-encoded HMAC-SHA256 of body against the
// configured secret. Fail-closed: an empty configured secret rejects
// everything rather than letting unsigned events through.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifySharedSecret compares a shared-secret header value in constant
// time. Fail-closed on a missing configured secret, same as above.
func VerifySharedSecret(secret, got string) bool {
	if secret == "" || got == "" {
		return false
	}
	return hmac.Equal([]byte(secret), []byte(got))
}
