package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"message.created"}`)

	if !VerifySignature("s3cret", body, sign("s3cret", body)) {
		t.Fatal("valid signature rejected")
	}
	if VerifySignature("s3cret", body, sign("wrong", body)) {
		t.Fatal("signature from the wrong key accepted")
	}
	if VerifySignature("s3cret", []byte("tampered"), sign("s3cret", body)) {
		t.Fatal("signature over a different body accepted")
	}
	if VerifySignature("s3cret", body, "") {
		t.Fatal("missing signature accepted")
	}
	// Fail-closed: no configured secret means nothing gets in.
	if VerifySignature("", body, sign("", body)) {
		t.Fatal("unconfigured secret must reject, not fail open")
	}
}

func TestVerifySharedSecret(t *testing.T) {
	if !VerifySharedSecret("token", "token") {
		t.Fatal("matching secret rejected")
	}
	if VerifySharedSecret("token", "other") {
		t.Fatal("mismatched secret accepted")
	}
	if VerifySharedSecret("token", "") {
		t.Fatal("missing header accepted")
	}
	if VerifySharedSecret("", "") {
		t.Fatal("unconfigured secret must reject, not fail open")
	}
}
