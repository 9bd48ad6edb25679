package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const signaturePrefix = "sha256="

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature header value as sent in
// X-Relaydesk-Signature.
func VerifySignature(secret string, payload []byte, header string) bool {
	want := signaturePrefix + Sign(secret, payload)
	return hmac.Equal([]byte(want), []byte(header))
}
