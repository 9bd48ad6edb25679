package webhooks

import (
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"c1"}`)
	header := "sha256=" + Sign("whsec_test", payload)

	if !VerifySignature("whsec_test", payload, header) {
		t.Error("expected signature to verify")
	}
	if VerifySignature("other", payload, header) {
		t.Error("signature must not verify under another secret")
	}
	if VerifySignature("whsec_test", []byte(`{"id":"c2"}`), header) {
		t.Error("signature must not verify for another payload")
	}
}
