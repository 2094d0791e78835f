package sync

import (
	"testing"

	"staysync/internal/platform/config"
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

func TestVerifier_Verify(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"id":"P1","title":"Unit A"}`)

	v := NewVerifier(config.WebhooksConfig{Secret: secret})

	if err := v.Verify(body, Sign(secret, body)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	if err := v.Verify(body, "sha256="+Sign(secret, body)); err != nil {
		t.Errorf("prefixed signature rejected: %v", err)
	}

	// Tampered body, unmodified signature
	tampered := []byte(`{"id":"P1","title":"Unit B"}`)
	if err := v.Verify(tampered, Sign(secret, body)); err != ErrSignatureMismatch {
		t.Errorf("tampered body: got %v, want ErrSignatureMismatch", err)
	}

	if err := v.Verify(body, ""); err != ErrSignatureMissing {
		t.Errorf("missing signature: got %v, want ErrSignatureMissing", err)
	}

	if err := v.Verify(body, "not-hex!"); err != ErrSignatureMismatch {
		t.Errorf("garbage signature: got %v, want ErrSignatureMismatch", err)
	}
}

func TestVerifier_FailsClosedWithoutSecret(t *testing.T) {
	v := NewVerifier(config.WebhooksConfig{})
	body := []byte("{}")

	if err := v.Verify(body, Sign("anything", body)); err != ErrSecretNotConfigured {
		t.Errorf("got %v, want ErrSecretNotConfigured", err)
	}

	// The bypass value is dead without the debug flag
	if err := v.Verify(body, devBypassSignature); err != ErrSecretNotConfigured {
		t.Errorf("bypass honored without debug: got %v", err)
	}
}

func TestVerifier_DebugBypass(t *testing.T) {
	v := NewVerifier(config.WebhooksConfig{Secret: "s", Debug: true})
	body := []byte("{}")

	if err := v.Verify(body, devBypassSignature); err != nil {
		t.Errorf("debug bypass rejected: %v", err)
	}

	// Debug mode must not weaken verification of real signatures
	if err := v.Verify(body, Sign("wrong-secret", body)); err != ErrSignatureMismatch {
		t.Errorf("wrong signature accepted in debug mode: got %v", err)
	}
}
