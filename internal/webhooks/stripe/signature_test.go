package stripewebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
)

const testSigningSecret = "whsec_test_secret"

func signPayload(t *testing.T, secret string, timestamp int64, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestVerifier(t *testing.T, at time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSigningSecret, 5*time.Minute)
	if err != nil {
		t.Fatalf("setup verifier: %v", err)
	}
	v.now = func() time.Time { return at }
	return v
}

func TestVerifier_AcceptsValidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{"id":"evt_1","type":"customer.subscription.created"}`)
	sig := signPayload(t, testSigningSecret, now.Unix(), payload)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig)

	if err := v.Verify(payload, header); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifier_RejectsTamperedPayload(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{"id":"evt_1","amount":100}`)
	sig := signPayload(t, testSigningSecret, now.Unix(), payload)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig)

	tampered := make([]byte, len(payload))
	copy(tampered, payload)
	tampered[len(tampered)-2] = '9'

	err := v.Verify(tampered, header)
	if err == nil {
		t.Fatalf("expected tampered payload to be rejected")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestVerifier_RejectsStaleTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)

	stale := now.Add(-10 * time.Minute).Unix()
	payload := []byte(`{"id":"evt_1"}`)
	sig := signPayload(t, testSigningSecret, stale, payload)
	header := fmt.Sprintf("t=%d,v1=%s", stale, sig)

	if err := v.Verify(payload, header); err == nil {
		t.Fatalf("expected stale timestamp to be rejected")
	}
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{"id":"evt_1"}`)
	sig := signPayload(t, "whsec_other", now.Unix(), payload)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig)

	if err := v.Verify(payload, header); err == nil {
		t.Fatalf("expected mismatched secret to be rejected")
	}
}

func TestVerifier_AcceptsAnyMatchingCandidate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{"id":"evt_1"}`)
	good := signPayload(t, testSigningSecret, now.Unix(), payload)
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s,v0=ignored", now.Unix(), "deadbeef", good)

	if err := v.Verify(payload, header); err != nil {
		t.Fatalf("expected rotation candidate to verify, got %v", err)
	}
}

func TestVerifier_RejectsMalformedHeaders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := newTestVerifier(t, now)
	payload := []byte(`{"id":"evt_1"}`)

	headers := []string{
		"",
		"v1=deadbeef",
		fmt.Sprintf("t=%d", now.Unix()),
		"t=notanumber,v1=deadbeef",
	}
	for _, header := range headers {
		if err := v.Verify(payload, header); err == nil {
			t.Fatalf("expected header %q to be rejected", header)
		}
	}
}

func TestVerifier_ZeroToleranceSkipsFreshnessCheck(t *testing.T) {
	v, err := NewVerifier(testSigningSecret, 0)
	if err != nil {
		t.Fatalf("setup verifier: %v", err)
	}

	old := int64(1_000_000)
	payload := []byte(`{"id":"evt_old"}`)
	sig := signPayload(t, testSigningSecret, old, payload)
	header := fmt.Sprintf("t=%d,v1=%s", old, sig)

	if err := v.Verify(payload, header); err != nil {
		t.Fatalf("expected old timestamp to pass with zero tolerance, got %v", err)
	}
}
