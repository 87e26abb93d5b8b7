package stripewebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/tmarchetti/brickfolio-backend/pkg/errors"
)

const signaturePrefixV1 = "v1"

// Verifier authenticates webhook deliveries against the shared signing
// secret. It must run on the untouched raw body; re-serializing parsed JSON
// before verifying breaks the check.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier constructs a Verifier. A zero tolerance disables the
// timestamp freshness check.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signing secret required")
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}, nil
}

// Verify checks the signature header against the raw payload. The header
// carries a timestamp and one or more v1-prefixed candidate signatures; the
// signed payload is "<timestamp>.<body>" and any candidate matching its
// HMAC-SHA256 under constant-time comparison authenticates the delivery.
func (v *Verifier) Verify(payload []byte, header string) error {
	timestamp, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(timestamp, 0))
		if age < 0 {
			age = -age
		}
		if age > v.tolerance {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch")
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1=<hex>...]" into its
// timestamp and candidate list. Unknown schemes are ignored so future
// versions do not break verification.
func parseSignatureHeader(header string) (int64, []string, error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature header missing")
	}

	var (
		timestamp  int64
		hasTime    bool
		candidates []string
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed signature timestamp")
			}
			timestamp = ts
			hasTime = true
		case signaturePrefixV1:
			candidates = append(candidates, kv[1])
		}
	}

	if !hasTime {
		return 0, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature timestamp missing")
	}
	if len(candidates) == 0 {
		return 0, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "no v1 signatures present")
	}
	return timestamp, candidates, nil
}
