// Package payments carries the payment-gateway glue: webhook signature
// verification, event decoding, and the purchasable credit packages.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header carrying the gateway signature.
const SignatureHeader = "X-Payment-Signature"

// signatureTolerance bounds how old a signed timestamp may be before the
// delivery is treated as a replay.
const signatureTolerance = 5 * time.Minute

var (
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrStaleTimestamp     = errors.New("stale signature timestamp")
)

// ComputeSignature returns the hex HMAC-SHA256 of "<t>.<payload>" under the
// shared webhook secret.
func ComputeSignature(secret []byte, timestampUnix int64, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", timestampUnix)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue renders the header the gateway sends, in the
// "t=<unix>,v1=<hex>" scheme.
func SignatureHeaderValue(secret []byte, timestampUnix int64, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", timestampUnix, ComputeSignature(secret, timestampUnix, payload))
}

// VerifySignature checks a delivery's signature header against the raw
// payload. The comparison is constant-time and the signed timestamp must be
// within tolerance of now.
func VerifySignature(payload []byte, header string, secret []byte, now time.Time) error {
	timestampUnix, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	signedAt := time.Unix(timestampUnix, 0)
	drift := now.Sub(signedAt)
	if drift < 0 {
		drift = -drift
	}
	if drift > signatureTolerance {
		return ErrStaleTimestamp
	}
	expected := ComputeSignature(secret, timestampUnix, payload)
	for _, candidate := range signatures {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestampUnix int64
	var haveTimestamp bool
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrMalformedSignature
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrMalformedSignature)
			}
			timestampUnix = parsed
			haveTimestamp = true
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if !haveTimestamp || len(signatures) == 0 {
		return 0, nil, ErrMalformedSignature
	}
	return timestampUnix, signatures, nil
}
