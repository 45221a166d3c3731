package ports

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of an inbound body when the
// bridge has a secret.
const SignatureHeader = "X-Saucer-Signature"

// errSignature is deliberately generic.
var errSignature = errors.New("signature verification failed")

// verifySignature checks signature against the HMAC-SHA256 of body.
// Accepted forms are "sha256=<hex>" and bare hex.
func verifySignature(body []byte, signature string, secret []byte) error {
	if len(secret) == 0 || signature == "" {
		return errSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return errSignature
	}
	if subtle.ConstantTimeCompare(Sign(body, secret), got) != 1 {
		return errSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body. Hosts send it hex encoded,
// optionally prefixed with "sha256=".
func Sign(body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
