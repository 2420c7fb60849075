package pagarme

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"log/slog"
	"strings"
)

// SignatureVerifier checks the x-hub-signature header: "<algo>=<hex hmac of raw body>".
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

func (v *SignatureVerifier) Enabled() bool {
	return v.secret != ""
}

func (v *SignatureVerifier) Verify(header string, body []byte) bool {
	if !v.Enabled() {
		slog.Warn("pagar.me webhook secret not configured, skipping signature check")
		return true
	}

	algo, sig, ok := strings.Cut(strings.TrimSpace(header), "=")
	if !ok || sig == "" {
		return false
	}

	var h func() hash.Hash
	switch strings.ToLower(algo) {
	case "sha1":
		h = sha1.New
	case "sha256":
		h = sha256.New
	default:
		return false
	}

	expected := Sign(h, v.secret, body)
	return hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected))
}

// Sign returns the hex HMAC of body.
func Sign(h func() hash.Hash, secret string, body []byte) string {
	mac := hmac.New(h, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
