package mercadopago

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignatureVerifier(t *testing.T) {
	const secret = "whsec"
	v := NewSignatureVerifier(secret, 0)
	sig := Sign(secret, "123", "req-1", "1704908010")

	assert.True(t, v.Verify("ts=1704908010,v1="+sig, "req-1", "123"))
	assert.True(t, v.Verify(" ts=1704908010 , v1="+sig, "req-1", "123"), "whitespace around parts")

	assert.False(t, v.Verify("ts=1704908010,v1="+sig, "req-1", "124"), "different payment id")
	assert.False(t, v.Verify("ts=1704908010,v1="+sig, "req-2", "123"), "different request id")
	assert.False(t, v.Verify("ts=1704908011,v1="+sig, "req-1", "123"), "different timestamp")
	assert.False(t, v.Verify("v1="+sig, "req-1", "123"), "missing ts")
	assert.False(t, v.Verify("ts=1704908010", "req-1", "123"), "missing v1")
	assert.False(t, v.Verify("", "req-1", "123"), "missing header")
}

func TestSignatureVerifierWithoutSecretTrusts(t *testing.T) {
	v := NewSignatureVerifier("", 0)
	assert.False(t, v.Enabled())
	assert.True(t, v.Verify("", "", ""))
}

func TestSignatureVerifierTolerance(t *testing.T) {
	const secret = "whsec"
	now := time.Unix(1_700_000_000, 0)
	v := NewSignatureVerifier(secret, 5*time.Minute)
	v.now = func() time.Time { return now }

	fresh := strconv.FormatInt(now.Add(-time.Minute).Unix(), 10)
	assert.True(t, v.Verify("ts="+fresh+",v1="+Sign(secret, "1", "r", fresh), "r", "1"))

	freshMillis := strconv.FormatInt(now.Add(-time.Minute).UnixMilli(), 10)
	assert.True(t, v.Verify("ts="+freshMillis+",v1="+Sign(secret, "1", "r", freshMillis), "r", "1"))

	stale := strconv.FormatInt(now.Add(-time.Hour).Unix(), 10)
	assert.False(t, v.Verify("ts="+stale+",v1="+Sign(secret, "1", "r", stale), "r", "1"))

	assert.False(t, v.Verify("ts=abc,v1="+Sign(secret, "1", "r", "abc"), "r", "1"))
}
