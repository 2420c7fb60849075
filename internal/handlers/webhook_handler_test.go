package handlers

import (
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recebimentosmart/billing-backend/internal/dto"
	"github.com/recebimentosmart/billing-backend/internal/providers/mercadopago"
	"github.com/recebimentosmart/billing-backend/internal/providers/pagarme"
	"github.com/recebimentosmart/billing-backend/internal/services"
)

const (
	mpSecret = "mp-webhook-secret"
	pgSecret = "sk_test_pagarme"
)

type webhookDeps struct {
	mp *fakeReconciler
	pg *fakeReconciler
}

func newWebhookApp(mpSecretKey, pgSecretKey string) (*fiber.App, *webhookDeps) {
	d := &webhookDeps{
		mp: &fakeReconciler{outcome: services.OutcomeApplied},
		pg: &fakeReconciler{outcome: services.OutcomeApplied},
	}
	h := NewWebhookHandler(
		d.mp, mercadopago.NewSignatureVerifier(mpSecretKey, 0),
		d.pg, pagarme.NewSignatureVerifier(pgSecretKey),
	)
	app := fiber.New()
	app.Post("/webhooks/mercadopago", h.HandleMercadoPago)
	app.All("/webhooks/mercadopago", h.MethodNotAllowed)
	app.Post("/webhooks/pagarme", h.HandlePagarme)
	return app, d
}

func mpRequest(path, body, dataID, requestID, secret string) *http.Request {
	req := postJSON(path, body)
	req.Header.Set("x-request-id", requestID)
	if secret != "" {
		ts := "1704908010"
		req.Header.Set("x-signature", "ts="+ts+",v1="+mercadopago.Sign(secret, dataID, requestID, ts))
	}
	return req
}

func TestMercadoPago_ValidSignatureReconciles(t *testing.T) {
	app, d := newWebhookApp(mpSecret, "")

	req := mpRequest("/webhooks/mercadopago?data.id=123&type=payment",
		`{"type":"payment","action":"payment.updated","data":{"id":"123"}}`, "123", "req-1", mpSecret)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"123"}, d.mp.calls())

	var ack dto.WebhookAck
	decode(t, resp, &ack)
	assert.True(t, ack.Success)
}

func TestMercadoPago_InvalidSignatureIs403(t *testing.T) {
	app, d := newWebhookApp(mpSecret, "")

	req := mpRequest("/webhooks/mercadopago", `{"type":"payment","data":{"id":"123"}}`, "123", "req-1", "wrong-secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, d.mp.calls())
}

func TestMercadoPago_MissingSignatureIs403(t *testing.T) {
	app, d := newWebhookApp(mpSecret, "")

	resp, err := app.Test(mpRequest("/webhooks/mercadopago", `{"type":"payment","data":{"id":"123"}}`, "123", "req-1", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, d.mp.calls())
}

func TestMercadoPago_NumericDataIDInBody(t *testing.T) {
	app, d := newWebhookApp(mpSecret, "")

	req := mpRequest("/webhooks/mercadopago", `{"type":"payment","data":{"id":98765}}`, "98765", "req-2", mpSecret)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"98765"}, d.mp.calls())
}

func TestMercadoPago_NonPaymentIgnoredBeforeVerification(t *testing.T) {
	app, d := newWebhookApp(mpSecret, "")

	for _, body := range []string{
		`{"type":"merchant_order","data":{"id":"1"}}`,
		`{"topic":"merchant_order","id":"1"}`,
		`not json`,
		``,
	} {
		resp, err := app.Test(postJSON("/webhooks/mercadopago", body))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	}
	assert.Empty(t, d.mp.calls())
}

func TestMercadoPago_LegacyTopicFormat(t *testing.T) {
	app, d := newWebhookApp("", "")

	resp, err := app.Test(postJSON("/webhooks/mercadopago", `{"topic":"payment","id":555}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"555"}, d.mp.calls())
}

func TestMercadoPago_NoSecretTrustsNotification(t *testing.T) {
	app, d := newWebhookApp("", "")

	resp, err := app.Test(postJSON("/webhooks/mercadopago", `{"type":"payment","data":{"id":"123"}}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"123"}, d.mp.calls())
}

func TestMercadoPago_FetchFailureStillAcks(t *testing.T) {
	app, d := newWebhookApp("", "")
	d.mp.outcome = services.OutcomeFetchFailed

	resp, err := app.Test(postJSON("/webhooks/mercadopago", `{"type":"payment","data":{"id":"123"}}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var ack dto.WebhookAck
	decode(t, resp, &ack)
	assert.False(t, ack.Success)
	assert.Equal(t, "Failed to fetch payment details", ack.Message)
}

func TestMercadoPago_NonPostIs405(t *testing.T) {
	app, _ := newWebhookApp("", "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/webhooks/mercadopago", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, fiber.MethodPost, resp.Header.Get(fiber.HeaderAllow))
}

func TestPagarme_SignedOrderEventReconciles(t *testing.T) {
	app, d := newWebhookApp("", pgSecret)

	body := `{"id":"hook_1","type":"order.paid","data":{"id":"or_abc","code":"ref-1","status":"paid"}}`
	req := postJSON("/webhooks/pagarme", body)
	req.Header.Set("x-hub-signature", "sha256="+pagarme.Sign(sha256.New, pgSecret, []byte(body)))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"or_abc"}, d.pg.calls())
}

func TestPagarme_ChargeEventUsesOrderID(t *testing.T) {
	app, d := newWebhookApp("", "")

	body := `{"id":"hook_2","type":"charge.paid","data":{"id":"ch_1","order":{"id":"or_xyz"}}}`
	resp, err := app.Test(postJSON("/webhooks/pagarme", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"or_xyz"}, d.pg.calls())
}

func TestPagarme_TamperedBodyIs403(t *testing.T) {
	app, d := newWebhookApp("", pgSecret)

	signed := `{"type":"order.paid","data":{"id":"or_abc"}}`
	req := postJSON("/webhooks/pagarme", strings.Replace(signed, "or_abc", "or_evil", 1))
	req.Header.Set("x-hub-signature", "sha256="+pagarme.Sign(sha256.New, pgSecret, []byte(signed)))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, d.pg.calls())
}

func TestPagarme_EventWithoutOrderIgnored(t *testing.T) {
	app, d := newWebhookApp("", "")

	resp, err := app.Test(postJSON("/webhooks/pagarme", `{"type":"customer.created","data":{"id":"cus_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, d.pg.calls())
}
