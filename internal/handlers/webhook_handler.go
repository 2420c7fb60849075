package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/recebimentosmart/billing-backend/internal/dto"
	"github.com/recebimentosmart/billing-backend/internal/payments"
	"github.com/recebimentosmart/billing-backend/internal/services"
)

const notificationKindPayment = "payment"

type Reconciler interface {
	Reconcile(ctx context.Context, paymentID string) services.Outcome
}

// MercadoPagoVerifier checks x-signature against the notified data id.
type MercadoPagoVerifier interface {
	Verify(header, requestID, dataID string) bool
}

// PagarmeVerifier checks x-hub-signature against the raw body.
type PagarmeVerifier interface {
	Verify(header string, body []byte) bool
}

type WebhookHandler struct {
	mercadoPago         Reconciler
	mercadoPagoVerifier MercadoPagoVerifier
	pagarme             Reconciler
	pagarmeVerifier     PagarmeVerifier
}

func NewWebhookHandler(
	mercadoPago Reconciler,
	mercadoPagoVerifier MercadoPagoVerifier,
	pagarme Reconciler,
	pagarmeVerifier PagarmeVerifier,
) *WebhookHandler {
	return &WebhookHandler{
		mercadoPago:         mercadoPago,
		mercadoPagoVerifier: mercadoPagoVerifier,
		pagarme:             pagarme,
		pagarmeVerifier:     pagarmeVerifier,
	}
}

// HandleMercadoPago acknowledges every notification with 200 except those
// failing signature verification (403). Only payment notifications touch the ledger.
func (h *WebhookHandler) HandleMercadoPago(c *fiber.Ctx) error {
	requestID := c.Get("x-request-id")

	var n dto.MercadoPagoNotification
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			slog.Warn("unparseable webhook body",
				"provider", payments.ProviderMercadoPago, "request_id", requestID, "error", err.Error())
		}
	}

	kind := n.Kind()
	if kind == "" {
		kind = c.Query("type", c.Query("topic"))
	}
	if kind != notificationKindPayment {
		slog.Info("webhook ignored", "provider", payments.ProviderMercadoPago, "kind", kind)
		return ack(c, true, "Notification ignored")
	}

	dataID := c.Query("data.id")
	if dataID == "" {
		dataID = n.PaymentID()
	}
	if dataID == "" {
		dataID = c.Query("id")
	}
	if dataID == "" {
		slog.Warn("payment notification without id", "provider", payments.ProviderMercadoPago, "request_id", requestID)
		return ack(c, true, "Notification ignored")
	}

	if !h.mercadoPagoVerifier.Verify(c.Get("x-signature"), requestID, dataID) {
		slog.Warn("invalid webhook signature",
			"provider", payments.ProviderMercadoPago, "request_id", requestID, "charge_id", dataID)
		return c.Status(fiber.StatusForbidden).JSON(dto.WebhookAck{
			Success: false, Message: "Invalid signature",
		})
	}

	return h.reconcile(c, h.mercadoPago, payments.ProviderMercadoPago, dataID, requestID)
}

// HandlePagarme reconciles order.* and charge.* events by order id.
func (h *WebhookHandler) HandlePagarme(c *fiber.Ctx) error {
	body := c.Body()
	if !h.pagarmeVerifier.Verify(c.Get("x-hub-signature"), body) {
		slog.Warn("invalid webhook signature", "provider", payments.ProviderPagarme)
		return c.Status(fiber.StatusForbidden).JSON(dto.WebhookAck{
			Success: false, Message: "Invalid signature",
		})
	}

	var n dto.PagarmeNotification
	if err := json.Unmarshal(body, &n); err != nil {
		slog.Warn("unparseable webhook body", "provider", payments.ProviderPagarme, "error", err.Error())
		return ack(c, true, "Notification ignored")
	}

	orderID := n.OrderID()
	if orderID == "" {
		slog.Info("webhook ignored", "provider", payments.ProviderPagarme, "kind", n.Type)
		return ack(c, true, "Notification ignored")
	}

	return h.reconcile(c, h.pagarme, payments.ProviderPagarme, orderID, n.ID)
}

func (h *WebhookHandler) reconcile(c *fiber.Ctx, r Reconciler, provider, id, requestID string) error {
	outcome := r.Reconcile(c.UserContext(), id)
	slog.Info("webhook processed",
		"provider", provider, "charge_id", id, "request_id", requestID, "outcome", outcome.String())
	return ack(c, outcome.Success(), outcome.Message())
}

// MethodNotAllowed answers webhook URLs hit with anything but POST.
func (h *WebhookHandler) MethodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, fiber.MethodPost)
	return c.Status(fiber.StatusMethodNotAllowed).JSON(dto.WebhookAck{
		Success: false, Message: "Method not allowed",
	})
}

func ack(c *fiber.Ctx, success bool, message string) error {
	return c.Status(fiber.StatusOK).JSON(dto.WebhookAck{Success: success, Message: message})
}
