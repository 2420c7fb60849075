package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/dto"
	"github.com/recebimentosmart/billing-backend/internal/middleware"
	"github.com/recebimentosmart/billing-backend/internal/models"
	"github.com/recebimentosmart/billing-backend/internal/payments"
	"github.com/recebimentosmart/billing-backend/internal/services"
	"github.com/recebimentosmart/billing-backend/internal/validator"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type PaymentGenerator interface {
	Generate(ctx context.Context, req *dto.GeneratePaymentRequest) (*dto.GeneratePaymentResponse, error)
}

type TransactionFinder interface {
	FindByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error)
}

type Quoter interface {
	Quote(ctx context.Context, userID uuid.UUID) (*services.Quote, error)
}

type PaymentLister interface {
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error)
}

type SubscriptionReader interface {
	Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type PaymentHandler struct {
	generator     PaymentGenerator
	transactions  TransactionFinder
	quotes        Quoter
	history       PaymentLister
	subscriptions SubscriptionReader
	now           func() time.Time
}

func NewPaymentHandler(
	generator PaymentGenerator,
	transactions TransactionFinder,
	quotes Quoter,
	history PaymentLister,
	subscriptions SubscriptionReader,
) *PaymentHandler {
	return &PaymentHandler{
		generator:     generator,
		transactions:  transactions,
		quotes:        quotes,
		history:       history,
		subscriptions: subscriptions,
		now:           time.Now,
	}
}

// Generate creates a payment with the requested provider and returns what the
// checkout needs to show (PIX QR code, boleto URL).
func (h *PaymentHandler) Generate(c *fiber.Ctx) error {
	var req dto.GeneratePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.PaymentErrorResponse{
			Success: false, Message: "Invalid request body",
		})
	}

	resp, err := h.generator.Generate(c.UserContext(), &req)
	if err == nil {
		return c.JSON(resp)
	}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ValidationErrorResponse{
			Success: false,
			Message: "Missing or invalid fields: " + strings.Join(verr.Fields(), ", "),
			Fields:  verr.Errors,
		})
	}
	if services.IsClientError(err) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.PaymentErrorResponse{
			Success: false, Message: err.Error(),
		})
	}

	var perr *payments.ProviderError
	if errors.As(err, &perr) {
		slog.Error("provider rejected payment",
			"provider", perr.Provider, "status", perr.StatusCode, "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.PaymentErrorResponse{
			Success: false,
			Message: "Failed to create payment",
			Error:   providerBody(perr.Body),
		})
	}

	slog.Error("payment generation failed", "error", err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(dto.PaymentErrorResponse{
		Success: false, Message: "Failed to create payment",
	})
}

// providerBody passes a JSON provider body through and quotes anything else.
func providerBody(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

// Status lets the checkout poll a payment by its external reference.
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	ref := c.Params("reference")
	tx, err := h.transactions.FindByReference(c.UserContext(), ref)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Transaction not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch transaction",
		})
	}

	resp := dto.TransactionStatusResponse{
		ReferenceID:    tx.ReferenceID,
		Status:         tx.Status,
		ProviderStatus: tx.ProviderStatus,
		Provider:       tx.Provider,
		PaymentMethod:  tx.PaymentMethod,
		Amount:         tx.Amount,
		UpdatedAt:      tx.UpdatedAt,
	}
	if tx.ChargeID != nil {
		resp.ChargeID = *tx.ChargeID
	}
	return c.JSON(resp)
}

// Details returns the checkout quote for the authenticated user.
func (h *PaymentHandler) Details(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	quote, err := h.quotes.Quote(c.UserContext(), userID)
	if err != nil {
		slog.Error("failed to build quote", "user_id", userID.String(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch payment details",
		})
	}
	return c.JSON(quote)
}

// History lists completed payments of the authenticated user, newest first.
func (h *PaymentHandler) History(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := h.history.ListPaymentsByUser(c.UserContext(), userID, limit)
	if err != nil {
		slog.Error("failed to list payments", "user_id", userID.String(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch payment history",
		})
	}

	items := make([]dto.PaymentHistoryItem, 0, len(rows))
	for _, p := range rows {
		items = append(items, dto.PaymentHistoryItem{
			ID:            p.ID.String(),
			Amount:        p.Amount,
			Provider:      p.Provider,
			TransactionID: p.TransactionID,
			PaymentMethod: p.PaymentMethod,
			ReferenceID:   p.ReferenceID,
			PaymentDate:   p.PaymentDate,
		})
	}
	return c.JSON(items)
}

// CurrentSubscription returns the subscription with the latest end date.
func (h *PaymentHandler) CurrentSubscription(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	sub, err := h.subscriptions.Current(c.UserContext(), userID)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "No subscription found",
		})
	}
	if err != nil {
		slog.Error("failed to load subscription", "user_id", userID.String(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch subscription",
		})
	}

	now := h.now()
	active := sub.Status == models.SubscriptionActive && sub.EndDate.After(now)
	daysLeft := 0
	if active {
		daysLeft = int(math.Ceil(sub.EndDate.Sub(now).Hours() / 24))
	}
	return c.JSON(dto.SubscriptionResponse{
		Plan:      sub.Plan,
		Status:    sub.Status,
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
		Active:    active,
		DaysLeft:  daysLeft,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}
