package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/dto"
	"github.com/recebimentosmart/billing-backend/internal/payments"
	"github.com/recebimentosmart/billing-backend/internal/validator"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

// PaymentService turns a checkout request into a provider payment and a ledger row.
type PaymentService struct {
	gateways         map[string]payments.Gateway
	defaultProvider  string
	ledger           *Ledger
	validate         *validator.Validator
	notificationURLs map[string]string
	newReference     func() string
}

// NewPaymentService registers gateways by name. The first gateway is the default
// when a request names no provider.
func NewPaymentService(ledger *Ledger, v *validator.Validator, gateways ...payments.Gateway) *PaymentService {
	s := &PaymentService{
		gateways:         make(map[string]payments.Gateway, len(gateways)),
		ledger:           ledger,
		validate:         v,
		notificationURLs: make(map[string]string),
		newReference:     func() string { return uuid.NewString() },
	}
	for i, g := range gateways {
		if i == 0 {
			s.defaultProvider = g.Name()
		}
		s.gateways[g.Name()] = g
	}
	return s
}

// SetNotificationURL sets the webhook URL sent along with payments for provider.
func (s *PaymentService) SetNotificationURL(provider, url string) {
	if url != "" {
		s.notificationURLs[provider] = url
	}
}

// Generate validates req, records a PENDING ledger row and asks the provider for
// the payment. Validation errors (*validator.ValidationError, payments.Err*,
// ErrUnknownProvider) are the caller's fault; anything else is a provider failure.
func (s *PaymentService) Generate(ctx context.Context, req *dto.GeneratePaymentRequest) (*dto.GeneratePaymentResponse, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	gateway, err := s.gateway(req.Provider)
	if err != nil {
		return nil, err
	}

	var card *payments.Card
	if req.CardData != nil {
		card = &payments.Card{Token: req.CardData.Token, PaymentMethodID: req.CardData.PaymentMethodID}
	}
	method, err := payments.ParseMethod(req.PaymentMethod, card, req.Installments)
	if err != nil {
		return nil, err
	}
	if !gateway.Supports(method) {
		return nil, fmt.Errorf("%w: %s via %s", payments.ErrMethodNotSupported, method.Name(), gateway.Name())
	}

	userID := uuid.MustParse(req.UserID)
	reference := s.newReference()

	s.ledger.Create(ctx, LedgerEntry{
		ReferenceID:   reference,
		UserID:        userID,
		Amount:        req.Amount,
		Description:   req.Description,
		Provider:      gateway.Name(),
		PaymentMethod: method.Name(),
	})

	chargeReq := payments.ChargeRequest{
		Reference:       reference,
		Amount:          req.Amount,
		Description:     req.Description,
		Method:          method,
		Plan:            req.Plan,
		NotificationURL: s.notificationURLs[gateway.Name()],
	}
	if req.CustomerData != nil {
		chargeReq.Payer = payments.Payer{
			Email:     req.CustomerData.Email,
			FirstName: req.CustomerData.FirstName,
			LastName:  req.CustomerData.LastName,
			CPF:       req.CustomerData.CPF,
		}
	}

	charge, err := gateway.CreatePayment(ctx, chargeReq)
	if err != nil {
		s.ledger.MarkFailed(ctx, reference, "create_failed")
		return nil, err
	}
	s.ledger.AttachCharge(ctx, reference, charge)

	slog.InfoContext(ctx, "payment generated",
		"provider", gateway.Name(),
		"reference_id", reference,
		"charge_id", charge.ID,
		"user_id", userID.String(),
		"method", method.Name(),
	)

	return &dto.GeneratePaymentResponse{
		Success:           true,
		ExternalReference: reference,
		PaymentID:         charge.ID,
		Status:            charge.ProviderStatus,
		PaymentMethod:     method.Name(),
		Provider:          gateway.Name(),
		Amount:            req.Amount,
		Currency:          charge.Currency,
		PixQRCode:         charge.PixQRCode,
		PixQRCodeBase64:   charge.PixQRCodeBase64,
		PixTicketURL:      charge.PixTicketURL,
		TicketURL:         charge.TicketURL,
	}, nil
}

func (s *PaymentService) gateway(name string) (payments.Gateway, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = s.defaultProvider
	}
	g, ok := s.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return g, nil
}

// IsClientError reports whether err from Generate should map to 400.
func IsClientError(err error) bool {
	var verr *validator.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, payments.ErrUnsupportedMethod) ||
		errors.Is(err, payments.ErrCardDataRequired) ||
		errors.Is(err, payments.ErrMethodNotSupported) ||
		errors.Is(err, ErrUnknownProvider)
}
