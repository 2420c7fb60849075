package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/recebimentosmart/billing-backend/internal/payments"
)

// ErrNotConfigured is returned when no access token is set.
var ErrNotConfigured = errors.New("mercado pago access token is not configured")

// Client talks to the Mercado Pago payments REST API.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return payments.ProviderMercadoPago
}

// Supports reports true for every method: Mercado Pago handles the whole set.
func (c *Client) Supports(payments.Method) bool {
	return true
}

type paymentResponse struct {
	ID                 json.Number        `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	TransactionAmount  float64            `json:"transaction_amount"`
	CurrencyID         string             `json:"currency_id"`
	PaymentMethodID    string             `json:"payment_method_id"`
	Metadata           map[string]any     `json:"metadata"`
	PointOfInteraction pointOfInteraction `json:"point_of_interaction"`
	TransactionDetails struct {
		ExternalResourceURL string `json:"external_resource_url"`
	} `json:"transaction_details"`
}

type pointOfInteraction struct {
	TransactionData struct {
		QRCode       string `json:"qr_code"`
		QRCodeBase64 string `json:"qr_code_base64"`
		TicketURL    string `json:"ticket_url"`
	} `json:"transaction_data"`
}

// CreatePayment posts a new payment. The reference doubles as the idempotency key so a
// retried request never charges twice.
func (c *Client) CreatePayment(ctx context.Context, req payments.ChargeRequest) (*payments.Charge, error) {
	if c.accessToken == "" {
		return nil, ErrNotConfigured
	}

	payload, err := BuildPayload(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Idempotency-Key", req.Reference)

	return c.do(httpReq)
}

// GetPayment fetches the authoritative state of a payment.
func (c *Client) GetPayment(ctx context.Context, id string) (*payments.Charge, error) {
	if c.accessToken == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("payment id is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(httpReq)
}

func (c *Client) do(httpReq *http.Request) (*payments.Charge, error) {
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mercado pago request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read mercado pago response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &payments.ProviderError{
			Provider:   payments.ProviderMercadoPago,
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	}

	var pr paymentResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode mercado pago payment: %w", err)
	}
	return toCharge(&pr, raw), nil
}

func toCharge(pr *paymentResponse, raw []byte) *payments.Charge {
	ch := &payments.Charge{
		ID:                pr.ID.String(),
		ProviderStatus:    pr.Status,
		Status:            payments.MercadoPagoStatus(pr.Status),
		ExternalReference: pr.ExternalReference,
		Amount:            pr.TransactionAmount,
		Currency:          pr.CurrencyID,
		MethodID:          pr.PaymentMethodID,
		PixQRCode:         pr.PointOfInteraction.TransactionData.QRCode,
		PixQRCodeBase64:   pr.PointOfInteraction.TransactionData.QRCodeBase64,
		PixTicketURL:      pr.PointOfInteraction.TransactionData.TicketURL,
		TicketURL:         pr.TransactionDetails.ExternalResourceURL,
		Raw:               raw,
	}
	switch plan := pr.Metadata["plan"].(type) {
	case string:
		ch.Plan = plan
	case float64:
		ch.Plan = strconv.FormatFloat(plan, 'f', -1, 64)
	}
	return ch
}
