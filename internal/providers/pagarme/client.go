package pagarme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/recebimentosmart/billing-backend/internal/payments"
)

var ErrNotConfigured = errors.New("pagar.me api key is not configured")

// pixExpiresIn is how long a generated PIX code stays payable, in seconds.
const pixExpiresIn = 3600

// Client creates and reads Pagar.me core v5 orders. Only PIX is offered through it.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return payments.ProviderPagarme
}

func (c *Client) Supports(m payments.Method) bool {
	_, ok := m.(payments.Pix)
	return ok
}

type orderRequest struct {
	Code     string            `json:"code"`
	Customer customer          `json:"customer"`
	Items    []item            `json:"items"`
	Payments []orderPayment    `json:"payments"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
	Type     string `json:"type"`
}

type item struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Code        string `json:"code"`
}

type orderPayment struct {
	PaymentMethod string     `json:"payment_method"`
	Pix           *pixConfig `json:"pix,omitempty"`
}

type pixConfig struct {
	ExpiresIn int `json:"expires_in"`
}

type orderResponse struct {
	ID       string            `json:"id"`
	Code     string            `json:"code"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
	Charges  []struct {
		ID              string `json:"id"`
		Status          string `json:"status"`
		PaymentMethod   string `json:"payment_method"`
		LastTransaction struct {
			QRCode    string `json:"qr_code"`
			QRCodeURL string `json:"qr_code_url"`
		} `json:"last_transaction"`
	} `json:"charges"`
}

// orderBuilder rejects every method except PIX.
type orderBuilder struct {
	o *orderRequest
}

func (b orderBuilder) VisitPix(payments.Pix) error {
	b.o.Payments = []orderPayment{{PaymentMethod: "pix", Pix: &pixConfig{ExpiresIn: pixExpiresIn}}}
	return nil
}

func (orderBuilder) VisitCreditCard(payments.CreditCard) error { return payments.ErrMethodNotSupported }
func (orderBuilder) VisitDebitCard(payments.DebitCard) error   { return payments.ErrMethodNotSupported }
func (orderBuilder) VisitTicket(payments.Ticket) error         { return payments.ErrMethodNotSupported }

func buildOrder(req payments.ChargeRequest) (*orderRequest, error) {
	name := strings.TrimSpace(req.Payer.FirstName + " " + req.Payer.LastName)
	if name == "" {
		name = "Cliente Exemplo"
	}
	email := req.Payer.Email
	if email == "" {
		email = "cliente@exemplo.com"
	}

	o := &orderRequest{
		Code: req.Reference,
		Customer: customer{
			Name:     name,
			Email:    email,
			Document: req.Payer.CPF,
			Type:     "individual",
		},
		Items: []item{{
			Amount:      toCents(req.Amount),
			Description: req.Description,
			Quantity:    1,
			Code:        "subscription",
		}},
	}
	if req.Plan != "" {
		o.Metadata = map[string]string{"plan": req.Plan}
	}
	if err := payments.Visit(req.Method, orderBuilder{o: o}); err != nil {
		return nil, err
	}
	return o, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *Client) CreatePayment(ctx context.Context, req payments.ChargeRequest) (*payments.Charge, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	order, err := buildOrder(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference)
	return c.do(httpReq)
}

// GetPayment fetches an order by id. Webhooks carry the order id, not the charge id.
func (c *Client) GetPayment(ctx context.Context, id string) (*payments.Charge, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("order id is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(httpReq)
}

func (c *Client) do(httpReq *http.Request) (*payments.Charge, error) {
	httpReq.SetBasicAuth(c.apiKey, "")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pagar.me request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read pagar.me response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &payments.ProviderError{
			Provider:   payments.ProviderPagarme,
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	}

	var ord orderResponse
	if err := json.Unmarshal(raw, &ord); err != nil {
		return nil, fmt.Errorf("failed to decode pagar.me order: %w", err)
	}
	return toCharge(&ord, raw), nil
}

func toCharge(ord *orderResponse, raw []byte) *payments.Charge {
	ch := &payments.Charge{
		ID:                ord.ID,
		ProviderStatus:    ord.Status,
		Status:            payments.PagarmeStatus(ord.Status),
		ExternalReference: ord.Code,
		Amount:            float64(ord.Amount) / 100,
		Currency:          ord.Currency,
		Plan:              ord.Metadata["plan"],
		Raw:               raw,
	}
	if len(ord.Charges) > 0 {
		first := ord.Charges[0]
		ch.MethodID = first.PaymentMethod
		ch.PixQRCode = first.LastTransaction.QRCode
		ch.PixTicketURL = first.LastTransaction.QRCodeURL
	}
	return ch
}
