package payments

import (
	"context"
	"fmt"
)

// Provider names stored on ledger and payment rows.
const (
	ProviderMercadoPago = "mercadopago"
	ProviderPagarme     = "pagarme"
)

// Payer identifies who pays. Providers fall back to placeholder values for blank fields.
type Payer struct {
	Email     string
	FirstName string
	LastName  string
	CPF       string
}

// ChargeRequest is the provider-neutral input for creating a payment.
type ChargeRequest struct {
	Reference       string
	Amount          float64
	Description     string
	Payer           Payer
	Method          Method
	Plan            string
	NotificationURL string
}

// Charge is a provider payment normalized for the ledger.
type Charge struct {
	ID                string
	ProviderStatus    string
	Status            string // ledger status, see models.Transaction*
	ExternalReference string
	Amount            float64
	Currency          string
	MethodID          string
	Plan              string
	PixQRCode         string
	PixQRCodeBase64   string
	PixTicketURL      string
	TicketURL         string
	Raw               []byte
}

// Approved reports whether the provider confirmed the money.
func (c *Charge) Approved() bool {
	return c.Status == StatusCompleted
}

// Gateway is implemented by every payment provider client.
type Gateway interface {
	Name() string
	Supports(m Method) bool
	CreatePayment(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetPayment(ctx context.Context, id string) (*Charge, error)
}

// ProviderError carries a non-2xx provider response so operators can see the provider's own message.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       []byte
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s responded with status %d: %s", e.Provider, e.StatusCode, string(e.Body))
}
