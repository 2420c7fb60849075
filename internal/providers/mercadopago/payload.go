package mercadopago

import (
	"github.com/recebimentosmart/billing-backend/internal/payments"
)

// Placeholder payer used when the customer did not fill in their data.
const (
	defaultPayerEmail     = "cliente@exemplo.com"
	defaultPayerCPF       = "12345678909"
	defaultPayerFirstName = "Cliente"
	defaultPayerLastName  = "Exemplo"

	defaultCreditCardMethod = "visa"
	defaultDebitCardMethod  = "debvisa"
	ticketMethod            = "bolbradesco"
)

// PaymentPayload is the body of POST /v1/payments.
type PaymentPayload struct {
	TransactionAmount float64           `json:"transaction_amount"`
	Description       string            `json:"description"`
	PaymentMethodID   string            `json:"payment_method_id"`
	Token             string            `json:"token,omitempty"`
	Installments      int               `json:"installments,omitempty"`
	Payer             Payer             `json:"payer"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type Payer struct {
	Email          string         `json:"email"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Identification Identification `json:"identification"`
	Address        *Address       `json:"address,omitempty"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type Address struct {
	ZipCode      string `json:"zip_code"`
	StreetName   string `json:"street_name"`
	StreetNumber int    `json:"street_number"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	FederalUnit  string `json:"federal_unit"`
}

// ticketAddress is required by boleto issuers; customers are not asked for it.
var ticketAddress = Address{
	ZipCode:      "01310-100",
	StreetName:   "Av Paulista",
	StreetNumber: 1000,
	Neighborhood: "Bela Vista",
	City:         "São Paulo",
	FederalUnit:  "SP",
}

// BuildPayload maps a generic charge request to the Mercado Pago payment body.
func BuildPayload(req payments.ChargeRequest) (*PaymentPayload, error) {
	p := &PaymentPayload{
		TransactionAmount: req.Amount,
		Description:       req.Description,
		Payer:             buildPayer(req.Payer),
		ExternalReference: req.Reference,
		NotificationURL:   req.NotificationURL,
	}
	if req.Plan != "" {
		p.Metadata = map[string]string{"plan": req.Plan}
	}
	if err := payments.Visit(req.Method, payloadBuilder{p: p}); err != nil {
		return nil, err
	}
	return p, nil
}

func buildPayer(in payments.Payer) Payer {
	return Payer{
		Email:     orDefault(in.Email, defaultPayerEmail),
		FirstName: orDefault(in.FirstName, defaultPayerFirstName),
		LastName:  orDefault(in.LastName, defaultPayerLastName),
		Identification: Identification{
			Type:   "CPF",
			Number: orDefault(in.CPF, defaultPayerCPF),
		},
	}
}

type payloadBuilder struct {
	p *PaymentPayload
}

func (b payloadBuilder) VisitPix(payments.Pix) error {
	b.p.PaymentMethodID = "pix"
	return nil
}

func (b payloadBuilder) VisitCreditCard(m payments.CreditCard) error {
	b.p.PaymentMethodID = orDefault(m.Card.PaymentMethodID, defaultCreditCardMethod)
	b.p.Token = m.Card.Token
	b.p.Installments = m.Installments
	return nil
}

func (b payloadBuilder) VisitDebitCard(m payments.DebitCard) error {
	b.p.PaymentMethodID = orDefault(m.Card.PaymentMethodID, defaultDebitCardMethod)
	b.p.Token = m.Card.Token
	return nil
}

func (b payloadBuilder) VisitTicket(payments.Ticket) error {
	b.p.PaymentMethodID = ticketMethod
	addr := ticketAddress
	b.p.Payer.Address = &addr
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
