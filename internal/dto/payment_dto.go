package dto

import (
	"encoding/json"
	"time"
)

type GeneratePaymentRequest struct {
	Amount        float64       `json:"amount" validate:"required,gt=0"`
	Description   string        `json:"description" validate:"required,max=255"`
	UserID        string        `json:"userId" validate:"required,uuid"`
	PaymentMethod string        `json:"paymentMethod" validate:"payment_method"`
	Provider      string        `json:"provider" validate:"provider"`
	Plan          string        `json:"plan" validate:"max=100"`
	Installments  int           `json:"installments" validate:"min=0,max=12"`
	CustomerData  *CustomerData `json:"customerData"`
	CardData      *CardData     `json:"cardData"`
}

type CustomerData struct {
	Email     string `json:"email" validate:"omitempty,email"`
	CPF       string `json:"cpf"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// CardData carries a token produced by the provider's client SDK.
type CardData struct {
	Token           string `json:"token"`
	PaymentMethodID string `json:"payment_method_id"`
}

type GeneratePaymentResponse struct {
	Success           bool    `json:"success"`
	ExternalReference string  `json:"externalReference"`
	PaymentID         string  `json:"paymentId"`
	Status            string  `json:"status"`
	PaymentMethod     string  `json:"paymentMethod"`
	Provider          string  `json:"provider"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency,omitempty"`
	PixQRCode         string  `json:"pixQrCode,omitempty"`
	PixQRCodeBase64   string  `json:"pixQrCodeBase64,omitempty"`
	PixTicketURL      string  `json:"pixTicketUrl,omitempty"`
	TicketURL         string  `json:"ticketUrl,omitempty"`
}

// PaymentErrorResponse is returned when the provider rejects a payment. Error holds
// the provider's own response when it is JSON.
type PaymentErrorResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type TransactionStatusResponse struct {
	ReferenceID    string    `json:"referenceId"`
	Status         string    `json:"status"`
	ProviderStatus string    `json:"providerStatus"`
	Provider       string    `json:"provider"`
	PaymentMethod  string    `json:"paymentMethod"`
	ChargeID       string    `json:"chargeId,omitempty"`
	Amount         float64   `json:"amount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type PaymentHistoryItem struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	Provider      string    `json:"provider"`
	TransactionID string    `json:"transactionId"`
	PaymentMethod string    `json:"paymentMethod"`
	ReferenceID   string    `json:"referenceId"`
	PaymentDate   time.Time `json:"paymentDate"`
}

type SubscriptionResponse struct {
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Active    bool      `json:"active"`
	DaysLeft  int       `json:"daysLeft"`
}
