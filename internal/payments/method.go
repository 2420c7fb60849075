package payments

import (
	"errors"
	"strings"
)

var (
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrCardDataRequired   = errors.New("card data is required for card payments")
	ErrMethodNotSupported = errors.New("payment method not supported by provider")
)

// Method names accepted on the wire.
const (
	MethodPix        = "pix"
	MethodCreditCard = "credit_card"
	MethodDebitCard  = "debit_card"
	MethodTicket     = "ticket"
)

// Card is a card tokenized on the client. Raw card numbers never reach this service.
type Card struct {
	Token           string
	PaymentMethodID string
}

// Method is the closed set of payment methods. The unexported accept method keeps
// other packages from adding variants, and every MethodVisitor must handle all of them.
type Method interface {
	Name() string
	accept(v MethodVisitor) error
}

// MethodVisitor is implemented by provider payload builders.
type MethodVisitor interface {
	VisitPix(m Pix) error
	VisitCreditCard(m CreditCard) error
	VisitDebitCard(m DebitCard) error
	VisitTicket(m Ticket) error
}

type Pix struct{}

type CreditCard struct {
	Card         Card
	Installments int
}

type DebitCard struct {
	Card Card
}

// Ticket is a bank slip (boleto).
type Ticket struct{}

func (Pix) Name() string        { return MethodPix }
func (CreditCard) Name() string { return MethodCreditCard }
func (DebitCard) Name() string  { return MethodDebitCard }
func (Ticket) Name() string     { return MethodTicket }

func (m Pix) accept(v MethodVisitor) error        { return v.VisitPix(m) }
func (m CreditCard) accept(v MethodVisitor) error { return v.VisitCreditCard(m) }
func (m DebitCard) accept(v MethodVisitor) error  { return v.VisitDebitCard(m) }
func (m Ticket) accept(v MethodVisitor) error     { return v.VisitTicket(m) }

// Visit dispatches m to the matching visitor method.
func Visit(m Method, v MethodVisitor) error {
	return m.accept(v)
}

// ParseMethod builds a Method from request fields. An empty name means PIX.
// card may be nil for methods that do not need it.
func ParseMethod(name string, card *Card, installments int) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MethodPix:
		return Pix{}, nil
	case MethodCreditCard:
		if card == nil || strings.TrimSpace(card.Token) == "" {
			return nil, ErrCardDataRequired
		}
		if installments < 1 {
			installments = 1
		}
		return CreditCard{Card: *card, Installments: installments}, nil
	case MethodDebitCard:
		if card == nil || strings.TrimSpace(card.Token) == "" {
			return nil, ErrCardDataRequired
		}
		return DebitCard{Card: *card}, nil
	case MethodTicket:
		return Ticket{}, nil
	default:
		return nil, ErrUnsupportedMethod
	}
}
