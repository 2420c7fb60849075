package dto

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexibleID accepts an id sent either as a JSON string or a JSON number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string { return string(f) }

// MercadoPagoNotification covers both the webhook format ({type, data.id}) and
// the legacy IPN format ({topic, id}).
type MercadoPagoNotification struct {
	ID       FlexibleID `json:"id"`
	Type     string     `json:"type"`
	Topic    string     `json:"topic"`
	Action   string     `json:"action"`
	LiveMode bool       `json:"live_mode"`
	Resource string     `json:"resource"`
	Data     struct {
		ID FlexibleID `json:"id"`
	} `json:"data"`
}

// Kind returns the notification kind, whichever format was used.
func (n *MercadoPagoNotification) Kind() string {
	if n.Type != "" {
		return n.Type
	}
	return n.Topic
}

// PaymentID returns the payment the notification is about.
func (n *MercadoPagoNotification) PaymentID() string {
	if n.Data.ID != "" {
		return n.Data.ID.String()
	}
	if n.Topic != "" {
		return n.ID.String()
	}
	return ""
}

type PagarmeNotification struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		Status string `json:"status"`
		Order  *struct {
			ID string `json:"id"`
		} `json:"order"`
	} `json:"data"`
}

// OrderID returns the order to fetch for order.* and charge.* events, or "" for
// events that carry no order.
func (n *PagarmeNotification) OrderID() string {
	switch {
	case strings.HasPrefix(n.Type, "order."):
		return n.Data.ID
	case strings.HasPrefix(n.Type, "charge.") && n.Data.Order != nil:
		return n.Data.Order.ID
	}
	return ""
}

type WebhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
