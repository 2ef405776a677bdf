package userstream

import (
	"encoding/json"
	"fmt"
)

const EventOrderTradeUpdate = "ORDER_TRADE_UPDATE"

// Order statuses reported by the stream.
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusExpired         = "EXPIRED"
)

// OrderUpdate is the order payload of an ORDER_TRADE_UPDATE event.
type OrderUpdate struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Price       string `json:"price"`
	ExecutedQty string `json:"executedQty"`
}

// Envelope is the outer shape of a push-event message. Events other than
// order updates carry a nil Order.
type Envelope struct {
	EventType string       `json:"eventType"`
	Order     *OrderUpdate `json:"order"`
}

// ParseEnvelope decodes a raw stream message. Callers must treat a returned
// error as log-and-drop, never as fatal.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed stream message: %w", err)
	}
	return &env, nil
}

// IsTerminal reports whether an order status ends the order's life on the book.
func IsTerminal(status string) bool {
	switch status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired:
		return true
	}
	return false
}
