package model

import "time"

// ExecutionStatus constants represent the conclusion of one gateway interaction.
const (
	ExecutionStatusPlaced        = "placed"
	ExecutionStatusRejected      = "rejected"
	ExecutionStatusCanceled      = "canceled"
	ExecutionStatusCancelError   = "cancel_error"
	ExecutionStatusAlreadyClosed = "already_closed"
)

// Strategy names recorded with each execution row.
const (
	StrategyMarket    = "market"
	StrategyLimit     = "limit"
	StrategyStopLimit = "stop-limit"
	StrategyGrid      = "grid"
	StrategyTWAP      = "twap"
	StrategyBracket   = "bracket"
)

// ExecutionLog stores the history of each order placement or cancellation
// issued against the exchange, one row per interaction.
type ExecutionLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Strategy string `gorm:"size:50;index" json:"strategy"`

	// Snapshot of the request at the moment of this entry
	Symbol    string   `gorm:"size:100" json:"symbol"`
	Side      string   `gorm:"size:20" json:"side"`
	OrderType string   `gorm:"size:50" json:"order_type"`
	Quantity  float64  `json:"quantity"`
	Price     *float64 `json:"price,omitempty"`
	StopPrice *float64 `json:"stop_price,omitempty"`

	// Exchange-specific identifiers
	ExchangeOrderID  int64  `gorm:"index" json:"exchange_order_id"`
	ExchangeClientID string `gorm:"size:255" json:"exchange_client_id"`

	// Execution / conclusion details
	Status       string  `gorm:"size:50;not null" json:"status"` // see ExecutionStatus* constants
	Reason       string  `gorm:"size:255" json:"reason"`
	ErrorMessage *string `json:"error_message,omitempty"`

	RequestedAt time.Time `json:"requested_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName controls the exact table name for execution logs.
func (ExecutionLog) TableName() string {
	return "execution_logs"
}
