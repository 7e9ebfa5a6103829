package models

import (
	"time"

	"github.com/google/uuid"
)

// CreateTransactionRequest is the body of POST /api/transactions.
type CreateTransactionRequest struct {
	CustomerID uuid.UUID                `json:"customer_id" binding:"required"`
	Items      []TransactionItemRequest `json:"items" binding:"required,dive"`
}

// TransactionItemRequest is a single product + quantity in a create request.
// The same product may appear more than once; the orchestrator aggregates.
type TransactionItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// UpdateStatusRequest is the body of PUT /api/transactions/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// TransactionView is the read-side representation of a transaction with
// items enriched with the product's current name.
type TransactionView struct {
	ID              uuid.UUID             `json:"id"`
	CustomerID      uuid.UUID             `json:"customer_id"`
	TotalAmount     float64               `json:"total_amount"`
	Status          string                `json:"status"`
	TransactionDate time.Time             `json:"transaction_date"`
	Items           []TransactionItemView `json:"items"`
}

// TransactionItemView is a single enriched line item.
type TransactionItemView struct {
	ItemID       uuid.UUID `json:"item_id"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	PricePerItem float64   `json:"price_per_item"`
}

// TransactionEvent is published to the transaction events topic on saga
// completion or failure (best-effort).
type TransactionEvent struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CustomerID    string    `json:"customer_id"`
	TotalAmount   float64   `json:"total_amount,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Transaction event types.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionFailed  = "transaction.failed"
)

// CompensationRecord is the reconciliation record emitted when a stock
// restore exhausted its retry budget and needs out-of-band correction.
type CompensationRecord struct {
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	AttemptID  string    `json:"attempt_id"`
	RecordedAt time.Time `json:"recorded_at"`
}
