package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the ledger header for a single purchase. Customer and
// product ids are remote references resolved over HTTP, not database
// foreign keys, so existence checks happen in the service layer.
type Transaction struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CustomerID      uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`
	TotalAmount     float64   `gorm:"not null" json:"total_amount"`
	Status          string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TransactionDate time.Time `gorm:"autoCreateTime" json:"transaction_date"`

	Items []TransactionItem `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"items"`
}

// TransactionItem is owned exclusively by its Transaction: created only as
// part of transaction creation, never individually mutated, removed only by
// cascading deletion of the parent.
type TransactionItem struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"item_id"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null" json:"product_id"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	PricePerItem  float64   `gorm:"not null" json:"price_per_item"`
}
