package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction is one purchase row as stored in the transactions table.
// PurchaseDate is kept as text so that unparseable rows survive storage and
// are dropped at ingestion instead.
type Transaction struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID   string    `gorm:"column:customer_id;not null;index:idx_transactions_customer_product"`
	Product      string    `gorm:"column:product;not null;index:idx_transactions_customer_product"`
	PurchaseDate string    `gorm:"column:purchase_date;not null"`
	Quantity     float64   `gorm:"column:quantity;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate assigns a primary key when the caller did not.
func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
