package transactions

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockcast/pkg/db"
	"github.com/angelmondragon/stockcast/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockcast/pkg/errors"
	"gorm.io/gorm"
)

const insertBatchSize = 500

// Repository reads and writes the transactions table through GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a repository bound to the provided database.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Fetch implements Source.
func (r *Repository) Fetch(ctx context.Context) ([]RawRow, error) {
	var records []models.Transaction
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("customer_id ASC").
		Order("product ASC").
		Order("purchase_date ASC").
		Find(&records).Error
	if err != nil {
		if db.IsMissingTable(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transactions table missing; run migrations")
		}
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	rows := make([]RawRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, RawRow{
			CustomerID: rec.CustomerID,
			Product:    rec.Product,
			Date:       rec.PurchaseDate,
			Quantity:   rec.Quantity,
		})
	}
	return rows, nil
}

// InsertBatch stores rows as-is, including ones that will later be dropped at
// ingestion. It returns the number of rows written.
func (r *Repository) InsertBatch(ctx context.Context, rows []RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	records := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.Transaction{
			CustomerID:   row.CustomerID,
			Product:      row.Product,
			PurchaseDate: row.Date,
			Quantity:     row.Quantity,
		})
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&records, insertBatchSize).Error; err != nil {
		return 0, fmt.Errorf("insert transactions: %w", err)
	}
	return len(records), nil
}

// Count returns the number of stored rows.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Transaction{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}
