package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transaction-service/models"
)

// TransactionRepository defines the interface for ledger data access
type TransactionRepository interface {
	// Persist writes the transaction header and all its items as one
	// atomic unit: either all rows exist after the call or none do.
	Persist(ctx context.Context, tx *models.Transaction) error
	// UpdateStatus moves a pending transaction to status and returns the
	// number of affected rows; 0 when the transaction is missing or no
	// longer pending.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (int64, error)
	// Delete removes the header; items cascade.
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]models.Transaction, error)
	FindAll(ctx context.Context) ([]models.Transaction, error)
}

// GormTransactionRepository implements TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new instance of GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) TransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Persist writes header and items in a single database transaction
func (r *GormTransactionRepository) Persist(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := transaction.Items
		transaction.Items = nil
		if err := tx.Create(transaction).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].TransactionID = transaction.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		transaction.Items = items
		return nil
	})
}

// UpdateStatus performs a guarded update: only pending rows change
func (r *GormTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", status)
	return res.RowsAffected, res.Error
}

// Delete removes the header and cascades to its items
func (r *GormTransactionRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Transaction{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// Exists reports whether a transaction with the given id is stored
func (r *GormTransactionRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// FindByID retrieves a transaction with its items preloaded
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// FindByCustomerID retrieves all transactions for a customer, newest first
func (r *GormTransactionRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]models.Transaction, error) {
	var transactions []models.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("transaction_date DESC").
		Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

// FindAll retrieves every stored transaction, newest first
func (r *GormTransactionRepository) FindAll(ctx context.Context) ([]models.Transaction, error) {
	var transactions []models.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Order("transaction_date DESC").
		Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

// IsNotFound reports whether err is gorm's record-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
