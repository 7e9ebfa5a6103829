package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transaction-service/apperrors"
	"transaction-service/kafka"
	"transaction-service/logger"
	"transaction-service/models"
	"transaction-service/repository"
)

// reservationIntent is the saga-scoped unit of work for one distinct
// product: aggregated quantity, the price captured at pricing time, and the
// stock value used as the guard for the conditional decrement. It is never
// persisted and is discarded when the saga ends.
type reservationIntent struct {
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int
	PricePerItem   float64
	StockAtPricing int
}

// CreateTransactionResult is returned on a successful saga.
type CreateTransactionResult struct {
	TransactionID uuid.UUID                `json:"transaction_id"`
	Status        string                   `json:"status"`
	TotalAmount   float64                  `json:"total_amount"`
	Items         []models.TransactionItem `json:"items"`
}

// CancelResult reports the outcome of the cancel-and-restock corrective
// operation.
type CancelResult struct {
	ItemsRestored       int  `json:"items_restored"`
	CompensationPending bool `json:"compensation_pending"`
}

// TransactionService drives the order-creation saga and the ledger's
// status/delete operations.
type TransactionService struct {
	repo      repository.TransactionRepository
	customers CustomerAPI
	products  ProductAPI
	stock     StockReserver
	events    kafka.ProducerAPI // may be nil
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(repo repository.TransactionRepository, customers CustomerAPI, products ProductAPI, stock StockReserver, events kafka.ProducerAPI) *TransactionService {
	return &TransactionService{
		repo:      repo,
		customers: customers,
		products:  products,
		stock:     stock,
		events:    events,
	}
}

// CreateTransaction runs the saga: validate customer, price and aggregate
// items, reserve stock in ascending product order, persist header + items
// atomically. Any failure after a reservation compensates the committed
// reservations in reverse order before the error is returned.
func (s *TransactionService) CreateTransaction(ctx context.Context, req *models.CreateTransactionRequest) (*CreateTransactionResult, error) {
	if req == nil || req.CustomerID == uuid.Nil || len(req.Items) == 0 {
		return nil, apperrors.ErrValidation
	}
	for _, item := range req.Items {
		if item.ProductID == uuid.Nil || item.Quantity <= 0 {
			return nil, apperrors.ErrValidation.WithErr(fmt.Errorf("item quantities must be positive"))
		}
	}

	attemptID := uuid.New().String()
	log := logger.Log.With(
		zap.String("attempt_id", attemptID),
		zap.String("customer_id", req.CustomerID.String()),
	)

	if _, err := s.customers.GetCustomer(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	intents, totalAmount, err := s.priceItems(ctx, aggregateItems(req.Items))
	if err != nil {
		return nil, err
	}

	reserved, err := s.reserveAll(ctx, log, intents)
	if err != nil {
		pending := s.compensateAll(ctx, attemptID, reserved)
		s.publishEvent(ctx, models.TransactionEvent{
			Type:       models.EventTransactionFailed,
			CustomerID: req.CustomerID.String(),
			Reason:     err.Error(),
			Timestamp:  time.Now().UTC(),
		})
		return nil, withPendingFlag(err, pending)
	}

	transaction := &models.Transaction{
		ID:              uuid.New(),
		CustomerID:      req.CustomerID,
		TotalAmount:     totalAmount,
		Status:          models.StatusPending,
		TransactionDate: time.Now().UTC(),
		Items:           buildItems(intents),
	}

	if err := s.repo.Persist(ctx, transaction); err != nil {
		log.Error("Ledger write failed after reservation, compensating", zap.Error(err))
		pending := s.compensateAll(ctx, attemptID, intents)
		s.publishEvent(ctx, models.TransactionEvent{
			Type:       models.EventTransactionFailed,
			CustomerID: req.CustomerID.String(),
			Reason:     "persistence failure",
			Timestamp:  time.Now().UTC(),
		})
		return nil, withPendingFlag(apperrors.ErrPersistenceFailure.WithErr(err), pending)
	}

	log.Info("Transaction created",
		zap.String("transaction_id", transaction.ID.String()),
		zap.Float64("total_amount", totalAmount),
		zap.Int("items", len(transaction.Items)),
	)
	s.publishEvent(ctx, models.TransactionEvent{
		Type:          models.EventTransactionCreated,
		TransactionID: transaction.ID.String(),
		CustomerID:    req.CustomerID.String(),
		TotalAmount:   totalAmount,
		Timestamp:     time.Now().UTC(),
	})

	return &CreateTransactionResult{
		TransactionID: transaction.ID,
		Status:        transaction.Status,
		TotalAmount:   totalAmount,
		Items:         transaction.Items,
	}, nil
}

// aggregateItems groups the request's items by product, summing quantities,
// so a product listed twice is checked and reserved exactly once. The
// result is ordered by ascending product id: concurrent sagas over
// overlapping products then contend in the same order instead of
// deadlocking.
func aggregateItems(items []models.TransactionItemRequest) []reservationIntent {
	byProduct := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		byProduct[item.ProductID] += item.Quantity
	}

	intents := make([]reservationIntent, 0, len(byProduct))
	for productID, quantity := range byProduct {
		intents = append(intents, reservationIntent{ProductID: productID, Quantity: quantity})
	}
	sort.Slice(intents, func(i, j int) bool {
		return intents[i].ProductID.String() < intents[j].ProductID.String()
	})
	return intents
}

// priceItems resolves each distinct product, capturing price and stock at
// the moment of pricing. The captured stock doubles as the guard for the
// conditional decrement in the reserve step.
func (s *TransactionService) priceItems(ctx context.Context, intents []reservationIntent) ([]reservationIntent, float64, error) {
	var totalAmount float64
	for i := range intents {
		product, err := s.products.GetProduct(ctx, intents[i].ProductID)
		if err != nil {
			return nil, 0, err
		}
		if product.Stock < intents[i].Quantity {
			return nil, 0, apperrors.ErrInsufficientStock.WithErr(
				fmt.Errorf("product %s: available %d, requested %d", product.Name, product.Stock, intents[i].Quantity))
		}
		intents[i].ProductName = product.Name
		intents[i].PricePerItem = product.Price
		intents[i].StockAtPricing = product.Stock
		totalAmount += product.Price * float64(intents[i].Quantity)
	}
	return intents, totalAmount, nil
}

// reserveAll commits the reservations in order. On failure it returns the
// already-committed prefix so the caller can compensate it.
func (s *TransactionService) reserveAll(ctx context.Context, log *zap.Logger, intents []reservationIntent) ([]reservationIntent, error) {
	for i := range intents {
		if err := s.stock.Reserve(ctx, intents[i].ProductID, intents[i].Quantity, intents[i].StockAtPricing); err != nil {
			log.Warn("Reservation failed",
				zap.String("product_id", intents[i].ProductID.String()),
				zap.Int("committed", i),
				zap.Error(err),
			)
			return intents[:i], err
		}
	}
	return intents, nil
}

// compensateAll restores committed reservations in reverse order of
// commitment. It reports whether any restore is still outstanding.
func (s *TransactionService) compensateAll(ctx context.Context, attemptID string, reserved []reservationIntent) bool {
	pending := false
	for i := len(reserved) - 1; i >= 0; i-- {
		if err := s.stock.Compensate(ctx, attemptID, reserved[i].ProductID, reserved[i].Quantity); err != nil {
			pending = true
		}
	}
	return pending
}

func buildItems(intents []reservationIntent) []models.TransactionItem {
	items := make([]models.TransactionItem, 0, len(intents))
	for _, intent := range intents {
		items = append(items, models.TransactionItem{
			ID:           uuid.New(),
			ProductID:    intent.ProductID,
			Quantity:     intent.Quantity,
			PricePerItem: intent.PricePerItem,
		})
	}
	return items
}

// withPendingFlag attaches the compensation-pending flag to the saga's
// original error without changing its classification.
func withPendingFlag(err error, pending bool) error {
	if !pending {
		return err
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.WithCompensationPending()
	}
	return apperrors.ErrUpstreamService.WithErr(err).WithCompensationPending()
}

// UpdateStatus applies an administrative status change. Only
// pending → completed and pending → cancelled are accepted.
func (s *TransactionService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !models.ValidStatus(status) || !models.CanTransition(models.StatusPending, status) {
		return apperrors.ErrInvalidTransition.WithErr(fmt.Errorf("cannot transition to %q", status))
	}

	rows, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return apperrors.ErrPersistenceFailure.WithErr(err)
	}
	if rows == 0 {
		exists, err := s.repo.Exists(ctx, id)
		if err != nil {
			return apperrors.ErrPersistenceFailure.WithErr(err)
		}
		if !exists {
			return apperrors.ErrTransactionNotFound
		}
		return apperrors.ErrInvalidTransition.WithErr(fmt.Errorf("transaction is no longer pending"))
	}
	return nil
}

// CancelAndRestock cancels a pending transaction and then explicitly
// compensates each of its reservations. Cancellation alone never touches
// stock; this is the combined corrective operation.
func (s *TransactionService) CancelAndRestock(ctx context.Context, id uuid.UUID) (*CancelResult, error) {
	transaction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.ErrPersistenceFailure.WithErr(err)
	}

	if err := s.UpdateStatus(ctx, id, models.StatusCancelled); err != nil {
		return nil, err
	}

	attemptID := uuid.New().String()
	result := &CancelResult{}
	for i := len(transaction.Items) - 1; i >= 0; i-- {
		item := transaction.Items[i]
		if err := s.stock.Compensate(ctx, attemptID, item.ProductID, item.Quantity); err != nil {
			result.CompensationPending = true
			continue
		}
		result.ItemsRestored++
	}
	return result, nil
}

// DeleteTransaction removes the transaction; its items cascade.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperrors.ErrPersistenceFailure.WithErr(err)
	}
	if rows == 0 {
		return apperrors.ErrTransactionNotFound
	}
	return nil
}

// publishEvent emits a lifecycle event, best-effort.
func (s *TransactionService) publishEvent(ctx context.Context, event models.TransactionEvent) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	key := event.TransactionID
	if key == "" {
		key = event.CustomerID
	}
	if err := s.events.Publish(ctx, []byte(key), payload); err != nil {
		logger.Log.Warn("Failed to publish transaction event",
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
