package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transaction-service/apperrors"
	"transaction-service/awsx"
	"transaction-service/kafka"
	"transaction-service/logger"
	"transaction-service/models"
)

// StockReserver is the reservation contract the orchestrator depends on.
type StockReserver interface {
	// Reserve performs a single guarded check-and-decrement against the
	// stock value captured at pricing time. A stale guard surfaces as a
	// reservation conflict, never as an oversell.
	Reserve(ctx context.Context, productID uuid.UUID, quantity, expectedStock int) error
	// Compensate restores a previously reserved quantity, retrying up to a
	// wall-clock budget. On exhaustion it records the discrepancy for
	// reconciliation and returns a compensation-pending error.
	Compensate(ctx context.Context, attemptID string, productID uuid.UUID, quantity int) error
}

// ReservationManager implements StockReserver against the inventory
// collaborator's conditional stock write.
type ReservationManager struct {
	products       ProductAPI
	reconciliation kafka.ProducerAPI // may be nil
	sns            awsx.SNSPublisher // may be nil
	snsTopicArn    string
	budget         time.Duration
}

// NewReservationManager creates a new ReservationManager. reconciliation
// and sns are optional sinks for compensation-pending records.
func NewReservationManager(products ProductAPI, reconciliation kafka.ProducerAPI, sns awsx.SNSPublisher, snsTopicArn string, budget time.Duration) *ReservationManager {
	if budget <= 0 {
		budget = 10 * time.Second
	}
	return &ReservationManager{
		products:       products,
		reconciliation: reconciliation,
		sns:            sns,
		snsTopicArn:    snsTopicArn,
		budget:         budget,
	}
}

func (m *ReservationManager) Reserve(ctx context.Context, productID uuid.UUID, quantity, expectedStock int) error {
	return m.products.UpdateStock(ctx, productID, expectedStock-quantity, expectedStock)
}

func (m *ReservationManager) Compensate(ctx context.Context, attemptID string, productID uuid.UUID, quantity int) error {
	err := m.restore(ctx, productID, quantity)
	if err == nil {
		logger.Log.Info("Stock restored",
			zap.String("attempt_id", attemptID),
			zap.String("product_id", productID.String()),
			zap.Int("quantity", quantity),
		)
		return nil
	}

	m.recordPending(attemptID, productID, quantity, err)
	go m.retryAsync(attemptID, productID, quantity)

	return apperrors.ErrCompensationPending.WithErr(err)
}

// restore re-reads current stock and reissues the guarded increment until
// it lands or the budget runs out. Conflicts (another writer moved the
// stock between read and write) and transient failures both retry; the
// guard keeps the increment exact under retries.
func (m *ReservationManager) restore(ctx context.Context, productID uuid.UUID, quantity int) error {
	deadline := time.Now().Add(m.budget)
	attempt := 0
	for {
		product, err := m.products.GetProduct(ctx, productID)
		if err == nil {
			err = m.products.UpdateStock(ctx, productID, product.Stock+quantity, product.Stock)
			if err == nil {
				return nil
			}
		}
		if errors.Is(err, apperrors.ErrProductNotFound) {
			// nothing left to restore against; hand off to reconciliation
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(attempt)):
		}
		attempt++
	}
}

// recordPending logs the outstanding compensation and publishes it to the
// reconciliation sinks, best-effort.
func (m *ReservationManager) recordPending(attemptID string, productID uuid.UUID, quantity int, cause error) {
	logger.Log.Error("CompensationPending: stock restore exhausted its budget",
		zap.String("attempt_id", attemptID),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
		zap.Error(cause),
	)

	record := models.CompensationRecord{
		ProductID:  productID.String(),
		Quantity:   quantity,
		AttemptID:  attemptID,
		RecordedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if m.reconciliation != nil {
		if err := m.reconciliation.Publish(ctx, []byte(record.ProductID), payload); err != nil {
			logger.Log.Error("Failed to publish reconciliation record", zap.Error(err))
		}
	}
	if m.sns != nil && m.snsTopicArn != "" {
		if err := m.sns.Publish(ctx, m.snsTopicArn, payload); err != nil {
			logger.Log.Warn("SNS reconciliation publish failed", zap.Error(err))
		}
	}
}

// retryAsync gives the restore one more detached pass so a short outage
// does not leave the discrepancy to manual reconciliation.
func (m *ReservationManager) retryAsync(attemptID string, productID uuid.UUID, quantity int) {
	ctx, cancel := context.WithTimeout(context.Background(), m.budget)
	defer cancel()

	if err := m.restore(ctx, productID, quantity); err != nil {
		logger.Log.Error("Async stock restore failed",
			zap.String("attempt_id", attemptID),
			zap.String("product_id", productID.String()),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		return
	}
	logger.Log.Info("Async stock restore recovered",
		zap.String("attempt_id", attemptID),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
	)
}
