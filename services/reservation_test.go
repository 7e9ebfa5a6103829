package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"transaction-service/apperrors"
)

// fakeProductAPI scripts GetProduct/UpdateStock responses per call.
type fakeProductAPI struct {
	mu          sync.Mutex
	stock       int
	getErr      error
	updateErrs  []error
	updateCalls []int
	missing     bool
}

func (f *fakeProductAPI) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return nil, apperrors.ErrProductNotFound
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &Product{ID: id, Name: "Widget", Price: 1.00, Stock: f.stock}, nil
}

func (f *fakeProductAPI) UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedStock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, newStock)
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	f.stock = newStock
	return nil
}

func (f *fakeProductAPI) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.updateCalls...)
}

// fakeRecorder captures reconciliation publishes.
type fakeRecorder struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakeRecorder) Publish(ctx context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, value)
	return nil
}

func (f *fakeRecorder) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestReserve_GuardedDecrement(t *testing.T) {
	products := &fakeProductAPI{stock: 10}
	manager := NewReservationManager(products, nil, nil, "", time.Second)

	err := manager.Reserve(context.Background(), uuid.New(), 3, 10)
	assert.NoError(t, err)
	assert.Equal(t, []int{7}, products.calls())
}

func TestReserve_PropagatesConflict(t *testing.T) {
	products := &fakeProductAPI{stock: 10, updateErrs: []error{apperrors.ErrReservationConflict}}
	manager := NewReservationManager(products, nil, nil, "", time.Second)

	err := manager.Reserve(context.Background(), uuid.New(), 3, 10)
	assert.ErrorIs(t, err, apperrors.ErrReservationConflict)
}

func TestCompensate_RestoresStock(t *testing.T) {
	products := &fakeProductAPI{stock: 4}
	manager := NewReservationManager(products, nil, nil, "", time.Second)

	err := manager.Compensate(context.Background(), "attempt-1", uuid.New(), 3)
	assert.NoError(t, err)
	assert.Equal(t, []int{7}, products.calls())
}

func TestCompensate_RetriesAfterConflict(t *testing.T) {
	// first increment loses the guard race, second lands
	products := &fakeProductAPI{stock: 4, updateErrs: []error{apperrors.ErrReservationConflict}}
	manager := NewReservationManager(products, nil, nil, "", 2*time.Second)

	err := manager.Compensate(context.Background(), "attempt-1", uuid.New(), 3)
	assert.NoError(t, err)
	calls := products.calls()
	assert.Len(t, calls, 2)
	assert.Equal(t, 7, calls[1])
}

func TestCompensate_BudgetExhaustedRecordsPending(t *testing.T) {
	products := &fakeProductAPI{stock: 4, getErr: apperrors.ErrUpstreamService}
	recorder := &fakeRecorder{}
	manager := NewReservationManager(products, recorder, nil, "", 50*time.Millisecond)

	err := manager.Compensate(context.Background(), "attempt-1", uuid.New(), 3)
	assert.ErrorIs(t, err, apperrors.ErrCompensationPending)
	assert.Equal(t, 1, recorder.published())
}

func TestCompensate_MissingProductHandsOffToReconciliation(t *testing.T) {
	products := &fakeProductAPI{missing: true}
	recorder := &fakeRecorder{}
	manager := NewReservationManager(products, recorder, nil, "", time.Second)

	err := manager.Compensate(context.Background(), "attempt-1", uuid.New(), 3)
	assert.ErrorIs(t, err, apperrors.ErrCompensationPending)
	assert.Equal(t, 1, recorder.published())
}
