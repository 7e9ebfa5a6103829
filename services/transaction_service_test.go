package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"transaction-service/apperrors"
	"transaction-service/models"
)

// --- Mocks for Dependencies ---

type MockTransactionRepository struct{ mock.Mock }

func (m *MockTransactionRepository) Persist(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockTransactionRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockTransactionRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
func (m *MockTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}
func (m *MockTransactionRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]models.Transaction, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}
func (m *MockTransactionRepository) FindAll(ctx context.Context) ([]models.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

type MockCustomerAPI struct{ mock.Mock }

func (m *MockCustomerAPI) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Customer), args.Error(1)
}

type MockProductAPI struct{ mock.Mock }

func (m *MockProductAPI) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}
func (m *MockProductAPI) UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedStock int) error {
	args := m.Called(ctx, id, newStock, expectedStock)
	return args.Error(0)
}

type MockStockReserver struct{ mock.Mock }

func (m *MockStockReserver) Reserve(ctx context.Context, productID uuid.UUID, quantity, expectedStock int) error {
	args := m.Called(ctx, productID, quantity, expectedStock)
	return args.Error(0)
}
func (m *MockStockReserver) Compensate(ctx context.Context, attemptID string, productID uuid.UUID, quantity int) error {
	args := m.Called(ctx, attemptID, productID, quantity)
	return args.Error(0)
}

// --- Tests ---

func TestCreateTransaction_Success(t *testing.T) {
	mockRepo := new(MockTransactionRepository)
	mockCustomers := new(MockCustomerAPI)
	mockProducts := new(MockProductAPI)
	mockStock := new(MockStockReserver)
	service := NewTransactionService(mockRepo, mockCustomers, mockProducts, mockStock, nil)
	ctx := context.Background()

	customerID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()

	mockCustomers.On("GetCustomer", ctx, customerID).Return(&Customer{ID: customerID, Name: "Alice"}, nil)
	mockProducts.On("GetProduct", ctx, productA).Return(&Product{ID: productA, Name: "Widget", Price: 9.99, Stock: 10}, nil)
	mockProducts.On("GetProduct", ctx, productB).Return(&Product{ID: productB, Name: "Gadget", Price: 4.50, Stock: 3}, nil)
	mockStock.On("Reserve", ctx, productA, 2, 10).Return(nil)
	mockStock.On("Reserve", ctx, productB, 3, 3).Return(nil)
	mockRepo.On("Persist", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	result, err := service.CreateTransaction(ctx, &models.CreateTransactionRequest{
		CustomerID: customerID,
		Items: []models.TransactionItemRequest{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 3},
		},
	})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, models.StatusPending, result.Status)
	assert.InDelta(t, 2*9.99+3*4.50, result.TotalAmount, 0.001)
	assert.Len(t, result.Items, 2)
	mockStock.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestCreateTransaction_AggregatesDuplicateProducts(t *testing.T) {
	mockRepo := new(MockTransactionRepository)
	mockCustomers := new(MockCustomerAPI)
	mockProducts := new(MockProductAPI)
	mockStock := new(MockStockReserver)
	service := NewTransactionService(mockRepo, mockCustomers, mockProducts, mockStock, nil)
	ctx := context.Background()

	customerID := uuid.New()
	productID := uuid.New()

	mockCustomers.On("GetCustomer", ctx, customerID).Return(&Customer{ID: customerID}, nil)
	mockProducts.On("GetProduct", ctx, productID).Return(&Product{ID: productID, Name: "Widget", Price: 2.00, Stock: 6}, nil).Once()
	mockStock.On("Reserve", ctx, productID, 5, 6).Return(nil).Once()
	mockRepo.On("Persist", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	result, err := service.CreateTransaction(ctx, &models.CreateTransactionRequest{
		CustomerID: customerID,
		Items: []models.TransactionItemRequest{
			{ProductID: productID, Quantity: 2},
			{ProductID: productID, Quantity: 3},
		},
	})

	assert.NoError(t, err)
	assert.InDelta(t, 10.00, result.TotalAmount, 0.001)
	assert.Len(t, result.Items, 1)
	assert.Equal(t, 5, result.Items[0].Quantity)
	mockProducts.AssertExpectations(t)
	mockStock.AssertExpectations(t)
}

func TestCreateTransaction_InsufficientStock(t *testing.T) {
	mockRepo := new(MockTransactionRepository)
	mockCustomers := new(MockCustomerAPI)
	mockProducts := new(MockProductAPI)
	mockStock := new(MockStockReserver)
	service := NewTransactionService(mockRepo, mockCustomers, mockProducts, mockStock, nil)
	ctx := context.Background()

	customerID := uuid.New()
	productID := uuid.New()

	mockCustomers.On("GetCustomer", ctx, customerID).Return(&Customer{ID: customerID}, nil)
	mockProducts.On("GetProduct", ctx, productID).Return(&Product{ID: productID, Name: "Widget", Price: 1.00, Stock: 1}, nil)

	result, err := service.CreateTransaction(ctx, &models.CreateTransactionRequest{
		CustomerID: customerID,
		Items:      []models.TransactionItemRequest{{ProductID: productID, Quantity: 4}},
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	mockStock.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything)
}

func TestCreateTransaction_ReservationConflictCompensatesCommittedPrefix(t *testing.T) {
	mockRepo := new(MockTransactionRepository)
	mockCustomers := new(MockCustomerAPI)
	mockProducts := new(MockProductAPI)
	mockStock := new(MockStockReserver)
	service := NewTransactionService(mockRepo, mockCustomers, mockProducts, mockStock, nil)
	ctx := context.Background()

	customerID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()

	mockCustomers.On("GetCustomer", ctx, customerID).Return(&Customer{ID: customerID}, nil)
	mockProducts.On("GetProduct", ctx, productA).Return(&Product{ID: productA, Name: "A", Price: 1.00, Stock: 5}, nil)
	mockProducts.On("GetProduct", ctx, productB).Return(&Product{ID: productB, Name: "B", Price: 1.00, Stock: 5}, nil)

	// items are reserved in ascending product id order
	first, second := productA, productB
	if second.String() < first.String() {
		first, second = second, first
	}
	mockStock.On("Reserve", ctx, first, 1, 5).Return(nil)
	mockStock.On("Reserve", ctx, second, 1, 5).Return(apperrors.ErrReservationConflict)
	mockStock.On("Compensate", ctx, mock.AnythingOfType("string"), first, 1).Return(nil).Once()

	result, err := service.CreateTransaction(ctx, &models.CreateTransactionRequest{
		CustomerID: customerID,
		Items: []models.TransactionItemRequest{
			{ProductID: productA, Quantity: 1},
			{ProductID: productB, Quantity: 1},
		},
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrReservationConflict)
	mockStock.AssertExpectations(t)
	mockStock.AssertNotCalled(t, "Compensate", ctx, mock.AnythingOfType("string"), second, 1)
	mockRepo.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything)
}

func TestCreateTransaction_PersistenceFailureCompensatesAll(t *testing.T) {
	mockRepo := new(MockTransactionRepository)
	mockCustomers := new(MockCustomerAPI)
	mockProducts := new(MockProductAPI)
	mockStock := new(MockStockReserver)
	service := NewTransactionService(mockRepo, mockCustomers, mockProducts, mockStock, nil)
	ctx := context.Background()

	customerID := uuid.New()
	productID := uuid.New()

	mockCustomers.On("GetCustomer", ctx, customerID).Return(&Customer{ID: customerID}, nil)
	mockProducts.On("GetProduct", ctx, productID).Return(&Product{ID: productID, Name: "Widget", Price: 3.00, Stock: 8}, nil)
	mockStock.On("Reserve", ctx, productID, 2, 8).Return(nil)
	mockRepo.On("Persist", ctx, mock.AnythingOfType("*models.Transaction")).Return(errors.New("connection reset"))
	mockStock.On("Compensate", ctx, mock.AnythingOfType("string"), productID, 2).Return(nil).Once()

	result, err := service.CreateTransaction(ctx, &models.CreateTransactionRequest{
		CustomerID: customerID,
		Items:      []models.TransactionItemRequest{{ProductID: productID, Quantity: 2}},
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrPersistenceFailure)
	mockStock.AssertExpectations(t)
}

func TestCreateTransaction_CompensationFailureFlagsPending(t *testing.T) {
	mockRepo := new(MockTransactionRepository)
	mockCustomers := new(MockCustomerAPI)
	mockProducts := new(MockProductAPI)
	mockStock := new(MockStockReserver)
	service := NewTransactionService(mockRepo, mockCustomers, mockProducts, mockStock, nil)
	ctx := context.Background()

	customerID := uuid.New()
	productID := uuid.New()

	mockCustomers.On("GetCustomer", ctx, customerID).Return(&Customer{ID: customerID}, nil)
	mockProducts.On("GetProduct", ctx, productID).Return(&Product{ID: productID, Name: "Widget", Price: 3.00, Stock: 8}, nil)
	mockStock.On("Reserve", ctx, productID, 2, 8).Return(nil)
	mockRepo.On("Persist", ctx, mock.AnythingOfType("*models.Transaction")).Return(errors.New("disk full"))
	mockStock.On("Compensate", ctx, mock.AnythingOfType("string"), productID, 2).
		Return(apperrors.ErrCompensationPending)

	_, err := service.CreateTransaction(ctx, &models.CreateTransactionRequest{
		CustomerID: customerID,
		Items:      []models.TransactionItemRequest{{ProductID: productID, Quantity: 2}},
	})

	var appErr *apperrors.Error
	assert.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.CompensationPending)
	assert.ErrorIs(t, err, apperrors.ErrPersistenceFailure)
}

func TestCreateTransaction_CustomerNotFound(t *testing.T) {
	mockRepo := new(MockTransactionRepository)
	mockCustomers := new(MockCustomerAPI)
	mockProducts := new(MockProductAPI)
	mockStock := new(MockStockReserver)
	service := NewTransactionService(mockRepo, mockCustomers, mockProducts, mockStock, nil)
	ctx := context.Background()

	customerID := uuid.New()
	mockCustomers.On("GetCustomer", ctx, customerID).Return(nil, apperrors.ErrCustomerNotFound)

	result, err := service.CreateTransaction(ctx, &models.CreateTransactionRequest{
		CustomerID: customerID,
		Items:      []models.TransactionItemRequest{{ProductID: uuid.New(), Quantity: 1}},
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrCustomerNotFound)
	mockProducts.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
}

func TestCreateTransaction_Validation(t *testing.T) {
	service := NewTransactionService(nil, nil, nil, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *models.CreateTransactionRequest
	}{
		{"nil request", nil},
		{"missing customer", &models.CreateTransactionRequest{
			Items: []models.TransactionItemRequest{{ProductID: uuid.New(), Quantity: 1}},
		}},
		{"empty items", &models.CreateTransactionRequest{CustomerID: uuid.New()}},
		{"zero quantity", &models.CreateTransactionRequest{
			CustomerID: uuid.New(),
			Items:      []models.TransactionItemRequest{{ProductID: uuid.New(), Quantity: 0}},
		}},
		{"negative quantity", &models.CreateTransactionRequest{
			CustomerID: uuid.New(),
			Items:      []models.TransactionItemRequest{{ProductID: uuid.New(), Quantity: -2}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := service.CreateTransaction(ctx, tc.req)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("accepts pending to completed", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockRepo, nil, nil, nil, nil)
		mockRepo.On("UpdateStatus", ctx, id, models.StatusCompleted).Return(int64(1), nil)

		assert.NoError(t, service.UpdateStatus(ctx, id, models.StatusCompleted))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		service := NewTransactionService(nil, nil, nil, nil, nil)
		err := service.UpdateStatus(ctx, id, "shipped")
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("rejects transition target pending", func(t *testing.T) {
		service := NewTransactionService(nil, nil, nil, nil, nil)
		err := service.UpdateStatus(ctx, id, models.StatusPending)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("missing transaction", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockRepo, nil, nil, nil, nil)
		mockRepo.On("UpdateStatus", ctx, id, models.StatusCancelled).Return(int64(0), nil)
		mockRepo.On("Exists", ctx, id).Return(false, nil)

		err := service.UpdateStatus(ctx, id, models.StatusCancelled)
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	})

	t.Run("already settled", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockRepo, nil, nil, nil, nil)
		mockRepo.On("UpdateStatus", ctx, id, models.StatusCompleted).Return(int64(0), nil)
		mockRepo.On("Exists", ctx, id).Return(true, nil)

		err := service.UpdateStatus(ctx, id, models.StatusCompleted)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})
}

func TestCancelAndRestock(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	productA := uuid.New()
	productB := uuid.New()

	transaction := &models.Transaction{
		ID:     id,
		Status: models.StatusPending,
		Items: []models.TransactionItem{
			{ID: uuid.New(), ProductID: productA, Quantity: 2},
			{ID: uuid.New(), ProductID: productB, Quantity: 1},
		},
	}

	t.Run("restores every item", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockStock := new(MockStockReserver)
		service := NewTransactionService(mockRepo, nil, nil, mockStock, nil)

		mockRepo.On("FindByID", ctx, id).Return(transaction, nil)
		mockRepo.On("UpdateStatus", ctx, id, models.StatusCancelled).Return(int64(1), nil)
		mockStock.On("Compensate", ctx, mock.AnythingOfType("string"), productB, 1).Return(nil)
		mockStock.On("Compensate", ctx, mock.AnythingOfType("string"), productA, 2).Return(nil)

		result, err := service.CancelAndRestock(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, 2, result.ItemsRestored)
		assert.False(t, result.CompensationPending)
		mockStock.AssertExpectations(t)
	})

	t.Run("partial restore reports pending", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockStock := new(MockStockReserver)
		service := NewTransactionService(mockRepo, nil, nil, mockStock, nil)

		mockRepo.On("FindByID", ctx, id).Return(transaction, nil)
		mockRepo.On("UpdateStatus", ctx, id, models.StatusCancelled).Return(int64(1), nil)
		mockStock.On("Compensate", ctx, mock.AnythingOfType("string"), productB, 1).
			Return(apperrors.ErrCompensationPending)
		mockStock.On("Compensate", ctx, mock.AnythingOfType("string"), productA, 2).Return(nil)

		result, err := service.CancelAndRestock(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, 1, result.ItemsRestored)
		assert.True(t, result.CompensationPending)
	})

	t.Run("already settled transaction is not restocked", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		mockStock := new(MockStockReserver)
		service := NewTransactionService(mockRepo, nil, nil, mockStock, nil)

		mockRepo.On("FindByID", ctx, id).Return(transaction, nil)
		mockRepo.On("UpdateStatus", ctx, id, models.StatusCancelled).Return(int64(0), nil)
		mockRepo.On("Exists", ctx, id).Return(true, nil)

		_, err := service.CancelAndRestock(ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		mockStock.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("deletes existing transaction", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockRepo, nil, nil, nil, nil)
		mockRepo.On("Delete", ctx, id).Return(int64(1), nil)

		assert.NoError(t, service.DeleteTransaction(ctx, id))
	})

	t.Run("missing transaction", func(t *testing.T) {
		mockRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockRepo, nil, nil, nil, nil)
		mockRepo.On("Delete", ctx, id).Return(int64(0), nil)

		err := service.DeleteTransaction(ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	})
}

func TestAggregateItems_OrdersByProductID(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	c := uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	intents := aggregateItems([]models.TransactionItemRequest{
		{ProductID: c, Quantity: 1},
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 3},
		{ProductID: a, Quantity: 4},
	})

	assert.Len(t, intents, 3)
	assert.Equal(t, a, intents[0].ProductID)
	assert.Equal(t, 6, intents[0].Quantity)
	assert.Equal(t, b, intents[1].ProductID)
	assert.Equal(t, c, intents[2].ProductID)
}
