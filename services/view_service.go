package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"transaction-service/apperrors"
	"transaction-service/logger"
	"transaction-service/models"
	"transaction-service/repository"
)

// UnknownProductName is the sentinel used when product enrichment fails.
// Read availability wins over enrichment completeness.
const UnknownProductName = "Unknown Product"

const productNameCacheTTL = 10 * time.Minute

// ViewService assembles read-side transaction views, enriching locally
// stored items with the product's current name from the inventory service.
type ViewService struct {
	repo          repository.TransactionRepository
	products      ProductAPI
	cache         *redis.Client // may be nil
	lookupTimeout time.Duration
}

// NewViewService creates a new ViewService
func NewViewService(repo repository.TransactionRepository, products ProductAPI, cache *redis.Client, lookupTimeout time.Duration) *ViewService {
	if lookupTimeout <= 0 {
		lookupTimeout = 2 * time.Second
	}
	return &ViewService{
		repo:          repo,
		products:      products,
		cache:         cache,
		lookupTimeout: lookupTimeout,
	}
}

// GetTransaction returns a single enriched transaction view.
func (s *ViewService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.TransactionView, error) {
	transaction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.ErrPersistenceFailure.WithErr(err)
	}
	view := s.toView(ctx, transaction)
	return &view, nil
}

// GetTransactionsByCustomer returns the customer's transactions, newest
// first. A customer with no transactions gets an empty list, not an error.
func (s *ViewService) GetTransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.TransactionView, error) {
	transactions, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, apperrors.ErrPersistenceFailure.WithErr(err)
	}
	return s.toViews(ctx, transactions), nil
}

// ListTransactions returns every stored transaction, newest first.
func (s *ViewService) ListTransactions(ctx context.Context) ([]models.TransactionView, error) {
	transactions, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.ErrPersistenceFailure.WithErr(err)
	}
	return s.toViews(ctx, transactions), nil
}

func (s *ViewService) toViews(ctx context.Context, transactions []models.Transaction) []models.TransactionView {
	views := make([]models.TransactionView, 0, len(transactions))
	for i := range transactions {
		views = append(views, s.toView(ctx, &transactions[i]))
	}
	return views
}

func (s *ViewService) toView(ctx context.Context, transaction *models.Transaction) models.TransactionView {
	items := make([]models.TransactionItemView, 0, len(transaction.Items))
	for _, item := range transaction.Items {
		items = append(items, models.TransactionItemView{
			ItemID:       item.ID,
			ProductID:    item.ProductID,
			ProductName:  s.productName(ctx, item.ProductID),
			Quantity:     item.Quantity,
			PricePerItem: item.PricePerItem,
		})
	}
	return models.TransactionView{
		ID:              transaction.ID,
		CustomerID:      transaction.CustomerID,
		TotalAmount:     transaction.TotalAmount,
		Status:          transaction.Status,
		TransactionDate: transaction.TransactionDate,
		Items:           items,
	}
}

// productName resolves the product's current name through the cache, then
// the inventory service under a short timeout. Any failure degrades to the
// sentinel instead of failing the read.
func (s *ViewService) productName(ctx context.Context, productID uuid.UUID) string {
	key := "product:name:" + productID.String()

	if s.cache != nil {
		if name, err := s.cache.Get(ctx, key).Result(); err == nil && name != "" {
			return name
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	product, err := s.products.GetProduct(lookupCtx, productID)
	if err != nil {
		logger.Log.Debug("Product name lookup failed",
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
		return UnknownProductName
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, product.Name, productNameCacheTTL).Err(); err != nil {
			logger.Log.Debug("Product name cache write failed", zap.Error(err))
		}
	}
	return product.Name
}
