package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"transaction-service/apperrors"
	"transaction-service/models"
	"transaction-service/services"
)

// TransactionServiceAPI defines the write-side operations the controller needs
type TransactionServiceAPI interface {
	CreateTransaction(ctx context.Context, req *models.CreateTransactionRequest) (*services.CreateTransactionResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	CancelAndRestock(ctx context.Context, id uuid.UUID) (*services.CancelResult, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
}

// ViewServiceAPI defines the read-side operations the controller needs
type ViewServiceAPI interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.TransactionView, error)
	GetTransactionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.TransactionView, error)
	ListTransactions(ctx context.Context) ([]models.TransactionView, error)
}

// TransactionController contains the HTTP handlers for the transaction surface
type TransactionController struct {
	service TransactionServiceAPI
	views   ViewServiceAPI
}

// NewTransactionController creates a new TransactionController
func NewTransactionController(service TransactionServiceAPI, views ViewServiceAPI) *TransactionController {
	return &TransactionController{service: service, views: views}
}

// CreateTransaction handles POST /api/transactions
func (tc *TransactionController) CreateTransaction(c *gin.Context) {
	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Customer ID and transaction items are required", "error": err.Error()})
		return
	}

	result, err := tc.service.CreateTransaction(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":        "Transaction created successfully",
		"transaction_id": result.TransactionID,
		"status":         result.Status,
		"total_amount":   result.TotalAmount,
	})
}

// GetTransactionByID handles GET /api/transactions/:id
func (tc *TransactionController) GetTransactionByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid transaction ID format"})
		return
	}

	view, err := tc.views.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetTransactionsByCustomer handles GET /api/transactions/customer/:customerId
func (tc *TransactionController) GetTransactionsByCustomer(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid customer ID format"})
		return
	}

	views, err := tc.views.GetTransactionsByCustomer(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetAllTransactions handles GET /api/transactions
func (tc *TransactionController) GetAllTransactions(c *gin.Context) {
	views, err := tc.views.ListTransactions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// UpdateTransactionStatus handles PUT /api/transactions/:id/status
func (tc *TransactionController) UpdateTransactionStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid transaction ID format"})
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status provided", "error": err.Error()})
		return
	}

	if err := tc.service.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction status updated successfully"})
}

// CancelTransaction handles PUT /api/transactions/:id/cancel — cancellation
// combined with explicit stock compensation.
func (tc *TransactionController) CancelTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid transaction ID format"})
		return
	}

	result, err := tc.service.CancelAndRestock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":              "Transaction cancelled",
		"items_restored":       result.ItemsRestored,
		"compensation_pending": result.CompensationPending,
	})
}

// DeleteTransaction handles DELETE /api/transactions/:id
func (tc *TransactionController) DeleteTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid transaction ID format"})
		return
	}

	if err := tc.service.DeleteTransaction(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

// HealthCheck handles GET /health
func (tc *TransactionController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "transaction-service",
	})
}

// respondError maps an application error to its HTTP response.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body := gin.H{"message": appErr.Message}
		if appErr.Err != nil {
			body["error"] = appErr.Err.Error()
		}
		if appErr.CompensationPending {
			body["compensation_pending"] = true
		}
		c.JSON(appErr.Code, body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}
