package routes

import (
	"github.com/gin-gonic/gin"

	"transaction-service/controllers"
)

// RegisterTransactionRoutes wires the transaction endpoints onto the engine.
func RegisterTransactionRoutes(r *gin.Engine, tc *controllers.TransactionController) {
	r.GET("/health", tc.HealthCheck)

	api := r.Group("/api/transactions")
	{
		api.POST("", tc.CreateTransaction)
		api.GET("", tc.GetAllTransactions)
		api.GET("/:id", tc.GetTransactionByID)
		api.GET("/customer/:customerId", tc.GetTransactionsByCustomer)
		api.PUT("/:id/status", tc.UpdateTransactionStatus)
		api.PUT("/:id/cancel", tc.CancelTransaction)
		api.DELETE("/:id", tc.DeleteTransaction)
	}
}
