package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"transaction-service/apperrors"
)

// Product is the inventory authority's view of a product.
type Product struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price float64   `json:"price"`
	Stock int       `json:"stock"`
}

// ProductAPI abstracts the inventory collaborator. UpdateStock is the
// conditional write primitive: the inventory side applies the new stock
// value only while its current stock still equals expectedStock, so a
// check-and-decrement issued through it is atomic.
type ProductAPI interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedStock int) error
}

type stockUpdateRequest struct {
	Stock         int `json:"stock"`
	ExpectedStock int `json:"expected_stock"`
}

// ProductClient communicates with the inventory service via HTTP
type ProductClient struct {
	baseURL     string
	httpClient  httpDoer
	maxAttempts int
}

// NewProductClient creates a new ProductClient
func NewProductClient(cfg CollaboratorConfig) *ProductClient {
	cfg = cfg.withDefaults()
	return &ProductClient{
		baseURL:     cfg.ProductServiceURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		maxAttempts: cfg.MaxRetries,
	}
}

// GetProduct fetches the current name, price and stock for a product.
func (c *ProductClient) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	url := fmt.Sprintf("%s/api/products/%s", c.baseURL, id.String())

	resp, err := doWithRetry(c.httpClient, c.maxAttempts, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, apperrors.ErrUpstreamService.WithErr(fmt.Errorf("inventory service request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.ErrProductNotFound.WithErr(fmt.Errorf("product %s", id))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ErrUpstreamService.WithErr(fmt.Errorf("inventory service returned %d", resp.StatusCode))
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, apperrors.ErrUpstreamService.WithErr(fmt.Errorf("decoding product response: %w", err))
	}
	return &product, nil
}

// UpdateStock issues the guarded stock write. The guard makes the write
// safe to reissue: a retried request either applies once or conflicts.
func (c *ProductClient) UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedStock int) error {
	payload, err := json.Marshal(stockUpdateRequest{Stock: newStock, ExpectedStock: expectedStock})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/products/%s", c.baseURL, id.String())
	resp, err := doWithRetry(c.httpClient, c.maxAttempts, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return apperrors.ErrUpstreamService.WithErr(fmt.Errorf("inventory stock update failed: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return apperrors.ErrProductNotFound.WithErr(fmt.Errorf("product %s", id))
	case http.StatusConflict, http.StatusPreconditionFailed:
		return apperrors.ErrReservationConflict.WithErr(fmt.Errorf("product %s: expected stock %d", id, expectedStock))
	default:
		return apperrors.ErrUpstreamService.WithErr(fmt.Errorf("inventory service returned %d", resp.StatusCode))
	}
}
