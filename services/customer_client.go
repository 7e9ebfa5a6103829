package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"transaction-service/apperrors"
)

// Customer is the subset of the customer service's record the saga needs.
type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// CustomerAPI abstracts the customer collaborator for the orchestrator.
type CustomerAPI interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
}

// CustomerClient communicates with the customer service via HTTP
type CustomerClient struct {
	baseURL     string
	httpClient  httpDoer
	maxAttempts int
}

// NewCustomerClient creates a new CustomerClient
func NewCustomerClient(cfg CollaboratorConfig) *CustomerClient {
	cfg = cfg.withDefaults()
	return &CustomerClient{
		baseURL:     cfg.CustomerServiceURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		maxAttempts: cfg.MaxRetries,
	}
}

// GetCustomer fetches a customer by id. A 404 maps to CustomerNotFound;
// transient failures are retried before surfacing as an upstream error.
func (c *CustomerClient) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	url := fmt.Sprintf("%s/api/customers/%s", c.baseURL, id.String())

	resp, err := doWithRetry(c.httpClient, c.maxAttempts, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, apperrors.ErrUpstreamService.WithErr(fmt.Errorf("customer service request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.ErrCustomerNotFound.WithErr(fmt.Errorf("customer %s", id))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ErrUpstreamService.WithErr(fmt.Errorf("customer service returned %d", resp.StatusCode))
	}

	var customer Customer
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return nil, apperrors.ErrUpstreamService.WithErr(fmt.Errorf("decoding customer response: %w", err))
	}
	return &customer, nil
}
