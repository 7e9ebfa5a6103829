package services

import (
	"fmt"
	"net/http"
	"time"
)

// CollaboratorConfig carries the service addresses and call policy injected
// into the collaborator clients at construction.
type CollaboratorConfig struct {
	CustomerServiceURL string
	ProductServiceURL  string
	RequestTimeout     time.Duration
	MaxRetries         int
}

func (c CollaboratorConfig) withDefaults() CollaboratorConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// httpDoer is the subset of http.Client the clients need; tests swap it out.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// retryBackoff returns the delay before retry number attempt (0-based).
func retryBackoff(attempt int) time.Duration {
	d := 100 * time.Millisecond << attempt
	if d > time.Second {
		d = time.Second
	}
	return d
}

// doWithRetry performs up to maxAttempts requests, rebuilding the request
// for each attempt. Network errors and 5xx responses are transient and
// retried with exponential backoff; any other response is returned to the
// caller for classification.
func doWithRetry(client httpDoer, maxAttempts int, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(retryBackoff(attempt - 1)):
			}
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("collaborator returned %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}
