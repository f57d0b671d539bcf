package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

// BackendClient talks to the external scraping backend. The gateway relays
// that backend's responses verbatim, so Scrape returns the raw status and
// body rather than a decoded struct.
type BackendClient struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	maxRetries  int
}

// NewBackendClient creates a client for the configured backend base URL.
func NewBackendClient(baseURL string, timeoutSecs, maxRetries int) *BackendClient {
	// One request per second with a small burst keeps the backend's own
	// scraping rate limits out of trouble when several sessions overlap.
	limiter := rate.NewLimiter(rate.Limit(1), 5)

	return &BackendClient{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		baseURL:     baseURL,
		rateLimiter: limiter,
		maxRetries:  maxRetries,
	}
}

// Scrape posts the search request to the backend's /api/scrape endpoint and
// returns its status code and JSON body unchanged. Transport failures and
// 5xx statuses are retried with backoff; 4xx responses are
// relayed on the first attempt.
func (c *BackendClient) Scrape(ctx context.Context, req *models.SearchRequest) (int, []byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal scrape request: %w", err)
	}

	endpoint := c.baseURL + "/api/scrape"

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", err)
		}

		status, respBody, err := c.post(ctx, endpoint, body)
		if err != nil {
			log.Printf("[backend] request error (attempt %d/%d): %v", attempt, c.maxRetries, err)
			lastErr = err
		} else if status >= http.StatusInternalServerError {
			log.Printf("[backend] status %d (attempt %d/%d)", status, attempt, c.maxRetries)
			lastErr = fmt.Errorf("backend returned status %d", status)
			if attempt == c.maxRetries {
				// Out of retries: relay the backend's own error verbatim.
				return status, respBody, nil
			}
		} else {
			return status, respBody, nil
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}
	}

	return 0, nil, lastErr
}

func (c *BackendClient) post(ctx context.Context, endpoint string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}
