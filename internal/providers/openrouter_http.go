package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// doRequest makes an HTTP request to OpenRouter with retry logic for
// transient failures. Exhaustion and non-retryable statuses surface as
// *TransportError.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, orReq *openRouterRequest) (*openRouterResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{Provider: OpenRouterName, Err: err}
		}

		// Inject a nonce on retries after 413/422 so caching layers see a
		// different request.
		if attempt > 0 && lastErr != nil {
			c.injectNonce(orReq, attempt)
		}

		bodyBytes, err := json.Marshal(orReq)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/distill")
		req.Header.Set("X-Title", "Distill")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = &TransportError{Provider: OpenRouterName, Err: err}
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &TransportError{Provider: OpenRouterName, Err: fmt.Errorf("failed to read response: %w", err)}
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if c.shouldRetry(resp.StatusCode) {
			lastErr = &TransportError{
				Provider: OpenRouterName,
				Status:   resp.StatusCode,
				Err:      fmt.Errorf("%s", truncateBody(respBody)),
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				c.limiter.Record429(c.retryDelay)
			}
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &TransportError{
				Provider: OpenRouterName,
				Status:   resp.StatusCode,
				Err:      fmt.Errorf("%s", truncateBody(respBody)),
			}
		}

		var orResp openRouterResponse
		if err := json.Unmarshal(respBody, &orResp); err != nil {
			return nil, &TransportError{
				Provider: OpenRouterName,
				Err:      fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}

		// OpenRouter can return 200 with an API-level error in the body.
		if orResp.Error != nil {
			lastErr = &TransportError{
				Provider: OpenRouterName,
				Err:      fmt.Errorf("API error %v: %s", orResp.Error.Code, orResp.Error.Message),
			}
			c.sleepWithJitter(ctx, attempt)
			continue
		}

		return &orResp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &TransportError{
		Provider: OpenRouterName,
		Err:      fmt.Errorf("max retries (%d) exceeded", c.maxRetries),
	}
}

// shouldRetry returns true for status codes worth retrying within one call.
func (c *OpenRouterClient) shouldRetry(statusCode int) bool {
	switch statusCode {
	case 413, 422: // retried with nonce (often cache/format issues)
		return true
	case 429:
		return true
	case 520, 521, 522, 523, 524: // Cloudflare
		return true
	default:
		return statusCode >= 500
	}
}

// injectNonce makes the retried request byte-distinct for upstream caches.
func (c *OpenRouterClient) injectNonce(orReq *openRouterRequest, attempt int) {
	if len(orReq.Messages) == 0 {
		return
	}
	nonce := fmt.Sprintf("\n<!-- retry %d %s -->", attempt, uuid.New().String()[:8])
	last := &orReq.Messages[len(orReq.Messages)-1]
	if text, ok := last.Content.(string); ok {
		last.Content = text + nonce
	}
}

// sleepWithJitter waits with exponential backoff plus jitter, honoring ctx.
func (c *OpenRouterClient) sleepWithJitter(ctx context.Context, attempt int) {
	backoff := c.retryDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int63n(int64(c.retryDelay)))
	select {
	case <-ctx.Done():
	case <-time.After(backoff + jitter):
	}
}

func truncateBody(body []byte) string {
	const maxLen = 2048
	if len(body) > maxLen {
		return string(body[:maxLen]) + "...[truncated]"
	}
	return string(body)
}
