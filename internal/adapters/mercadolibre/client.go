package mercadolibre

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/logging"
)

type Client struct {
	config     config.MercadoLibreConfig
	httpClient *http.Client
	tokens     *TokenSource
	logger     logging.LoggerService

	detailPolicy RetryPolicy
	updatePolicy RetryPolicy
	sleep        func(ctx context.Context, delay time.Duration) error
}

type Option func(*Client)

func WithDetailPolicy(policy RetryPolicy) Option {
	return func(c *Client) { c.detailPolicy = policy }
}

func WithUpdatePolicy(policy RetryPolicy) Option {
	return func(c *Client) { c.updatePolicy = policy }
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(sleep func(ctx context.Context, delay time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

func NewClient(config config.MercadoLibreConfig, httpClient *http.Client, tokens *TokenSource, logger logging.LoggerService, opts ...Option) *Client {
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if tokens == nil {
		tokens = NewTokenSource(config, httpClient)
	}
	if config.PageSize <= 0 {
		config.PageSize = 50
	}
	c := &Client{
		config:       config,
		httpClient:   httpClient,
		tokens:       tokens,
		logger:       logger,
		detailPolicy: DetailPolicy(3, 2*time.Second),
		updatePolicy: UpdatePolicy(3),
		sleep:        sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(strings.TrimSpace(c.config.BaseUrl), "/") + path
}

// apiRequest sends one logical call, retrying per policy. A 401 triggers a
// single token refresh that does not count as an attempt.
func (c *Client) apiRequest(ctx context.Context, method, path string, body any, policy RetryPolicy) ([]byte, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	maxAttempts := policy.attempts()
	refreshed := false
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		statusCode, respBody, err := c.send(ctx, method, path, bodyBytes)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts-1 && policy.TransientDelay != nil && isTransientError(ctx, err) {
				c.logWarning(fmt.Sprintf("mercadolibre %s %s transient error, retrying attempt=%d: %v", method, path, attempt+1, err))
				if err := c.sleep(ctx, policy.TransientDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		switch {
		case statusCode >= 200 && statusCode < 300:
			return respBody, nil
		case statusCode == http.StatusUnauthorized && !refreshed && c.tokens.CanRefresh():
			refreshed = true
			if err := c.tokens.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("%w: token refresh: %v", ErrUnauthorized, err)
			}
			c.logInfo("mercadolibre access token refreshed")
			attempt--
			continue
		case statusCode == http.StatusTooManyRequests && attempt < maxAttempts-1 && policy.RateLimitDelay != nil:
			delay := policy.RateLimitDelay(attempt)
			c.logWarning(fmt.Sprintf("mercadolibre %s %s rate limited, waiting %s", method, path, delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			lastErr = newStatusError(statusCode, statusLine(statusCode), respBody)
			continue
		}

		return nil, newStatusError(statusCode, statusLine(statusCode), respBody)
	}

	if lastErr == nil {
		lastErr = errors.New("mercadolibre request retries exhausted")
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, path string, bodyBytes []byte) (int, []byte, error) {
	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.tokens.Token())
	req.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func statusLine(statusCode int) string {
	return fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode))
}

func (c *Client) logInfo(message string) {
	if c == nil || c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.Log(message)
}

func (c *Client) logWarning(message string) {
	if c == nil || c.logger == nil || strings.TrimSpace(message) == "" {
		return
	}
	c.logger.LogWarning(message)
}

func (c *Client) logError(message string, err error) {
	if c == nil || c.logger == nil || err == nil {
		return
	}
	c.logger.LogError(message, err)
}
