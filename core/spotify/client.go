// Package spotify implements the external metadata-source importer:
// credential exchange, request quota enforcement, retry, and the
// normalization of raw provider records into catalog tracks.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cratefm/logger"
	"cratefm/model"
)

// tokenExpiryBuffer refreshes the bearer token slightly before the
// provider-reported expiry to avoid racing the deadline mid-request.
const tokenExpiryBuffer = 5 * time.Minute

// ClientConfig configures a metadata-source client.
type ClientConfig struct {
	APIURL       string
	AuthURL      string
	ClientID     string
	ClientSecret string
	RateLimit    float64 // requests per second, <= 0 disables throttling
	MaxRetries   int
	RetryDelay   time.Duration
}

// Client talks to the Spotify Web API under a request quota. The
// request counter, last-request timestamp and cached token are the only
// shared mutable state; both are guarded by mu so concurrent callers
// cannot race past the quota check.
type Client struct {
	config     ClientConfig
	httpClient *http.Client

	mu           sync.Mutex
	requestCount int
	lastRequest  time.Time
	token        string
	tokenExpiry  time.Time
}

// APIError is a non-2xx response from the provider. 4xx responses are
// semantic failures and are not retried; 5xx responses are treated as
// transient.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the error is worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// NewClient validates the configuration and returns a source handle
// with the request counter at zero.
func NewClient(config ClientConfig) (*Client, error) {
	if config.APIURL == "" {
		return nil, fmt.Errorf("spotify: API base URL is required")
	}
	if _, err := url.ParseRequestURI(config.APIURL); err != nil {
		return nil, fmt.Errorf("spotify: invalid API base URL %q: %w", config.APIURL, err)
	}
	if config.AuthURL == "" {
		config.AuthURL = config.APIURL + "/token"
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// RequestCount returns the number of requests issued since creation or
// the last reset.
func (c *Client) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

// ResetRequestCount zeroes the rolling request counter.
func (c *Client) ResetRequestCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
}

// throttle performs the compare-and-delay quota check. A request over
// the ceiling is delayed, not dropped. The mutex is held for the whole
// wait so concurrent callers serialize through the quota.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.RateLimit > 0 {
		minInterval := time.Duration(float64(time.Second) / c.config.RateLimit)
		if wait := minInterval - time.Since(c.lastRequest); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	c.requestCount++
	c.lastRequest = time.Now()
	return nil
}

// ensureToken refreshes the bearer token when it is absent or within
// the expiry buffer, via the client-credentials exchange.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiry := c.token, c.tokenExpiry
	c.mu.Unlock()

	if token != "" && time.Until(expiry) > tokenExpiryBuffer {
		return token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.config.ClientID + ":" + c.config.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp model.SpotifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned an empty token")
	}

	c.mu.Lock()
	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	c.mu.Unlock()

	logger.Debug("Refreshed metadata-source token",
		logger.Int("expiresIn", tokenResp.ExpiresIn))

	return tokenResp.AccessToken, nil
}

// get issues an authenticated GET under the quota with retry. 4xx
// responses surface immediately as *APIError; network errors and
// transient statuses are retried up to MaxRetries.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.config.APIURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.config.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			logger.Warn("Retrying metadata-source request",
				logger.String("path", path),
				logger.Int("attempt", attempt),
				logger.ErrorField(lastErr))
		}

		body, err := c.doGet(ctx, fullURL)
		if err == nil {
			return body, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", path, c.config.MaxRetries+1, lastErr)
}

func (c *Client) doGet(ctx context.Context, fullURL string) ([]byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
