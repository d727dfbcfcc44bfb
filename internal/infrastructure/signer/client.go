// Package signer resolves storage identifiers into delivery URLs through the
// signing endpoint, bounding concurrency and retrying transient failures.
package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hszk-dev/vidshop/internal/domain/model"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

var (
	// ErrSigningRejected is returned when the signing endpoint answers with a non-2xx status.
	ErrSigningRejected = errors.New("signing endpoint rejected request")

	// ErrMalformedResponse is returned when the endpoint body is not a usable signed URL.
	ErrMalformedResponse = errors.New("malformed signing response")

	// ErrDeleteFailed is returned when the delete endpoint does not confirm deletion.
	ErrDeleteFailed = errors.New("delete endpoint did not confirm deletion")
)

// maxResponseBytes caps how much of an endpoint response is decoded.
const maxResponseBytes = 64 << 10

// ClientConfig holds configuration for the signing client.
type ClientConfig struct {
	// BaseURL is the origin serving /api/signed-url and /api/delete-file.
	BaseURL string
	// MaxAttempts is the number of signing attempts before falling back.
	MaxAttempts int
	// BaseBackoff is multiplied by the attempt number to get the delay before a retry.
	BaseBackoff time.Duration
	// AttemptTimeout bounds a single signing request.
	AttemptTimeout time.Duration
	// Fallback describes the direct URL used when signing is unavailable.
	Fallback FallbackConfig
}

// DefaultClientConfig returns a ClientConfig with the documented defaults.
func DefaultClientConfig(baseURL string, fallback FallbackConfig) ClientConfig {
	return ClientConfig{
		BaseURL:        baseURL,
		MaxAttempts:    3,
		BaseBackoff:    time.Second,
		AttemptTimeout: 5 * time.Second,
		Fallback:       fallback,
	}
}

// signedURLResponse mirrors the signing endpoint body.
type signedURLResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// deleteResponse mirrors the delete endpoint body.
type deleteResponse struct {
	Success bool `json:"success"`
}

// Client talks to the signing and delete endpoints.
// Every signing request runs under a Gate permit.
type Client struct {
	httpClient *http.Client
	gate       *Gate

	baseURL        string
	maxAttempts    int
	baseBackoff    time.Duration
	attemptTimeout time.Duration
	fallback       FallbackConfig

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new signing Client.
// A nil httpClient selects http.DefaultClient.
func NewClient(cfg ClientConfig, gate *Gate, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}

	return &Client{
		httpClient:     httpClient,
		gate:           gate,
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		maxAttempts:    cfg.MaxAttempts,
		baseBackoff:    cfg.BaseBackoff,
		attemptTimeout: cfg.AttemptTimeout,
		fallback:       cfg.Fallback,
		sleep:          sleepContext,
	}
}

// Resolve returns a delivery URL for identifier. It never fails: when every
// attempt is exhausted, or ctx ends first, it returns the fallback URL.
func (c *Client) Resolve(ctx context.Context, kind model.AssetKind, identifier string) model.SignedURL {
	key := model.ObjectKey(kind, identifier)

	if err := c.gate.Acquire(ctx); err != nil {
		slog.Warn("signing gate wait aborted, using fallback URL",
			"object_key", key,
			"error", err,
		)
		return c.fallbackResult(kind, identifier)
	}
	defer c.gate.Release()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, time.Duration(attempt-1)*c.baseBackoff); err != nil {
				lastErr = err
				break
			}
		}

		signed, err := c.requestSignedURL(ctx, key)
		if err == nil {
			return model.SignedURL{URL: signed}
		}

		lastErr = err
		slog.Warn("signing attempt failed",
			"object_key", key,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"error", err,
		)
	}

	slog.Warn("signing unavailable, using fallback URL",
		"object_key", key,
		"error", lastErr,
	)
	return c.fallbackResult(kind, identifier)
}

// requestSignedURL performs a single signing attempt bounded by attemptTimeout.
func (c *Client) requestSignedURL(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	endpoint := c.baseURL + "/api/signed-url/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build signing request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SigningAttemptsTotal.WithLabelValues(metrics.SigningTransportError).Inc()
		return "", fmt.Errorf("signing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.SigningAttemptsTotal.WithLabelValues(metrics.SigningHTTPError).Inc()
		return "", fmt.Errorf("%w: status %d", ErrSigningRejected, resp.StatusCode)
	}

	var body signedURLResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		metrics.SigningAttemptsTotal.WithLabelValues(metrics.SigningBadResponse).Inc()
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if !body.Success || !isAbsoluteURL(body.URL) {
		metrics.SigningAttemptsTotal.WithLabelValues(metrics.SigningBadResponse).Inc()
		return "", fmt.Errorf("%w: success=%t", ErrMalformedResponse, body.Success)
	}

	metrics.SigningAttemptsTotal.WithLabelValues(metrics.SigningSuccess).Inc()
	return body.URL, nil
}

// DeleteFile asks the delete endpoint to remove the object named by identifier.
// identifier must already be a full object key.
func (c *Client) DeleteFile(ctx context.Context, identifier string) error {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	endpoint := c.baseURL + "/api/delete-file/" + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrDeleteFailed, resp.StatusCode)
	}

	var body deleteResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if !body.Success {
		return ErrDeleteFailed
	}
	return nil
}

func (c *Client) fallbackResult(kind model.AssetKind, identifier string) model.SignedURL {
	return model.SignedURL{
		URL:      FallbackURL(c.fallback, kind, identifier),
		Fallback: true,
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
