package api

import (
	"bytes"
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

	"github.com/google/uuid"
	"github.com/mmcdole/trackr/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "trackr/0.1"
	baseRetryDelay   = 500 * time.Millisecond
	maxErrorBody     = 64 << 10
)

// Ensure Client implements domain.Repository at compile time.
var _ domain.Repository = (*Client)(nil)

// Options configure a Client
type Options struct {
	BaseURL    string
	Token      string        // Bearer token; empty sends no Authorization header
	UserAgent  string        // Defaults to trackr/<version>
	Timeout    time.Duration // Zero uses defaultTimeout
	MaxRetries int           // Retries for idempotent requests on 502/503/504; zero disables
	HTTPClient *http.Client  // Overrides Timeout when set
}

// Client talks to the Trackr REST API
type Client struct {
	baseURL    *url.URL
	token      string
	userAgent  string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		baseURL:    base,
		token:      opts.Token,
		userAgent:  userAgent,
		maxRetries: maxRetries,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// do performs an authenticated JSON request. body and dest may be nil.
// Idempotent requests are retried with exponential backoff on gateway errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	reqURL := c.resolve(path, query)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		requestID := uuid.NewString()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		c.logger.Debug("api request", "method", method, "url", reqURL, "requestID", requestID, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("api request failed", "error", err, "method", method, "path", path)
			return fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			apiErr := parseError(resp.StatusCode, path, data)

			if isRetryableStatus(resp.StatusCode) && attempt < retries {
				lastErr = apiErr
				c.logger.Warn("api gateway error, will retry",
					"status", resp.StatusCode,
					"attempt", attempt,
					"maxRetries", retries,
					"path", path,
				)
				continue
			}
			c.logger.Error("api request error", "status", resp.StatusCode, "path", path, "message", apiErr.Message, "requestID", requestID)
			return apiErr
		}

		err = decodeBody(resp.Body, dest)
		resp.Body.Close()
		return err
	}

	return lastErr
}

// resolve joins an escaped path onto the base URL, keeping any base path prefix
func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	if unescaped, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = unescaped
	} else {
		u.Path = u.RawPath
		u.RawPath = ""
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func decodeBody(r io.Reader, dest any) error {
	if dest == nil {
		_, _ = io.Copy(io.Discard, r)
		return nil
	}
	if err := json.NewDecoder(r).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse response: empty body")
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", raw, err)
	}
	// Keep any path prefix ("/api/v1"); endpoint paths are appended to it.
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
