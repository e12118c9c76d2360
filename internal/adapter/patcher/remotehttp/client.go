// Package remotehttp is an HTTP client for an out-of-process patch
// collaborator. It sends the file's current content together with the
// suggestion text and receives the modified content and a unified diff.
package remotehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/reviewpatch/engine/internal/usecase/apply"
)

const (
	defaultTimeout = 60 * time.Second
	applyPath      = "/v1/apply"
)

// Client is an HTTP patch service client. It implements apply.Patcher.
type Client struct {
	baseURL     string
	timeout     time.Duration
	client      *http.Client
	logger      Logger
	retryConfig RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
		c.client.Timeout = timeout
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryConfig overrides the default retry behavior.
func WithRetryConfig(config RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = config
	}
}

// NewClient creates a patch service client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		timeout:     defaultTimeout,
		client:      &http.Client{Timeout: defaultTimeout},
		logger:      NopLogger{},
		retryConfig: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply sends the patch request to the service and returns its response.
func (c *Client) Apply(ctx context.Context, req apply.Request) (apply.Response, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return apply.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + applyPath
	start := time.Now()

	c.logger.LogRequest(ctx, RequestLog{
		Endpoint:     url,
		File:         req.FilePath,
		Timestamp:    start,
		ContentBytes: len(req.CurrentContent),
	})

	var resp *http.Response
	err = RetryWithBackoff(ctx, func(ctx context.Context) error {
		// Recreate the request for each attempt so the body is fresh.
		httpReq, reqErr := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if reqErr != nil {
			return &Error{Type: ErrTypeUnknown, Message: reqErr.Error()}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		var callErr error
		resp, callErr = c.client.Do(httpReq)
		if callErr != nil {
			return &Error{Type: ErrTypeTimeout, Message: callErr.Error()}
		}

		if resp.StatusCode >= 400 {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return classifyStatus(resp.StatusCode, errorMessage(bodyBytes))
		}

		return nil
	}, c.retryConfig)

	if err != nil {
		elog := ErrorLog{
			Endpoint:  url,
			File:      req.FilePath,
			Timestamp: time.Now(),
			Duration:  time.Since(start),
			Error:     err,
		}
		var svcErr *Error
		if errors.As(err, &svcErr) {
			elog.ErrorType = svcErr.Type
			elog.StatusCode = svcErr.StatusCode
			elog.Retryable = svcErr.Retryable
		}
		c.logger.LogError(ctx, elog)
		return apply.Response{}, fmt.Errorf("patch service request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return apply.Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var applyResp apply.Response
	if err := json.Unmarshal(bodyBytes, &applyResp); err != nil {
		return apply.Response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.LogResponse(ctx, ResponseLog{
		Endpoint:   url,
		File:       req.FilePath,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		StatusCode: resp.StatusCode,
		DiffBytes:  len(applyResp.Diff),
	})

	return applyResp, nil
}

// errorBody is the error envelope returned by the patch service.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// errorMessage extracts a message from an error response body,
// falling back to the raw body text.
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
