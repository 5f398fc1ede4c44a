package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"repoknow/internal/logging"
)

const (
	// MaxRetryDelay caps the exponential backoff between attempts.
	MaxRetryDelay = 30 * time.Second

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	maxBodySize       = 10 << 20
	userAgent         = "repoknow/1.0"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	HTTPClient *http.Client
	Logger     *logging.AppLogger
}

// Client is a JSON client for the knowledge base API. Server errors and
// transport failures are retried with exponential backoff; client errors
// fail immediately.
type Client struct {
	baseURL    *url.URL
	token      string
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *logging.AppLogger
}

// NewClient validates opts and returns a Client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("knowledge api base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid knowledge api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid knowledge api base url %q: scheme must be http or https", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	return &Client{
		baseURL:    base,
		token:      opts.Token,
		http:       httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     opts.Logger,
	}, nil
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, nil, body, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPut, endpoint, nil, body, out)
}

// Patch issues a PATCH with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, endpoint, nil, body, out)
}

// Delete issues a DELETE and decodes any response into out.
func (c *Client) Delete(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodDelete, endpoint, query, nil, out)
}

// Do performs a request with retries. out may be nil. Every failure is an
// *APIError; retryable failures that exhaust the attempts are reported as
// CategoryServiceUnavailable.
func (c *Client) Do(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	target := c.resolve(endpoint, query)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &APIError{Category: CategoryBadRequest, Method: method, Endpoint: endpoint,
				Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
	}

	attempts := 0
	operation := func() ([]byte, error) {
		attempts++
		data, err := c.roundTrip(ctx, method, endpoint, target, payload)
		if err == nil {
			return data, nil
		}
		var apiErr *APIError
		if ctx.Err() != nil || !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.MaxInterval = MaxRetryDelay
	policy.Multiplier = 2

	start := time.Now()
	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			if c.logger != nil {
				c.logger.Debug("Retrying knowledge api request",
					"method", method, "endpoint", endpoint, "attempt", attempts, "next", next, "error", err)
			}
		}),
	)
	if c.logger != nil {
		c.logger.Debug("Knowledge api request",
			"method", method, "endpoint", endpoint, "attempts", attempts, "duration", time.Since(start), "error", err)
	}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsRetryable() && ctx.Err() == nil {
			return &APIError{
				Status:   apiErr.Status,
				Category: CategoryServiceUnavailable,
				Method:   method,
				Endpoint: endpoint,
				Message:  fmt.Sprintf("gave up after %d attempts", attempts),
				Body:     apiErr.Body,
				Err:      apiErr,
			}
		}
		if apiErr == nil {
			return &APIError{Category: CategoryUnknown, Method: method, Endpoint: endpoint, Err: err}
		}
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Category: CategoryUnknown, Method: method, Endpoint: endpoint,
			Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// roundTrip performs one attempt.
func (c *Client) roundTrip(ctx context.Context, method, endpoint, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &APIError{Category: CategoryBadRequest, Method: method, Endpoint: endpoint,
			Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newTransportError(method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, newTransportError(method, endpoint, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return nil, newStatusError(method, endpoint, resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) resolve(endpoint string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
