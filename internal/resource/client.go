package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/vbonduro/shelfinv/internal/metrics"
	"github.com/vbonduro/shelfinv/internal/resource/staticfs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// staticBase is the URL prefix used when resources are read from files.
const staticBase = "static://data"

// ErrNetwork marks every failure to obtain a successful response: transport
// errors, non-2xx statuses and undecodable bodies.
var ErrNetwork = errors.New("network failure")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrNetwork }

// Endpoint selects where resources live. With BaseURL set, a resource maps to
// BaseURL/<resource>[/<id>]; otherwise to StaticDir/<resource>.json.
type Endpoint struct {
	BaseURL   string
	StaticDir string
}

// Client performs JSON requests against a collection server. It never
// retries and applies no timeout of its own; callers bound requests with ctx.
type Client struct {
	baseURL string
	static  bool
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewClient(ep Endpoint, logger *slog.Logger, m *metrics.Metrics) *Client {
	if ep.BaseURL == "" {
		return &Client{
			baseURL: staticBase,
			static:  true,
			client:  &http.Client{Transport: staticfs.New(ep.StaticDir)},
			logger:  logger,
			metrics: m,
		}
	}
	return &Client{
		baseURL: strings.TrimRight(ep.BaseURL, "/"),
		client:  &http.Client{},
		logger:  logger,
		metrics: m,
	}
}

// Static reports whether the client reads from local files.
func (c *Client) Static() bool {
	return c.static
}

// URL builds the endpoint for path ("inventory", "inventory/7") with an
// optional query.
func (c *Client) URL(path string, query url.Values) string {
	path = strings.Trim(path, "/")
	u := c.baseURL + "/" + path
	if c.static {
		u += ".json"
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// GetList fetches path and decodes it as a list of T. A single JSON object is
// returned as a one-element list.
func GetList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var raw jsoniter.RawMessage
	if err := c.Get(ctx, path, query, &raw); err != nil {
		return nil, err
	}
	list, err := decodeList[T](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w: %w", path, ErrNetwork, err)
	}
	return list, nil
}

func decodeList[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		if list == nil {
			list = []T{}
		}
		return list, nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resource := resourceName(path)
	u := c.URL(path, query)

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.Request(resource, method, "error")
		return fmt.Errorf("failed to call %s %s: %w: %w", method, u, ErrNetwork, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "url", u, "error", err)
		}
	}()

	c.logger.Debug("resource request", "method", method, "url", u, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.Request(resource, method, "status")
		return &StatusError{Method: method, URL: u, StatusCode: resp.StatusCode}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			c.metrics.Request(resource, method, "decode")
			return fmt.Errorf("failed to decode response from %s: %w: %w", u, ErrNetwork, err)
		}
	}

	c.metrics.Request(resource, method, "ok")
	return nil
}

func resourceName(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
