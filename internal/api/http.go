package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPConfig configures an HTTPClient.  BaseURL is the API root; the
// collection lives at BaseURL + "/users".  A zero Timeout disables the
// transport timeout.  TLS, when set, is used for https endpoints.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	TLS     *tls.Config
	Logger  *zap.Logger
}

// HTTPClient implements Client against a JSON REST resource.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient validates the base URL and builds a client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", cfg.BaseURL)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.TLS != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg.TLS
		httpClient.Transport = transport
	}
	return &HTTPClient{
		endpoint:   base + "/users",
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *HTTPClient) List(ctx context.Context) ([]user.User, error) {
	body, err := c.do(ctx, "list", http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	users, err := user.ParseList(body)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	c.logger.Debug("listed users", zap.Int("count", len(users)))
	return users, nil
}

func (c *HTTPClient) Create(ctx context.Context, draft user.Draft) (user.User, error) {
	if draft.Skills == nil {
		draft.Skills = []string{}
	}
	body, err := c.do(ctx, "create", http.MethodPost, c.endpoint, draft)
	if err != nil {
		return user.User{}, err
	}
	u, err := user.Parse(body)
	if err != nil {
		return user.User{}, fmt.Errorf("create: %w", err)
	}
	return u, nil
}

func (c *HTTPClient) Update(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		return user.User{}, &TransportError{Op: "update", Err: errors.New("record has no id")}
	}
	body, err := c.do(ctx, "update", http.MethodPut, c.recordURL(u.ID), u)
	if err != nil {
		return user.User{}, err
	}
	updated, err := user.Parse(body)
	if err != nil {
		return user.User{}, fmt.Errorf("update: %w", err)
	}
	return updated, nil
}

// Delete confirms with the id it was asked to remove; the response body is
// not inspected.
func (c *HTTPClient) Delete(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", &TransportError{Op: "delete", Err: errors.New("empty id")}
	}
	if _, err := c.do(ctx, "delete", http.MethodDelete, c.recordURL(id), nil); err != nil {
		return "", err
	}
	return id, nil
}

func (c *HTTPClient) recordURL(id string) string {
	return c.endpoint + "/" + url.PathEscape(id)
}

// do performs one request and returns the body of a 2xx response.  Every
// failure is reported as a *TransportError.
func (c *HTTPClient) do(ctx context.Context, op, method, target string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debug("remote api call",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			// Drop a rune split by the cut.
			msg = strings.ToValidUTF8(msg[:maxErrorBody], "")
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	return body, nil
}
