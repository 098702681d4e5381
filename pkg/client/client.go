package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

// ErrCheckFailed is returned by Check when the remote prober runs fail-closed
// and could not determine liveness.
var ErrCheckFailed = errors.New("remote liveness check failed")

// Client provides HTTP client functionality to communicate with a botkeeper serve process
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	CACert   string       // PEM bundle used as the only trusted roots
	Insecure bool         // Skip TLS verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:9090",
		Timeout: 10 * time.Second,
	}
}

// New creates a new API client.
func New(config Config) (*Client, error) {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.CACert != "" || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}, nil
}

// IsReachable checks if the server is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Server unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	isReachable := resp.StatusCode != http.StatusNotFound
	c.logger.Debug("Server reachability check", "reachable", isReachable, "status", resp.StatusCode)
	return isReachable
}

// Status returns the last outcome. ok is false when no check has run yet.
func (c *Client) Status(ctx context.Context) (out Outcome, ok bool, err error) {
	code, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/status", &out)
	if err != nil {
		return Outcome{}, false, err
	}
	if code == http.StatusNoContent {
		return Outcome{}, false, nil
	}
	return out, true, nil
}

// Check asks the server to run a check now. Under fail-closed a failed
// probe returns the outcome together with ErrCheckFailed.
func (c *Client) Check(ctx context.Context) (CheckResult, error) {
	var res CheckResult
	code, err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/check", &res)
	if code == http.StatusServiceUnavailable {
		return res, fmt.Errorf("%w: %s", ErrCheckFailed, res.Error)
	}
	if err != nil {
		return CheckResult{}, err
	}
	return res, nil
}

// Processes lists the processes matching the server's filter, or q's overrides.
func (c *Client) Processes(ctx context.Context, q ProcessQuery) (ProcessList, error) {
	v := url.Values{}
	if q.User != nil {
		v.Set("user", *q.User)
	}
	if q.Match != "" {
		v.Set("match", q.Match)
	}
	u := c.baseURL + "/processes"
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	var list ProcessList
	if _, err := c.doJSON(ctx, http.MethodGet, u, &list); err != nil {
		return ProcessList{}, err
	}
	return list, nil
}

// doJSON performs the request and decodes a JSON body into out. Non-2xx
// responses are errors carrying the server's message; the status code is
// returned either way.
func (c *Client) doJSON(ctx context.Context, method, u string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("API request", "method", method, "url", u)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if resp.StatusCode/100 != 2 {
		// 503 from /check still carries an outcome
		if out != nil {
			_ = json.Unmarshal(body, out)
		}
		var er errorResp
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			return resp.StatusCode, fmt.Errorf("server error (%d): %s", resp.StatusCode, er.Error)
		}
		return resp.StatusCode, fmt.Errorf("server error (%d)", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if config.Insecure {
		// #nosec G402 -- opt-in for self-signed test deployments
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}
	if config.CACert != "" {
		caCert, err := os.ReadFile(config.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("no certificates found in CA file")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}
