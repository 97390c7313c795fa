package plesk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/espitsyna/ext-security-advisor/internal/config"
	"github.com/espitsyna/ext-security-advisor/internal/invoker"
)

// APIClient is a Plesk REST API client. It implements CLI through the
// /cli/{command}/call gateway and DomainSource through /domains.
type APIClient struct {
	baseURL    string
	apiKey     string
	log        *zap.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewAPIClient creates a client for the configured panel. No request is made
// until the first call.
func NewAPIClient(cfg *config.Config, log *zap.Logger) (*APIClient, error) {
	if _, err := url.Parse(cfg.PanelAPIURL()); err != nil {
		return nil, fmt.Errorf("invalid panel API URL: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.Panel.VerifySSL, //nolint:gosec // G402: user-configurable option, defaults to VerifySSL=true
		},
	}

	limit := rate.Inf
	if cfg.Panel.RateLimit > 0 {
		limit = rate.Limit(cfg.Panel.RateLimit)
	}

	return &APIClient{
		baseURL: cfg.PanelAPIURL(),
		apiKey:  cfg.Panel.APIKey,
		log:     log,
		httpClient: &http.Client{
			Timeout:   time.Duration(cfg.Panel.Timeout) * time.Second,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter: rate.NewLimiter(limit, max(cfg.Panel.RateLimit, 1)),
	}, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	c.log.Debug("Calling Plesk API", zap.String("method", method), zap.String("path", path))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Server returns the panel's server information.
func (c *APIClient) Server(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.do(ctx, http.MethodGet, "/server", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Handshake checks that the API key is accepted and that the endpoint is a
// panel reporting its version.
func (c *APIClient) Handshake(ctx context.Context) (*ServerInfo, error) {
	info, err := c.Server(ctx)
	if err != nil {
		return nil, fmt.Errorf("panel API handshake failed: %w", err)
	}
	if info.PanelVersion == "" {
		return nil, fmt.Errorf("panel API handshake failed: %s did not report a panel version", c.baseURL)
	}
	c.log.Debug("Connected to panel API",
		zap.String("hostname", info.Hostname),
		zap.String("version", info.PanelVersion),
	)
	return info, nil
}

// Domains implements DomainSource.
func (c *APIClient) Domains(ctx context.Context) ([]Domain, error) {
	var domains []Domain
	if err := c.do(ctx, http.MethodGet, "/domains", nil, &domains); err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

// Call implements CLI via the REST gateway. Transport and HTTP errors are
// returned as errors; the utility's own exit code comes back in the Result.
func (c *APIClient) Call(ctx context.Context, command string, args ...string) (invoker.Result, error) {
	if strings.ContainsAny(command, "/?#") {
		return invoker.Result{}, fmt.Errorf("invalid command name %q", command)
	}
	if args == nil {
		args = []string{}
	}

	var resp cliResponse
	if err := c.do(ctx, http.MethodPost, "/cli/"+command+"/call", cliRequest{Params: args}, &resp); err != nil {
		return invoker.Result{}, fmt.Errorf("plesk bin %s: %w", command, err)
	}
	return invoker.Result{ExitCode: resp.Code, Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}
