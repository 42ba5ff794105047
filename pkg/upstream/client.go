// Package upstream provides the typed HTTP client for the MapleStory
// OpenAPI. It injects the API key, maps transport and HTTP failures onto the
// error taxonomy, and leaves retries to the caller so the rate limit
// accounting stays exact.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/cubelab/maple-proxy/pkg/apierr"
	"github.com/cubelab/maple-proxy/pkg/logging"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maple_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maple_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maple_upstream_errors_total",
		Help: "Total upstream errors by kind",
	}, []string{"kind"})
)

// Config holds the upstream client configuration.
type Config struct {
	// BaseURL of the MapleStory OpenAPI.
	BaseURL string

	// APIKey sent as x-nxopen-api-key on every request.
	APIKey string

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// RequestTimeout bounds the whole request including body read.
	RequestTimeout time.Duration

	// EndpointOverrides replaces single entries of the endpoint table.
	EndpointOverrides map[string]string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Client performs typed GETs against the upstream API.
type Client struct {
	httpClient *http.Client
	endpoints  map[string]string
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// New creates an upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("upstream API key is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		endpoints: Endpoints(cfg.EndpointOverrides),
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		logger:    logging.NewLogger("upstream"),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Fetch performs a GET against the endpoint identified by key with the given
// query parameters and returns the raw JSON body. All failures map onto the
// error taxonomy; successful bodies are returned unparsed beyond a JSON
// well-formedness check.
func (c *Client) Fetch(ctx context.Context, endpointKey string, params map[string]string) (json.RawMessage, error) {
	path, ok := c.endpoints[endpointKey]
	if !ok {
		return nil, apierr.New(apierr.KindUnknown, "").
			WithDetail(fmt.Sprintf("no endpoint configured for %q", endpointKey))
	}

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpointKey).Observe(time.Since(startTime).Seconds())
	}()

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	requestURL := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUnknown, "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-nxopen-api-key", c.apiKey)

	c.logger.Debug().
		Str("endpoint", endpointKey).
		Str("url", requestURL).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		mapped := c.mapTransportError(err)
		upstreamErrorsTotal.WithLabelValues(string(apierr.KindOf(mapped))).Inc()
		upstreamRequestsTotal.WithLabelValues(endpointKey, "transport_error").Inc()
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpointKey).
			Str("kind", string(apierr.KindOf(mapped))).
			Msg("Upstream request failed")
		return nil, mapped
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(endpointKey, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUnreachable, "", err).
			WithDetail("reading upstream response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		mapped := mapStatus(resp.StatusCode, body)
		upstreamErrorsTotal.WithLabelValues(string(apierr.KindOf(mapped))).Inc()
		c.logger.Warn().
			Str("endpoint", endpointKey).
			Int("status", resp.StatusCode).
			Str("kind", string(apierr.KindOf(mapped))).
			Msg("Upstream returned an error status")
		return nil, mapped
	}

	if !json.Valid(body) {
		return nil, apierr.New(apierr.KindUpstreamBadPayload, "").
			WithDetail("response body is not valid JSON")
	}
	return json.RawMessage(body), nil
}

// mapTransportError classifies connection-level failures.
func (c *Client) mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.Wrap(apierr.KindTimeout, "", err)
	}
	if errors.Is(err, context.Canceled) {
		return apierr.Wrap(apierr.KindUnknown, "request cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierr.Wrap(apierr.KindTimeout, "", err)
	}

	// Connection refusal, DNS failure, TLS problems: the upstream is
	// unreachable as far as the caller is concerned.
	return apierr.Wrap(apierr.KindUnreachable, "", err)
}

// upstreamErrorBody is the error shape the OpenAPI returns on non-2xx.
type upstreamErrorBody struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapStatus maps a non-2xx status to the taxonomy, attaching the upstream's
// own error message as detail when present.
func mapStatus(status int, body []byte) error {
	var kind apierr.Kind
	switch {
	case status == http.StatusTooManyRequests:
		kind = apierr.KindRateLimited
	case status == http.StatusNotFound:
		kind = apierr.KindNotFound
	case status == http.StatusUnauthorized:
		kind = apierr.KindUnauthenticated
	case status == http.StatusForbidden:
		kind = apierr.KindForbidden
	case status == http.StatusBadRequest:
		kind = apierr.KindBadParameter
	case status >= 500:
		kind = apierr.KindUpstreamServerError
	default:
		kind = apierr.KindUnknown
	}

	e := apierr.New(kind, "")

	var parsed upstreamErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		detail := parsed.Error.Message
		if parsed.Error.Name != "" {
			detail = parsed.Error.Name + ": " + detail
		}
		e = e.WithDetail(detail)
	}
	return e
}
