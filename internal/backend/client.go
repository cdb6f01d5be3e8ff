package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dhan-trader/internal/errors"
	"dhan-trader/internal/logging"
	"dhan-trader/internal/models"
	"dhan-trader/pkg/utils"
)

// RequestIDHeader carries the client-generated correlation id.
const RequestIDHeader = "X-Request-ID"

// API is the backend surface used by the console.
type API interface {
	Status(ctx context.Context) (*Envelope, error)
	Funds(ctx context.Context) (*Envelope, error)
	Holdings(ctx context.Context) (*Envelope, error)
	Positions(ctx context.Context) (*Envelope, error)
	Orders(ctx context.Context) (*Envelope, error)
	SearchSymbols(ctx context.Context, query string, segment models.Segment) (*Envelope, error)
	ResolveSymbol(ctx context.Context, symbol string, segment models.Segment) (*Envelope, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*Envelope, error)
	CancelOrder(ctx context.Context, orderID string) (*Envelope, error)
	Alerts(ctx context.Context) (*Envelope, error)
}

// Config holds client settings.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient    *http.Client
}

// OrderRequest is an order submission as the backend accepts it.
type OrderRequest struct {
	Symbol     string
	SecurityID string
	Segment    models.Segment
	Side       models.OrderSide
	Quantity   int
	// Lots, when set, lets the backend compute the quantity from the lot
	// size of a derivative.
	Lots       int
	Type       models.OrderType
	Price      float64
	Product    models.ProductType
	Validity   models.Validity
	// RequestID is sent as X-Request-ID. A new one is generated when empty.
	RequestID  string
}

// Query encodes the request as the backend's query parameters.
func (r OrderRequest) Query() url.Values {
	q := url.Values{}
	q.Set("symbol", r.Symbol)
	if r.SecurityID != "" {
		q.Set("security_id", r.SecurityID)
	}
	q.Set("segment", string(r.Segment))
	q.Set("side", string(r.Side))
	q.Set("qty", strconv.Itoa(r.Quantity))
	if r.Lots > 0 {
		q.Set("lots", strconv.Itoa(r.Lots))
	}
	q.Set("order_type", string(r.Type))
	q.Set("price", strconv.FormatFloat(r.Price, 'f', -1, 64))
	q.Set("product_type", string(r.Product))
	q.Set("validity", string(r.Validity))
	return q
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "backend base url %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryAttempts + 1
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	retry.MaxDelay = 5 * time.Second
	retry.Retryable = isBareTransportError

	return &Client{
		baseURL: base,
		http:    httpClient,
		retry:   retry,
		logger:  logging.WithComponent(logger, "backend"),
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Status fetches backend health.
func (c *Client) Status(ctx context.Context) (*Envelope, error) {
	return c.get(ctx, "/status", nil)
}

// Funds fetches account funds.
func (c *Client) Funds(ctx context.Context) (*Envelope, error) {
	return c.get(ctx, "/funds", nil)
}

// Holdings fetches delivery holdings.
func (c *Client) Holdings(ctx context.Context) (*Envelope, error) {
	return c.get(ctx, "/holdings", nil)
}

// Positions fetches open positions.
func (c *Client) Positions(ctx context.Context) (*Envelope, error) {
	return c.get(ctx, "/positions", nil)
}

// Orders fetches the order book.
func (c *Client) Orders(ctx context.Context) (*Envelope, error) {
	return c.get(ctx, "/orders", nil)
}

// SearchSymbols queries the instrument master.
func (c *Client) SearchSymbols(ctx context.Context, query string, segment models.Segment) (*Envelope, error) {
	q := url.Values{}
	q.Set("query", query)
	if segment != "" {
		q.Set("segment", string(segment))
	}
	return c.get(ctx, "/symbol-search", q)
}

// ResolveSymbol looks up the security id of a symbol. A reply without a
// status field is accepted when it carries an instrument.
func (c *Client) ResolveSymbol(ctx context.Context, symbol string, segment models.Segment) (*Envelope, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	if segment != "" {
		q.Set("segment", string(segment))
	}
	op := "GET /resolve-symbol"
	env, err := c.fetch(ctx, http.MethodGet, "/resolve-symbol", q, nil)
	if err != nil {
		return env, err
	}
	if env.Status() == "" && env.String("$.inst.securityId", "$.inst.security_id", "$.securityId") != "" {
		return env, nil
	}
	return env, check(op, env)
}

// PlaceOrder submits an order. It is never retried.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*Envelope, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	header := http.Header{}
	header.Set(RequestIDHeader, req.RequestID)

	env, err := c.fetch(ctx, http.MethodPost, "/order/place", req.Query(), header)
	if env != nil && env.HeaderRequestID == "" {
		env.HeaderRequestID = req.RequestID
	}
	if err != nil {
		return env, err
	}
	return env, check("POST /order/place", env)
}

// CancelOrder cancels an open order. It is never retried.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*Envelope, error) {
	q := url.Values{}
	q.Set("order_id", orderID)
	header := http.Header{}
	header.Set(RequestIDHeader, uuid.NewString())

	env, err := c.fetch(ctx, http.MethodPost, "/order/cancel", q, header)
	if err != nil {
		return env, err
	}
	return env, check("POST /order/cancel", env)
}

// Alerts fetches the recent webhook alerts.
func (c *Client) Alerts(ctx context.Context) (*Envelope, error) {
	return c.get(ctx, "/webhook/alerts", nil)
}

// get performs an idempotent request, retrying bare transport failures.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*Envelope, error) {
	env, err := utils.RetryWithResult(ctx, c.retry, func() (*Envelope, error) {
		return c.fetch(ctx, http.MethodGet, path, query, nil)
	})
	if err != nil {
		return env, err
	}
	return env, check("GET "+path, env)
}

// check turns an unusable status into a BackendError.
func check(op string, env *Envelope) error {
	if env.OK() {
		return nil
	}
	status := env.Status()
	if status == "" {
		status = "missing status"
	}
	return errors.NewBackendError(op, status, env.Message(), env.RequestID())
}

// fetch performs one HTTP exchange. Non-2xx replies are TransportErrors
// that still return the decoded envelope when the body was JSON.
func (c *Client) fetch(ctx context.Context, method, path string, query url.Values, header http.Header) (*Envelope, error) {
	op := method + " " + path
	start := time.Now()

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, errors.NewTransportError(op, 0, nil, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		terr := errors.NewTransportError(op, 0, nil, err)
		logging.LogAPICall(c.logger, method, path, time.Since(start), terr)
		return nil, terr
	}
	defer resp.Body.Close()

	env, decodeErr := decodeEnvelope(resp.Body)
	if env != nil {
		env.StatusCode = resp.StatusCode
		env.HeaderRequestID = resp.Header.Get(RequestIDHeader)
	}

	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var payload map[string]any
		if env != nil {
			payload = env.Body
		}
		err = errors.NewTransportError(op, resp.StatusCode, payload, fmt.Errorf("unexpected status %s", resp.Status))
	case decodeErr != nil:
		err = errors.NewTransportError(op, resp.StatusCode, nil, decodeErr)
	}

	logging.LogAPICall(c.logger, method, path, time.Since(start), err)
	return env, err
}

func decodeEnvelope(r io.Reader) (*Envelope, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return NewEnvelope(body), nil
}

func isBareTransportError(err error) bool {
	var terr *errors.TransportError
	if !errors.As(err, &terr) {
		return false
	}
	return !terr.HasPayload() && terr.StatusCode == 0
}
