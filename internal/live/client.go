// Package live holds the REST client used to mirror simulated fills to a
// real venue. The engine treats it as best effort: failures are logged and
// never affect the paper books.
package live

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"papertrade/internal/logger"
)

const (
	DefaultTestnetBase = "https://testnet-api-evm.orderly.org"
	DefaultMainnetBase = "https://api-evm.orderly.org"
)

// Config carries credentials and transport knobs for the live client.
type Config struct {
	APIKey     string
	APISecret  string
	BaseURL    string // overrides Testnet selection when set
	Testnet    bool
	Timeout    time.Duration // default 10s
	MaxRetries int           // default 2
	Backoff    time.Duration // default 500ms, doubles per attempt
}

// Client signs and sends private REST requests. Retries are bounded and
// only fire on 429/503/504 or transport errors.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client

	nowFn   func() time.Time
	sleepFn func(time.Duration)
	newIDFn func() string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		if cfg.Testnet {
			base = DefaultTestnetBase
		} else {
			base = DefaultMainnetBase
		}
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		logger.Warnf("live client instantiated without credentials, requests will fail until keys are set")
	}
	return &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		nowFn:   time.Now,
		sleepFn: time.Sleep,
		newIDFn: func() string { return uuid.NewString() },
	}
}

// sign computes the request signature over ts + METHOD + path + body.
func (c *Client) sign(method, path, body, ts string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(ts + strings.ToUpper(method) + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) headers(req *http.Request, method, path, body string) {
	ts := strconv.FormatInt(c.nowFn().UnixMilli(), 10)
	sig := ""
	if c.cfg.APISecret != "" {
		sig = c.sign(method, path, body, ts)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-API-TIMESTAMP", ts)
	req.Header.Set("X-API-SIGN", sig)
	req.Header.Set("Idempotency-Key", c.newIDFn())
}

func (c *Client) request(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	bodyStr := ""
	if body != nil {
		raw, err := json.Marshal(body) // map keys marshal sorted
		if err != nil {
			return nil, err
		}
		bodyStr = string(raw)
	}
	url := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bytes.NewReader([]byte(bodyStr)))
		if err != nil {
			return nil, err
		}
		c.headers(req, method, path, bodyStr)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			wait := c.cfg.Backoff * (1 << attempt)
			logger.Warnf("live %s %s failed: %v, retry in %s", method, path, err, wait)
			c.sleepFn(wait)
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 202:
			if readErr != nil {
				return nil, readErr
			}
			var out map[string]any
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &out); err != nil {
					return nil, fmt.Errorf("decode live response: %w", err)
				}
			}
			return out, nil
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			lastErr = fmt.Errorf("live %s %s returned %d", method, path, resp.StatusCode)
			wait := c.cfg.Backoff * (1 << attempt)
			logger.Warnf("%v, retry in %s", lastErr, wait)
			c.sleepFn(wait)
			continue
		default:
			return nil, fmt.Errorf("live %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
		}
	}
	return nil, fmt.Errorf("live %s %s failed after %d retries: %w", method, path, c.cfg.MaxRetries, lastErr)
}

// PlaceOrder submits a quote-notional market or limit order.
func (c *Client) PlaceOrder(ctx context.Context, symbol, side string, qtyQuote, price float64, clientOrderID string) (map[string]any, error) {
	body := map[string]any{
		"symbol":     symbol,
		"side":       side,
		"order_type": "market",
		"qty_quote":  qtyQuote,
	}
	if price > 0 {
		body["order_type"] = "limit"
		body["price"] = price
	}
	if clientOrderID != "" {
		body["client_order_id"] = clientOrderID
	}
	return c.request(ctx, http.MethodPost, "/v1/private/order/place", body)
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (map[string]any, error) {
	body := map[string]any{"symbol": symbol, "order_id": orderID}
	return c.request(ctx, http.MethodPost, "/v1/private/order/cancel", body)
}

func (c *Client) Position(ctx context.Context, symbol string) (map[string]any, error) {
	return c.request(ctx, http.MethodGet, "/v1/private/position?symbol="+symbol, nil)
}

func (c *Client) Account(ctx context.Context) (map[string]any, error) {
	return c.request(ctx, http.MethodGet, "/v1/private/account", nil)
}
