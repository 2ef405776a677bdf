package connectors

// REST API CLIENT FOR BINANCE USDT-M FUTURES
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// -----------------------------
// CONFIG
// -----------------------------
const (
	defaultBaseURL          = "https://fapi.binance.com"
	defaultTestnetBaseURL   = "https://testnet.binancefuture.com"
	defaultWSBaseURL        = "wss://fstream.binance.com"
	defaultTestnetWSBaseURL = "wss://stream.binancefuture.com"

	// Default retry configuration
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// -----------------------------
// ERRORS
// -----------------------------

// APIError is a rejection reported by the exchange itself, as opposed to a
// transport-level failure.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d (%s): %s", e.Code, GetErrorMsg(e.Code), e.Msg)
}

// IsUnknownOrder reports whether err is the exchange telling us the order no
// longer exists (already filled or already cancelled). Callers doing
// best-effort cancellation treat this as success.
func IsUnknownOrder(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeUnknownOrder
}

// ErrSymbolNotFound is returned when exchange info does not list the symbol.
var ErrSymbolNotFound = errors.New("symbol not found in exchange info")

// -----------------------------
// A) AUTHENTICATED CLIENT
// -----------------------------
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	recvWindow int64
	http       *resty.Client
	now        func() time.Time
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewClient(cfg Config) *Client {
	retryCount := defaultRetryAttempts - 1

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTestnetBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    baseURL,
		recvWindow: cfg.RecvWindow,
		http:       httpClient,
		now:        time.Now,
	}
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeAPIError(resp *resty.Response) error {
	var apiErr APIError
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
}

// signedRequest sends a request to a USER_DATA/TRADE endpoint. All parameters
// travel in the query string, signed with HMAC-SHA256 over that string.
func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
	}

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(query).
		Execute(method, path)
	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

// keyedRequest sends a request that needs the API key header but no signature
// (the listen-key endpoints).
func (c *Client) keyedRequest(ctx context.Context, method, path string, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		Execute(method, path)
	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

// publicRequest hits an unauthenticated market-data endpoint.
func (c *Client) publicRequest(ctx context.Context, path string, params url.Values, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryString(params.Encode())
	}

	resp, err := req.Get(path)
	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return decodeAPIError(resp)
	}
	return json.Unmarshal(resp.Body(), out)
}

// -----------------------------
// B) TRADING METHODS
// -----------------------------

type OrderRequest struct {
	Symbol        string
	Side          string // BUY | SELL
	Type          string // MARKET | LIMIT | STOP | STOP_MARKET
	Quantity      string
	Price         string // LIMIT / STOP only
	StopPrice     string // STOP / STOP_MARKET only
	TimeInForce   string // GTC for resting orders
	ReduceOnly    bool
	ClientOrderID string
}

type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	AvgPrice      string `json:"avgPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
}

func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", req.Type)
	params.Set("quantity", req.Quantity)
	if req.Price != "" {
		params.Set("price", req.Price)
	}
	if req.StopPrice != "" {
		params.Set("stopPrice", req.StopPrice)
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	var out OrderResponse
	if err := c.signedRequest(ctx, "POST", "/fapi/v1/order", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	return c.signedRequest(ctx, "DELETE", "/fapi/v1/order", params, nil)
}

// -----------------------------
// C) MARKET DATA
// -----------------------------

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
	} `json:"symbols"`
}

// SymbolPrecision fetches price and quantity precision from exchange info.
func (c *Client) SymbolPrecision(ctx context.Context, symbol string) (int, int, error) {
	var info exchangeInfoResponse
	if err := c.publicRequest(ctx, "/fapi/v1/exchangeInfo", nil, &info); err != nil {
		return 0, 0, err
	}

	for _, s := range info.Symbols {
		if s.Symbol == symbol {
			return s.PricePrecision, s.QuantityPrecision, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
}

func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.publicRequest(ctx, "/fapi/v1/ticker/price", params, &out); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil || price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("invalid ticker price for %s: %q", symbol, out.Price)
	}
	return price, nil
}

// -----------------------------
// D) USER DATA STREAM KEYS
// -----------------------------

// CreateListenKey obtains a fresh user-data stream key. The exchange keeps the
// key valid for 60 minutes; KeepAliveListenKey extends it.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := c.keyedRequest(ctx, "POST", "/fapi/v1/listenKey", &out); err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", errors.New("exchange returned an empty listen key")
	}
	return out.ListenKey, nil
}

func (c *Client) KeepAliveListenKey(ctx context.Context) error {
	return c.keyedRequest(ctx, "PUT", "/fapi/v1/listenKey", nil)
}

func (c *Client) CloseListenKey(ctx context.Context) error {
	return c.keyedRequest(ctx, "DELETE", "/fapi/v1/listenKey", nil)
}
