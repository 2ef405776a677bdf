package connectors

// Test index:
//  1. TestIsRetryableResp verifies retry decisions for various response codes and errors.
//  2. TestSign validates HMAC signature generation against a known digest.
//  3. TestPlaceOrder checks request wiring, auth header, and response decoding.
//  4. TestPlaceOrderRejection decodes an exchange rejection into an APIError.
//  5. TestCancelOrderUnknownOrder maps code -2011 so IsUnknownOrder matches.
//  6. TestSymbolPrecision covers exchange info lookup and the missing-symbol error.
//  7. TestTickerPrice covers price decoding and malformed payload rejection.
//  8. TestListenKeyLifecycle exercises create, keepalive, and close endpoints.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

type assertError struct{}

func (assertError) Error() string { return "assert error" }

func fakeResponse(code int) *resty.Response {
	return &resty.Response{RawResponse: &http.Response{StatusCode: code}}
}

func newTestClient(baseURL string, httpClient *http.Client) *Client {
	restyClient := resty.New()
	restyClient.SetBaseURL(baseURL)
	restyClient.SetTransport(httpClient.Transport)

	return &Client{
		apiKey:     "test-key",
		apiSecret:  "test-secret",
		baseURL:    baseURL,
		recvWindow: 5000,
		http:       restyClient,
		now:        func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

// TestIsRetryableResp verifies retry decisions for assorted errors and HTTP responses.
func TestIsRetryableResp(t *testing.T) {
	cases := []struct {
		name string
		resp *resty.Response
		err  error
		want bool
	}{
		{name: "error present", err: assertError{}, want: true},
		{name: "server error", resp: fakeResponse(500), want: true},
		{name: "too many requests", resp: fakeResponse(429), want: true},
		{name: "timeout", resp: fakeResponse(408), want: true},
		{name: "ok response", resp: fakeResponse(200), want: false},
		{name: "nil resp", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := isRetryableResp(tc.resp, tc.err)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// TestSign ensures HMAC signing matches the expected digest for a fixed query string.
func TestSign(t *testing.T) {
	client := &Client{apiSecret: "secret"}

	expectedMac := hmac.New(sha256.New, []byte("secret"))
	expectedMac.Write([]byte("symbol=BTCUSDT&timestamp=1700000000000"))
	expected := hex.EncodeToString(expectedMac.Sum(nil))

	got := client.sign("symbol=BTCUSDT&timestamp=1700000000000")
	if got != expected {
		t.Fatalf("expected signature %s, got %s", expected, got)
	}
}

// TestPlaceOrder confirms order placement sends a signed POST with the API key
// header and decodes the order response.
func TestPlaceOrder(t *testing.T) {
	var gotMethod, gotPath, gotKey string
	var gotQuery url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-MBX-APIKEY")
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(OrderResponse{OrderID: 42, Symbol: "BTCUSDT", Status: "NEW"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())
	resp, err := client.PlaceOrder(context.Background(), OrderRequest{
		Symbol:      "BTCUSDT",
		Side:        "SELL",
		Type:        "LIMIT",
		Quantity:    "0.010",
		Price:       "70000.00",
		TimeInForce: "GTC",
		ReduceOnly:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/fapi/v1/order" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected API key header, got %q", gotKey)
	}
	for _, param := range []string{"signature", "timestamp", "recvWindow"} {
		if len(gotQuery[param]) == 0 {
			t.Fatalf("expected query param %s to be set", param)
		}
	}
	if gotQuery.Get("reduceOnly") != "true" {
		t.Fatalf("expected reduceOnly=true, got %q", gotQuery.Get("reduceOnly"))
	}
	if resp.OrderID != 42 || resp.Status != "NEW" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

// TestPlaceOrderRejection decodes the exchange error envelope into an APIError.
func TestPlaceOrderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(APIError{Code: -2019, Msg: "Margin is insufficient."})
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())
	_, err := client.PlaceOrder(context.Background(), OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET", Quantity: "1"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != -2019 {
		t.Fatalf("expected code -2019, got %d", apiErr.Code)
	}
	if IsUnknownOrder(err) {
		t.Fatalf("code -2019 must not classify as unknown order")
	}
}

// TestCancelOrderUnknownOrder checks that -2011 is detectable via IsUnknownOrder.
func TestCancelOrderUnknownOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(APIError{Code: CodeUnknownOrder, Msg: "Unknown order sent."})
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())
	err := client.CancelOrder(context.Background(), "BTCUSDT", 2)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsUnknownOrder(err) {
		t.Fatalf("expected IsUnknownOrder to match, got %v", err)
	}
}

// TestSymbolPrecision verifies the exchange info lookup and missing-symbol error.
func TestSymbolPrecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","pricePrecision":2,"quantityPrecision":3}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())

	price, qty, err := client.SymbolPrecision(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2 || qty != 3 {
		t.Fatalf("expected (2, 3), got (%d, %d)", price, qty)
	}

	_, _, err = client.SymbolPrecision(context.Background(), "NOPEUSDT")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

// TestTickerPrice covers price decoding and malformed payload rejection.
func TestTickerPrice(t *testing.T) {
	price := `{"symbol":"BTCUSDT","price":"65000.10"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(price))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())

	got, err := client.TickerPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "65000.1" {
		t.Fatalf("expected 65000.1, got %s", got)
	}

	price = `{"symbol":"BTCUSDT","price":"not-a-number"}`
	if _, err := client.TickerPrice(context.Background(), "BTCUSDT"); err == nil {
		t.Fatalf("expected error for malformed price")
	}
}

// TestListenKeyLifecycle exercises create, keepalive, and close endpoints.
func TestListenKeyLifecycle(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/listenKey" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		methods = append(methods, r.Method)
		_, _ = w.Write([]byte(`{"listenKey":"abc123"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.Client())

	key, err := client.CreateListenKey(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}

	if err := client.KeepAliveListenKey(context.Background()); err != nil {
		t.Fatalf("unexpected keepalive error: %v", err)
	}
	if err := client.CloseListenKey(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	want := []string{http.MethodPost, http.MethodPut, http.MethodDelete}
	if len(methods) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(methods))
	}
	for i, m := range want {
		if methods[i] != m {
			t.Fatalf("call %d: expected %s, got %s", i, m, methods[i])
		}
	}
}
