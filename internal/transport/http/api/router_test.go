package apihttp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sigtrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubSignals struct {
	recent []*types.Signal
}

func (s stubSignals) ListRecent(context.Context, int) ([]*types.Signal, error) {
	return s.recent, nil
}

type stubOrders struct {
	byID map[string]*types.OrderRecord
}

func (s stubOrders) FindByID(_ context.Context, id string) (*types.OrderRecord, error) {
	return s.byID[id], nil
}

func (s stubOrders) ListRecent(context.Context, int) ([]*types.OrderRecord, error) {
	out := make([]*types.OrderRecord, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	return out, nil
}

func (s stubOrders) ListBySymbol(_ context.Context, symbol string, _ int) ([]*types.OrderRecord, error) {
	var out []*types.OrderRecord
	for _, r := range s.byID {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, router *Router) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Addr: ":0", Router: router})
	require.NoError(t, err)
	return srv.Handler()
}

func testRouter(ingested *[]*types.Signal) *Router {
	return &Router{
		Secret: "s3cret",
		Ingest: func(_ context.Context, sig *types.Signal) (*types.Signal, error) {
			sig.ID = int64(len(*ingested) + 1)
			*ingested = append(*ingested, sig)
			return sig, nil
		},
		Signals: stubSignals{},
		Orders:  stubOrders{byID: map[string]*types.OrderRecord{}},
	}
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestWebhookAcceptsValidPayload(t *testing.T) {
	var ingested []*types.Signal
	handler := newTestServer(t, testRouter(&ingested))

	w := postJSON(handler, "/api/signal/webhook", `{
		"secret": "s3cret",
		"symbol": "btcusdt",
		"action": "buy",
		"price": "50000.5",
		"time_circle": "15M",
		"contract_type": 3,
		"extra_field": {"ignored": true}
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ingested, 1)
	sig := ingested[0]
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, types.SideBuy, sig.Side)
	assert.Equal(t, "15m", sig.TimeCircle)
	assert.Equal(t, "50000.5", sig.Price.String())
	assert.Equal(t, 1, sig.StrategyID)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "id").Int())
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	var ingested []*types.Signal
	handler := newTestServer(t, testRouter(&ingested))

	w := postJSON(handler, "/api/signal/webhook", `{"secret":"nope","symbol":"BTCUSDT","action":"buy","price":"1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ingested)
}

func TestWebhookValidation(t *testing.T) {
	var ingested []*types.Signal
	handler := newTestServer(t, testRouter(&ingested))

	cases := []string{
		`not json at all`,
		`{"secret":"s3cret","action":"buy","price":"1"}`,
		`{"secret":"s3cret","symbol":"BTCUSDT","action":"hold","price":"1"}`,
		`{"secret":"s3cret","symbol":"BTCUSDT","action":"buy","price":"-5"}`,
		`{"secret":"s3cret","symbol":"BTCUSDT","action":"buy"}`,
	}
	for i, body := range cases {
		w := postJSON(handler, "/api/signal/webhook", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, fmt.Sprintf("case %d", i))
	}
	assert.Empty(t, ingested)
}

func TestWebhookQueueFullReturns503(t *testing.T) {
	router := &Router{
		Secret: "s3cret",
		Ingest: func(context.Context, *types.Signal) (*types.Signal, error) {
			return nil, fmt.Errorf("admission queue full (1000)")
		},
		Signals: stubSignals{},
		Orders:  stubOrders{byID: map[string]*types.OrderRecord{}},
	}
	handler := newTestServer(t, router)

	w := postJSON(handler, "/api/signal/webhook", `{"secret":"s3cret","symbol":"BTCUSDT","action":"sell","price":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOrderQueries(t *testing.T) {
	now := time.Now()
	rec := &types.OrderRecord{
		ID:       "abc",
		Symbol:   "BTCUSDT",
		Side:     types.SideBuy,
		Price:    decimal.RequireFromString("50000"),
		Quantity: decimal.RequireFromString("0.01"),
		Status:   types.OrderStatusFilled,
		Role:     types.OrderRoleOpen,
		CreateTime: now,
		UpdateTime: now,
	}
	router := &Router{
		Signals: stubSignals{},
		Orders:  stubOrders{byID: map[string]*types.OrderRecord{"abc": rec}},
	}
	handler := newTestServer(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FILLED", gjson.Get(w.Body.String(), "status").String())
	assert.Equal(t, "50000", gjson.Get(w.Body.String(), "price").String())

	req = httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders?symbol=btcusdt", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), int64(len(gjson.Get(w.Body.String(), "orders").Array())))
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, &Router{Signals: stubSignals{}, Orders: stubOrders{}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
