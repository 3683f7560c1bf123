package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/internal/engine"
	"papertrade/internal/order"
	"papertrade/internal/sink"
	"papertrade/internal/venue"
)

type stubStatus struct {
	st engine.Status
}

func (s stubStatus) Status() engine.Status { return s.st }

func newTestServer(t *testing.T, store *sink.SQLite) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Status: stubStatus{st: engine.Status{
			Equity:      10100,
			Cash:        9500,
			StartEquity: 10000,
			Trades:      2,
			Prices:      map[string]float64{"BTC/USDT": 65000},
		}},
		Store:      store,
		ConfigYAML: []byte("app:\n  name: papertrade\n"),
	})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	w := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	w := get(t, srv, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var got engine.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.InDelta(t, 10100.0, got.Equity, 1e-9)
	assert.Equal(t, 2, got.Trades)
	assert.InDelta(t, 65000.0, got.Prices["BTC/USDT"], 1e-9)
}

func TestHistoryEndpointsNeedStore(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/api/trades").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/api/equity").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/api/report").Code)
}

func TestTradesAndEquityFromStore(t *testing.T) {
	store, err := sink.NewSQLite(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	defer store.Close()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.LogTrade(venue.FillRecord{
		Timestamp: ts, Symbol: "BTC/USDT", Side: order.Buy, Price: 65000, Notional: 500,
	}))
	require.NoError(t, store.LogEquity(sink.EquitySample{Timestamp: ts, Equity: 10000, Cash: 9500}))
	require.NoError(t, store.LogEquity(sink.EquitySample{Timestamp: ts.Add(time.Minute), Equity: 10050, Cash: 9500}))

	srv := newTestServer(t, store)

	w := get(t, srv, "/api/trades?symbol=BTC/USDT")
	require.Equal(t, http.StatusOK, w.Code)
	var trades struct {
		Trades []venue.FillRecord `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trades))
	require.Len(t, trades.Trades, 1)
	assert.Equal(t, "BTC/USDT", trades.Trades[0].Symbol)

	w = get(t, srv, "/api/equity")
	require.Equal(t, http.StatusOK, w.Code)
	var equity struct {
		Equity []sink.EquitySample `json:"equity"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &equity))
	require.Len(t, equity.Equity, 2)
	assert.InDelta(t, 10000.0, equity.Equity[0].Equity, 1e-9)

	w = get(t, srv, "/api/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Equity")
}

func TestConfigDump(t *testing.T) {
	srv := newTestServer(t, nil)
	w := get(t, srv, "/api/config")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "papertrade")
}
