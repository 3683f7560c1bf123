package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollSourceParsesOrderbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.Contains(r.URL.Path, "ETH-USDT"))
		w.Write([]byte(`{"bids":[["100.5","3"]],"asks":[["101.5","2"]]}`))
	}))
	defer srv.Close()

	src, err := NewPollSource(PollConfig{
		OrderbookURL: srv.URL + "/book/{symbol}",
		Interval:     time.Millisecond,
	}, []string{"ETH-USDT"})
	require.NoError(t, err)

	src.Step(context.Background())
	q := src.Orderbook("ETH-USDT")
	assert.InDelta(t, 100.5, q.Bid, 1e-9)
	assert.InDelta(t, 101.5, q.Ask, 1e-9)
	assert.InDelta(t, 101.0, src.Mark("ETH-USDT"), 1e-9)
}

func TestPollSourceTickerFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"last":"250.25"}`))
	}))
	defer srv.Close()

	src, err := NewPollSource(PollConfig{
		TickerURL: srv.URL + "/ticker/{symbol}",
		Interval:  time.Millisecond,
	}, []string{"X"})
	require.NoError(t, err)

	src.Step(context.Background())
	q := src.Orderbook("X")
	assert.InDelta(t, 250.25, q.Bid, 1e-9)
	assert.InDelta(t, 250.25, q.Ask, 1e-9)
	assert.InDelta(t, 250.25, src.Mark("X"), 1e-9)
}

func TestPollSourceKeepsSnapshotOnFailure(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"bids":[["10","1"]],"asks":[["11","1"]]}`))
	}))
	defer srv.Close()

	src, err := NewPollSource(PollConfig{
		OrderbookURL: srv.URL + "/book/{symbol}",
		Interval:     time.Nanosecond,
	}, []string{"X"})
	require.NoError(t, err)

	src.Step(context.Background())
	require.True(t, src.Orderbook("X").Complete())

	healthy = false
	src.lastFetch = time.Time{} // force an immediate refresh attempt
	src.Step(context.Background())

	q := src.Orderbook("X")
	assert.InDelta(t, 10.0, q.Bid, 1e-9, "failed fetch must not clobber the last quote")
	assert.Greater(t, src.backoff, pollBackoffBase)
}

func TestQuoteHelpers(t *testing.T) {
	assert.False(t, Quote{}.Complete())
	assert.False(t, Quote{Bid: 10}.Complete())
	assert.True(t, Quote{Bid: 10, Ask: 11}.Complete())
	assert.Zero(t, Quote{Bid: 10}.Mid())
	assert.InDelta(t, 10.5, Quote{Bid: 10, Ask: 11}.Mid(), 1e-9)
}
