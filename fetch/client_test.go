package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

func TestClient(t *testing.T) {
	// Ensure an incomplete config is rejected.
	_, err := NewClient(&ClientConfig{})
	assert.Error(t, err)

	cfg := &ClientConfig{
		BaseURL: "http://base",
		APIKey:  "key",
	}

	c, err := NewClient(cfg)
	assert.NoError(t, err)

	// Ensure urls can be formed accurately.
	params := url.Values{}
	params.Add("a", "bbb")
	params.Add("b", "ccc")

	path := "/path"
	formedURL := c.formURL(path, params.Encode())
	assert.Equal(t, formedURL, "http://base/path?a=bbb&b=ccc")
}

func TestFetchCandles(t *testing.T) {
	payload := `[{"open":10,"close":12,"high":15,"low":8,"volume":5,"date":"2025-02-04 15:05:00"}]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Query().Get("symbol"), "BTC/USDT")
		assert.Equal(t, r.URL.Query().Get("interval"), "5m")
		assert.Equal(t, r.URL.Query().Get("apikey"), "key")
		w.Write([]byte(payload))
	}))
	defer server.Close()

	c, err := NewClient(&ClientConfig{BaseURL: server.URL, APIKey: "key"})
	assert.NoError(t, err)

	start := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	data, err := c.FetchCandles(context.Background(), "BTC/USDT", shared.FiveMinute, start, time.Time{})
	assert.NoError(t, err)
	assert.Equal(t, len(data), 1)

	candles, err := shared.ParseCandlesticks(data, "BTC/USDT", shared.FiveMinute)
	assert.NoError(t, err)

	want := []shared.Candlestick{
		{
			Open:      10,
			Low:       8,
			High:      15,
			Close:     12,
			Volume:    5,
			Date:      time.Date(2025, 2, 4, 15, 5, 0, 0, time.UTC),
			Market:    "BTC/USDT",
			Timeframe: shared.FiveMinute,
		},
	}
	if diff := cmp.Diff(want, candles); diff != "" {
		t.Errorf("parsed candles mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentFetchCandles(t *testing.T) {
	payload := `[{"open":10,"close":12,"high":15,"low":8,"volume":5,"date":"2025-02-04 15:05:00"}]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A garbled url from concurrent requests would corrupt the symbol.
		market := r.URL.Query().Get("symbol")
		if market != "BTC/USDT" && market != "ETH/USDT" {
			t.Errorf("unexpected symbol %q", market)
		}
		w.Write([]byte(payload))
	}))
	defer server.Close()

	c, err := NewClient(&ClientConfig{BaseURL: server.URL, APIKey: "key"})
	assert.NoError(t, err)

	start := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	markets := []string{"BTC/USDT", "ETH/USDT"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for idx := range markets {
			wg.Add(1)
			go func() {
				defer wg.Done()

				data, err := c.FetchCandles(context.Background(), markets[idx], shared.FiveMinute, start, time.Time{})
				if err != nil {
					t.Errorf("fetching candles: %v", err)
					return
				}
				if len(data) != 1 {
					t.Errorf("expected 1 candle, got %d", len(data))
				}
			}()
		}
	}
	wg.Wait()
}

func TestFetchCandlesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c, err := NewClient(&ClientConfig{BaseURL: server.URL, APIKey: "bad"})
	assert.NoError(t, err)

	_, err = c.FetchCandles(context.Background(), "BTC/USDT", shared.FiveMinute, time.Now(), time.Time{})
	assert.Error(t, err)
}
