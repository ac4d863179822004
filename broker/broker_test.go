package broker

import (
	"context"
	"testing"
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// brokerHarness captures the notifications emitted by a broker under test.
type brokerHarness struct {
	broker  *PaperBroker
	fills   []shared.Fill
	cancels []shared.Cancel
}

func setupBroker(t *testing.T) *brokerHarness {
	t.Helper()

	h := &brokerHarness{}

	cfg := &PaperBrokerConfig{
		NotifyFill: func(fill shared.Fill) {
			h.fills = append(h.fills, fill)
		},
		NotifyCancel: func(cancel shared.Cancel) {
			h.cancels = append(h.cancels, cancel)
		},
		Logger: &log.Logger,
	}

	broker, err := NewPaperBroker(cfg)
	assert.NoError(t, err)
	h.broker = broker

	return h
}

func bar(market string, low float64, high float64, close float64, stamp time.Time) *shared.Candlestick {
	return &shared.Candlestick{
		Open:      close,
		Low:       low,
		High:      high,
		Close:     close,
		Volume:    1,
		Date:      stamp,
		Market:    market,
		Timeframe: shared.FiveMinute,
	}
}

func TestPaperBrokerConfigValidate(t *testing.T) {
	// Ensure an incomplete config is rejected.
	cfg := &PaperBrokerConfig{}
	_, err := NewPaperBroker(cfg)
	assert.Error(t, err)
}

func TestMarketOrderFillsAtLastClose(t *testing.T) {
	market := "BTC/USDT"
	h := setupBroker(t)
	ctx := context.Background()
	now := time.Now()

	// A market order placed before any bar rests until one arrives.
	early := shared.NewOrderIntent("grp-1", market, shared.Buy, shared.MarketOrder, 0.004, 0, now)
	assert.NoError(t, h.broker.PlaceOrders(ctx, []shared.OrderIntent{early}))
	assert.Equal(t, len(h.fills), 0)
	assert.Equal(t, h.broker.OpenOrders(), 1)

	h.broker.OnBar(bar(market, 49900, 50100, 50000, now))
	assert.Equal(t, len(h.fills), 1)
	assert.Equal(t, h.fills[0].OrderID, early.ID)
	assert.Equal(t, h.fills[0].Price, float64(50000))

	// With a known price, market orders fill on placement.
	late := shared.NewOrderIntent("grp-2", market, shared.Buy, shared.MarketOrder, 0.004, 0, now)
	assert.NoError(t, h.broker.PlaceOrders(ctx, []shared.OrderIntent{late}))
	assert.Equal(t, len(h.fills), 2)
	assert.Equal(t, h.fills[1].Price, float64(50000))
	assert.Equal(t, h.broker.OpenOrders(), 0)
}

func TestProtectiveOrderTriggers(t *testing.T) {
	market := "BTC/USDT"
	h := setupBroker(t)
	ctx := context.Background()
	now := time.Now()

	stop := shared.NewOrderIntent("grp-1", market, shared.Sell, shared.StopOrder, 0.004, 48000, now)
	target := shared.NewOrderIntent("grp-1", market, shared.Sell, shared.LimitOrder, 0.004, 54000, now)
	assert.NoError(t, h.broker.PlaceOrders(ctx, []shared.OrderIntent{stop, target}))

	// A bar trading between the legs triggers neither.
	h.broker.OnBar(bar(market, 49000, 51000, 50000, now))
	assert.Equal(t, len(h.fills), 0)

	// A bar trading through the target fills the sell limit at its price.
	h.broker.OnBar(bar(market, 53000, 54500, 54200, now.Add(time.Minute)))
	assert.Equal(t, len(h.fills), 1)
	assert.Equal(t, h.fills[0].OrderID, target.ID)
	assert.Equal(t, h.fills[0].Price, float64(54000))

	// The stop still rests until cancelled.
	assert.Equal(t, h.broker.OpenOrders(), 1)
}

func TestStopWinsWideBar(t *testing.T) {
	market := "BTC/USDT"
	h := setupBroker(t)
	ctx := context.Background()
	now := time.Now()

	stop := shared.NewOrderIntent("grp-1", market, shared.Sell, shared.StopOrder, 0.004, 48000, now)
	target := shared.NewOrderIntent("grp-1", market, shared.Sell, shared.LimitOrder, 0.004, 54000, now)
	assert.NoError(t, h.broker.PlaceOrders(ctx, []shared.OrderIntent{stop, target}))

	// A bar trading through both legs fills only the stop.
	h.broker.OnBar(bar(market, 47000, 55000, 50000, now))
	assert.Equal(t, len(h.fills), 1)
	assert.Equal(t, h.fills[0].OrderID, stop.ID)
	assert.Equal(t, h.fills[0].Price, float64(48000))
}

func TestBuyStopAndLimitTriggers(t *testing.T) {
	market := "BTC/USDT"
	h := setupBroker(t)
	ctx := context.Background()
	now := time.Now()

	// A short's protective legs mirror the long's: a buy stop above entry
	// and a buy limit below.
	stop := shared.NewOrderIntent("grp-1", market, shared.Buy, shared.StopOrder, 0.004, 52000, now)
	target := shared.NewOrderIntent("grp-2", market, shared.Buy, shared.LimitOrder, 0.004, 46000, now)
	assert.NoError(t, h.broker.PlaceOrders(ctx, []shared.OrderIntent{stop, target}))

	h.broker.OnBar(bar(market, 49500, 52500, 52200, now))
	assert.Equal(t, len(h.fills), 1)
	assert.Equal(t, h.fills[0].OrderID, stop.ID)
	assert.Equal(t, h.fills[0].Price, float64(52000))

	h.broker.OnBar(bar(market, 45500, 47000, 46500, now.Add(time.Minute)))
	assert.Equal(t, len(h.fills), 2)
	assert.Equal(t, h.fills[1].OrderID, target.ID)
	assert.Equal(t, h.fills[1].Price, float64(46000))
}

func TestCancelOrder(t *testing.T) {
	market := "BTC/USDT"
	h := setupBroker(t)
	ctx := context.Background()
	now := time.Now()

	stop := shared.NewOrderIntent("grp-1", market, shared.Sell, shared.StopOrder, 0.004, 48000, now)
	assert.NoError(t, h.broker.PlaceOrders(ctx, []shared.OrderIntent{stop}))

	assert.NoError(t, h.broker.CancelOrder(ctx, stop.ID, "sibling filled"))
	assert.Equal(t, len(h.cancels), 1)
	assert.Equal(t, h.cancels[0].OrderID, stop.ID)
	assert.Equal(t, h.broker.OpenOrders(), 0)

	// Cancelling an unknown order is a no-op.
	assert.NoError(t, h.broker.CancelOrder(ctx, "unknown", "flush"))
	assert.Equal(t, len(h.cancels), 1)
}
