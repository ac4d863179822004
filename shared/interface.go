package shared

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
)

// CandleFetcher defines the requirements for fetching historical candle data.
type CandleFetcher interface {
	// FetchCandles fetches historical candle data for the provided market and range.
	FetchCandles(ctx context.Context, market string, timeframe Timeframe, start time.Time, end time.Time) ([]gjson.Result, error)
}

// ExecutionBroker defines the requirements for routing order intents to an
// exchange and cancelling outstanding orders.
type ExecutionBroker interface {
	// PlaceOrders routes the provided order intents for execution.
	PlaceOrders(ctx context.Context, intents []OrderIntent) error
	// CancelOrder cancels the outstanding order with the provided id.
	CancelOrder(ctx context.Context, orderID string, reason string) error
}
