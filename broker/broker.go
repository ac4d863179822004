// Package broker provides a paper execution venue. Orders rest in an
// in-memory book and are matched against streamed bars, with fills and
// cancellations relayed through the configured callbacks.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dnldd/stratus/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// PaperBrokerConfig represents the paper broker configuration.
type PaperBrokerConfig struct {
	// NotifyFill relays an order fill for processing.
	NotifyFill func(fill shared.Fill)
	// NotifyCancel relays an order cancellation for processing.
	NotifyCancel func(cancel shared.Cancel)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *PaperBrokerConfig) Validate() error {
	var errs error

	if cfg.NotifyFill == nil {
		errs = errors.Join(errs, fmt.Errorf("fill notification function cannot be nil"))
	}
	if cfg.NotifyCancel == nil {
		errs = errors.Join(errs, fmt.Errorf("cancel notification function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// PaperBroker simulates order execution against market data. Market orders
// fill at the last streamed close; stop and limit orders rest until a bar
// trades through their price.
type PaperBroker struct {
	cfg *PaperBrokerConfig

	mtx        sync.Mutex
	book       map[string]shared.OrderIntent
	lastCloses map[string]*atomic.Float64
}

// Ensure the PaperBroker implements the ExecutionBroker interface.
var _ shared.ExecutionBroker = (*PaperBroker)(nil)

// NewPaperBroker initializes a new paper broker.
func NewPaperBroker(cfg *PaperBrokerConfig) (*PaperBroker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &PaperBroker{
		cfg:        cfg,
		book:       make(map[string]shared.OrderIntent),
		lastCloses: make(map[string]*atomic.Float64),
	}, nil
}

// lastClose returns the price cell for the provided market, creating it if
// needed. Callers must hold the broker mutex.
func (b *PaperBroker) lastClose(market string) *atomic.Float64 {
	cell, ok := b.lastCloses[market]
	if !ok {
		cell = atomic.NewFloat64(0)
		b.lastCloses[market] = cell
	}

	return cell
}

// PlaceOrders accepts the provided order intents. Market orders fill
// immediately when a price is known for their market, otherwise they rest
// until the market's next bar. Stop and limit orders always rest.
func (b *PaperBroker) PlaceOrders(ctx context.Context, intents []shared.OrderIntent) error {
	b.mtx.Lock()

	var fills []shared.Fill
	for _, intent := range intents {
		if intent.Kind == shared.MarketOrder {
			if price := b.lastClose(intent.Market).Load(); price > 0 {
				fills = append(fills, shared.Fill{
					OrderID: intent.ID,
					Price:   price,
					Size:    intent.Size,
				})
				continue
			}
		}

		b.book[intent.ID] = intent
	}
	b.mtx.Unlock()

	for _, fill := range fills {
		b.cfg.NotifyFill(fill)
	}

	return nil
}

// CancelOrder removes the provided order from the book. Cancelling an order
// already filled or unknown is a no-op.
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string, reason string) error {
	b.mtx.Lock()
	_, ok := b.book[orderID]
	if ok {
		delete(b.book, orderID)
	}
	b.mtx.Unlock()

	if !ok {
		return nil
	}

	b.cfg.NotifyCancel(shared.Cancel{OrderID: orderID, Reason: reason})

	return nil
}

// triggered reports whether the provided resting order trades within the
// provided bar, and the price it executes at.
func triggered(intent *shared.OrderIntent, candle *shared.Candlestick) (float64, bool) {
	switch intent.Kind {
	case shared.MarketOrder:
		return candle.Close, true

	case shared.StopOrder:
		// A sell stop triggers when price trades down through it, a buy
		// stop when price trades up through it.
		if intent.Side == shared.Sell && candle.Low <= intent.Price {
			return intent.Price, true
		}
		if intent.Side == shared.Buy && candle.High >= intent.Price {
			return intent.Price, true
		}

	case shared.LimitOrder:
		// A sell limit fills when price trades up through it, a buy limit
		// when price trades down through it.
		if intent.Side == shared.Sell && candle.High >= intent.Price {
			return intent.Price, true
		}
		if intent.Side == shared.Buy && candle.Low <= intent.Price {
			return intent.Price, true
		}
	}

	return 0, false
}

// matchPriority orders candidate executions within a bar: stops before
// limits so the conservative protective leg wins when a wide bar trades
// through both, market orders first of all.
func matchPriority(kind shared.OrderKind) int {
	switch kind {
	case shared.MarketOrder:
		return 0
	case shared.StopOrder:
		return 1
	default:
		return 2
	}
}

// OnBar matches the market's resting orders against the provided bar and
// refreshes the market's last traded price. At most one protective order
// per group executes within a bar.
func (b *PaperBroker) OnBar(candle *shared.Candlestick) {
	b.mtx.Lock()
	b.lastClose(candle.Market).Store(candle.Close)

	candidates := make([]shared.OrderIntent, 0, len(b.book))
	for _, intent := range b.book {
		if intent.Market == candle.Market {
			candidates = append(candidates, intent)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		left, right := matchPriority(candidates[i].Kind), matchPriority(candidates[j].Kind)
		if left != right {
			return left < right
		}
		return candidates[i].ID < candidates[j].ID
	})

	var fills []shared.Fill
	filledGroups := make(map[string]struct{})
	for idx := range candidates {
		intent := candidates[idx]
		if intent.Kind != shared.MarketOrder {
			if _, ok := filledGroups[intent.GroupID]; ok {
				continue
			}
		}

		price, ok := triggered(&intent, candle)
		if !ok {
			continue
		}

		fills = append(fills, shared.Fill{
			OrderID:   intent.ID,
			Price:     price,
			Size:      intent.Size,
			Timestamp: candle.Date,
		})
		if intent.Kind != shared.MarketOrder {
			filledGroups[intent.GroupID] = struct{}{}
		}
		delete(b.book, intent.ID)
	}
	b.mtx.Unlock()

	for _, fill := range fills {
		b.cfg.Logger.Debug().Msgf("filled order %s at %v", fill.OrderID, fill.Price)
		b.cfg.NotifyFill(fill)
	}
}

// OpenOrders returns the number of orders resting in the book.
func (b *PaperBroker) OpenOrders() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return len(b.book)
}
