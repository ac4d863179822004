package position

import (
	"github.com/dnldd/stratus/shared"
	"github.com/google/uuid"
)

// Bracket represents the three linked order intents produced by one entry
// signal: the entry leg, its protective stop and its profit target. All
// legs share a size and a group id; resolving one protective leg implies
// cancelling the other.
type Bracket struct {
	GroupID   string
	Direction shared.Direction
	Entry     shared.OrderIntent
	Stop      shared.OrderIntent
	Target    shared.OrderIntent
}

// NewBracket builds the linked intents for the provided entry signal.
func NewBracket(signal *shared.EntrySignal) (*Bracket, error) {
	if signal.Size <= 0 {
		return nil, shared.PreconditionError("bracket size must be positive, got %v", signal.Size)
	}
	if signal.Price <= 0 {
		return nil, shared.PreconditionError("bracket entry price must be positive, got %v", signal.Price)
	}
	if signal.StopLoss <= 0 || signal.TakeProfit <= 0 {
		return nil, shared.PreconditionError("bracket protective prices must be positive, got stop %v, target %v",
			signal.StopLoss, signal.TakeProfit)
	}

	entrySide := shared.Buy
	if signal.Direction == shared.Short {
		entrySide = shared.Sell
	}

	groupID := uuid.New().String()
	bracket := &Bracket{
		GroupID:   groupID,
		Direction: signal.Direction,
		Entry: shared.NewOrderIntent(groupID, signal.Market, entrySide, shared.MarketOrder,
			signal.Size, 0, signal.CreatedOn),
		Stop: shared.NewOrderIntent(groupID, signal.Market, entrySide.Opposite(), shared.StopOrder,
			signal.Size, signal.StopLoss, signal.CreatedOn),
		Target: shared.NewOrderIntent(groupID, signal.Market, entrySide.Opposite(), shared.LimitOrder,
			signal.Size, signal.TakeProfit, signal.CreatedOn),
	}

	return bracket, nil
}

// Intents returns the bracket legs as a single batch for emission.
func (b *Bracket) Intents() []shared.OrderIntent {
	return []shared.OrderIntent{b.Entry, b.Stop, b.Target}
}
