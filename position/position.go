package position

import (
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/google/uuid"
)

// State represents the order/position lifecycle state of a market.
type State int

const (
	// Flat: no position, no outstanding orders.
	Flat State = iota
	// EntryPending: a bracket has been emitted, awaiting the entry fill.
	EntryPending
	// Open: the entry filled, protective orders are armed.
	Open
	// ExitPending: a closing order has been emitted, awaiting its fill.
	ExitPending
)

// String stringifies the provided state.
func (s State) String() string {
	switch s {
	case Flat:
		return "flat"
	case EntryPending:
		return "entry pending"
	case Open:
		return "open"
	case ExitPending:
		return "exit pending"
	default:
		return "unknown"
	}
}

// Position represents an open market position with armed protective orders.
type Position struct {
	ID         string
	Market     string
	Direction  shared.Direction
	Size       float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	GroupID    string
	CreatedOn  time.Time
}

// NewPosition initializes a position from the provided bracket and the fill
// of its entry leg.
func NewPosition(bracket *Bracket, fill *shared.Fill) *Position {
	return &Position{
		ID:         uuid.New().String(),
		Market:     bracket.Entry.Market,
		Direction:  bracket.Direction,
		Size:       fill.Size,
		EntryPrice: fill.Price,
		StopLoss:   bracket.Stop.Price,
		TakeProfit: bracket.Target.Price,
		GroupID:    bracket.GroupID,
		CreatedOn:  fill.Timestamp,
	}
}
