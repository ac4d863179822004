package shared

import (
	"time"

	"github.com/google/uuid"
)

// OrderSide represents the side of an order.
type OrderSide int

const (
	Buy OrderSide = iota
	Sell
)

// String stringifies the provided order side.
func (s OrderSide) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the opposing order side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderKind represents the execution type of an order.
type OrderKind int

const (
	MarketOrder OrderKind = iota
	LimitOrder
	StopOrder
)

// String stringifies the provided order kind.
func (k OrderKind) String() string {
	switch k {
	case MarketOrder:
		return "market"
	case LimitOrder:
		return "limit"
	case StopOrder:
		return "stop"
	default:
		return "unknown"
	}
}

// OrderIntent represents an order request emitted to the execution
// collaborator. Intents sharing a group id form a bracket: resolving
// one leg implies cancelling its siblings.
type OrderIntent struct {
	ID        string
	GroupID   string
	Market    string
	Side      OrderSide
	Kind      OrderKind
	Size      float64
	Price     float64 // zero for market orders.
	CreatedOn time.Time
}

// NewOrderIntent initializes a new order intent in the provided group.
func NewOrderIntent(groupID string, market string, side OrderSide, kind OrderKind,
	size float64, price float64, created time.Time) OrderIntent {
	return OrderIntent{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Market:    market,
		Side:      side,
		Kind:      kind,
		Size:      size,
		Price:     price,
		CreatedOn: created,
	}
}

// Fill represents an order fill notification from the execution collaborator.
type Fill struct {
	OrderID   string
	Price     float64
	Size      float64
	Timestamp time.Time
}

// Cancel represents an order cancellation notification from the execution
// collaborator.
type Cancel struct {
	OrderID string
	Reason  string
}

// MarginRejection represents a margin rejection notification from the
// execution collaborator.
type MarginRejection struct {
	OrderID string
	Reason  string
}
