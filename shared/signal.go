package shared

import (
	"time"
)

// EntrySignal represents a request to open a position for a market.
type EntrySignal struct {
	Market     string
	Direction  Direction
	Price      float64
	Size       float64
	StopLoss   float64
	TakeProfit float64
	CreatedOn  time.Time
}

// NewEntrySignal initializes a new entry signal.
func NewEntrySignal(market string, direction Direction, price float64, size float64,
	stopLoss float64, takeProfit float64, created time.Time) EntrySignal {
	return EntrySignal{
		Market:     market,
		Direction:  direction,
		Price:      price,
		Size:       size,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		CreatedOn:  created,
	}
}

// ExitSignal represents a request to close the open position for a market.
type ExitSignal struct {
	Market    string
	Direction Direction
	Price     float64
	CreatedOn time.Time
}

// NewExitSignal initializes a new exit signal.
func NewExitSignal(market string, direction Direction, price float64, created time.Time) ExitSignal {
	return ExitSignal{
		Market:    market,
		Direction: direction,
		Price:     price,
		CreatedOn: created,
	}
}
