package position

import (
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/google/uuid"
)

// Trade represents a closed round-trip for a market. Trades are immutable
// once recorded.
type Trade struct {
	ID         string
	Market     string
	Direction  shared.Direction
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	GrossPNL   float64
	NetPNL     float64
	OpenedOn   time.Time
	ClosedOn   time.Time
}

// NewTrade records the round-trip closed by exiting the provided position.
// The cost captures execution expenses (fees, slippage) supplied by an
// external cost model and is deducted from the gross profit.
func NewTrade(pos *Position, exitPrice float64, closed time.Time, cost float64) *Trade {
	gross := (exitPrice - pos.EntryPrice) * pos.Size * pos.Direction.Sign()

	return &Trade{
		ID:         uuid.New().String(),
		Market:     pos.Market,
		Direction:  pos.Direction,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		GrossPNL:   gross,
		NetPNL:     gross - cost,
		OpenedOn:   pos.CreatedOn,
		ClosedOn:   closed,
	}
}
