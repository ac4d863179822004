package shared

import "fmt"

// Direction represents the direction of a position.
type Direction int

const (
	Long Direction = iota
	Short
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// ParseDirection parses a direction from the provided string.
func ParseDirection(str string) (Direction, error) {
	switch str {
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	default:
		return 0, fmt.Errorf("unknown direction: %s", str)
	}
}

// Sign returns the price sign of the provided direction, +1 for long
// and -1 for short.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// MarketType represents the type of market a strategy trades.
type MarketType int

const (
	Spot MarketType = iota
	Futures
)

// String stringifies the provided market type.
func (m MarketType) String() string {
	switch m {
	case Spot:
		return "spot"
	case Futures:
		return "futures"
	default:
		return "unknown"
	}
}

// ParseMarketType parses a market type from the provided string.
func ParseMarketType(str string) (MarketType, error) {
	switch str {
	case "spot":
		return Spot, nil
	case "futures":
		return Futures, nil
	default:
		return 0, fmt.Errorf("unknown market type: %s", str)
	}
}
