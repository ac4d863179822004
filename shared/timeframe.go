package shared

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the format layout for parsing candle dates.
	DateLayout = "2006-01-02 15:04:05"
)

// Timeframe represents the market data time period.
type Timeframe int

const (
	OneMinute Timeframe = iota
	FiveMinute
	FifteenMinute
	OneHour
	OneDay
)

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	case OneHour:
		return "1h"
	case OneDay:
		return "1d"
	default:
		return "unknown"
	}
}

// ParseTimeframe parses a timeframe from the provided string.
func ParseTimeframe(str string) (Timeframe, error) {
	switch str {
	case "1m":
		return OneMinute, nil
	case "5m":
		return FiveMinute, nil
	case "15m":
		return FifteenMinute, nil
	case "1h", "1H":
		return OneHour, nil
	case "1d", "1D":
		return OneDay, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %s", str)
	}
}

// Duration returns the duration covered by one bar of the provided timeframe.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case OneMinute:
		return time.Minute
	case FiveMinute:
		return time.Minute * 5
	case FifteenMinute:
		return time.Minute * 15
	case OneHour:
		return time.Hour
	case OneDay:
		return time.Hour * 24
	default:
		return 0
	}
}
