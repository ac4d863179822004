// Package indicator provides warm-up aware technical indicators computed
// over bounded candle histories, and an engine maintaining configured
// indicator sets per market.
package indicator

import (
	"math"

	"github.com/dnldd/stratus/shared"
)

// Supported indicator kinds.
const (
	KindSMA             = "sma"
	KindEMA             = "ema"
	KindRSI             = "rsi"
	KindATR             = "atr"
	KindBollingerUpper  = "bollinger_upper"
	KindBollingerMiddle = "bollinger_middle"
	KindBollingerLower  = "bollinger_lower"
)

const (
	// defaultBollingerStdDev is the band width multiplier used when none is configured.
	defaultBollingerStdDev = 2
)

// Indicator defines the requirements for computing a value from a bounded
// history of candle data.
type Indicator interface {
	// Kind returns the indicator kind.
	Kind() string
	// Update feeds the provided candle to the indicator.
	Update(candle *shared.Candlestick)
	// Ready returns whether the indicator has observed enough candles to
	// produce a usable value.
	Ready() bool
	// Value returns the current computed value.
	Value() float64
}

// New initializes an indicator of the provided kind. Unknown kinds and
// invalid parameters are configuration errors.
func New(kind string, params map[string]float64) (Indicator, error) {
	period, err := periodParam(kind, params)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindSMA:
		return NewSMA(period), nil
	case KindEMA:
		return NewEMA(period), nil
	case KindRSI:
		return NewRSI(period), nil
	case KindATR:
		return NewATR(period), nil
	case KindBollingerUpper, KindBollingerMiddle, KindBollingerLower:
		mult := float64(defaultBollingerStdDev)
		if v, ok := params["stddev"]; ok {
			if v <= 0 {
				return nil, shared.ConfigurationError("%s: stddev must be positive, got %v", kind, v)
			}
			mult = v
		}
		return NewBollinger(kind, period, mult), nil
	default:
		return nil, shared.ConfigurationError("unknown indicator kind: %s", kind)
	}
}

// periodParam extracts and validates the period parameter for the provided kind.
func periodParam(kind string, params map[string]float64) (int, error) {
	v, ok := params["period"]
	if !ok {
		return 0, shared.ConfigurationError("%s: missing period parameter", kind)
	}
	if v < 1 || v != math.Trunc(v) {
		return 0, shared.ConfigurationError("%s: period must be a positive integer, got %v", kind, v)
	}

	return int(v), nil
}
