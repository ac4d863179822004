package indicator

import (
	"github.com/dnldd/stratus/shared"
)

// EMA represents the Exponential Moving Average indicator.
type EMA struct {
	period int
	alpha  float64
	value  float64
	warmup int
}

// Ensure the EMA implements the Indicator interface.
var _ Indicator = (*EMA)(nil)

// NewEMA initializes an exponential moving average over the provided period.
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

// Kind returns the indicator kind.
func (e *EMA) Kind() string { return KindEMA }

// Update feeds the provided candle to the indicator.
func (e *EMA) Update(candle *shared.Candlestick) {
	if e.warmup == 0 {
		e.value = candle.Close
		e.warmup = 1
		return
	}

	e.value = e.alpha*candle.Close + (1-e.alpha)*e.value
	if e.warmup < e.period {
		e.warmup++
	}
}

// Ready returns whether the indicator has observed a full period of candles.
func (e *EMA) Ready() bool { return e.warmup >= e.period }

// Value returns the current moving average.
func (e *EMA) Value() float64 { return e.value }
