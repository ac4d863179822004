package indicator

import (
	"math"

	"github.com/dnldd/stratus/shared"
)

// ATR represents the Average True Range indicator, smoothed per Wilder.
type ATR struct {
	period    int
	prevClose float64
	value     float64
	count     int
}

// Ensure the ATR implements the Indicator interface.
var _ Indicator = (*ATR)(nil)

// NewATR initializes an average true range over the provided period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Kind returns the indicator kind.
func (a *ATR) Kind() string { return KindATR }

// Update feeds the provided candle to the indicator.
func (a *ATR) Update(candle *shared.Candlestick) {
	if a.count == 0 {
		a.value = candle.High - candle.Low
		a.prevClose = candle.Close
		a.count = 1
		return
	}

	trueRange := math.Max(candle.High-candle.Low,
		math.Max(math.Abs(candle.High-a.prevClose), math.Abs(candle.Low-a.prevClose)))
	a.prevClose = candle.Close

	a.value = (a.value*float64(a.period-1) + trueRange) / float64(a.period)
	a.count++
}

// Ready returns whether the indicator has observed a full period of candles.
func (a *ATR) Ready() bool { return a.count >= a.period }

// Value returns the current average true range.
func (a *ATR) Value() float64 { return a.value }
