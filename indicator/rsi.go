package indicator

import (
	"github.com/dnldd/stratus/shared"
)

// RSI represents the Relative Strength Index indicator, smoothed per Wilder.
type RSI struct {
	period    int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	count     int
}

// Ensure the RSI implements the Indicator interface.
var _ Indicator = (*RSI)(nil)

// NewRSI initializes a relative strength index over the provided period.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Kind returns the indicator kind.
func (r *RSI) Kind() string { return KindRSI }

// Update feeds the provided candle to the indicator.
func (r *RSI) Update(candle *shared.Candlestick) {
	if r.count == 0 {
		r.prevClose = candle.Close
		r.count = 1
		return
	}

	var gain, loss float64
	delta := candle.Close - r.prevClose
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.prevClose = candle.Close

	switch {
	case r.count <= r.period:
		// Seed the averages with a simple mean over the first period.
		r.avgGain += gain / float64(r.period)
		r.avgLoss += loss / float64(r.period)
	default:
		r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
	}

	r.count++
}

// Ready returns whether the indicator has observed a full period of price changes.
func (r *RSI) Ready() bool { return r.count > r.period }

// Value returns the current relative strength index.
func (r *RSI) Value() float64 {
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}

	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
