package indicator

import (
	"github.com/dnldd/stratus/shared"
)

// SMA represents the Simple Moving Average indicator.
type SMA struct {
	period int
	closes []float64
	sum    float64
}

// Ensure the SMA implements the Indicator interface.
var _ Indicator = (*SMA)(nil)

// NewSMA initializes a simple moving average over the provided period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		closes: make([]float64, 0, period),
	}
}

// Kind returns the indicator kind.
func (s *SMA) Kind() string { return KindSMA }

// Update feeds the provided candle to the indicator.
func (s *SMA) Update(candle *shared.Candlestick) {
	s.closes = append(s.closes, candle.Close)
	s.sum += candle.Close
	if len(s.closes) > s.period {
		s.sum -= s.closes[0]
		s.closes = s.closes[1:]
	}
}

// Ready returns whether the indicator has observed a full period of candles.
func (s *SMA) Ready() bool { return len(s.closes) >= s.period }

// Value returns the current moving average.
func (s *SMA) Value() float64 {
	if len(s.closes) == 0 {
		return 0
	}
	return s.sum / float64(len(s.closes))
}
