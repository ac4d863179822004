package indicator

import (
	"math"

	"github.com/dnldd/stratus/shared"
)

// Bollinger represents one band of the Bollinger Bands indicator. The
// configured kind selects which band the indicator reports.
type Bollinger struct {
	kind   string
	period int
	mult   float64
	closes []float64
}

// Ensure the Bollinger implements the Indicator interface.
var _ Indicator = (*Bollinger)(nil)

// NewBollinger initializes a bollinger band of the provided kind over the
// provided period and band width multiplier.
func NewBollinger(kind string, period int, mult float64) *Bollinger {
	return &Bollinger{
		kind:   kind,
		period: period,
		mult:   mult,
		closes: make([]float64, 0, period),
	}
}

// Kind returns the indicator kind.
func (b *Bollinger) Kind() string { return b.kind }

// Update feeds the provided candle to the indicator.
func (b *Bollinger) Update(candle *shared.Candlestick) {
	b.closes = append(b.closes, candle.Close)
	if len(b.closes) > b.period {
		b.closes = b.closes[1:]
	}
}

// Ready returns whether the indicator has observed a full period of candles.
func (b *Bollinger) Ready() bool { return len(b.closes) >= b.period }

// Value returns the current value of the configured band.
func (b *Bollinger) Value() float64 {
	if len(b.closes) == 0 {
		return 0
	}

	var sum float64
	for idx := range b.closes {
		sum += b.closes[idx]
	}
	mean := sum / float64(len(b.closes))

	if b.kind == KindBollingerMiddle {
		return mean
	}

	var variance float64
	for idx := range b.closes {
		diff := b.closes[idx] - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(b.closes)))

	switch b.kind {
	case KindBollingerUpper:
		return mean + b.mult*stdDev
	default:
		return mean - b.mult*stdDev
	}
}
