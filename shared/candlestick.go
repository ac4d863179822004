package shared

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Candlestick represents a unit OHLCV bar for a market.
type Candlestick struct {
	Open   float64
	Low    float64
	High   float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata fields.
	Market    string
	Timeframe Timeframe
}

// Bar field names referenceable by strategy rules.
const (
	OpenField   = "open"
	HighField   = "high"
	LowField    = "low"
	CloseField  = "close"
	VolumeField = "volume"
)

// ParseCandlesticks parses candlesticks from the provided json data.
func ParseCandlesticks(data []gjson.Result, market string, timeframe Timeframe) ([]Candlestick, error) {
	candles := make([]Candlestick, len(data))

	for idx := range data {
		var candle Candlestick

		candle.Open = data[idx].Get("open").Float()
		candle.Low = data[idx].Get("low").Float()
		candle.High = data[idx].Get("high").Float()
		candle.Close = data[idx].Get("close").Float()
		candle.Volume = data[idx].Get("volume").Float()

		candle.Market = market
		candle.Timeframe = timeframe

		dt, err := time.Parse(DateLayout, data[idx].Get("date").String())
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick date: %w", err)
		}

		candle.Date = dt
		candles[idx] = candle
	}

	return candles, nil
}

// FetchField returns the named bar field of the provided candlestick.
func (c *Candlestick) FetchField(name string) (float64, bool) {
	switch name {
	case OpenField:
		return c.Open, true
	case HighField:
		return c.High, true
	case LowField:
		return c.Low, true
	case CloseField:
		return c.Close, true
	case VolumeField:
		return c.Volume, true
	default:
		return 0, false
	}
}
