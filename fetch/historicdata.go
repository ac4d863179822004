package fetch

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// HistoricDataConfig represents the historic data source configuration.
type HistoricDataConfig struct {
	// Market represents the historic data market.
	Market string
	// Timeframe represents the timeframe for the historic data.
	Timeframe shared.Timeframe
	// FilePath is the filepath to the historic market data.
	FilePath string
	// SendMarketUpdate relays the provided market update for processing.
	SendMarketUpdate func(candle shared.Candlestick)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *HistoricDataConfig) Validate() error {
	var errs error

	if cfg.Market == "" {
		errs = errors.Join(errs, fmt.Errorf("historic data market cannot be an empty string"))
	}
	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("historic data filepath cannot be an empty string"))
	}
	if cfg.SendMarketUpdate == nil {
		errs = errors.Join(errs, fmt.Errorf("market update function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// HistoricData represents a historic market data source for backtests.
type HistoricData struct {
	cfg     *HistoricDataConfig
	candles []shared.Candlestick
}

// loadHistoricData loads the historic data bytes from the provided file path.
func loadHistoricData(filepath string) ([]gjson.Result, error) {
	readb, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading historic data from file with path '%s': %v", filepath, err)
	}

	b := gjson.ParseBytes(readb).Array()

	return b, nil
}

// NewHistoricData initializes a new historic data source.
func NewHistoricData(cfg *HistoricDataConfig) (*HistoricData, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b, err := loadHistoricData(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("loading historic data: %v", err)
	}

	candles, err := shared.ParseCandlesticks(b, cfg.Market, cfg.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("parsing candlesticks: %v", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles found in historic data file '%s'", cfg.FilePath)
	}

	return &HistoricData{
		cfg:     cfg,
		candles: candles,
	}, nil
}

// FetchStartTime returns the timestamp of the first historic bar.
func (h *HistoricData) FetchStartTime() time.Time {
	return h.candles[0].Date
}

// ProcessHistoricData streams the loaded bars for processing in order.
func (h *HistoricData) ProcessHistoricData() {
	first := h.candles[0].Date
	last := h.candles[len(h.candles)-1].Date
	timeDiffInHours := last.Sub(first).Hours()

	h.cfg.Logger.Info().Msgf("processing historic data covering %.2f hours, from %s, to %s",
		timeDiffInHours, first.Format(time.RFC1123), last.Format(time.RFC1123))

	for idx := range h.candles {
		h.cfg.SendMarketUpdate(h.candles[idx])
	}
}
