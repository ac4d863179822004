package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/stratus/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// maxWorkers is the maximum number of concurrent fetch workers.
	maxWorkers = 8
	// minSubscriberBuffer is the minimum buffer size for subscribers.
	minSubscriberBuffer = 24
)

// CatchUpSignal represents a request to backfill market data from the
// provided start time.
type CatchUpSignal struct {
	Market    string
	Timeframe shared.Timeframe
	Start     time.Time
}

// ManagerConfig represents the configuration for the fetch manager.
type ManagerConfig struct {
	// Markets represents the tracked markets.
	Markets []string
	// Timeframe is the bar timeframe fetched for the tracked markets.
	Timeframe shared.Timeframe
	// ExchangeClient represents the market exchange client.
	ExchangeClient shared.CandleFetcher
	// JobScheduler represents the job scheduler.
	JobScheduler *gocron.Scheduler
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for fetch manager"))
	}
	if cfg.ExchangeClient == nil {
		errs = errors.Join(errs, fmt.Errorf("exchange client cannot be nil"))
	}
	if cfg.JobScheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("job scheduler cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager represents the market data fetch manager. It backfills markets on
// request, polls for fresh bars on an interval and fans updates out to
// subscribers.
type Manager struct {
	cfg              *ManagerConfig
	mtx              sync.Mutex
	lastUpdatedTimes map[string]time.Time
	catchUpSignals   chan CatchUpSignal
	subscribers      []*chan shared.Candlestick
	workers          chan struct{}
}

// NewManager initializes the fetch manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		cfg:              cfg,
		lastUpdatedTimes: make(map[string]time.Time),
		catchUpSignals:   make(chan CatchUpSignal, bufferSize),
		subscribers:      make([]*chan shared.Candlestick, 0, minSubscriberBuffer),
		workers:          make(chan struct{}, maxWorkers),
	}, nil
}

// Subscribe registers the provided subscriber for market updates.
func (m *Manager) Subscribe(sub *chan shared.Candlestick) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.subscribers = append(m.subscribers, sub)
}

// NotifySubscribers notifies subscribers of the new market update.
func (m *Manager) NotifySubscribers(candle shared.Candlestick) {
	m.mtx.Lock()
	subscribers := m.subscribers
	m.lastUpdatedTimes[candle.Market] = candle.Date
	m.mtx.Unlock()

	for k := range subscribers {
		*subscribers[k] <- candle
	}
}

// SendCatchUpSignal relays the provided catch up signal for processing.
func (m *Manager) SendCatchUpSignal(catchUp CatchUpSignal) {
	select {
	case m.catchUpSignals <- catchUp:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("catchup signal channel at capacity: %d/%d",
			len(m.catchUpSignals), bufferSize)
	}
}

// fetchMarketData fetches and relays bars for the provided market starting
// from the provided time.
func (m *Manager) fetchMarketData(ctx context.Context, market string, timeframe shared.Timeframe, start time.Time) {
	data, err := m.cfg.ExchangeClient.FetchCandles(ctx, market, timeframe, start, time.Time{})
	if err != nil {
		m.cfg.Logger.Error().Msgf("fetching candles for %s: %v", market, err)
		return
	}

	candles, err := shared.ParseCandlesticks(data, market, timeframe)
	if err != nil {
		m.cfg.Logger.Error().Msgf("parsing candlesticks for %s: %v", market, err)
		return
	}

	for idx := range candles {
		m.NotifySubscribers(candles[idx])
	}
}

// handleCatchUpSignal processes the provided catch up signal.
func (m *Manager) handleCatchUpSignal(ctx context.Context, signal CatchUpSignal) {
	m.fetchMarketData(ctx, signal.Market, signal.Timeframe, signal.Start)
}

// pollMarkets fetches fresh bars for all tracked markets since their last
// known updates.
func (m *Manager) pollMarkets(ctx context.Context) {
	for _, market := range m.cfg.Markets {
		m.mtx.Lock()
		last := m.lastUpdatedTimes[market]
		m.mtx.Unlock()

		if last.IsZero() {
			// Markets are backfilled through catch up signals first.
			continue
		}

		m.fetchMarketData(ctx, market, m.cfg.Timeframe, last.Add(time.Second))
	}
}

// Run manages the lifecycle processes of the fetch manager.
func (m *Manager) Run(ctx context.Context) {
	_, err := m.cfg.JobScheduler.Every(m.cfg.Timeframe.Duration()).Do(func() {
		m.pollMarkets(ctx)
	})
	if err != nil {
		m.cfg.Logger.Error().Msgf("scheduling market poll job: %v", err)
		return
	}

	m.cfg.JobScheduler.StartAsync()

	for {
		select {
		case signal := <-m.catchUpSignals:
			m.workers <- struct{}{}
			go func(signal CatchUpSignal) {
				m.handleCatchUpSignal(ctx, signal)
				<-m.workers
			}(signal)
		case <-ctx.Done():
			m.cfg.JobScheduler.Stop()
			return
		}
	}
}
