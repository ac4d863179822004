// Package service assembles the strategy evaluation service: market data
// acquisition, indicator and rule evaluation, position management, paper
// execution and trade persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dnldd/stratus/broker"
	"github.com/dnldd/stratus/database"
	"github.com/dnldd/stratus/engine"
	"github.com/dnldd/stratus/fetch"
	"github.com/dnldd/stratus/position"
	"github.com/dnldd/stratus/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"go.uber.org/atomic"
)

const (
	// candleBufferSize is the buffer size for the market update channel.
	candleBufferSize = 256
	// backfillBars is the number of bars backfilled at startup to warm up
	// indicators before live evaluation.
	backfillBars = 200
)

// StratusConfig represents the configuration struct for the stratus service.
type StratusConfig struct {
	// StrategyFilePath is the filepath to the strategy configuration.
	StrategyFilePath string
	// ExchangeBaseURL is the exchange REST API base url.
	ExchangeBaseURL string
	// ExchangeWSURL is the exchange websocket url.
	ExchangeWSURL string
	// ExchangeAPIKey is the exchange API key.
	ExchangeAPIKey string
	// DatabaseEndpoint represents the database connection endpoint. Optional;
	// an empty endpoint disables persistence.
	DatabaseEndpoint string
	// DatabaseUser is the database user.
	DatabaseUser string
	// DatabasePass is the database user pass.
	DatabasePass string
	// Backtest is the backtesting flag.
	Backtest bool
	// BacktestDataFilepath is the filepath to the backtest data.
	BacktestDataFilepath string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config has sane inputs.
func (cfg *StratusConfig) Validate() error {
	var errs error

	if cfg.StrategyFilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("strategy filepath cannot be an empty string"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}
	if cfg.Backtest {
		if cfg.BacktestDataFilepath == "" {
			errs = errors.Join(errs, fmt.Errorf("backtest data filepath cannot be an empty string"))
		}
	} else {
		if cfg.ExchangeBaseURL == "" {
			errs = errors.Join(errs, fmt.Errorf("exchange base url cannot be an empty string"))
		}
		if cfg.ExchangeWSURL == "" {
			errs = errors.Join(errs, fmt.Errorf("exchange websocket url cannot be an empty string"))
		}
		if cfg.ExchangeAPIKey == "" {
			errs = errors.Join(errs, fmt.Errorf("exchange api key cannot be an empty string"))
		}
	}

	return errs
}

// Stratus represents the strategy evaluation service.
type Stratus struct {
	cfg             *StratusConfig
	strategy        *engine.StrategyConfig
	db              *database.Database
	paperBroker     *broker.PaperBroker
	positionManager *position.Manager
	strategyEngine  *engine.Engine
	fetchManager    *fetch.Manager
	stream          *fetch.Stream
	historicData    *fetch.HistoricData
	candles         chan shared.Candlestick
	active          atomic.Bool
	logger          *zerolog.Logger
	wg              sync.WaitGroup
}

// NewStratus initializes a new stratus service.
func NewStratus(ctx context.Context, cfg *StratusConfig) (*Stratus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var positionMgr *position.Manager
	var strategyEngine *engine.Engine

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "stratus").Logger()

	doc, err := os.ReadFile(cfg.StrategyFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading strategy config: %v", err)
	}

	strategy, err := engine.ParseStrategyConfig(string(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing strategy config: %v", err)
	}

	var db *database.Database
	if cfg.DatabaseEndpoint != "" {
		dbLogger := logger.With().Str("component", "database").Logger()
		db, err = database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint: cfg.DatabaseEndpoint,
			User:     cfg.DatabaseUser,
			Pass:     cfg.DatabasePass,
			Logger:   &dbLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating database: %v", err)
		}
	}

	notifyFillFunc := func(fill shared.Fill) {
		if positionMgr != nil {
			positionMgr.NotifyFill(fill)
		}
	}

	notifyCancelFunc := func(cancel shared.Cancel) {
		if positionMgr != nil {
			positionMgr.NotifyCancel(cancel)
		}
	}

	brokerLogger := logger.With().Str("component", "paperbroker").Logger()
	paperBroker, err := broker.NewPaperBroker(&broker.PaperBrokerConfig{
		NotifyFill:   notifyFillFunc,
		NotifyCancel: notifyCancelFunc,
		Logger:       &brokerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating paper broker: %v", err)
	}

	persistTradeFunc := func(trade *position.Trade) error {
		if db == nil {
			return nil
		}
		return db.PersistTrade(ctx, trade)
	}

	positionOpenedFunc := func(pos *position.Position) {
		if strategyEngine != nil {
			strategyEngine.Portfolio().Debit(pos.EntryPrice * pos.Size)
		}
	}

	positionClosedFunc := func(trade *position.Trade) {
		if strategyEngine != nil {
			strategyEngine.Portfolio().Credit(trade.EntryPrice*trade.Size + trade.NetPNL)
		}
	}

	positionMgrLogger := logger.With().Str("component", "positionmanager").Logger()
	positionMgr, err = position.NewManager(&position.ManagerConfig{
		Markets: strategy.Markets,
		PlaceOrders: func(intents []shared.OrderIntent) error {
			return paperBroker.PlaceOrders(ctx, intents)
		},
		CancelOrder: func(orderID string, reason string) error {
			return paperBroker.CancelOrder(ctx, orderID, reason)
		},
		PersistTrade:     persistTradeFunc,
		OnPositionOpened: positionOpenedFunc,
		OnPositionClosed: positionClosedFunc,
		Notify: func(message string) {
			logger.Info().Msg(message)
		},
		Logger: &positionMgrLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating position manager: %v", err)
	}

	engineLogger := logger.With().Str("component", "engine").Logger()
	strategyEngine, err = engine.NewEngine(&engine.EngineConfig{
		Strategy:        strategy,
		SendEntrySignal: positionMgr.SendEntrySignal,
		SendExitSignal:  positionMgr.SendExitSignal,
		MarketState:     positionMgr.State,
		Logger:          &engineLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating strategy engine: %v", err)
	}

	service := &Stratus{
		cfg:             cfg,
		strategy:        strategy,
		db:              db,
		paperBroker:     paperBroker,
		positionManager: positionMgr,
		strategyEngine:  strategyEngine,
		candles:         make(chan shared.Candlestick, candleBufferSize),
		logger:          &logger,
	}

	sendMarketUpdateFunc := func(candle shared.Candlestick) {
		service.candles <- candle
	}

	if cfg.Backtest {
		if len(strategy.Markets) != 1 {
			return nil, fmt.Errorf("backtests evaluate a single market, got %d", len(strategy.Markets))
		}

		historicDataLogger := logger.With().Str("component", "historicdata").Logger()
		service.historicData, err = fetch.NewHistoricData(&fetch.HistoricDataConfig{
			Market:           strategy.Markets[0],
			Timeframe:        strategy.Timeframe,
			FilePath:         cfg.BacktestDataFilepath,
			SendMarketUpdate: sendMarketUpdateFunc,
			Logger:           &historicDataLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating historic data: %v", err)
		}

		return service, nil
	}

	exchangeClient, err := fetch.NewClient(&fetch.ClientConfig{
		BaseURL: cfg.ExchangeBaseURL,
		APIKey:  cfg.ExchangeAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating exchange client: %v", err)
	}

	jobScheduler := gocron.NewScheduler(time.UTC)

	fetchMgrLogger := logger.With().Str("component", "fetchmanager").Logger()
	service.fetchManager, err = fetch.NewManager(&fetch.ManagerConfig{
		Markets:        strategy.Markets,
		Timeframe:      strategy.Timeframe,
		ExchangeClient: exchangeClient,
		JobScheduler:   jobScheduler,
		Logger:         &fetchMgrLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating fetch manager: %v", err)
	}

	service.fetchManager.Subscribe(&service.candles)

	streamLogger := logger.With().Str("component", "stream").Logger()
	service.stream, err = fetch.NewStream(&fetch.StreamConfig{
		URL:              cfg.ExchangeWSURL,
		Markets:          strategy.Markets,
		Timeframe:        strategy.Timeframe,
		SendMarketUpdate: service.fetchManager.NotifySubscribers,
		Logger:           &streamLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating candle stream: %v", err)
	}

	return service, nil
}

// Active reports whether the service is evaluating bars.
func (s *Stratus) Active() bool {
	return s.active.Load()
}

// persistStatus records the strategy run status when persistence is enabled.
func (s *Stratus) persistStatus(ctx context.Context, state string, detail string) {
	if s.db == nil {
		return
	}
	if err := s.db.PersistStrategyStatus(ctx, s.strategy.Name, state, detail); err != nil {
		s.logger.Error().Msgf("persisting strategy status: %v", err)
	}
}

// handleMarketUpdate processes the provided market update: resting paper
// orders match against the bar first, then the strategy evaluates it.
func (s *Stratus) handleMarketUpdate(candle *shared.Candlestick) {
	s.paperBroker.OnBar(candle)

	if err := s.strategyEngine.OnBar(candle); err != nil {
		s.logger.Error().Msgf("evaluating bar for %s: %v", candle.Market, err)
	}
}

// reportTrades logs a summary of the recorded trades.
func (s *Stratus) reportTrades() {
	trades := s.positionManager.Trades()

	var wins, losses int
	var netPNL float64
	for _, trade := range trades {
		switch {
		case trade.NetPNL > 0:
			wins++
		case trade.NetPNL < 0:
			losses++
		}
		netPNL += trade.NetPNL
	}

	s.logger.Info().Msgf("recorded %d trades: %d wins, %d losses, net pnl %.2f, final cash %.2f",
		len(trades), wins, losses, netPNL, s.strategyEngine.Portfolio().Cash())
}

// Run handles the lifecycle processes of the stratus service.
func (s *Stratus) Run(ctx context.Context) {
	s.active.Store(true)
	s.persistStatus(ctx, "active", fmt.Sprintf("evaluating %d markets", len(s.strategy.Markets)))

	s.wg.Add(1)
	go func() {
		s.positionManager.Run(ctx)
		s.wg.Done()
	}()

	switch {
	case s.cfg.Backtest:
		go func() {
			// wait briefly for initialization.
			time.Sleep(time.Second * 1)
			s.historicData.ProcessHistoricData()

			// Allow in-flight signals to settle before reporting.
			time.Sleep(time.Second * 1)
			s.reportTrades()

			s.logger.Info().Msgf("backtest for %s done", s.strategy.Markets[0])
			s.cfg.Cancel()
		}()
	default:
		s.wg.Add(2)
		go func() {
			s.fetchManager.Run(ctx)
			s.wg.Done()
		}()

		go func() {
			s.stream.Run(ctx)
			s.wg.Done()
		}()

		// Backfill the tracked markets to warm up indicators before live
		// bars arrive.
		start := time.Now().Add(-time.Duration(backfillBars) * s.strategy.Timeframe.Duration())
		for _, market := range s.strategy.Markets {
			s.fetchManager.SendCatchUpSignal(fetch.CatchUpSignal{
				Market:    market,
				Timeframe: s.strategy.Timeframe,
				Start:     start,
			})
		}
	}

	for {
		select {
		case candle := <-s.candles:
			s.handleMarketUpdate(&candle)
		case <-ctx.Done():
			s.positionManager.FlushOrders("strategy run cancelled")
			s.active.Store(false)
			s.persistStatus(context.Background(), "stopped", "strategy run cancelled")
			s.wg.Wait()
			return
		}
	}
}
