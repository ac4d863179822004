// Package engine orchestrates per-bar strategy evaluation: indicator
// updates, rule evaluation, position sizing and signal dispatch.
package engine

import (
	"errors"
	"fmt"

	"github.com/dnldd/stratus/indicator"
	"github.com/dnldd/stratus/position"
	"github.com/dnldd/stratus/risk"
	"github.com/dnldd/stratus/rule"
	"github.com/dnldd/stratus/shared"
	"github.com/rs/zerolog"
)

// EngineConfig represents the strategy engine configuration.
type EngineConfig struct {
	// Strategy is the validated strategy configuration for this run.
	Strategy *StrategyConfig
	// SendEntrySignal relays the provided entry signal for processing.
	SendEntrySignal func(signal shared.EntrySignal)
	// SendExitSignal relays the provided exit signal for processing.
	SendExitSignal func(signal shared.ExitSignal)
	// MarketState returns the lifecycle state of the provided market.
	MarketState func(market string) position.State
	// ManagePosition is invoked for each bar of an open market that did not
	// signal an exit: an extension point for trailing stops and similar
	// position management. Optional.
	ManagePosition func(market string, candle *shared.Candlestick)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *EngineConfig) Validate() error {
	var errs error

	if cfg.Strategy == nil {
		errs = errors.Join(errs, fmt.Errorf("strategy configuration cannot be nil"))
	}
	if cfg.SendEntrySignal == nil {
		errs = errors.Join(errs, fmt.Errorf("entry signal function cannot be nil"))
	}
	if cfg.SendExitSignal == nil {
		errs = errors.Join(errs, fmt.Errorf("exit signal function cannot be nil"))
	}
	if cfg.MarketState == nil {
		errs = errors.Join(errs, fmt.Errorf("market state function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Engine evaluates a strategy against incoming bars. Bars are processed
// strictly in the order delivered; callers feeding multiple markets for a
// shared timestamp must deliver them in the configured market order, which
// is the documented priority for competing entry signals.
type Engine struct {
	cfg        *EngineConfig
	indicators *indicator.Engine
	entryRules *rule.Set
	exitRules  *rule.Set
	portfolio  *Portfolio
}

// NewEngine initializes a strategy engine for the provided configuration.
// The strategy configuration is validated here, at activation: malformed
// rules, unknown indicator kinds or out-of-range risk fractions fail fast.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}

	indicators, err := indicator.NewEngine(cfg.Strategy.Indicators, cfg.Strategy.Markets)
	if err != nil {
		return nil, err
	}

	entryRules := cfg.Strategy.EntryRules
	if entryRules == nil {
		entryRules = &rule.Set{}
	}
	exitRules := cfg.Strategy.ExitRules
	if exitRules == nil {
		exitRules = &rule.Set{}
	}

	return &Engine{
		cfg:        cfg,
		indicators: indicators,
		entryRules: entryRules,
		exitRules:  exitRules,
		portfolio:  NewPortfolio(cfg.Strategy.InitialCash),
	}, nil
}

// Portfolio returns the strategy run's cash pool.
func (e *Engine) Portfolio() *Portfolio { return e.portfolio }

// OnBar feeds the provided bar to the indicator engine and evaluates the
// market's rule sets against the refreshed snapshot: flat markets evaluate
// entry rules, open markets exit rules. Markets awaiting order
// confirmations hold.
func (e *Engine) OnBar(candle *shared.Candlestick) error {
	snapshot, err := e.indicators.Update(candle)
	if err != nil {
		return err
	}

	e.portfolio.BeginBar(candle.Date)
	env := rule.NewEnv(candle, snapshot)

	switch e.cfg.MarketState(candle.Market) {
	case position.Flat:
		if !e.entryRules.Evaluate(env) {
			return nil
		}
		return e.signalEntry(candle)

	case position.Open:
		if e.exitRules.Evaluate(env) {
			e.cfg.SendExitSignal(shared.NewExitSignal(candle.Market, e.cfg.Strategy.Direction,
				candle.Close, candle.Date))
			return nil
		}
		if e.cfg.ManagePosition != nil {
			e.cfg.ManagePosition(candle.Market, candle)
		}

	default:
		// Entry or exit confirmation pending, nothing to evaluate.
	}

	return nil
}

// signalEntry sizes and dispatches an entry signal for the provided bar.
func (e *Engine) signalEntry(candle *shared.Candlestick) error {
	params := &e.cfg.Strategy.Risk

	size, err := risk.Size(e.portfolio.SizingCash(), candle.Close, params)
	if err != nil {
		return fmt.Errorf("%s: sizing entry: %w", candle.Market, err)
	}
	if size <= 0 {
		e.cfg.Logger.Debug().Msgf("%s: entry conditions met but no cash available for sizing",
			candle.Market)
		return nil
	}

	stop, target := risk.BracketPrices(candle.Close, e.cfg.Strategy.Direction, params)

	// Reserve the entry notional so markets evaluated later in this bar
	// size against the remaining pool.
	e.portfolio.Commit(size * candle.Close)

	e.cfg.SendEntrySignal(shared.NewEntrySignal(candle.Market, e.cfg.Strategy.Direction,
		candle.Close, size, stop, target, candle.Date))

	return nil
}
