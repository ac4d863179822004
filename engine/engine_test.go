package engine

import (
	"testing"
	"time"

	"github.com/dnldd/stratus/indicator"
	"github.com/dnldd/stratus/position"
	"github.com/dnldd/stratus/risk"
	"github.com/dnldd/stratus/rule"
	"github.com/dnldd/stratus/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// engineHarness captures the signals emitted by an engine under test and
// controls the market states it observes.
type engineHarness struct {
	eng     *Engine
	entries []shared.EntrySignal
	exits   []shared.ExitSignal
	managed []string
	states  map[string]position.State
}

func setupEngine(t *testing.T, strategy *StrategyConfig) *engineHarness {
	t.Helper()

	h := &engineHarness{states: make(map[string]position.State)}

	cfg := &EngineConfig{
		Strategy: strategy,
		SendEntrySignal: func(signal shared.EntrySignal) {
			h.entries = append(h.entries, signal)
		},
		SendExitSignal: func(signal shared.ExitSignal) {
			h.exits = append(h.exits, signal)
		},
		MarketState: func(market string) position.State {
			return h.states[market]
		},
		ManagePosition: func(market string, candle *shared.Candlestick) {
			h.managed = append(h.managed, market)
		},
		Logger: &log.Logger,
	}

	eng, err := NewEngine(cfg)
	assert.NoError(t, err)
	h.eng = eng

	return h
}

func baseStrategy(markets ...string) *StrategyConfig {
	return &StrategyConfig{
		Name:        "test strategy",
		Markets:     markets,
		MarketType:  shared.Spot,
		Direction:   shared.Long,
		Timeframe:   shared.FiveMinute,
		Indicators:  map[string]indicator.Spec{},
		EntryRules:  &rule.Set{},
		ExitRules:   &rule.Set{},
		InitialCash: 10000,
		Risk: risk.Params{
			RiskPerTrade:    0.02,
			MaxPositionSize: 0.1,
			StopLoss:        0.04,
			TakeProfit:      0.08,
		},
	}
}

func bar(market string, close float64, stamp time.Time) *shared.Candlestick {
	return &shared.Candlestick{
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1,
		Date:      stamp,
		Market:    market,
		Timeframe: shared.FiveMinute,
	}
}

func TestEngineConfigValidate(t *testing.T) {
	// Ensure an incomplete config is rejected.
	cfg := &EngineConfig{}
	_, err := NewEngine(cfg)
	assert.Error(t, err)
}

func TestEngineRejectsInvalidStrategy(t *testing.T) {
	strategy := baseStrategy("BTC/USDT", "BTC/USDT")
	strategy.EntryRules = &rule.Set{Rules: []rule.Rule{
		rule.Comparison{Op: ">", Left: rule.IndicatorRef{ID: "missing"}, Right: rule.Literal{Value: 0}},
	}}

	cfg := &EngineConfig{
		Strategy:        strategy,
		SendEntrySignal: func(shared.EntrySignal) {},
		SendExitSignal:  func(shared.ExitSignal) {},
		MarketState:     func(string) position.State { return position.Flat },
		Logger:          &log.Logger,
	}

	// Both the duplicate market and the unknown indicator reference
	// surface at activation.
	_, err := NewEngine(cfg)
	assert.Error(t, err)
}

func TestWarmupSuppressesEntries(t *testing.T) {
	market := "BTC/USDT"
	strategy := baseStrategy(market)
	strategy.Indicators = map[string]indicator.Spec{
		"sma20": {Kind: indicator.KindSMA, Params: map[string]float64{"period": 20}},
	}
	strategy.EntryRules = &rule.Set{Rules: []rule.Rule{
		rule.Comparison{Op: ">", Left: rule.BarField{Field: shared.CloseField}, Right: rule.IndicatorRef{ID: "sma20"}},
	}}

	h := setupEngine(t, strategy)
	now := time.Now()

	// Five bars against a twenty period average: the indicator is still
	// warming up, so the comparison cannot hold and no entry is emitted.
	for idx := 0; idx < 5; idx++ {
		err := h.eng.OnBar(bar(market, 50+float64(idx), now.Add(time.Duration(idx)*time.Minute)))
		assert.NoError(t, err)
	}

	assert.Equal(t, len(h.entries), 0)
}

func TestEmptyRuleSetsNeverSignal(t *testing.T) {
	market := "BTC/USDT"
	h := setupEngine(t, baseStrategy(market))
	now := time.Now()

	// An empty entry rule set never enters.
	assert.NoError(t, h.eng.OnBar(bar(market, 50, now)))
	assert.Equal(t, len(h.entries), 0)

	// An empty exit rule set never exits; the open position falls through
	// to the management hook instead.
	h.states[market] = position.Open
	assert.NoError(t, h.eng.OnBar(bar(market, 55, now.Add(time.Minute))))
	assert.Equal(t, len(h.exits), 0)
	assert.Equal(t, h.managed, []string{market})
}

func TestEntrySignalSizing(t *testing.T) {
	market := "BTC/USDT"
	strategy := baseStrategy(market)
	strategy.Risk.MaxPositionSize = 1
	strategy.EntryRules = &rule.Set{Rules: []rule.Rule{
		rule.Comparison{Op: ">", Left: rule.BarField{Field: shared.CloseField}, Right: rule.Literal{Value: 0}},
	}}

	h := setupEngine(t, strategy)
	now := time.Now()

	assert.NoError(t, h.eng.OnBar(bar(market, 50, now)))
	assert.Equal(t, len(h.entries), 1)

	// Quantity is the per-trade risk amount over price, with protective
	// prices derived from the entry.
	signal := h.entries[0]
	assert.Equal(t, signal.Market, market)
	assert.Equal(t, signal.Direction, shared.Long)
	assert.Equal(t, signal.Size, float64(4))
	assert.Equal(t, signal.Price, float64(50))
	assert.Equal(t, signal.StopLoss, float64(48))
	assert.Equal(t, signal.TakeProfit, float64(54))

	// A market awaiting its entry confirmation holds.
	h.states[market] = position.EntryPending
	assert.NoError(t, h.eng.OnBar(bar(market, 51, now.Add(time.Minute))))
	assert.Equal(t, len(h.entries), 1)
}

func TestShortEntryMirrorsBracket(t *testing.T) {
	market := "BTC/USDT"
	strategy := baseStrategy(market)
	strategy.Direction = shared.Short
	strategy.Risk.MaxPositionSize = 1
	strategy.EntryRules = &rule.Set{Rules: []rule.Rule{
		rule.Comparison{Op: ">", Left: rule.BarField{Field: shared.CloseField}, Right: rule.Literal{Value: 0}},
	}}

	h := setupEngine(t, strategy)

	assert.NoError(t, h.eng.OnBar(bar(market, 50, time.Now())))
	assert.Equal(t, len(h.entries), 1)

	// A short's stop sits above entry and its target below.
	signal := h.entries[0]
	assert.Equal(t, signal.Direction, shared.Short)
	assert.Equal(t, signal.StopLoss, 50*(1+0.04))
	assert.Equal(t, signal.TakeProfit, 50*(1-0.08))
}

func TestSameBarCashSnapshot(t *testing.T) {
	first, second := "BTC/USDT", "ETH/USDT"
	strategy := baseStrategy(first, second)
	strategy.Risk.MaxPositionSize = 1
	strategy.EntryRules = &rule.Set{Rules: []rule.Rule{
		rule.Comparison{Op: ">", Left: rule.BarField{Field: shared.CloseField}, Right: rule.Literal{Value: 0}},
	}}

	h := setupEngine(t, strategy)
	now := time.Now()

	// Both markets signal entries for the same timestamp. The first market
	// in configured order sizes against the full pool; the second sizes
	// against what remains after the first's notional is reserved.
	assert.NoError(t, h.eng.OnBar(bar(first, 50, now)))
	assert.NoError(t, h.eng.OnBar(bar(second, 50, now)))

	assert.Equal(t, len(h.entries), 2)
	assert.Equal(t, h.entries[0].Size, float64(4))
	assert.Equal(t, h.entries[1].Size, 3.92)

	// A fresh timestamp resets the sizing snapshot to settled cash.
	assert.NoError(t, h.eng.OnBar(bar(first, 50, now.Add(time.Minute))))
	assert.Equal(t, h.entries[2].Size, float64(4))
}

func TestExitSignal(t *testing.T) {
	market := "BTC/USDT"
	strategy := baseStrategy(market)
	strategy.ExitRules = &rule.Set{Rules: []rule.Rule{
		rule.Comparison{Op: "<", Left: rule.BarField{Field: shared.CloseField}, Right: rule.Literal{Value: 49}},
	}}

	h := setupEngine(t, strategy)
	h.states[market] = position.Open
	now := time.Now()

	// A bar that does not meet the exit condition leaves the position open.
	assert.NoError(t, h.eng.OnBar(bar(market, 50, now)))
	assert.Equal(t, len(h.exits), 0)

	assert.NoError(t, h.eng.OnBar(bar(market, 48, now.Add(time.Minute))))
	assert.Equal(t, len(h.exits), 1)
	assert.Equal(t, h.exits[0].Market, market)
	assert.Equal(t, h.exits[0].Price, float64(48))
}

func TestUnknownMarketBar(t *testing.T) {
	h := setupEngine(t, baseStrategy("BTC/USDT"))

	err := h.eng.OnBar(bar("SOL/USDT", 50, time.Now()))
	assert.Error(t, err)
}
