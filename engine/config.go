package engine

import (
	"errors"

	"github.com/dnldd/stratus/indicator"
	"github.com/dnldd/stratus/risk"
	"github.com/dnldd/stratus/rule"
	"github.com/dnldd/stratus/shared"
	"github.com/tidwall/gjson"
)

// StrategyConfig represents an immutable per-run strategy configuration.
// Activating a changed configuration means starting a new run: existing
// positions are never silently migrated.
type StrategyConfig struct {
	// Name identifies the strategy.
	Name string
	// Markets is the ordered set of traded markets. The order is the
	// evaluation priority when markets share a bar timestamp: earlier
	// markets win remaining cash.
	Markets []string
	// MarketType is the type of market the strategy trades.
	MarketType shared.MarketType
	// Direction is the side the strategy trades.
	Direction shared.Direction
	// Timeframe is the bar timeframe the strategy evaluates.
	Timeframe shared.Timeframe
	// Indicators maps indicator ids to their specs.
	Indicators map[string]indicator.Spec
	// EntryRules is the rule set opening positions.
	EntryRules *rule.Set
	// ExitRules is the rule set closing positions.
	ExitRules *rule.Set
	// Risk holds the strategy's risk parameters.
	Risk risk.Params
	// InitialCash is the strategy's starting cash pool.
	InitialCash float64
}

// Validate asserts the strategy configuration is sane. All configuration
// errors surface here, at activation, never mid-run.
func (cfg *StrategyConfig) Validate() error {
	var errs error

	if cfg.Name == "" {
		errs = errors.Join(errs, shared.ConfigurationError("strategy name cannot be an empty string"))
	}
	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, shared.ConfigurationError("no markets provided for strategy"))
	}

	seen := make(map[string]struct{}, len(cfg.Markets))
	for _, market := range cfg.Markets {
		if market == "" {
			errs = errors.Join(errs, shared.ConfigurationError("market cannot be an empty string"))
			continue
		}
		if _, ok := seen[market]; ok {
			errs = errors.Join(errs, shared.ConfigurationError("duplicate market: %s", market))
		}
		seen[market] = struct{}{}
	}

	if cfg.InitialCash < 0 {
		errs = errors.Join(errs, shared.ConfigurationError("initial cash cannot be negative, got %v", cfg.InitialCash))
	}

	if err := cfg.Risk.Validate(); err != nil {
		errs = errors.Join(errs, err)
	}

	ids := make([]string, 0, len(cfg.Indicators))
	for id := range cfg.Indicators {
		ids = append(ids, id)
	}

	if cfg.EntryRules != nil {
		if err := cfg.EntryRules.Validate(ids); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if cfg.ExitRules != nil {
		if err := cfg.ExitRules.Validate(ids); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

// ParseStrategyConfig parses a strategy configuration from the provided
// json document:
//
//	{
//	  "name": "sma crossover",
//	  "markets": ["BTC/USDT", "ETH/USDT"],
//	  "marketType": "spot",
//	  "direction": "long",
//	  "timeframe": "5m",
//	  "initialCash": 10000,
//	  "indicators": {"sma20": {"kind": "sma", "params": {"period": 20}}},
//	  "entryRules": [ ...rule nodes ],
//	  "exitRules": [ ...rule nodes ],
//	  "risk": {"riskPerTrade": 0.02, "maxPositionSize": 0.1,
//	           "stopLoss": 0.04, "takeProfit": 0.08}
//	}
func ParseStrategyConfig(doc string) (*StrategyConfig, error) {
	if !gjson.Valid(doc) {
		return nil, shared.ConfigurationError("strategy config is not valid json")
	}

	data := gjson.Parse(doc)
	cfg := &StrategyConfig{
		Name:        data.Get("name").String(),
		InitialCash: data.Get("initialCash").Float(),
	}

	for _, market := range data.Get("markets").Array() {
		cfg.Markets = append(cfg.Markets, market.String())
	}

	if mt := data.Get("marketType"); mt.Exists() {
		marketType, err := shared.ParseMarketType(mt.String())
		if err != nil {
			return nil, shared.ConfigurationError("parsing market type: %v", err)
		}
		cfg.MarketType = marketType
	}

	if dir := data.Get("direction"); dir.Exists() {
		direction, err := shared.ParseDirection(dir.String())
		if err != nil {
			return nil, shared.ConfigurationError("parsing direction: %v", err)
		}
		cfg.Direction = direction
	}

	if tf := data.Get("timeframe"); tf.Exists() {
		timeframe, err := shared.ParseTimeframe(tf.String())
		if err != nil {
			return nil, shared.ConfigurationError("parsing timeframe: %v", err)
		}
		cfg.Timeframe = timeframe
	}

	cfg.Indicators = make(map[string]indicator.Spec)
	data.Get("indicators").ForEach(func(key, value gjson.Result) bool {
		spec := indicator.Spec{
			Kind:   value.Get("kind").String(),
			Params: make(map[string]float64),
		}
		value.Get("params").ForEach(func(param, number gjson.Result) bool {
			spec.Params[param.String()] = number.Float()
			return true
		})
		cfg.Indicators[key.String()] = spec
		return true
	})

	// Missing rule sets are empty rule sets: no condition, no action.
	cfg.EntryRules = &rule.Set{}
	if entryRules := data.Get("entryRules"); entryRules.Exists() {
		parsed, err := rule.ParseSet(entryRules.Raw)
		if err != nil {
			return nil, err
		}
		cfg.EntryRules = parsed
	}

	cfg.ExitRules = &rule.Set{}
	if exitRules := data.Get("exitRules"); exitRules.Exists() {
		parsed, err := rule.ParseSet(exitRules.Raw)
		if err != nil {
			return nil, err
		}
		cfg.ExitRules = parsed
	}

	riskData := data.Get("risk")
	cfg.Risk = risk.Params{
		RiskPerTrade:    riskData.Get("riskPerTrade").Float(),
		MaxPositionSize: riskData.Get("maxPositionSize").Float(),
		StopLoss:        riskData.Get("stopLoss").Float(),
		TakeProfit:      riskData.Get("takeProfit").Float(),
	}

	return cfg, nil
}
