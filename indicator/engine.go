package indicator

import (
	"fmt"
	"sort"

	"github.com/dnldd/stratus/shared"
)

// Spec describes a configured indicator instance.
type Spec struct {
	// Kind is the indicator kind.
	Kind string
	// Params holds the indicator parameters (period, stddev, ...).
	Params map[string]float64
}

// Value represents a computed indicator value and its readiness. An
// indicator that has not completed its warm-up reports Ready false.
type Value struct {
	Value float64
	Ready bool
}

// Snapshot maps indicator ids to their computed values for a market. A new
// snapshot is produced on every update; snapshots are never mutated after
// being returned.
type Snapshot map[string]Value

// Engine maintains the configured indicator set for each tracked market.
// Markets update independently of each other.
type Engine struct {
	markets map[string]map[string]Indicator
	ids     []string
}

// NewEngine initializes indicators for every (market, id) pairing from the
// provided specs. Unknown kinds or invalid parameters fail construction.
func NewEngine(specs map[string]Spec, markets []string) (*Engine, error) {
	engine := &Engine{
		markets: make(map[string]map[string]Indicator, len(markets)),
		ids:     make([]string, 0, len(specs)),
	}

	for id := range specs {
		engine.ids = append(engine.ids, id)
	}
	sort.Strings(engine.ids)

	for _, market := range markets {
		set := make(map[string]Indicator, len(specs))
		for id, spec := range specs {
			ind, err := New(spec.Kind, spec.Params)
			if err != nil {
				return nil, fmt.Errorf("indicator %q: %w", id, err)
			}
			set[id] = ind
		}
		engine.markets[market] = set
	}

	return engine, nil
}

// IDs returns the declared indicator ids, sorted.
func (e *Engine) IDs() []string { return e.ids }

// Update feeds the provided candle to the market's indicators and returns a
// fresh snapshot of their values.
func (e *Engine) Update(candle *shared.Candlestick) (Snapshot, error) {
	set, ok := e.markets[candle.Market]
	if !ok {
		return nil, fmt.Errorf("no indicators configured for market %s", candle.Market)
	}

	snapshot := make(Snapshot, len(set))
	for id, ind := range set {
		ind.Update(candle)
		snapshot[id] = Value{Value: ind.Value(), Ready: ind.Ready()}
	}

	return snapshot, nil
}
