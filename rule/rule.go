// Package rule provides a closed expression tree for strategy entry and
// exit conditions. Rules are structured data, not code: they can reference
// only the current bar's fields and the market's indicator values, and are
// validated against the declared indicator set at strategy activation.
package rule

import (
	"github.com/dnldd/stratus/indicator"
	"github.com/dnldd/stratus/shared"
)

// Comparison operators.
const (
	GreaterThan    = ">"
	LessThan       = "<"
	GreaterOrEqual = ">="
	LessOrEqual    = "<="
	Equal          = "=="
	NotEqual       = "!="
)

// Env provides the read-only inputs available to rule evaluation: the
// current bar and the market's indicator snapshot.
type Env struct {
	Candle   *shared.Candlestick
	Snapshot indicator.Snapshot
}

// NewEnv initializes an evaluation environment.
func NewEnv(candle *shared.Candlestick, snapshot indicator.Snapshot) *Env {
	return &Env{
		Candle:   candle,
		Snapshot: snapshot,
	}
}

// Operand represents a value term of a comparison.
type Operand interface {
	// fetch returns the operand value. The second return is false when the
	// value is unavailable, eg. an indicator still warming up.
	fetch(env *Env) (float64, bool)
	// validate checks the operand against the declared indicator ids.
	validate(ids map[string]struct{}) error
}

// IndicatorRef references a declared indicator by id.
type IndicatorRef struct {
	ID string
}

func (r IndicatorRef) fetch(env *Env) (float64, bool) {
	val, ok := env.Snapshot[r.ID]
	if !ok || !val.Ready {
		return 0, false
	}
	return val.Value, true
}

func (r IndicatorRef) validate(ids map[string]struct{}) error {
	if _, ok := ids[r.ID]; !ok {
		return shared.ConfigurationError("rule references unknown indicator: %s", r.ID)
	}
	return nil
}

// BarField references a field of the current bar.
type BarField struct {
	Field string
}

func (f BarField) fetch(env *Env) (float64, bool) {
	return env.Candle.FetchField(f.Field)
}

func (f BarField) validate(_ map[string]struct{}) error {
	probe := shared.Candlestick{}
	if _, ok := probe.FetchField(f.Field); !ok {
		return shared.ConfigurationError("rule references unknown bar field: %s", f.Field)
	}
	return nil
}

// Literal is a constant numeric operand.
type Literal struct {
	Value float64
}

func (l Literal) fetch(_ *Env) (float64, bool) { return l.Value, true }

func (l Literal) validate(_ map[string]struct{}) error { return nil }

// Rule represents a boolean condition over an evaluation environment.
type Rule interface {
	// Evaluate reports whether the condition holds for the provided
	// environment. Evaluation is pure and never errors: a condition whose
	// operands are unavailable evaluates to false.
	Evaluate(env *Env) bool
	// Validate checks the condition against the declared indicator ids.
	Validate(ids map[string]struct{}) error
	// eval reports the condition value and whether it is known. A condition
	// referencing an unavailable operand (indicator warm-up) is unknown, and
	// unknownness propagates through enclosing conditions so negation can
	// never turn a warming indicator into a held condition.
	eval(env *Env) (value bool, known bool)
}

// Comparison compares two operands with a relational operator.
type Comparison struct {
	Op    string
	Left  Operand
	Right Operand
}

// Evaluate reports whether the comparison holds. A comparison whose operand
// is unavailable (indicator warm-up) evaluates to false.
func (c Comparison) Evaluate(env *Env) bool {
	v, known := c.eval(env)
	return known && v
}

func (c Comparison) eval(env *Env) (bool, bool) {
	left, ok := c.Left.fetch(env)
	if !ok {
		return false, false
	}
	right, ok := c.Right.fetch(env)
	if !ok {
		return false, false
	}

	switch c.Op {
	case GreaterThan:
		return left > right, true
	case LessThan:
		return left < right, true
	case GreaterOrEqual:
		return left >= right, true
	case LessOrEqual:
		return left <= right, true
	case Equal:
		return left == right, true
	case NotEqual:
		return left != right, true
	default:
		return false, false
	}
}

// Validate checks the comparison operator and operands.
func (c Comparison) Validate(ids map[string]struct{}) error {
	switch c.Op {
	case GreaterThan, LessThan, GreaterOrEqual, LessOrEqual, Equal, NotEqual:
	default:
		return shared.ConfigurationError("unknown comparison operator: %q", c.Op)
	}

	if c.Left == nil || c.Right == nil {
		return shared.ConfigurationError("comparison missing an operand")
	}
	if err := c.Left.validate(ids); err != nil {
		return err
	}

	return c.Right.validate(ids)
}

// And holds when all of its conditions hold.
type And struct {
	Rules []Rule
}

// Evaluate reports whether all conditions hold.
func (a And) Evaluate(env *Env) bool {
	v, known := a.eval(env)
	return known && v
}

func (a And) eval(env *Env) (bool, bool) {
	for idx := range a.Rules {
		v, known := a.Rules[idx].eval(env)
		if !known {
			return false, false
		}
		if !v {
			return false, true
		}
	}
	return len(a.Rules) > 0, true
}

// Validate checks all conditions.
func (a And) Validate(ids map[string]struct{}) error {
	for idx := range a.Rules {
		if err := a.Rules[idx].Validate(ids); err != nil {
			return err
		}
	}
	return nil
}

// Or holds when any of its conditions hold.
type Or struct {
	Rules []Rule
}

// Evaluate reports whether any condition holds.
func (o Or) Evaluate(env *Env) bool {
	v, known := o.eval(env)
	return known && v
}

func (o Or) eval(env *Env) (bool, bool) {
	for idx := range o.Rules {
		v, known := o.Rules[idx].eval(env)
		if !known {
			return false, false
		}
		if v {
			return true, true
		}
	}
	return false, true
}

// Validate checks all conditions.
func (o Or) Validate(ids map[string]struct{}) error {
	for idx := range o.Rules {
		if err := o.Rules[idx].Validate(ids); err != nil {
			return err
		}
	}
	return nil
}

// Not inverts a condition.
type Not struct {
	Rule Rule
}

// Evaluate reports whether the wrapped condition does not hold. Negating an
// unknown condition stays unknown, it does not become a held condition.
func (n Not) Evaluate(env *Env) bool {
	v, known := n.eval(env)
	return known && v
}

func (n Not) eval(env *Env) (bool, bool) {
	v, known := n.Rule.eval(env)
	if !known {
		return false, false
	}
	return !v, true
}

// Validate checks the wrapped condition.
func (n Not) Validate(ids map[string]struct{}) error {
	if n.Rule == nil {
		return shared.ConfigurationError("not condition missing its operand")
	}
	return n.Rule.Validate(ids)
}

// Set represents a strategy rule set. All member conditions must hold for
// the set to hold; an empty set never holds.
type Set struct {
	Rules []Rule
}

// Evaluate reports whether the rule set holds for the provided environment.
// An empty rule set evaluates to false: no condition means no action. An
// unknown condition collapses to false here, at the root.
func (s *Set) Evaluate(env *Env) bool {
	if len(s.Rules) == 0 {
		return false
	}

	for idx := range s.Rules {
		v, known := s.Rules[idx].eval(env)
		if !known || !v {
			return false
		}
	}

	return true
}

// Validate checks every condition of the set against the declared
// indicator ids.
func (s *Set) Validate(indicatorIDs []string) error {
	ids := make(map[string]struct{}, len(indicatorIDs))
	for _, id := range indicatorIDs {
		ids[id] = struct{}{}
	}

	for idx := range s.Rules {
		if err := s.Rules[idx].Validate(ids); err != nil {
			return err
		}
	}

	return nil
}
