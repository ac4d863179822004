// Package risk provides position sizing under a per-trade risk budget and
// bracket price computation for protective orders.
package risk

import (
	"errors"
	"math"

	"github.com/dnldd/stratus/shared"
)

// Params represents a strategy's risk parameters. All values are fractions
// of available capital or of the entry price.
type Params struct {
	// RiskPerTrade is the fraction of available cash risked per trade.
	RiskPerTrade float64
	// MaxPositionSize is the maximum fraction of available cash committed
	// to a single position.
	MaxPositionSize float64
	// StopLoss is the protective stop distance as a fraction of entry price.
	StopLoss float64
	// TakeProfit is the profit target distance as a fraction of entry price.
	TakeProfit float64
}

// Validate asserts the risk parameters are sane.
func (p *Params) Validate() error {
	var errs error

	if p.RiskPerTrade <= 0 || p.RiskPerTrade > 1 {
		errs = errors.Join(errs, shared.ConfigurationError("risk per trade must be in (0,1], got %v", p.RiskPerTrade))
	}
	if p.MaxPositionSize <= 0 || p.MaxPositionSize > 1 {
		errs = errors.Join(errs, shared.ConfigurationError("max position size must be in (0,1], got %v", p.MaxPositionSize))
	}
	if p.StopLoss <= 0 || p.StopLoss >= 1 {
		errs = errors.Join(errs, shared.ConfigurationError("stop loss fraction must be in (0,1), got %v", p.StopLoss))
	}
	if p.TakeProfit <= 0 {
		errs = errors.Join(errs, shared.ConfigurationError("take profit fraction must be positive, got %v", p.TakeProfit))
	}

	return errs
}

// Size computes an order quantity for the provided available cash and price,
// bounded by both the per-trade risk amount and the maximum position
// fraction, floored at zero.
func Size(cash float64, price float64, params *Params) (float64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, shared.PreconditionError("price must be positive, got %v", price)
	}
	if cash < 0 {
		return 0, shared.PreconditionError("available cash cannot be negative, got %v", cash)
	}

	riskAmount := cash * params.RiskPerTrade
	maxSize := cash * params.MaxPositionSize / price
	candidate := riskAmount / price

	size := math.Min(candidate, maxSize)
	if size < 0 {
		size = 0
	}

	return size, nil
}

// BracketPrices returns the protective stop and target prices for the
// provided entry price and direction. Signs are mirrored for shorts: a
// short's stop sits above entry and its target below.
func BracketPrices(entry float64, direction shared.Direction, params *Params) (float64, float64) {
	sign := direction.Sign()
	stop := entry * (1 - sign*params.StopLoss)
	target := entry * (1 + sign*params.TakeProfit)

	return stop, target
}
