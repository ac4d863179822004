package engine

import (
	"sync"
	"time"
)

// Portfolio tracks a strategy run's single cash pool. Sizing decisions read
// a snapshot of cash taken once per bar timestamp: when several markets
// signal entries within the same bar, earlier markets commit notional
// against the snapshot and later ones size against the remainder, so the
// pool is never over-committed within a step.
type Portfolio struct {
	mtx        sync.Mutex
	cash       float64
	barStamp   time.Time
	sizingCash float64
}

// NewPortfolio initializes a portfolio with the provided starting cash.
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		cash:       initialCash,
		sizingCash: initialCash,
	}
}

// BeginBar refreshes the sizing snapshot when the provided timestamp opens
// a new bar step. Re-feeding a timestamp already begun keeps the current
// snapshot and its commitments.
func (p *Portfolio) BeginBar(stamp time.Time) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if !stamp.Equal(p.barStamp) {
		p.barStamp = stamp
		p.sizingCash = p.cash
	}
}

// SizingCash returns the cash available for sizing within the current bar.
func (p *Portfolio) SizingCash() float64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.sizingCash
}

// Commit reserves the provided notional against the current bar's snapshot.
func (p *Portfolio) Commit(notional float64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.sizingCash -= notional
	if p.sizingCash < 0 {
		p.sizingCash = 0
	}
}

// Debit deducts the provided amount from the cash pool, eg. on an entry fill.
func (p *Portfolio) Debit(amount float64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.cash -= amount
}

// Credit returns the provided amount to the cash pool, eg. on a closed trade.
func (p *Portfolio) Credit(amount float64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.cash += amount
}

// Cash returns the current settled cash of the pool.
func (p *Portfolio) Cash() float64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.cash
}
