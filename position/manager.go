package position

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dnldd/stratus/shared"
	"github.com/rs/zerolog"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
)

// ManagerConfig represents the position manager configuration.
type ManagerConfig struct {
	// Markets represents the collection of managed markets.
	Markets []string
	// PlaceOrders routes the provided intents to the execution collaborator.
	PlaceOrders func(intents []shared.OrderIntent) error
	// CancelOrder cancels an outstanding order with the execution collaborator.
	CancelOrder func(orderID string, reason string) error
	// PersistTrade persists the provided closed trade.
	PersistTrade func(trade *Trade) error
	// CostModel returns the execution cost deducted from a trade's gross
	// profit. Optional; a nil cost model means zero cost.
	CostModel func(trade *Trade) float64
	// OnPositionOpened is invoked after an entry fill opens a position.
	// Optional.
	OnPositionOpened func(position *Position)
	// OnPositionClosed is invoked after a round-trip is recorded. Optional.
	OnPositionClosed func(trade *Trade)
	// Notify sends the provided message. Optional.
	Notify func(message string)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if len(cfg.Markets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no markets provided for position manager"))
	}
	if cfg.PlaceOrders == nil {
		errs = errors.Join(errs, fmt.Errorf("place orders function cannot be nil"))
	}
	if cfg.CancelOrder == nil {
		errs = errors.Join(errs, fmt.Errorf("cancel order function cannot be nil"))
	}
	if cfg.PersistTrade == nil {
		errs = errors.Join(errs, fmt.Errorf("persist trade function cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// marketState tracks the lifecycle state and outstanding orders of one market.
type marketState struct {
	state     State
	bracket   *Bracket
	position  *Position
	exitOrder *shared.OrderIntent
}

// Manager drives positions and their orders through the
// flat → entry pending → open → exit pending lifecycle, one state machine
// per market.
type Manager struct {
	cfg        *ManagerConfig
	mtx        sync.RWMutex
	markets    map[string]*marketState
	orders     map[string]string // order id → market.
	trades     []*Trade
	entries    chan shared.EntrySignal
	exits      chan shared.ExitSignal
	fills      chan shared.Fill
	cancels    chan shared.Cancel
	rejections chan shared.MarginRejection
}

// NewManager initializes a new position manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	markets := make(map[string]*marketState, len(cfg.Markets))
	for _, market := range cfg.Markets {
		markets[market] = &marketState{state: Flat}
	}

	return &Manager{
		cfg:        cfg,
		markets:    markets,
		orders:     make(map[string]string),
		trades:     []*Trade{},
		entries:    make(chan shared.EntrySignal, bufferSize),
		exits:      make(chan shared.ExitSignal, bufferSize),
		fills:      make(chan shared.Fill, bufferSize),
		cancels:    make(chan shared.Cancel, bufferSize),
		rejections: make(chan shared.MarginRejection, bufferSize),
	}, nil
}

// SendEntrySignal relays the provided entry signal for processing.
func (m *Manager) SendEntrySignal(signal shared.EntrySignal) {
	select {
	case m.entries <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("entry signal channel at capacity: %d/%d",
			len(m.entries), bufferSize)
	}
}

// SendExitSignal relays the provided exit signal for processing.
func (m *Manager) SendExitSignal(signal shared.ExitSignal) {
	select {
	case m.exits <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("exit signal channel at capacity: %d/%d",
			len(m.exits), bufferSize)
	}
}

// NotifyFill relays the provided fill notification for processing.
func (m *Manager) NotifyFill(fill shared.Fill) {
	select {
	case m.fills <- fill:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("fill channel at capacity: %d/%d",
			len(m.fills), bufferSize)
	}
}

// NotifyCancel relays the provided cancel notification for processing.
func (m *Manager) NotifyCancel(cancel shared.Cancel) {
	select {
	case m.cancels <- cancel:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("cancel channel at capacity: %d/%d",
			len(m.cancels), bufferSize)
	}
}

// NotifyMarginRejection relays the provided margin rejection for processing.
func (m *Manager) NotifyMarginRejection(rejection shared.MarginRejection) {
	select {
	case m.rejections <- rejection:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("margin rejection channel at capacity: %d/%d",
			len(m.rejections), bufferSize)
	}
}

// State returns the lifecycle state of the provided market.
func (m *Manager) State(market string) State {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	ms, ok := m.markets[market]
	if !ok {
		return Flat
	}

	return ms.state
}

// PositionSnapshot returns a copy of the open position for the provided
// market, or nil when the market holds no position.
func (m *Manager) PositionSnapshot(market string) *Position {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	ms, ok := m.markets[market]
	if !ok || ms.position == nil {
		return nil
	}

	snapshot := *ms.position
	return &snapshot
}

// Trades returns a copy of the recorded trade history.
func (m *Manager) Trades() []*Trade {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	trades := make([]*Trade, len(m.trades))
	copy(trades, m.trades)
	return trades
}

// notify sends the provided message when a notifier is configured.
func (m *Manager) notify(message string) {
	if m.cfg.Notify != nil {
		m.cfg.Notify(message)
	}
}

// handleEntrySignal processes the provided entry signal. Entry signals are
// acted on only for flat markets: re-evaluating an unchanged bar against a
// non-flat market is a no-op, never a duplicate bracket.
func (m *Manager) handleEntrySignal(signal shared.EntrySignal) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	ms, ok := m.markets[signal.Market]
	if !ok {
		m.cfg.Logger.Error().Msgf("entry signal for unmanaged market: %s", signal.Market)
		return
	}

	if ms.state != Flat {
		m.cfg.Logger.Debug().Msgf("%s: ignoring entry signal in %s state",
			signal.Market, ms.state.String())
		return
	}

	bracket, err := NewBracket(&signal)
	if err != nil {
		m.cfg.Logger.Error().Msgf("creating bracket: %v", err)
		return
	}

	if err := m.cfg.PlaceOrders(bracket.Intents()); err != nil {
		m.cfg.Logger.Error().Msgf("%s: placing bracket orders: %v", signal.Market, err)
		return
	}

	for _, intent := range bracket.Intents() {
		m.orders[intent.ID] = signal.Market
	}
	ms.bracket = bracket
	ms.state = EntryPending

	m.notify(fmt.Sprintf("Placed %s bracket for %s: size %v @ %v, stop %v, target %v",
		signal.Direction.String(), signal.Market, signal.Size, signal.Price,
		signal.StopLoss, signal.TakeProfit))
}

// handleExitSignal processes the provided exit signal. Exit signals are
// acted on only for open markets.
func (m *Manager) handleExitSignal(signal shared.ExitSignal) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	ms, ok := m.markets[signal.Market]
	if !ok {
		m.cfg.Logger.Error().Msgf("exit signal for unmanaged market: %s", signal.Market)
		return
	}

	if ms.state != Open {
		m.cfg.Logger.Debug().Msgf("%s: ignoring exit signal in %s state",
			signal.Market, ms.state.String())
		return
	}

	pos := ms.position
	closeSide := shared.Sell
	if pos.Direction == shared.Short {
		closeSide = shared.Buy
	}

	exit := shared.NewOrderIntent(pos.GroupID, pos.Market, closeSide, shared.MarketOrder,
		pos.Size, 0, signal.CreatedOn)
	if err := m.cfg.PlaceOrders([]shared.OrderIntent{exit}); err != nil {
		m.cfg.Logger.Error().Msgf("%s: placing exit order: %v", signal.Market, err)
		return
	}

	m.orders[exit.ID] = signal.Market
	ms.exitOrder = &exit
	ms.state = ExitPending

	// The position is being closed by rule, the protective pair is moot.
	m.cancelProtectives(ms, "exit signal")

	m.notify(fmt.Sprintf("Placed closing order for %s %s position: size %v",
		pos.Market, pos.Direction.String(), pos.Size))
}

// cancelProtectives cancels the outstanding protective legs of the market's
// bracket. Callers must hold the manager lock.
func (m *Manager) cancelProtectives(ms *marketState, reason string) {
	if ms.bracket == nil {
		return
	}

	for _, leg := range []shared.OrderIntent{ms.bracket.Stop, ms.bracket.Target} {
		if _, outstanding := m.orders[leg.ID]; !outstanding {
			continue
		}
		if err := m.cfg.CancelOrder(leg.ID, reason); err != nil {
			m.cfg.Logger.Error().Msgf("%s: cancelling %s order: %v",
				leg.Market, leg.Kind.String(), err)
		}
		delete(m.orders, leg.ID)
	}
}

// recordTrade closes out the market's position as a trade. Callers must
// hold the manager lock.
func (m *Manager) recordTrade(ms *marketState, fill *shared.Fill) {
	trade := NewTrade(ms.position, fill.Price, fill.Timestamp, 0)
	if m.cfg.CostModel != nil {
		cost := m.cfg.CostModel(trade)
		trade.NetPNL = trade.GrossPNL - cost
	}

	if err := m.cfg.PersistTrade(trade); err != nil {
		m.cfg.Logger.Error().Msgf("%s: persisting trade: %v", trade.Market, err)
	}

	m.trades = append(m.trades, trade)
	if m.cfg.OnPositionClosed != nil {
		m.cfg.OnPositionClosed(trade)
	}
	m.notify(fmt.Sprintf("Closed %s position for %s @ %v, gross pnl %v, net pnl %v",
		trade.Direction.String(), trade.Market, trade.ExitPrice, trade.GrossPNL, trade.NetPNL))

	ms.position = nil
	ms.bracket = nil
	ms.exitOrder = nil
	ms.state = Flat
}

// handleFill processes the provided fill notification.
func (m *Manager) handleFill(fill shared.Fill) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	market, ok := m.orders[fill.OrderID]
	if !ok {
		if m.resolveRacedProtectiveFill(&fill) {
			return
		}
		m.cfg.Logger.Error().Msgf("fill for unknown order: %s", fill.OrderID)
		return
	}
	delete(m.orders, fill.OrderID)

	ms := m.markets[market]

	switch {
	case ms.state == EntryPending && ms.bracket != nil && fill.OrderID == ms.bracket.Entry.ID:
		// The entry leg filled, the position is live and its protective
		// legs armed.
		ms.position = NewPosition(ms.bracket, &fill)
		ms.state = Open
		if m.cfg.OnPositionOpened != nil {
			m.cfg.OnPositionOpened(ms.position)
		}
		m.notify(fmt.Sprintf("Opened %s position for %s: size %v @ %v",
			ms.position.Direction.String(), market, ms.position.Size, ms.position.EntryPrice))

	case ms.state == Open && ms.bracket != nil &&
		(fill.OrderID == ms.bracket.Stop.ID || fill.OrderID == ms.bracket.Target.ID):
		// A protective leg filled, that is the closing event. Cancel the
		// surviving sibling and record the round-trip.
		m.cancelProtectives(ms, "sibling filled")
		m.recordTrade(ms, &fill)

	case ms.state == ExitPending && ms.exitOrder != nil && fill.OrderID == ms.exitOrder.ID:
		m.recordTrade(ms, &fill)

	default:
		m.cfg.Logger.Error().Msgf("%s: unexpected fill for order %s in %s state",
			market, fill.OrderID, ms.state.String())
	}
}

// resolveRacedProtectiveFill handles a protective leg filling at the venue
// after an exit order was placed for the same position. The leg's cancel
// raced its fill, so the fill is the closing event: the in-flight exit
// order is cancelled and the round-trip recorded. Callers must hold the
// manager lock.
func (m *Manager) resolveRacedProtectiveFill(fill *shared.Fill) bool {
	for market, ms := range m.markets {
		if ms.state != ExitPending || ms.bracket == nil {
			continue
		}
		if fill.OrderID != ms.bracket.Stop.ID && fill.OrderID != ms.bracket.Target.ID {
			continue
		}

		if ms.exitOrder != nil {
			if err := m.cfg.CancelOrder(ms.exitOrder.ID, "position closed by protective order"); err != nil {
				m.cfg.Logger.Error().Msgf("%s: cancelling exit order: %v", market, err)
			}
			delete(m.orders, ms.exitOrder.ID)
		}
		m.recordTrade(ms, fill)

		return true
	}

	return false
}

// returnToFlat flushes the market's bracket after its entry leg was
// cancelled or rejected. Callers must hold the manager lock.
func (m *Manager) returnToFlat(market string, orderID string, reason string) {
	ms := m.markets[market]

	if ms.state != EntryPending || ms.bracket == nil || orderID != ms.bracket.Entry.ID {
		delete(m.orders, orderID)
		m.cfg.Logger.Error().Msgf("%s: unexpected cancellation of order %s in %s state: %s",
			market, orderID, ms.state.String(), reason)
		return
	}

	delete(m.orders, orderID)
	m.cancelProtectives(ms, reason)
	ms.bracket = nil
	ms.state = Flat

	m.notify(fmt.Sprintf("Entry for %s did not execute (%s), market returned to flat", market, reason))
}

// handleCancel processes the provided cancel notification.
func (m *Manager) handleCancel(cancel shared.Cancel) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	market, ok := m.orders[cancel.OrderID]
	if !ok {
		// Cancellations the manager itself requested are already resolved.
		m.cfg.Logger.Debug().Msgf("cancel for unknown or resolved order: %s", cancel.OrderID)
		return
	}

	m.returnToFlat(market, cancel.OrderID, cancel.Reason)
}

// handleMarginRejection processes the provided margin rejection. Margin
// rejections are recoverable: the market returns to flat and processing of
// other markets continues.
func (m *Manager) handleMarginRejection(rejection shared.MarginRejection) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	market, ok := m.orders[rejection.OrderID]
	if !ok {
		m.cfg.Logger.Error().Msgf("margin rejection for unknown order: %s", rejection.OrderID)
		return
	}

	m.cfg.Logger.Warn().Msgf("%s: order %s rejected on margin: %s",
		market, rejection.OrderID, rejection.Reason)
	m.returnToFlat(market, rejection.OrderID, rejection.Reason)
}

// FlushOrders cancels every outstanding order intent for all non-flat
// markets. Called when a strategy run is cancelled, before state release.
func (m *Manager) FlushOrders(reason string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for id, market := range m.orders {
		if err := m.cfg.CancelOrder(id, reason); err != nil {
			m.cfg.Logger.Error().Msgf("%s: flushing order %s: %v", market, id, err)
		}
		delete(m.orders, id)
	}

	for market, ms := range m.markets {
		switch ms.state {
		case EntryPending, ExitPending:
			ms.bracket = nil
			ms.exitOrder = nil
			ms.position = nil
			ms.state = Flat
			m.cfg.Logger.Info().Msgf("%s: flushed pending orders, market flat", market)
		case Open:
			// The position survives a flush, its protective orders do not.
			m.cfg.Logger.Info().Msgf("%s: flushed protective orders for open position", market)
		}
	}
}

// Run manages the lifecycle processes of the position manager.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.FlushOrders("strategy run cancelled")
			return
		case signal := <-m.entries:
			m.handleEntrySignal(signal)
		case signal := <-m.exits:
			m.handleExitSignal(signal)
		case fill := <-m.fills:
			m.handleFill(fill)
		case cancel := <-m.cancels:
			m.handleCancel(cancel)
		case rejection := <-m.rejections:
			m.handleMarginRejection(rejection)
		}
	}
}
