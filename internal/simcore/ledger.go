package simcore

import "fmt"

// Equity is the result of a SnapshotEquity call.
type Equity struct {
	Total float64
}

// Ledger tracks available capital, locked margin, realized PnL, commissions,
// minimum equity and max concurrent positions for one session. All
// operations are synchronous and O(1) except SnapshotEquity, which is
// O(open positions).
type Ledger struct {
	initialCapital         float64
	availableCapital       float64
	realizedPnL            float64
	commissionPaid         float64
	minEquity              float64
	maxConcurrentPositions int
}

// NewLedger creates a Ledger seeded with the session's initial capital.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		initialCapital:   initialCapital,
		availableCapital: initialCapital,
		minEquity:        initialCapital,
	}
}

func (l *Ledger) InitialCapital() float64   { return l.initialCapital }
func (l *Ledger) AvailableCapital() float64 { return l.availableCapital }
func (l *Ledger) RealizedPnL() float64      { return l.realizedPnL }
func (l *Ledger) CommissionPaid() float64   { return l.commissionPaid }
func (l *Ledger) MinEquity() float64        { return l.minEquity }
func (l *Ledger) MaxConcurrentPositions() int {
	return l.maxConcurrentPositions
}

// ErrInsufficientCapital is returned by TryReserve when available capital
// cannot cover the requested margin.
var ErrInsufficientCapital = fmt.Errorf("insufficient capital")

// TryReserve decrements available capital by margin iff it is sufficient.
func (l *Ledger) TryReserve(margin float64) error {
	if l.availableCapital < margin {
		return ErrInsufficientCapital
	}
	l.availableCapital -= margin
	return nil
}

// Release returns a reserved margin plus its realized net PnL to available
// capital, accumulating realized PnL and (for this outcome's round of
// commissions) the commission paid. netPnL is already net of entry and exit
// commission (see capLoss in simulator.go); commission is passed separately
// purely for the ledger's own running total.
func (l *Ledger) Release(margin, netPnL, commission float64) {
	l.availableCapital += margin + netPnL
	l.realizedPnL += netPnL
	l.commissionPaid += commission
}

// SnapshotEquity computes current equity from available capital, the margin
// locked in every open position, and each position's floating PnL (floored
// at -0.95*margin), then updates MinEquity. margin is the capital locked per
// position; effectiveNotional is margin*leverage, which is what the percent
// move is scaled by. prices must cover every pair in openPositions; a pair
// the lookup cannot price makes SnapshotEquity panic instead of being valued
// at zero.
func (l *Ledger) SnapshotEquity(openPositions map[string]*OpenPosition, margin, effectiveNotional float64, prices PriceLookup) Equity {
	equity := l.availableCapital
	for pair, pos := range openPositions {
		equity += margin
		price, ok := prices.PriceFor(pair)
		if !ok {
			panic(fmt.Sprintf("simcore: SnapshotEquity: no price for open pair %q", pair))
		}
		equity += floatingPnL(pos.Direction, margin, effectiveNotional, pos.EntryPrice, price)
	}
	if equity < l.minEquity {
		l.minEquity = equity
	}
	return Equity{Total: equity}
}

// floatingPnL computes the unrealized PnL for an open position at the given
// current price: the percent move scaled by effectiveNotional (margin*
// leverage), floored at -0.95*margin.
func floatingPnL(dir Direction, margin, effectiveNotional, entry, current float64) float64 {
	pct := pctMove(dir, entry, current)
	raw := effectiveNotional * pct / 100.0
	floor := -0.95 * margin
	if raw < floor {
		return floor
	}
	return raw
}

// pctMove returns the percent move in the favorable-positive convention:
// for LONG, (current-entry)/entry*100; for SHORT, (entry-current)/entry*100.
func pctMove(dir Direction, entry, current float64) float64 {
	if dir == Long {
		return (current - entry) / entry * 100.0
	}
	return (entry - current) / entry * 100.0
}

// ObserveOpenCount updates MaxConcurrentPositions with the current open
// position count.
func (l *Ledger) ObserveOpenCount(n int) {
	if n > l.maxConcurrentPositions {
		l.maxConcurrentPositions = n
	}
}
