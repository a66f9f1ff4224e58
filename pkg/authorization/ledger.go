package authorization

import (
	"sync"

	"github.com/valence-labs/corechain/pkg/domain"
)

// balance tracks one (label, holder) usage-token account: units issued
// (minted), currently escrowed against an in-flight send_msgs, and
// permanently burned on a consuming terminal result (spec.md §4.1).
type balance struct {
	Issued   uint64
	Escrowed uint64
	Burned   uint64
}

func (b balance) available() uint64 {
	return b.Issued - b.Escrowed - b.Burned
}

// Ledger is the label-scoped usage-token store backing WithLimit
// authorizations and WithoutLimit capability bearers.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]*balance // label -> holder -> balance
}

// NewLedger constructs an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: map[string]map[string]*balance{}}
}

func (l *Ledger) entry(label, holder string) *balance {
	byHolder, ok := l.balances[label]
	if !ok {
		byHolder = map[string]*balance{}
		l.balances[label] = byHolder
	}
	b, ok := byHolder[holder]
	if !ok {
		b = &balance{}
		byHolder[holder] = b
	}
	return b
}

// Mint issues amount additional usage-token units to holder under label.
func (l *Ledger) Mint(label, holder string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(label, holder).Issued += amount
}

// Available returns holder's currently spendable unit count under label.
func (l *Ledger) Available(label, holder string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entry(label, holder).available()
}

// Escrow consumes exactly one available unit from holder under label,
// failing RequiresOneToken if none is available.
func (l *Ledger) Escrow(label, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.entry(label, holder)
	if b.available() == 0 {
		return domain.NewPolicyError(domain.CodeRequiresOneToken, "caller holds no available usage token for this authorization")
	}
	b.Escrowed++
	return nil
}

// Burn permanently consumes one previously-escrowed unit (Success or
// PartiallyExecuted terminal result).
func (l *Ledger) Burn(label, holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.entry(label, holder)
	if b.Escrowed == 0 {
		return
	}
	b.Escrowed--
	b.Burned++
}

// Return releases one previously-escrowed unit back to the available pool
// (Rejected, Timeout(retriable=false), or Expired terminal result).
func (l *Ledger) Return(label, holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.entry(label, holder)
	if b.Escrowed == 0 {
		return
	}
	b.Escrowed--
}
