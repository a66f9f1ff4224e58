package chainsim

import (
	"context"
	"fmt"

	"github.com/valence-labs/corechain/pkg/domain"
)

// Executor adapts a Chain into pkg/processor's Executor interface: a
// function call succeeds iff its target contract has been instantiated on
// this chain. It records every call for introspection; it performs
// no real state transition on the callee, treating it as an opaque side
// effect per spec.md §5 ("this spec treats as opaque side effects").
type Executor struct {
	chain *Chain
	calls []Call
}

// Call is one recorded invocation, exposed through Executor.Calls for
// introspection.
type Call struct {
	Contract string
	Message  []byte
	Atomic   bool
}

// NewExecutor binds an Executor to chain.
func NewExecutor(chain *Chain) *Executor {
	return &Executor{chain: chain}
}

// Calls returns every call recorded so far, oldest first.
func (e *Executor) Calls() []Call {
	return append([]Call(nil), e.calls...)
}

func (e *Executor) ExecuteAtomic(ctx context.Context, sub domain.Subroutine, messages [][]byte) error {
	for i, fn := range sub.Functions {
		if !e.chain.Exists(fn.ContractAddress) {
			return fmt.Errorf("chainsim: atomic function %d targets unknown contract %s", i, fn.ContractAddress)
		}
	}
	for i, fn := range sub.Functions {
		e.calls = append(e.calls, Call{Contract: fn.ContractAddress, Message: messages[i], Atomic: true})
	}
	return nil
}

func (e *Executor) ExecuteFunction(ctx context.Context, fn domain.Function, message []byte) error {
	if !e.chain.Exists(fn.ContractAddress) {
		return fmt.Errorf("chainsim: function targets unknown contract %s", fn.ContractAddress)
	}
	e.calls = append(e.calls, Call{Contract: fn.ContractAddress, Message: message})
	return nil
}
