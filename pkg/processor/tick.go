package processor

import (
	"context"
	"fmt"

	"github.com/valence-labs/corechain/pkg/domain"
)

// Tick pops and advances at most one batch, honouring High-before-Medium
// ordering, expiration short-circuit, retry-eligibility, and atomic vs
// non-atomic dispatch (spec.md §4.2). caller identifies the account driving
// the tick, for the permissionless rate limiter.
func (e *Engine) Tick(ctx context.Context, caller string) (TickEvent, error) {
	if !e.cctx.Allow(tickCategory{domain: e.domain, caller: caller}) {
		return TickEvent{}, domain.NewPolicyError(domain.CodeNotAllowed, "tick rate limit exceeded for caller")
	}

	e.mu.Lock()
	batch := e.popHead()
	if batch == nil {
		e.mu.Unlock()
		e.metrics.observe(ActionNone)
		e.cctx.Log().Trace().Str("domain", e.domain.String()).Log("tick: nothing queued")
		return TickEvent{Action: ActionNone}, nil
	}
	e.reportInFlightLocked()

	nowHeight, nowTime := e.cctx.Clock.Height(), e.cctx.Clock.Now()

	if exp := batch.Subroutine.ExpirationTime; exp != 0 && nowTime > batch.EnqueuedAtTime+exp {
		e.mu.Unlock()
		e.metrics.observe(ActionExpired)
		e.cctx.Log().Warning().Uint64("execution_id", uint64(batch.ExecutionId)).Str("label", batch.Label).Log("tick: subroutine expired before completion")
		ev := TickEvent{Action: ActionExpired, BatchId: batch.Id, ExecutionId: batch.ExecutionId, Priority: batch.Priority}
		if err := e.sink.ProcessorCallback(ctx, batch.ExecutionId, batch.Label, domain.Expired(uint32(batch.Cursor))); err != nil {
			return ev, fmt.Errorf("processor: reporting expiration of execution %d: %w", batch.ExecutionId, err)
		}
		return ev, nil
	}

	if !batch.Retry.Eligible(nowHeight, nowTime) {
		e.pushBack(batch)
		e.reportInFlightLocked()
		e.mu.Unlock()
		e.metrics.observe(ActionPushedBack)
		return TickEvent{Action: ActionPushedBack, BatchId: batch.Id, ExecutionId: batch.ExecutionId, Priority: batch.Priority}, nil
	}
	e.mu.Unlock()

	e.cctx.Log().Debug().Uint64("execution_id", uint64(batch.ExecutionId)).Str("label", batch.Label).Log("tick: dispatching batch")

	if batch.Subroutine.Kind == domain.SubroutineAtomic {
		return e.tickAtomic(ctx, batch)
	}
	return e.tickNonAtomic(ctx, batch)
}

type tickCategory struct {
	domain domain.Domain
	caller string
}
