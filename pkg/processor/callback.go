package processor

import (
	"context"
	"fmt"

	"github.com/valence-labs/corechain/pkg/domain"
)

// DeliverCallback intakes an external callback message addressed at the
// function pending for executionId. A match (contract and bytes both equal
// the parked expectation) advances the cursor via the same path as a
// directly-succeeding execution; a mismatch is treated as a failed attempt
// of that function, subject to its retry_logic (spec.md §4.2b "Callback
// intake").
func (e *Engine) DeliverCallback(ctx context.Context, executionId domain.ExecutionId, contract string, payload []byte) error {
	e.mu.Lock()
	batch, ok := e.pending[executionId]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("processor: no batch parked for execution %d", executionId)
	}
	pc := batch.PendingCallback
	e.mu.Unlock()

	if pc == nil {
		return fmt.Errorf("processor: execution %d is parked without a pending callback record", executionId)
	}

	matched := pc.ExpectedAddress == contract && bytesEqual(pc.ExpectedBytes, payload)

	if matched {
		_, err := e.advanceCursor(ctx, batch, TickEvent{
			Action:      ActionExecuteNonAtomic,
			BatchId:     batch.Id,
			ExecutionId: batch.ExecutionId,
			Priority:    batch.Priority,
		})
		return err
	}

	e.cctx.Log().Warning().Uint64("execution_id", uint64(executionId)).Str("contract", contract).Log("processor: callback payload did not match expectation")

	fn := batch.Subroutine.Functions[pc.FnIndex]
	_, err := e.nonAtomicFailure(ctx, batch, fn, TickEvent{
		Action:      ActionExecuteNonAtomic,
		BatchId:     batch.Id,
		ExecutionId: batch.ExecutionId,
		Priority:    batch.Priority,
	}, fmt.Errorf("processor: callback payload did not match expected bytes for contract %s", contract))
	return err
}
