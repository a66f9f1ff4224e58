package authorization

import (
	"context"
	"fmt"

	"github.com/valence-labs/corechain/pkg/domain"
)

// ProcessorCallback receives a terminal (or Pending, for bookkeeping) result
// for executionId from the processor on that batch's domain, updating the
// stored record, releasing or burning any escrowed usage token, and
// decrementing the authorization's in-flight counter on terminal results
// (spec.md §4.1 "Callback reception"). It implements processor.CallbackSink.
func (m *Manager) ProcessorCallback(ctx context.Context, executionId domain.ExecutionId, label string, result domain.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.callbacks[executionId]
	if !ok {
		return fmt.Errorf("authorization: processor_callback for unknown execution %d", executionId)
	}

	wasTerminal := info.ExecutionResult.Terminal()
	info.ExecutionResult = result

	if !result.Terminal() || wasTerminal {
		return nil
	}

	m.cctx.Log().Info().Uint64("execution_id", uint64(executionId)).Str("label", label).Str("result", result.Kind.String()).Log("authorization: processor_callback reached terminal result")

	if a, ok := m.auths[label]; ok && a.InFlight > 0 {
		a.InFlight--
	}

	if !info.Escrowed {
		return nil
	}

	switch result.Kind {
	case domain.ResultSuccess, domain.ResultPartiallyExecuted:
		m.ledger.Burn(label, info.Holder)
		info.Escrowed = false
	case domain.ResultTimeout:
		if !result.Retriable {
			m.ledger.Return(label, info.Holder)
			info.Escrowed = false
		}
		// Retriable timeouts keep the token escrowed until retry_msgs or a
		// non-retriable follow-up result clears it.
	default: // Rejected, RemovedByOwner, Expired
		m.ledger.Return(label, info.Holder)
		info.Escrowed = false
	}
	return nil
}

// CallbackInfo returns a copy of executionId's stored ProcessorCallbackInfo,
// for introspection.
func (m *Manager) CallbackInfo(executionId domain.ExecutionId) (domain.ProcessorCallbackInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.callbacks[executionId]
	if !ok {
		return domain.ProcessorCallbackInfo{}, false
	}
	return *info, true
}

// RetryMsgs is retry_msgs(execution_id): valid only when the stored result
// is Timeout(retriable=true) and, if the original TTL was height/time-bound,
// it has not since expired. Permissionless, subject to the Ctx's optional
// rate limiter, as Tick is.
func (m *Manager) RetryMsgs(ctx context.Context, caller string, executionId domain.ExecutionId) error {
	if !m.cctx.Allow(retryMsgsCategory{executionId: executionId, caller: caller}) {
		return domain.NewPolicyError(domain.CodeNotAllowed, "retry_msgs rate limit exceeded")
	}

	m.mu.Lock()
	info, ok := m.callbacks[executionId]
	if !ok {
		m.mu.Unlock()
		return domain.NewPolicyError(domain.CodeDoesNotExist, fmt.Sprintf("execution %d", executionId))
	}
	if info.ExecutionResult.Kind != domain.ResultTimeout || !info.ExecutionResult.Retriable {
		m.mu.Unlock()
		return domain.ErrNotRetriable
	}

	nowHeight, nowTime := m.cctx.Clock.Height(), m.cctx.Clock.Now()
	if info.TTL.Kind == domain.TTLAtTime || info.TTL.Kind == domain.TTLAtHeight {
		if info.TTL.Expired(nowTime, nowHeight) {
			info.ExecutionResult = domain.Timeout(false)
			if info.Escrowed {
				m.ledger.Return(info.Label, info.Holder)
				info.Escrowed = false
			}
			m.mu.Unlock()
			return domain.ErrNotRetriable
		}
	}

	a, ok := m.auths[info.Label]
	if !ok {
		m.mu.Unlock()
		return domain.NewPolicyError(domain.CodeDoesNotExist, info.Label)
	}
	router, ok := m.routers[a.Subroutine.Domain()]
	if !ok {
		m.mu.Unlock()
		return domain.ErrDomainNotRegistered
	}

	info.ExecutionResult = domain.Pending()
	a.InFlight++
	sub := a.Subroutine
	priority := a.Priority
	messages := info.Messages
	m.mu.Unlock()

	batch := domain.MessageBatch{
		ExecutionId:      executionId,
		Subroutine:       sub,
		Messages:         messages,
		Priority:         priority,
		Label:            info.Label,
		EnqueuedAtHeight: nowHeight,
		EnqueuedAtTime:   nowTime,
	}
	if _, err := router.Route(ctx, sub.Domain(), batch); err != nil {
		m.mu.Lock()
		a.InFlight--
		info.ExecutionResult = domain.Timeout(true)
		m.mu.Unlock()
		m.cctx.Log().Warning().Uint64("execution_id", uint64(executionId)).Err(err).Log("authorization: retry_msgs routing failed")
		return err
	}
	m.cctx.Log().Info().Uint64("execution_id", uint64(executionId)).Log("authorization: retry_msgs re-dispatched")
	return nil
}

type retryMsgsCategory struct {
	executionId domain.ExecutionId
	caller      string
}
