package authorization

import (
	"context"

	"github.com/valence-labs/corechain/pkg/domain"
)

// SendMsgs is the send_msgs hot path (spec.md §4.1): resolves label,
// admits the caller under the authorization's mode, checks the concurrency
// gate, validates messages against the subroutine's templates, and routes
// the accepted batch to the target domain's processor.
func (m *Manager) SendMsgs(ctx context.Context, caller string, label string, messages [][]byte, ttl domain.TTL) (domain.ExecutionId, error) {
	m.mu.Lock()

	a, ok := m.auths[label]
	if !ok {
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeDoesNotExist, label)
	}
	if a.State == domain.AuthorizationDisabled {
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeNotEnabled, label)
	}

	nowHeight, nowTime := m.cctx.Clock.Height(), m.cctx.Clock.Now()
	if a.NotBefore.Kind != domain.WindowNone && !a.NotBefore.Passed(nowHeight, nowTime) {
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeNotActiveYet, label)
	}
	if a.Expiration.Kind != domain.WindowNone && a.Expiration.Passed(nowHeight, nowTime) {
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeExpired, label)
	}

	escrowed := false
	holder := caller
	switch {
	case a.Mode.IsPermissionless():
		// accept unconditionally
	case a.Mode.IsWithoutLimit():
		if !a.Mode.Allowed(caller) {
			m.mu.Unlock()
			return 0, domain.NewPolicyError(domain.CodeNotAllowed, caller)
		}
	case a.Mode.IsWithLimit():
		if err := m.ledger.Escrow(label, caller); err != nil {
			m.mu.Unlock()
			return 0, err
		}
		escrowed = true
	}

	if a.InFlight >= a.MaxConcurrentExecutions {
		if escrowed {
			m.ledger.Return(label, caller)
		}
		m.mu.Unlock()
		return 0, domain.NewPolicyError(domain.CodeMaxConcurrentExecutionsReached, label)
	}

	functions := a.Subroutine.Functions
	sub := a.Subroutine
	priority := a.Priority
	m.mu.Unlock()

	if err := validateMessages(functions, messages); err != nil {
		if escrowed {
			m.mu.Lock()
			m.ledger.Return(label, caller)
			m.mu.Unlock()
		}
		return 0, err
	}

	m.mu.Lock()
	router, ok := m.routers[sub.Domain()]
	if !ok {
		if escrowed {
			m.ledger.Return(label, caller)
		}
		m.mu.Unlock()
		return 0, domain.ErrDomainNotRegistered
	}

	execId := domain.ExecutionId(m.execId.Next())
	a.InFlight++
	m.callbacks[execId] = &domain.ProcessorCallbackInfo{
		ExecutionId:     execId,
		Label:           label,
		Messages:        messages,
		TTL:             ttl,
		ExecutionResult: domain.Pending(),
		Escrowed:        escrowed,
		Holder:          holder,
	}
	m.mu.Unlock()

	batch := domain.MessageBatch{
		ExecutionId:      execId,
		Subroutine:       sub,
		Messages:         messages,
		Priority:         priority,
		Label:            label,
		EnqueuedAtHeight: nowHeight,
		EnqueuedAtTime:   nowTime,
	}

	if _, err := router.Route(ctx, sub.Domain(), batch); err != nil {
		m.mu.Lock()
		delete(m.callbacks, execId)
		a.InFlight--
		if escrowed {
			m.ledger.Return(label, caller)
		}
		m.mu.Unlock()
		m.cctx.Log().Warning().Str("label", label).Str("caller", caller).Err(err).Log("authorization: send_msgs routing failed")
		return 0, err
	}

	m.cctx.Log().Info().Str("label", label).Str("caller", caller).Uint64("execution_id", uint64(execId)).Log("authorization: send_msgs accepted")
	return execId, nil
}
