package authorization

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valence-labs/corechain/internal/corelog"
	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/domain"
)

type fakeRouter struct {
	routed []domain.MessageBatch
	err    error
}

func (r *fakeRouter) Route(ctx context.Context, dom domain.Domain, batch domain.MessageBatch) (domain.BatchId, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.routed = append(r.routed, batch)
	return domain.BatchId(len(r.routed)), nil
}

func atomicSub(fn domain.Function) domain.Subroutine {
	return domain.Subroutine{Kind: domain.SubroutineAtomic, Functions: []domain.Function{fn}}
}

func simpleFn() domain.Function {
	return domain.Function{TargetDomain: domain.MainDomain, ContractAddress: "addr", Message: domain.MessageDetails{Name: "swap"}}
}

func TestCreateAuthorizations_WithLimitMintsAndAccumulates(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	m.RegisterRouter(domain.MainDomain, &fakeRouter{})

	err := m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "pl",
		Mode:                    domain.WithLimit(map[string]uint64{"user1": 5}),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 1,
	}})
	require.NoError(t, err)
	require.Equal(t, uint64(5), m.AvailableTokens("pl", "user1"))

	require.NoError(t, m.MintAuthorizations("owner", "pl", map[string]uint64{"user1": 1, "user2": 5}))
	require.Equal(t, uint64(6), m.AvailableTokens("pl", "user1"))
	require.Equal(t, uint64(5), m.AvailableTokens("pl", "user2"))
}

func TestHighPriorityRequiresPermissioned(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	m.RegisterRouter(domain.MainDomain, &fakeRouter{})

	err := m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:      "hi",
		Mode:       domain.Permissionless(),
		Subroutine: atomicSub(simpleFn()),
		Priority:   domain.PriorityHigh,
	}})
	require.ErrorIs(t, err, domain.ErrPermissionlessWithHighPriority)
}

func TestAtomicRejectsCallbackConfirmation(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	m.RegisterRouter(domain.MainDomain, &fakeRouter{})

	fn := simpleFn()
	fn.CallbackConfirmation = &domain.CallbackConfirmation{ExpectedBytes: []byte("x")}
	err := m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:      "bad",
		Mode:       domain.Permissionless(),
		Subroutine: atomicSub(fn),
	}})
	require.ErrorIs(t, err, domain.ErrAtomicWithCallbackConfirmation)
}

func TestSendMsgs_MaxConcurrentExecutionsGate(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	router := &fakeRouter{}
	m.RegisterRouter(domain.MainDomain, router)

	require.NoError(t, m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "one-at-a-time",
		Mode:                    domain.Permissionless(),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 1,
	}}))

	msg := []byte(`{"swap":{}}`)
	_, err := m.SendMsgs(context.Background(), "caller", "one-at-a-time", [][]byte{msg}, domain.TTL{})
	require.NoError(t, err)

	_, err = m.SendMsgs(context.Background(), "caller", "one-at-a-time", [][]byte{msg}, domain.TTL{})
	var policyErr *domain.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, domain.CodeMaxConcurrentExecutionsReached, policyErr.Code)
}

func TestSendMsgs_WithLimitRequiresToken(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	m.RegisterRouter(domain.MainDomain, &fakeRouter{})

	require.NoError(t, m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "pl",
		Mode:                    domain.WithLimit(map[string]uint64{"user1": 1}),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 5,
	}}))

	msg := []byte(`{"swap":{}}`)
	_, err := m.SendMsgs(context.Background(), "user2", "pl", [][]byte{msg}, domain.TTL{})
	var policyErr *domain.PolicyError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, domain.CodeRequiresOneToken, policyErr.Code)

	_, err = m.SendMsgs(context.Background(), "user1", "pl", [][]byte{msg}, domain.TTL{})
	require.NoError(t, err)
	require.Equal(t, uint64(0), m.AvailableTokens("pl", "user1"))
}

func TestProcessorCallback_BurnsOnSuccessReturnsOnReject(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	m.RegisterRouter(domain.MainDomain, &fakeRouter{})

	require.NoError(t, m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "pl",
		Mode:                    domain.WithLimit(map[string]uint64{"user1": 2}),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 5,
	}}))

	msg := []byte(`{"swap":{}}`)
	id1, err := m.SendMsgs(context.Background(), "user1", "pl", [][]byte{msg}, domain.TTL{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), m.AvailableTokens("pl", "user1"))

	require.NoError(t, m.ProcessorCallback(context.Background(), id1, "pl", domain.Success()))
	require.Equal(t, uint64(1), m.AvailableTokens("pl", "user1"), "burned token never returns to the pool")

	id2, err := m.SendMsgs(context.Background(), "user1", "pl", [][]byte{msg}, domain.TTL{})
	require.NoError(t, err)
	require.NoError(t, m.ProcessorCallback(context.Background(), id2, "pl", domain.Rejected("boom")))
	require.Equal(t, uint64(1), m.AvailableTokens("pl", "user1"), "rejected batch returns its escrowed token")
}

func TestSendMsgs_TimeoutTTLMatrix(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	router := &fakeRouter{}
	m.RegisterRouter(domain.MainDomain, router)

	require.NoError(t, m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "pl",
		Mode:                    domain.WithLimit(map[string]uint64{"user1": 3}),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 5,
	}}))
	msg := []byte(`{"swap":{}}`)

	idNone, err := m.SendMsgs(context.Background(), "user1", "pl", [][]byte{msg}, domain.TTL{Kind: domain.TTLNone})
	require.NoError(t, err)
	idNever, err := m.SendMsgs(context.Background(), "user1", "pl", [][]byte{msg}, domain.TTL{Kind: domain.TTLNever})
	require.NoError(t, err)
	idAtTime, err := m.SendMsgs(context.Background(), "user1", "pl", [][]byte{msg}, domain.TTL{Kind: domain.TTLAtTime, At: 1000})
	require.NoError(t, err)

	require.NoError(t, m.ProcessorCallback(context.Background(), idNone, "pl", domain.Timeout(false)))
	require.NoError(t, m.ProcessorCallback(context.Background(), idNever, "pl", domain.Timeout(true)))
	require.NoError(t, m.ProcessorCallback(context.Background(), idAtTime, "pl", domain.Timeout(true)))

	require.Equal(t, uint64(1), m.AvailableTokens("pl", "user1"), "only the non-retriable absent-TTL timeout refunds immediately")

	require.ErrorIs(t, m.RetryMsgs(context.Background(), "anyone", idNone), domain.ErrNotRetriable)

	require.NoError(t, m.RetryMsgs(context.Background(), "anyone", idNever))
	info, ok := m.CallbackInfo(idNever)
	require.True(t, ok)
	require.Equal(t, domain.ResultPending, info.ExecutionResult.Kind)
}

func TestRetryMsgs_SecondRetryBeforeCallbackFails(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	m.RegisterRouter(domain.MainDomain, &fakeRouter{})

	require.NoError(t, m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "pl",
		Mode:                    domain.Permissionless(),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 5,
	}}))
	msg := []byte(`{"swap":{}}`)
	id, err := m.SendMsgs(context.Background(), "user1", "pl", [][]byte{msg}, domain.TTL{Kind: domain.TTLNever})
	require.NoError(t, err)
	require.NoError(t, m.ProcessorCallback(context.Background(), id, "pl", domain.Timeout(true)))

	require.NoError(t, m.RetryMsgs(context.Background(), "anyone", id))
	require.ErrorIs(t, m.RetryMsgs(context.Background(), "anyone", id), domain.ErrNotRetriable, "a second retry before any callback must fail NotRetriable")
}

func TestEvictMsgsReturnsEvictedExecutionId(t *testing.T) {
	m := NewManager("owner", chainctx.New())
	admin := &fakeAdmin{}
	m.RegisterRouter(domain.MainDomain, admin)

	require.NoError(t, m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "pl",
		Mode:                    domain.Permissionless(),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 5,
	}}))

	execId, err := m.EvictMsgs(context.Background(), "owner", domain.MainDomain, domain.PriorityMedium, 0)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionId(99), execId)
}

func TestSendMsgsLogsAcceptanceAndRoutingFailure(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager("owner", chainctx.New().WithLogger(corelog.NewTest(&buf)))
	m.RegisterRouter(domain.MainDomain, &fakeRouter{})

	require.NoError(t, m.CreateAuthorizations("owner", []domain.Authorization{{
		Label:                   "pl",
		Mode:                    domain.Permissionless(),
		Subroutine:              atomicSub(simpleFn()),
		MaxConcurrentExecutions: 5,
	}}))

	_, err := m.SendMsgs(context.Background(), "user1", "pl", [][]byte{[]byte(`{"swap":{}}`)}, domain.TTL{Kind: domain.TTLNever})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "send_msgs accepted")

	buf.Reset()
	m.RegisterRouter(domain.MainDomain, &fakeRouter{err: domain.ErrDomainNotRegistered})
	_, err = m.SendMsgs(context.Background(), "user1", "pl", [][]byte{[]byte(`{"swap":{}}`)}, domain.TTL{Kind: domain.TTLNever})
	require.Error(t, err)
	require.Contains(t, buf.String(), "send_msgs routing failed")
}

type fakeAdmin struct{}

func (a *fakeAdmin) Route(ctx context.Context, dom domain.Domain, batch domain.MessageBatch) (domain.BatchId, error) {
	return 1, nil
}
func (a *fakeAdmin) InsertMsgs(priority domain.Priority, position int, batch domain.MessageBatch) (domain.BatchId, error) {
	return 1, nil
}
func (a *fakeAdmin) EvictMsgs(ctx context.Context, priority domain.Priority, position int) (domain.ExecutionId, error) {
	return 99, nil
}
