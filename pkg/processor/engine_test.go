package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/domain"
)

type fakeClock struct {
	height, now uint64
}

func (c *fakeClock) Now() uint64    { return c.now }
func (c *fakeClock) Height() uint64 { return c.height }

type fakeExecutor struct {
	atomicErr   error
	functionErr map[int]error // keyed by call count
	calls       int
}

func (f *fakeExecutor) ExecuteAtomic(ctx context.Context, sub domain.Subroutine, messages [][]byte) error {
	f.calls++
	return f.atomicErr
}

func (f *fakeExecutor) ExecuteFunction(ctx context.Context, fn domain.Function, message []byte) error {
	defer func() { f.calls++ }()
	if f.functionErr != nil {
		if err, ok := f.functionErr[f.calls]; ok {
			return err
		}
	}
	return nil
}

type recordedCallback struct {
	executionId domain.ExecutionId
	label       string
	result      domain.ExecutionResult
}

type fakeSink struct {
	calls []recordedCallback
}

func (s *fakeSink) ProcessorCallback(ctx context.Context, executionId domain.ExecutionId, label string, result domain.ExecutionResult) error {
	s.calls = append(s.calls, recordedCallback{executionId, label, result})
	return nil
}

func simpleSubroutine(targetHigh bool) domain.Subroutine {
	return domain.Subroutine{
		Kind: domain.SubroutineAtomic,
		Functions: []domain.Function{
			{TargetDomain: domain.MainDomain, ContractAddress: "addr1"},
		},
	}
}

func TestEngine_HighBeforeMedium(t *testing.T) {
	clock := &fakeClock{}
	exec := &fakeExecutor{}
	sink := &fakeSink{}
	e := NewEngine(domain.MainDomain, exec, sink, chainctx.New().WithClock(clock))

	e.Enqueue(domain.MessageBatch{ExecutionId: 1, Priority: domain.PriorityMedium, Subroutine: simpleSubroutine(false), Messages: [][]byte{[]byte("m")}})
	e.Enqueue(domain.MessageBatch{ExecutionId: 2, Priority: domain.PriorityHigh, Subroutine: simpleSubroutine(true), Messages: [][]byte{[]byte("h")}})

	ev, err := e.Tick(context.Background(), "caller")
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionId(2), ev.ExecutionId, "high priority batch must be processed first")

	ev2, err := e.Tick(context.Background(), "caller")
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionId(1), ev2.ExecutionId)
}

func TestEngine_AtomicRetryThenSuccess(t *testing.T) {
	clock := &fakeClock{}
	exec := &fakeExecutor{functionErr: nil}
	exec.atomicErr = errors.New("transient")
	sink := &fakeSink{}
	e := NewEngine(domain.MainDomain, exec, sink, chainctx.New().WithClock(clock))

	sub := domain.Subroutine{
		Kind:             domain.SubroutineAtomic,
		Functions:        []domain.Function{{TargetDomain: domain.MainDomain, ContractAddress: "a"}},
		AtomicRetryLogic: &domain.RetryLogic{Times: 2, IntervalHeight: 1},
	}
	e.Enqueue(domain.MessageBatch{ExecutionId: 7, Priority: domain.PriorityMedium, Subroutine: sub, Messages: [][]byte{[]byte("m")}})

	ev, err := e.Tick(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, ActionPushedBack, ev.Action)
	require.Empty(t, sink.calls)

	// retry not yet eligible (height hasn't advanced)
	ev2, err := e.Tick(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, ActionPushedBack, ev2.Action)

	clock.height = 1
	exec.atomicErr = nil
	ev3, err := e.Tick(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, ActionExecuteAtomic, ev3.Action)
	require.Len(t, sink.calls, 1)
	require.Equal(t, domain.ResultSuccess, sink.calls[0].result.Kind)
}

func TestEngine_NonAtomicCallbackConfirmation(t *testing.T) {
	clock := &fakeClock{}
	exec := &fakeExecutor{}
	sink := &fakeSink{}
	e := NewEngine(domain.MainDomain, exec, sink, chainctx.New().WithClock(clock))

	sub := domain.Subroutine{
		Kind: domain.SubroutineNonAtomic,
		Functions: []domain.Function{
			{TargetDomain: domain.MainDomain, ContractAddress: "swap", CallbackConfirmation: &domain.CallbackConfirmation{ExpectedBytes: []byte("Confirmed")}},
			{TargetDomain: domain.MainDomain, ContractAddress: "settle"},
		},
	}
	e.Enqueue(domain.MessageBatch{ExecutionId: 9, Priority: domain.PriorityMedium, Subroutine: sub, Messages: [][]byte{[]byte("m1"), []byte("m2")}})

	ev, err := e.Tick(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, ActionParkedForCallback, ev.Action)
	require.Empty(t, sink.calls)

	err = e.DeliverCallback(context.Background(), 9, "swap", []byte("Wrong"))
	require.NoError(t, err)

	// No retry_logic on the function, so a mismatched callback is immediately
	// terminal: cursor == 0 means Rejected rather than PartiallyExecuted.
	require.Len(t, sink.calls, 1)
	require.Equal(t, domain.ResultRejected, sink.calls[0].result.Kind)
}

func TestEngine_NonAtomicCallbackMatch(t *testing.T) {
	clock := &fakeClock{}
	exec := &fakeExecutor{}
	sink := &fakeSink{}
	e := NewEngine(domain.MainDomain, exec, sink, chainctx.New().WithClock(clock))

	sub := domain.Subroutine{
		Kind: domain.SubroutineNonAtomic,
		Functions: []domain.Function{
			{TargetDomain: domain.MainDomain, ContractAddress: "swap", CallbackConfirmation: &domain.CallbackConfirmation{ExpectedBytes: []byte("Confirmed")}},
			{TargetDomain: domain.MainDomain, ContractAddress: "settle"},
		},
	}
	e.Enqueue(domain.MessageBatch{ExecutionId: 11, Priority: domain.PriorityMedium, Subroutine: sub, Messages: [][]byte{[]byte("m1"), []byte("m2")}})

	_, err := e.Tick(context.Background(), "c")
	require.NoError(t, err)

	err = e.DeliverCallback(context.Background(), 11, "swap", []byte("Confirmed"))
	require.NoError(t, err)

	ev, err := e.Tick(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionId(11), ev.ExecutionId)
	require.Len(t, sink.calls, 1)
	require.Equal(t, domain.ResultSuccess, sink.calls[0].result.Kind)
}

func TestEngine_EvictMsgsReportsRemovedByOwner(t *testing.T) {
	clock := &fakeClock{}
	exec := &fakeExecutor{}
	sink := &fakeSink{}
	e := NewEngine(domain.MainDomain, exec, sink, chainctx.New().WithClock(clock))

	e.Enqueue(domain.MessageBatch{ExecutionId: 3, Priority: domain.PriorityMedium, Subroutine: simpleSubroutine(false), Messages: [][]byte{[]byte("m")}})

	execId, err := e.EvictMsgs(context.Background(), domain.PriorityMedium, 0)
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionId(3), execId)
	require.Len(t, sink.calls, 1)
	require.Equal(t, domain.ResultRemovedByOwner, sink.calls[0].result.Kind)

	_, err = e.EvictMsgs(context.Background(), domain.PriorityMedium, 0)
	require.ErrorIs(t, err, domain.ErrIndexOutOfBounds)
}

func TestEngine_ExpirationShortCircuit(t *testing.T) {
	clock := &fakeClock{now: 1000}
	exec := &fakeExecutor{}
	sink := &fakeSink{}
	e := NewEngine(domain.MainDomain, exec, sink, chainctx.New().WithClock(clock))

	sub := domain.Subroutine{
		Kind:           domain.SubroutineAtomic,
		Functions:      []domain.Function{{TargetDomain: domain.MainDomain, ContractAddress: "a"}},
		ExpirationTime: 10,
	}
	e.Enqueue(domain.MessageBatch{ExecutionId: 5, Priority: domain.PriorityMedium, Subroutine: sub, Messages: [][]byte{[]byte("m")}, EnqueuedAtTime: 1000})

	clock.now = 1011
	ev, err := e.Tick(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, ActionExpired, ev.Action)
	require.Len(t, sink.calls, 1)
	require.Equal(t, domain.ResultExpired, sink.calls[0].result.Kind)
}

func TestEngine_ExecuteAtomicEntry_RejectsNonSelfCaller(t *testing.T) {
	clock := &fakeClock{}
	exec := &fakeExecutor{}
	sink := &fakeSink{}
	e := NewEngine(domain.MainDomain, exec, sink, chainctx.New().WithClock(clock))

	err := e.executeAtomicEntry("some-external-caller", context.Background(), domain.Subroutine{}, nil)
	require.ErrorIs(t, err, domain.ErrNotProcessor)
}
