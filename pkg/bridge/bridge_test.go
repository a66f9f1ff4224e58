package bridge

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/valence-labs/corechain/internal/corelog"
	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/domain"
)

func TestProxy_Lifecycle(t *testing.T) {
	p := NewProxy(chainctx.New())
	require.Equal(t, domain.ProxyPendingResponse, p.State())
	require.Error(t, p.RequireCreated())

	require.NoError(t, p.Ack())
	require.Equal(t, domain.ProxyCreated, p.State())
	require.NoError(t, p.RequireCreated())

	require.ErrorIs(t, p.RetryCreation(), domain.ErrNotRetriable, "retry is only valid from TimedOut")
}

func TestProxy_TimeoutAndRetry(t *testing.T) {
	p := NewProxy(chainctx.New())
	require.NoError(t, p.Timeout())
	require.Equal(t, domain.ProxyTimedOut, p.State())

	require.NoError(t, p.RetryCreation())
	require.Equal(t, domain.ProxyPendingResponse, p.State())

	require.NoError(t, p.Ack())
	require.Equal(t, domain.ProxyCreated, p.State())
}

func TestProxy_LogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	cctx := chainctx.New().WithLogger(corelog.NewTest(&buf))

	p := NewProxy(cctx)
	require.NoError(t, p.Timeout())
	require.NoError(t, p.RetryCreation())
	require.NoError(t, p.Ack())

	out := buf.String()
	require.Contains(t, out, "proxy creation timed out")
	require.Contains(t, out, "proxy creation retried")
	require.Contains(t, out, "proxy acked")
}

func TestProxy_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cctx := chainctx.New().WithMetrics(reg)

	p := NewProxy(cctx)
	require.NoError(t, p.Timeout())

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var sawTimeouts, sawState bool
	for _, mf := range mfs {
		switch mf.GetName() {
		case "corechain_bridge_timeouts_total":
			sawTimeouts = true
		case "corechain_bridge_proxy_state":
			sawState = true
		}
	}
	require.True(t, sawTimeouts, "bridge_timeouts_total must be registered")
	require.True(t, sawState, "proxy_state gauge must be registered")
}

func TestTransport_DispatchAndDeliver(t *testing.T) {
	tr := NewTransport()
	call := tr.Dispatch(1, []byte("payload"))
	require.True(t, tr.Pending(1))

	go func() {
		require.NoError(t, tr.Deliver(1, []byte("ack")))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ack, err := call.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("ack"), ack)
	require.False(t, tr.Pending(1))
}

func TestTransport_WaitCancelled(t *testing.T) {
	tr := NewTransport()
	call := tr.Dispatch(2, []byte("payload"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := call.Wait(ctx)
	require.Error(t, err)
}

func TestCorrelation_TTLMatrix(t *testing.T) {
	t.Run("absent TTL is not retriable", func(t *testing.T) {
		c := NewCorrelation(chainctx.New(), 1, domain.TTL{Kind: domain.TTLNone})
		result, ok := c.Timeout(100, 10)
		require.True(t, ok)
		require.False(t, result.Retriable)
	})

	t.Run("Never TTL is retriable", func(t *testing.T) {
		c := NewCorrelation(chainctx.New(), 2, domain.TTL{Kind: domain.TTLNever})
		result, ok := c.Timeout(100, 10)
		require.True(t, ok)
		require.True(t, result.Retriable)
	})

	t.Run("AtTime before deadline is retriable", func(t *testing.T) {
		c := NewCorrelation(chainctx.New(), 3, domain.TTL{Kind: domain.TTLAtTime, At: 200})
		result, ok := c.Timeout(100, 10)
		require.True(t, ok)
		require.True(t, result.Retriable)
	})

	t.Run("AtTime past deadline is not retriable", func(t *testing.T) {
		c := NewCorrelation(chainctx.New(), 4, domain.TTL{Kind: domain.TTLAtTime, At: 50})
		result, ok := c.Timeout(100, 10)
		require.True(t, ok)
		require.False(t, result.Retriable)
	})

	t.Run("double timeout is a no-op", func(t *testing.T) {
		c := NewCorrelation(chainctx.New(), 5, domain.TTL{Kind: domain.TTLNever})
		_, ok := c.Timeout(100, 10)
		require.True(t, ok)
		_, ok = c.Timeout(200, 20)
		require.False(t, ok)
	})
}

func TestCorrelation_RetryRequiresTimeout(t *testing.T) {
	c := NewCorrelation(chainctx.New(), 6, domain.TTL{Kind: domain.TTLNever})
	require.ErrorIs(t, c.Retry(), domain.ErrNotRetriable)

	_, ok := c.Timeout(100, 10)
	require.True(t, ok)
	require.NoError(t, c.Retry())
	require.Equal(t, CorrelationPending, c.State())
}
