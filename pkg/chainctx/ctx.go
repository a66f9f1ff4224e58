// Package chainctx provides the single explicit handle threaded through
// every operation in this module (design note §9: "Global state -> explicit
// config handle"). It carries a logger, a clock abstraction (so tests can
// control height/time deterministically), an optional rate limiter guarding
// permissionless entry points, and an optional metrics registry.
package chainctx

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/valence-labs/corechain/internal/corelog"
)

// Clock abstracts the domain's notion of "now", in both wall-clock time and
// block height, so processor/bridge retry and TTL logic can be driven
// deterministically in tests.
type Clock interface {
	// Now returns the current unix-seconds time.
	Now() uint64
	// Height returns the current block height.
	Height() uint64
}

// SystemClock implements Clock against the real wall clock, with Height
// fixed at zero -- suitable for callers that only care about time-based
// windows/TTLs/retry intervals. Chain-driven height (e.g. via chainsim) uses
// its own Clock implementation instead.
type SystemClock struct{}

func (SystemClock) Now() uint64    { return uint64(time.Now().Unix()) }
func (SystemClock) Height() uint64 { return 0 }

// Ctx is the explicit handle passed to every exported operation across
// pkg/authorization, pkg/processor, pkg/bridge, and pkg/instantiator.
type Ctx struct {
	Logger  *corelog.Logger
	Clock   Clock
	Limiter *catrate.Limiter // optional; nil disables rate limiting
	Metrics *prometheus.Registry // optional; nil disables metrics
}

// New returns a Ctx with sane defaults (discard logger, system clock, no
// rate limiting, no metrics). Use the With* helpers to override individual
// fields.
func New() Ctx {
	return Ctx{
		Logger: corelog.NewDiscard(),
		Clock:  SystemClock{},
	}
}

func (c Ctx) WithLogger(l *corelog.Logger) Ctx {
	c.Logger = l
	return c
}

func (c Ctx) WithClock(clk Clock) Ctx {
	c.Clock = clk
	return c
}

func (c Ctx) WithLimiter(l *catrate.Limiter) Ctx {
	c.Limiter = l
	return c
}

func (c Ctx) WithMetrics(r *prometheus.Registry) Ctx {
	c.Metrics = r
	return c
}

// Allow consults the optional rate limiter for category, returning true if
// the limiter is nil (disabled) or allows the event.
func (c Ctx) Allow(category any) bool {
	if c.Limiter == nil {
		return true
	}
	_, ok := c.Limiter.Allow(category)
	return ok
}

// log returns a usable logger even when the Ctx was zero-initialized.
func (c Ctx) log() *corelog.Logger {
	if c.Logger == nil {
		return corelog.NewDiscard()
	}
	return c.Logger
}

// Log exposes the logger for packages that only need it directly.
func (c Ctx) Log() *corelog.Logger { return c.log() }
