// Package corelog wires github.com/joeycumines/logiface to
// github.com/joeycumines/logiface-zerolog, giving every package in this
// module a single concrete Logger type to accept in constructors explicitly
// rather than reaching for a package-level global.
package corelog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	izerolog "github.com/joeycumines/logiface-zerolog"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type accepted by this module's
// constructors. It is always non-nil in practice (New* constructors never
// return nil), but every call site must still tolerate a nil *Logger for
// zero-value struct literals in tests, per logiface.Logger's own
// nil-receiver safety.
type Logger = logiface.Logger[*izerolog.Event]

// NewStderr returns a human-readable, leveled logger writing to stderr,
// suitable for cmd/programctl.
func NewStderr() *Logger {
	return newLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger())
}

// NewDiscard returns a logger that writes nowhere, used as the default in
// package constructors when the caller doesn't supply one.
func NewDiscard() *Logger {
	return newLogger(zerolog.New(io.Discard))
}

// NewTest returns a logger writing to the given io.Writer (typically
// zerolog.ConsoleWriter wrapping *testing.T via t.Log, or io.Discard),
// exposed for package tests that want to assert on emitted fields.
func NewTest(w io.Writer) *Logger {
	return newLogger(zerolog.New(w).With().Timestamp().Logger())
}

func newLogger(z zerolog.Logger) *Logger {
	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(z),
		logiface.WithLevel[*izerolog.Event](logiface.LevelTrace),
	)
}
