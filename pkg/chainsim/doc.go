// Package chainsim provides an in-memory stand-in for the chain RPC clients
// that are explicitly out of scope for this module (spec.md §1 Non-goals).
// It implements the normative address-derivation formulas from spec.md §6
// exactly, and a deterministic ChainAdapter that instantiates/executes
// artifacts entirely in memory -- enough to drive pkg/instantiator,
// pkg/processor, and pkg/bridge end to end in tests and cmd/programctl
// without a real chain.
package chainsim
