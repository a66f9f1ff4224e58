// Package domain holds the shared types, identifiers, and invariants used by
// the authorization manager, processor queue engine, bridge adapter, and
// instantiator. Every cross-reference between owners (accounts, libraries,
// authorizations) is an integer id resolved against an owner-keyed arena; no
// pointer graphs cross package boundaries.
package domain
