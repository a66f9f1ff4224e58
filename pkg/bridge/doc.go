// Package bridge implements the Cross-Domain Bridge Adapter (component D):
// a correlated async send/ack transport between two domains, a per-channel
// proxy-creation handshake state machine, and the TTL-driven timeout
// classification a send_msgs dispatch falls back to when no acknowledgement
// arrives.
//
// The send/ack primitive is structurally grounded in a ping-pong
// request/response pattern -- register a pending call keyed by
// execution_id, hand the caller a handle to await, and have a separate
// Deliver call (fed by whatever drives the remote domain) complete it --
// the same shape as a microbatch job result, adapted here to cross-domain
// correlation instead of in-process batching.
package bridge
