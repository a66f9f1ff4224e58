// Package authorization implements the Authorization Manager (component B):
// owner/sub-owner governed authorization lifecycle, the usage-token ledger,
// send_msgs admission and message validation, and the owner bypass queue
// operations, routing accepted batches to the target domain's processor
// either directly (main domain) or through a QueueRouter adapter (external
// domains, backed by pkg/bridge).
package authorization
