package chainsim

import (
	"fmt"
	"sync"
)

// Record is what Chain stores for one instantiated address.
type Record struct {
	Kind     ArtifactKind
	CodeHash []byte
	Owner    string

	// ApprovedLibraries is populated for ArtifactAccount records, mirroring
	// the account's single-writer approved-library list (spec.md §5).
	ApprovedLibraries []string

	// Config is populated for ArtifactLibrary records: the library's
	// materialised StaticConfig, with every AccountPlaceholder entry already
	// substituted for its predicted account address (spec.md §4.5 step 7).
	Config map[string]string
}

// Chain is an in-memory stand-in for one domain's chain state: the set of
// instantiated artifacts, their owners, and a manually-advanced height
// counter. It implements enough of a real chain's surface to drive
// pkg/instantiator's prediction/instantiation/verification steps and
// pkg/processor's Executor interface end to end.
type Chain struct {
	mu     sync.Mutex
	Name   string
	height uint64

	artifacts map[string]*Record
}

// NewChain constructs an empty chain for domain name (used only for logging
// and diagnostics; addressing never depends on it directly).
func NewChain(name string) *Chain {
	return &Chain{Name: name, artifacts: map[string]*Record{}}
}

// Height returns the chain's current block height.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// AdvanceHeight increments the chain's height by n and returns the new
// value, used by tests driving height-based TTL/retry windows.
func (c *Chain) AdvanceHeight(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
	return c.height
}

// Instantiate records addr as an artifact of kind owned by owner. It is
// idempotent: re-instantiating the same address with the same kind succeeds
// silently, matching spec.md §4.5's "recoverable by restarting ... and
// re-running the address-derivation pipeline" guarantee.
func (c *Chain) Instantiate(addr string, kind ArtifactKind, codeHash []byte, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.artifacts[addr]; ok {
		if existing.Kind != kind {
			return fmt.Errorf("chainsim: address %s already instantiated as %s, cannot re-instantiate as %s", addr, existing.Kind, kind)
		}
		return nil
	}
	c.artifacts[addr] = &Record{Kind: kind, CodeHash: codeHash, Owner: owner}
	return nil
}

// Exists reports whether addr has been instantiated.
func (c *Chain) Exists(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.artifacts[addr]
	return ok
}

// CodeIdentity returns the recorded ArtifactKind and code hash for addr.
func (c *Chain) CodeIdentity(addr string) (ArtifactKind, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.artifacts[addr]
	if !ok {
		return 0, nil, false
	}
	return r.Kind, r.CodeHash, true
}

// TransferOwner rewrites addr's recorded owner, simulating
// transfer_ownership against an authorization contract address.
func (c *Chain) TransferOwner(addr string, newOwner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.artifacts[addr]
	if !ok {
		return fmt.Errorf("chainsim: %s does not exist", addr)
	}
	r.Owner = newOwner
	return nil
}

// Owner returns addr's recorded owner.
func (c *Chain) Owner(addr string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.artifacts[addr]
	if !ok {
		return "", false
	}
	return r.Owner, true
}

// SetApprovedLibraries records addr's (an account's) approved-library list.
func (c *Chain) SetApprovedLibraries(addr string, libraries []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.artifacts[addr]
	if !ok || r.Kind != ArtifactAccount {
		return fmt.Errorf("chainsim: %s is not an instantiated account", addr)
	}
	r.ApprovedLibraries = append([]string(nil), libraries...)
	return nil
}

// ApprovedLibraries returns addr's approved-library list.
func (c *Chain) ApprovedLibraries(addr string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.artifacts[addr]
	if !ok {
		return nil, false
	}
	return r.ApprovedLibraries, true
}

// SetConfig records addr's (a library's) materialised configuration.
func (c *Chain) SetConfig(addr string, config map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.artifacts[addr]
	if !ok || r.Kind != ArtifactLibrary {
		return fmt.Errorf("chainsim: %s is not an instantiated library", addr)
	}
	cp := make(map[string]string, len(config))
	for k, v := range config {
		cp[k] = v
	}
	r.Config = cp
	return nil
}

// Config returns addr's materialised library configuration.
func (c *Chain) Config(addr string) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.artifacts[addr]
	if !ok {
		return nil, false
	}
	return r.Config, true
}
