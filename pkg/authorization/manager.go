package authorization

import (
	"context"
	"sync"

	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/domain"
)

// QueueRouter delivers an accepted MessageBatch to dom's processor, either
// directly (main domain, wrapping a *processor.Engine) or across the bridge
// adapter (external domain). Route must not block awaiting a terminal
// result -- per spec.md §5 the only suspension point is the bridge send
// itself, which records a pending marker and returns.
type QueueRouter interface {
	Route(ctx context.Context, dom domain.Domain, batch domain.MessageBatch) (domain.BatchId, error)
}

// Manager is the Authorization Manager (component B): the single writer for
// authorization state, usage-token supply, and callback records for one
// program (spec.md §5).
type Manager struct {
	mu sync.Mutex

	owner     string
	subOwners map[string]bool

	auths map[string]*domain.Authorization

	registeredDomains map[domain.Domain]bool
	externalDomains   map[string]*domain.ExternalDomainState
	routers           map[domain.Domain]QueueRouter

	ledger *Ledger
	execId *domain.IdAllocator

	callbacks map[domain.ExecutionId]*domain.ProcessorCallbackInfo

	cctx chainctx.Ctx
}

// NewManager constructs a Manager for a program owned by owner. The main
// domain is always implicitly registered.
func NewManager(owner string, cctx chainctx.Ctx) *Manager {
	return &Manager{
		owner:             owner,
		subOwners:         map[string]bool{},
		auths:             map[string]*domain.Authorization{},
		registeredDomains: map[domain.Domain]bool{domain.MainDomain: true},
		externalDomains:   map[string]*domain.ExternalDomainState{},
		routers:           map[domain.Domain]QueueRouter{},
		ledger:            NewLedger(),
		execId:            domain.NewIdAllocator(),
		callbacks:         map[domain.ExecutionId]*domain.ProcessorCallbackInfo{},
		cctx:              cctx,
	}
}

// RegisterRouter binds dom's QueueRouter, used by cmd/programctl and tests
// to wire a processor.Engine (main) or bridge adapter (external) after
// construction, mirroring how the instantiator wires the graph at program
// birth (spec.md §4.5).
func (m *Manager) RegisterRouter(dom domain.Domain, router QueueRouter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registeredDomains[dom] = true
	m.routers[dom] = router
}

func (m *Manager) isOwner(caller string) bool {
	return caller == m.owner
}

func (m *Manager) isOwnerOrSubOwner(caller string) bool {
	return caller == m.owner || m.subOwners[caller]
}

func (m *Manager) domainRegistered(dom domain.Domain) bool {
	return m.registeredDomains[dom]
}

// AddSubOwners grants create/modify/enable/disable/mint/insert/evict
// authority to the given addresses. Owner-only (SPEC_FULL.md §3 supplement);
// sub-owners never gain TransferOwnership or sub-owner-management authority.
func (m *Manager) AddSubOwners(caller string, addrs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner may add sub-owners")
	}
	for _, a := range addrs {
		m.subOwners[a] = true
	}
	return nil
}

// RemoveSubOwners revokes sub-owner authority. Owner-only.
func (m *Manager) RemoveSubOwners(caller string, addrs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner may remove sub-owners")
	}
	for _, a := range addrs {
		delete(m.subOwners, a)
	}
	return nil
}

// TransferOwnership reassigns the program's owner. Owner-only; sub-owner
// status is unaffected (a sub-owner does not become owner, and the prior
// owner's sub-owner grants, if any, are left untouched).
func (m *Manager) TransferOwnership(caller string, newOwner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner may transfer ownership")
	}
	m.owner = newOwner
	return nil
}

// AddExternalDomains registers new external domains and seeds their proxy
// state as PendingResponse, triggering proxy creation through the bridge
// adapter (spec.md §4.1; the actual handshake drive lives in pkg/bridge and
// whatever drives add_external_domain's on-chain call is the caller's
// responsibility -- this records the bookkeeping side).
func (m *Manager) AddExternalDomains(caller string, infos []domain.ExternalDomainState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOwnerOrSubOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner or a sub-owner may add external domains")
	}
	for _, info := range infos {
		dom := domain.External(info.ConnectionId)
		m.registeredDomains[dom] = true
		cp := info
		m.externalDomains[info.ConnectionId] = &cp
	}
	return nil
}

// CreateAuthorizations validates and installs auths, minting usage tokens
// for any WithLimit/WithoutLimit entries (spec.md §4.1). All entries are
// validated before any is applied, so a batch either fully succeeds or
// leaves existing state untouched.
func (m *Manager) CreateAuthorizations(caller string, auths []domain.Authorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isOwnerOrSubOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner or a sub-owner may create authorizations")
	}

	seen := map[string]bool{}
	for i := range auths {
		a := &auths[i]
		if a.Label == "" {
			return domain.NewConfigurationError(domain.CodeInvalidStructure, "authorization label must not be empty")
		}
		if _, exists := m.auths[a.Label]; exists {
			return domain.NewConfigurationError(domain.CodeLabelAlreadyExists, a.Label)
		}
		if seen[a.Label] {
			return domain.NewConfigurationError(domain.CodeLabelAlreadyExists, a.Label)
		}
		seen[a.Label] = true

		if err := a.Subroutine.Validate(); err != nil {
			return err
		}
		if !m.domainRegistered(a.Subroutine.Domain()) {
			return domain.ErrDomainNotRegistered
		}
		if a.Priority == domain.PriorityHigh && a.Mode.IsPermissionless() {
			return domain.ErrPermissionlessWithHighPriority
		}
	}

	for i := range auths {
		a := auths[i]
		if a.MaxConcurrentExecutions == 0 {
			a.MaxConcurrentExecutions = 1
		}
		a.State = domain.AuthorizationEnabled
		a.InFlight = 0
		m.auths[a.Label] = &a

		switch {
		case a.Mode.IsWithLimit():
			for holder, amt := range a.Mode.Allowances() {
				m.ledger.Mint(a.Label, holder, amt)
			}
		case a.Mode.IsWithoutLimit():
			for _, holder := range a.Mode.Holders() {
				m.ledger.Mint(a.Label, holder, 1)
			}
		}
	}
	return nil
}

// ModifyAuthorization updates only the mutable fields: window,
// max_concurrent_executions, and priority.
func (m *Manager) ModifyAuthorization(caller, label string, notBefore, expiration *domain.Window, maxConcurrent *uint32, priority *domain.Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOwnerOrSubOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner or a sub-owner may modify authorizations")
	}
	a, ok := m.auths[label]
	if !ok {
		return domain.NewPolicyError(domain.CodeDoesNotExist, label)
	}
	if priority != nil && *priority == domain.PriorityHigh && a.Mode.IsPermissionless() {
		return domain.ErrPermissionlessWithHighPriority
	}
	if notBefore != nil {
		a.NotBefore = *notBefore
	}
	if expiration != nil {
		a.Expiration = *expiration
	}
	if maxConcurrent != nil {
		a.MaxConcurrentExecutions = *maxConcurrent
	}
	if priority != nil {
		a.Priority = *priority
	}
	return nil
}

// EnableAuthorization transitions label from Disabled to Enabled (idempotent
// if already Enabled).
func (m *Manager) EnableAuthorization(caller, label string) error {
	return m.setState(caller, label, domain.AuthorizationEnabled)
}

// DisableAuthorization transitions label to Disabled.
func (m *Manager) DisableAuthorization(caller, label string) error {
	return m.setState(caller, label, domain.AuthorizationDisabled)
}

func (m *Manager) setState(caller, label string, state domain.AuthorizationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOwnerOrSubOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner or a sub-owner may toggle authorization state")
	}
	a, ok := m.auths[label]
	if !ok {
		return domain.NewPolicyError(domain.CodeDoesNotExist, label)
	}
	a.State = state
	return nil
}

// MintAuthorizations mints additional usage tokens for a WithLimit/
// WithoutLimit authorization. Fails for Permissionless.
func (m *Manager) MintAuthorizations(caller, label string, mints map[string]uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOwnerOrSubOwner(caller) {
		return domain.NewPolicyError(domain.CodeNotOwner, "only the owner or a sub-owner may mint authorizations")
	}
	a, ok := m.auths[label]
	if !ok {
		return domain.NewPolicyError(domain.CodeDoesNotExist, label)
	}
	if a.Mode.IsPermissionless() {
		return domain.ErrCantMintForPermissionless
	}
	for holder, amt := range mints {
		m.ledger.Mint(label, holder, amt)
	}
	return nil
}

// Authorization returns a copy of label's current Authorization, for
// introspection (cmd/programctl inspect, tests).
func (m *Manager) Authorization(label string) (domain.Authorization, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auths[label]
	if !ok {
		return domain.Authorization{}, false
	}
	return *a, true
}

// AvailableTokens returns holder's spendable usage-token balance for label.
func (m *Manager) AvailableTokens(label, holder string) uint64 {
	return m.ledger.Available(label, holder)
}
