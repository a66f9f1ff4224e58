package registry

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/valence-labs/corechain/pkg/domain"
)

// AccountInfo is the declarative input for one arena-indexed account
// (spec.md §4.5 ProgramConfig.accounts).
type AccountInfo struct {
	Name string // extra_tag input to the account's address salt
}

// LibraryInfo is the declarative input for one arena-indexed library.
// AccountPlaceholders maps a config field name to the AccountId whose
// predicted address must be substituted in at instantiation time (spec.md
// §4.5 step 7); StaticConfig carries every other literal field.
type LibraryInfo struct {
	Name                string
	AccountPlaceholders map[string]domain.AccountId
	StaticConfig        map[string]string
}

// Link declares one library's accepted inputs/outputs, used both to derive
// each account's pre-approved library list (step 6) and to validate the
// pre-flight referential-integrity invariants (spec.md §4.5).
type Link struct {
	Inputs    []domain.AccountId
	Outputs   []domain.AccountId
	LibraryId domain.LibraryId
}

// ProgramConfig is the declarative input to the instantiator (spec.md §4.5).
type ProgramConfig struct {
	Owner          string
	Accounts       map[domain.AccountId]AccountInfo
	Libraries      map[domain.LibraryId]LibraryInfo
	Links          []Link
	Authorizations []domain.Authorization
	ExternalDomains []domain.ExternalDomainState
}

// AccountPlaceholder and LibraryPlaceholder are the ContractAddress
// placeholder strings a ProgramConfig author writes in place of a concrete
// address wherever a Function targets an account or library this same
// config instantiates. The instantiator resolves these to predicted
// addresses at step 9 (spec.md §4.5); any ContractAddress not matching
// either prefix is assumed to already be a concrete external address and is
// left untouched.
func AccountPlaceholder(id domain.AccountId) string {
	return "account:" + strconv.FormatUint(uint64(id), 10)
}

func LibraryPlaceholder(id domain.LibraryId) string {
	return "library:" + strconv.FormatUint(uint64(id), 10)
}

// AuthorizationData is the instantiator's populated output per program
// (spec.md §6 "Persisted registry record").
type AuthorizationData struct {
	AuthorizationAddr        string
	ProcessorAddrs           map[string]string // domain name ("" = main) -> addr
	AuthorizationBridgeAddrs map[string]string // external domain name -> proxy addr
	ProcessorBridgeAddrs     map[string]string // external domain name -> proxy addr
}

// Record is one program's persisted registry entry.
type Record struct {
	ProgramId domain.ProgramId
	Config    ProgramConfig
	Data      AuthorizationData
}

// Registry is the persisted per-program config store (component F).
// RegistryAddr is this registry's own canonical chain address, mixed into
// every program-artifact salt per spec.md §6.
type Registry struct {
	mu           sync.Mutex
	RegistryAddr string

	ids       *domain.IdAllocator
	reserved  map[domain.ProgramId]bool
	records   map[domain.ProgramId]*Record
}

// NewRegistry constructs an empty Registry addressed at registryAddr.
func NewRegistry(registryAddr string) *Registry {
	return &Registry{
		RegistryAddr: registryAddr,
		ids:          domain.NewIdAllocator(),
		reserved:     map[domain.ProgramId]bool{},
		records:      map[domain.ProgramId]*Record{},
	}
}

// Reserve issues a fresh ProgramId (spec.md §4.5 step 1).
func (r *Registry) Reserve() domain.ProgramId {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := domain.ProgramId(r.ids.Next())
	r.reserved[id] = true
	return id
}

// Persist stores the full config and populated AuthorizationData for id
// (spec.md §4.5 step 13). id must have been previously reserved.
func (r *Registry) Persist(id domain.ProgramId, cfg ProgramConfig, data AuthorizationData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.reserved[id] {
		return fmt.Errorf("registry: program %d was never reserved", id)
	}
	r.records[id] = &Record{ProgramId: id, Config: cfg, Data: data}
	return nil
}

// Get returns the persisted record for id, if any.
func (r *Registry) Get(id domain.ProgramId) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// AllocatorState exposes the underlying id allocator's next value, for
// restoring it across process restarts.
func (r *Registry) AllocatorState() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids.Peek()
}

// RestoreAllocator rehydrates the id allocator, used at startup after
// reloading persisted records from durable storage.
func (r *Registry) RestoreAllocator(next uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids.Restore(next)
}
