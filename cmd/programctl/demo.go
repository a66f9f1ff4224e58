package main

import (
	"github.com/valence-labs/corechain/internal/corelog"
	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/chainsim"
	"github.com/valence-labs/corechain/pkg/domain"
	"github.com/valence-labs/corechain/pkg/instantiator"
	"github.com/valence-labs/corechain/pkg/registry"
)

// demoDeployer is the fixed instantiator address this CLI demo runs as.
const demoDeployer = "sim1deployer"

// demoConfig builds a small, fixed ProgramConfig: one vault account, one
// swap library whose config references the vault (and which the vault
// approves), and a permissionless atomic authorization whose single function
// targets the vault account -- enough to exercise every instantiator step
// without requiring external flags for a first run.
func demoConfig(owner string) registry.ProgramConfig {
	return registry.ProgramConfig{
		Owner: owner,
		Accounts: map[domain.AccountId]registry.AccountInfo{
			1: {Name: "vault"},
		},
		Libraries: map[domain.LibraryId]registry.LibraryInfo{
			1: {Name: "swap", AccountPlaceholders: map[string]domain.AccountId{"vault_account": 1}},
		},
		Links: []registry.Link{
			{Inputs: []domain.AccountId{1}, Outputs: []domain.AccountId{1}, LibraryId: 1},
		},
		Authorizations: []domain.Authorization{{
			Label: "swap",
			Mode:  domain.Permissionless(),
			Subroutine: domain.Subroutine{
				Kind: domain.SubroutineAtomic,
				Functions: []domain.Function{{
					TargetDomain:    domain.MainDomain,
					ContractAddress: registry.AccountPlaceholder(1),
					Message:         domain.MessageDetails{Name: "swap"},
				}},
			},
		}},
	}
}

// demoEnv is the freshly-built registry/chain/instantiator graph every
// subcommand operates against. Each invocation of programctl starts from a
// clean in-memory state and re-runs the deterministic instantiation
// procedure -- there is no cross-process persistence in this demo, matching
// the "recoverable by re-running the pure address-derivation pipeline"
// guarantee the procedure itself relies on.
type demoEnv struct {
	reg       *registry.Registry
	mainChain *chainsim.Chain
	inst      *instantiator.Instantiator
}

func newDemoEnv() *demoEnv {
	reg := registry.NewRegistry("sim1registry")
	mainChain := chainsim.NewChain("main")
	cctx := chainctx.New().WithLogger(corelog.NewStderr())
	return &demoEnv{
		reg:       reg,
		mainChain: mainChain,
		inst:      instantiator.New(reg, mainChain, nil, cctx),
	}
}
