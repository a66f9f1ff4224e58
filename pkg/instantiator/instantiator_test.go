package instantiator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valence-labs/corechain/pkg/bridge"
	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/chainsim"
	"github.com/valence-labs/corechain/pkg/domain"
	"github.com/valence-labs/corechain/pkg/registry"
)

func simpleConfig() registry.ProgramConfig {
	return registry.ProgramConfig{
		Owner: "final-owner",
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
			Label: "swap-auth",
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

func TestValidate_RejectsUnreferencedAccount(t *testing.T) {
	cfg := simpleConfig()
	cfg.Accounts[2] = registry.AccountInfo{Name: "orphan"}
	err := Validate(cfg)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestValidate_RejectsEmptyAuthorizations(t *testing.T) {
	cfg := simpleConfig()
	cfg.Authorizations = nil
	require.Error(t, Validate(cfg))
}

func TestInstantiate_AddressesAreDeterministicAndVerifiable(t *testing.T) {
	reg := registry.NewRegistry("sim1registry")
	mainChain := chainsim.NewChain("main")
	in := New(reg, mainChain, nil, chainctx.New())

	result, err := in.Instantiate(context.Background(), "deployer", simpleConfig())
	require.NoError(t, err)
	require.NotZero(t, result.ProgramId)

	rec, ok := reg.Get(result.ProgramId)
	require.True(t, ok)
	require.Equal(t, "final-owner", mustOwner(t, mainChain, rec.Data.AuthorizationAddr))

	// Re-deriving the same program's authorization address from the pure
	// formula must reproduce the persisted one -- recoverability after a
	// crash mid-procedure depends on this (spec.md §4.5's final paragraph).
	creator := chainsim.Canonical("deployer")
	salt := chainsim.ProgramArtifactSalt("authorization", uint64(result.ProgramId), "", reg.RegistryAddr)
	recomputed := chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactAuthorization), creator, salt)
	require.Equal(t, recomputed, rec.Data.AuthorizationAddr)

	kind, _, ok := mainChain.CodeIdentity(rec.Data.AuthorizationAddr)
	require.True(t, ok)
	require.Equal(t, chainsim.ArtifactAuthorization, kind)

	auth, ok := result.Manager.Authorization("swap-auth")
	require.True(t, ok)
	require.NotEqual(t, registry.AccountPlaceholder(1), auth.Subroutine.Functions[0].ContractAddress, "contract_address placeholder must be rewritten to a concrete address")
	require.True(t, mainChain.Exists(auth.Subroutine.Functions[0].ContractAddress))
}

func TestInstantiate_MaterialisesLibraryConfig(t *testing.T) {
	reg := registry.NewRegistry("sim1registry")
	mainChain := chainsim.NewChain("main")
	in := New(reg, mainChain, nil, chainctx.New())

	cfg := simpleConfig()
	cfg.Libraries[1] = registry.LibraryInfo{
		Name:                "swap",
		AccountPlaceholders: map[string]domain.AccountId{"vault_account": 1},
		StaticConfig:        map[string]string{"fee_bps": "30"},
	}

	result, err := in.Instantiate(context.Background(), "deployer", cfg)
	require.NoError(t, err)

	_, ok := reg.Get(result.ProgramId)
	require.True(t, ok)

	creator := chainsim.Canonical("deployer")
	libAddr := chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactLibrary), creator,
		chainsim.ProgramArtifactSalt("library:swap", uint64(result.ProgramId), "1", reg.RegistryAddr))

	config, ok := mainChain.Config(libAddr)
	require.True(t, ok)
	require.Equal(t, "30", config["fee_bps"])

	vaultAddr, ok := config["vault_account"]
	require.True(t, ok)
	require.True(t, mainChain.Exists(vaultAddr), "vault_account placeholder must resolve to the instantiated account's address")
}

func TestInstantiate_WiresExternalDomainBridge(t *testing.T) {
	reg := registry.NewRegistry("sim1registry")
	mainChain := chainsim.NewChain("main")
	extChain := chainsim.NewChain("rollup-a")

	cfg := simpleConfig()
	cfg.ExternalDomains = []domain.ExternalDomainState{{ConnectionId: "rollup-a", RemotePort: "wasm"}}
	cfg.Authorizations = append(cfg.Authorizations, domain.Authorization{
		Label: "remote-auth",
		Mode:  domain.Permissionless(),
		Subroutine: domain.Subroutine{
			Kind: domain.SubroutineAtomic,
			Functions: []domain.Function{{
				TargetDomain:    domain.External("rollup-a"),
				ContractAddress: "sim1externalcontractfixed",
				Message:         domain.MessageDetails{Name: "mint"},
			}},
		},
	})

	in := New(reg, mainChain, map[string]ExternalChain{
		"rollup-a": {Chain: extChain, AuthToRemote: bridge.NewTransport(), RemoteToAuth: bridge.NewTransport()},
	}, chainctx.New())

	result, err := in.Instantiate(context.Background(), "deployer", cfg)
	require.NoError(t, err)

	proxy, ok := result.ExternalProxies["rollup-a"]
	require.True(t, ok)
	require.Equal(t, domain.ProxyCreated, proxy.State())

	_, ok = result.ExternalEngines["rollup-a"]
	require.True(t, ok)

	msg := []byte(`{"mint":{}}`)
	_, err = result.Manager.SendMsgs(context.Background(), "anyone", "remote-auth", [][]byte{msg}, domain.TTL{})
	require.NoError(t, err)

	router := result.ExternalRouters["rollup-a"]
	outbox := router.DrainOutbox()
	require.Len(t, outbox, 1, "send_msgs against an external-domain authorization must dispatch across the bridge")
}

func mustOwner(t *testing.T, chain *chainsim.Chain, addr string) string {
	t.Helper()
	owner, ok := chain.Owner(addr)
	require.True(t, ok)
	return owner
}
