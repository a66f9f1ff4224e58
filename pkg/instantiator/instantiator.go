package instantiator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/valence-labs/corechain/pkg/authorization"
	"github.com/valence-labs/corechain/pkg/bridge"
	"github.com/valence-labs/corechain/pkg/chainctx"
	"github.com/valence-labs/corechain/pkg/chainsim"
	"github.com/valence-labs/corechain/pkg/domain"
	"github.com/valence-labs/corechain/pkg/processor"
	"github.com/valence-labs/corechain/pkg/registry"
)

// ExternalChain supplies the chain and transports a program's external
// domain instantiation step needs: a chainsim.Chain to deploy the remote
// processor and proxy on, plus the bridge.Transport pair carrying messages
// in each direction across that connection.
type ExternalChain struct {
	Chain             *chainsim.Chain
	AuthToRemote      *bridge.Transport // authorization manager -> remote processor
	RemoteToAuth      *bridge.Transport // remote processor -> authorization manager (acks/callbacks)
}

// Instantiator owns the main chain and registry shared across every program
// it instantiates, plus the set of reachable external chains keyed by
// connection id.
type Instantiator struct {
	Registry  *registry.Registry
	MainChain *chainsim.Chain
	External  map[string]ExternalChain
	Cctx      chainctx.Ctx
}

// New constructs an Instantiator.
func New(reg *registry.Registry, mainChain *chainsim.Chain, external map[string]ExternalChain, cctx chainctx.Ctx) *Instantiator {
	return &Instantiator{Registry: reg, MainChain: mainChain, External: external, Cctx: cctx}
}

// Result is everything the instantiation procedure built, returned for the
// caller (cmd/programctl, tests) to drive further operations against.
type Result struct {
	ProgramId domain.ProgramId
	Manager   *authorization.Manager
	MainEngine *processor.Engine

	ExternalEngines map[string]*processor.Engine
	ExternalProxies map[string]*bridge.Proxy // authorization-side proxy, keyed by connection id
	ExternalRouters map[string]*authorization.BridgeRouter

	Data registry.AuthorizationData
}

// externalAddrs holds one external domain connection's predicted addresses.
type externalAddrs struct {
	processorAddr string
	authProxyAddr string // authorization's proxy, on the remote chain
	procProxyAddr string // remote processor's proxy, on the main chain
}

// resolveContractAddress rewrites an AccountPlaceholder/LibraryPlaceholder
// string into its predicted concrete address (spec.md §4.5 step 9).
// Anything not matching either convention is assumed to already be a
// concrete address and is returned unchanged.
func resolveContractAddress(addr string, accountAddrs map[domain.AccountId]string, libraryAddrs map[domain.LibraryId]string) string {
	if rest, ok := strings.CutPrefix(addr, "account:"); ok {
		if n, err := strconv.ParseUint(rest, 10, 64); err == nil {
			if resolved, ok := accountAddrs[domain.AccountId(n)]; ok {
				return resolved
			}
		}
	}
	if rest, ok := strings.CutPrefix(addr, "library:"); ok {
		if n, err := strconv.ParseUint(rest, 10, 64); err == nil {
			if resolved, ok := libraryAddrs[domain.LibraryId(n)]; ok {
				return resolved
			}
		}
	}
	return addr
}

// Instantiate runs the full 13-step ordered procedure (spec.md §4.5)
// against cfg, deploying onto in.MainChain and in.External, and persists
// the result to in.Registry. instantiatorAddr is the deployer's own address,
// used as the temporary owner and as the creator input to every
// address-derivation formula.
func (in *Instantiator) Instantiate(ctx context.Context, instantiatorAddr string, cfg registry.ProgramConfig) (*Result, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	in.Cctx.Log().Debug().Str("owner", instantiatorAddr).Int("external_domains", len(cfg.ExternalDomains)).Log("instantiator: starting instantiation")

	// Step 1: reserve the program id.
	id := in.Registry.Reserve()
	registryAddr := in.Registry.RegistryAddr
	creator := chainsim.Canonical(instantiatorAddr)

	// Step 2: compute every deterministic address up front.
	authAddr := chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactAuthorization), creator,
		chainsim.ProgramArtifactSalt("authorization", uint64(id), "", registryAddr))
	mainProcAddr := chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactProcessor), creator,
		chainsim.ProgramArtifactSalt("processor", uint64(id), "main", registryAddr))

	accountAddrs := make(map[domain.AccountId]string, len(cfg.Accounts))
	for accId, info := range cfg.Accounts {
		accountAddrs[accId] = chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactAccount), creator,
			chainsim.ProgramArtifactSalt("account:"+info.Name, uint64(id), strconv.FormatUint(uint64(accId), 10), registryAddr))
	}
	libraryAddrs := make(map[domain.LibraryId]string, len(cfg.Libraries))
	for libId, info := range cfg.Libraries {
		libraryAddrs[libId] = chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactLibrary), creator,
			chainsim.ProgramArtifactSalt("library:"+info.Name, uint64(id), strconv.FormatUint(uint64(libId), 10), registryAddr))
	}

	extAddrs := make(map[string]externalAddrs, len(cfg.ExternalDomains))
	for _, ext := range cfg.ExternalDomains {
		procAddr := chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactProcessor), creator,
			chainsim.ProgramArtifactSalt("processor", uint64(id), ext.ConnectionId, registryAddr))
		authProxyAddr := chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactProxy), creator,
			chainsim.BridgeProxySalt(ext.ConnectionId, ext.RemotePort, authAddr))
		procProxyAddr := chainsim.DeriveAddr(chainsim.CodeHash(chainsim.ArtifactProxy), creator,
			chainsim.BridgeProxySalt(ext.ConnectionId, "main", procAddr))
		extAddrs[ext.ConnectionId] = externalAddrs{processorAddr: procAddr, authProxyAddr: authProxyAddr, procProxyAddr: procProxyAddr}
	}

	// Step 3: authorization contract, temporary owner = instantiator.
	if err := in.MainChain.Instantiate(authAddr, chainsim.ArtifactAuthorization, chainsim.CodeHash(chainsim.ArtifactAuthorization), instantiatorAddr); err != nil {
		return nil, fmt.Errorf("instantiator: step 3 (authorization contract): %w", err)
	}

	// Step 4: main-domain processor, admin = authorization.
	if err := in.MainChain.Instantiate(mainProcAddr, chainsim.ArtifactProcessor, chainsim.CodeHash(chainsim.ArtifactProcessor), authAddr); err != nil {
		return nil, fmt.Errorf("instantiator: step 4 (main processor): %w", err)
	}

	manager := authorization.NewManager(instantiatorAddr, in.Cctx)
	mainExecutor := chainsim.NewExecutor(in.MainChain)
	mainEngine := processor.NewEngine(domain.MainDomain, mainExecutor, manager, in.Cctx)
	manager.RegisterRouter(domain.MainDomain, authorization.NewLocalRouter(mainEngine))

	// Step 5: wire each external domain's remote processor and bridge proxy
	// pair, then register the connection so add_external_domain's handshake
	// can be driven. chainsim has no real network delay, so the handshake
	// acknowledges immediately rather than polling with bounded retries; a
	// real ChainAdapter would replace this inner loop with the described
	// poll-until-Created-or-timeout behavior. Each external domain targets an
	// independent chain, so the deploy+ack+wire sequence for every
	// connection runs concurrently via errgroup; only the final merge into
	// the shared maps below is sequential.
	externalEngines := make(map[string]*processor.Engine, len(cfg.ExternalDomains))
	externalProxies := make(map[string]*bridge.Proxy, len(cfg.ExternalDomains))
	externalRouters := make(map[string]*authorization.BridgeRouter, len(cfg.ExternalDomains))
	procProxyAddrsByConn := make(map[string]string, len(cfg.ExternalDomains))
	authProxyAddrsByConn := make(map[string]string, len(cfg.ExternalDomains))

	sortedExternals := append([]domain.ExternalDomainState(nil), cfg.ExternalDomains...)
	sort.Slice(sortedExternals, func(i, j int) bool { return sortedExternals[i].ConnectionId < sortedExternals[j].ConnectionId })

	type wiredExternal struct {
		connId       string
		engine       *processor.Engine
		authProxy    *bridge.Proxy
		router       *authorization.BridgeRouter
		procProxyAddr string
		authProxyAddr string
	}
	wired := make([]wiredExternal, len(sortedExternals))

	grp, _ := errgroup.WithContext(ctx)
	for i, ext := range sortedExternals {
		i, ext := i, ext
		grp.Go(func() error {
			extChain, ok := in.External[ext.ConnectionId]
			if !ok {
				return fmt.Errorf("instantiator: step 5: no chain wired for external connection %q", ext.ConnectionId)
			}
			addrs := extAddrs[ext.ConnectionId]

			if err := extChain.Chain.Instantiate(addrs.processorAddr, chainsim.ArtifactProcessor, chainsim.CodeHash(chainsim.ArtifactProcessor), addrs.authProxyAddr); err != nil {
				return fmt.Errorf("instantiator: step 5 (remote processor %s): %w", ext.ConnectionId, err)
			}
			if err := extChain.Chain.Instantiate(addrs.authProxyAddr, chainsim.ArtifactProxy, chainsim.CodeHash(chainsim.ArtifactProxy), authAddr); err != nil {
				return fmt.Errorf("instantiator: step 5 (auth proxy %s): %w", ext.ConnectionId, err)
			}
			if err := in.MainChain.Instantiate(addrs.procProxyAddr, chainsim.ArtifactProxy, chainsim.CodeHash(chainsim.ArtifactProxy), addrs.processorAddr); err != nil {
				return fmt.Errorf("instantiator: step 5 (processor proxy %s): %w", ext.ConnectionId, err)
			}

			authProxy := bridge.NewProxy(in.Cctx)
			if err := authProxy.Ack(); err != nil {
				return fmt.Errorf("instantiator: step 5 (ack auth proxy %s): %w", ext.ConnectionId, err)
			}
			procProxy := bridge.NewProxy(in.Cctx)
			if err := procProxy.Ack(); err != nil {
				return fmt.Errorf("instantiator: step 5 (ack processor proxy %s): %w", ext.ConnectionId, err)
			}

			info := ext
			info.ProcessorAddr = addrs.processorAddr
			info.AuthorizationProxyState = authProxy.State()
			info.ProcessorProxyState = procProxy.State()
			if err := manager.AddExternalDomains(instantiatorAddr, []domain.ExternalDomainState{info}); err != nil {
				return fmt.Errorf("instantiator: step 5 (add_external_domain %s): %w", ext.ConnectionId, err)
			}

			extExecutor := chainsim.NewExecutor(extChain.Chain)
			extEngine := processor.NewEngine(domain.External(ext.ConnectionId), extExecutor, manager, in.Cctx)
			bridgeRouter := authorization.NewBridgeRouter(authProxy, extChain.AuthToRemote)
			manager.RegisterRouter(domain.External(ext.ConnectionId), bridgeRouter)

			wired[i] = wiredExternal{
				connId:        ext.ConnectionId,
				engine:        extEngine,
				authProxy:     authProxy,
				router:        bridgeRouter,
				procProxyAddr: addrs.procProxyAddr,
				authProxyAddr: addrs.authProxyAddr,
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	for _, w := range wired {
		externalEngines[w.connId] = w.engine
		externalProxies[w.connId] = w.authProxy
		externalRouters[w.connId] = w.router
		procProxyAddrsByConn[w.connId] = w.procProxyAddr
		authProxyAddrsByConn[w.connId] = w.authProxyAddr
	}

	// Step 6 + 7: instantiate libraries (leaf-first: libraries have no
	// dependency on accounts existing on chain, only on their own
	// materialised config), substituting each AccountPlaceholder entry with
	// its predicted account address.
	instantiatedLibraries := map[domain.LibraryId]bool{}
	for _, link := range cfg.Links {
		if instantiatedLibraries[link.LibraryId] {
			continue
		}
		instantiatedLibraries[link.LibraryId] = true
		libAddr := libraryAddrs[link.LibraryId]
		if err := in.MainChain.Instantiate(libAddr, chainsim.ArtifactLibrary, chainsim.CodeHash(chainsim.ArtifactLibrary), instantiatorAddr); err != nil {
			return nil, fmt.Errorf("instantiator: step 7 (library %d): %w", link.LibraryId, err)
		}

		info := cfg.Libraries[link.LibraryId]
		materialised := make(map[string]string, len(info.StaticConfig)+len(info.AccountPlaceholders))
		for k, v := range info.StaticConfig {
			materialised[k] = v
		}
		for field, accId := range info.AccountPlaceholders {
			addr, ok := accountAddrs[accId]
			if !ok {
				return nil, fmt.Errorf("instantiator: step 7 (library %d): account_placeholder %q references unknown account %d", link.LibraryId, field, accId)
			}
			materialised[field] = addr
		}
		if err := in.MainChain.SetConfig(libAddr, materialised); err != nil {
			return nil, fmt.Errorf("instantiator: step 7 (library %d config): %w", link.LibraryId, err)
		}
	}

	// Step 6 + 8: instantiate each account with its final approved_libraries
	// list, collected from links where the account appears as input.
	for accId, addr := range accountAddrs {
		approved := map[string]bool{}
		for _, link := range cfg.Links {
			for _, in2 := range link.Inputs {
				if in2 == accId {
					approved[libraryAddrs[link.LibraryId]] = true
				}
			}
		}
		list := make([]string, 0, len(approved))
		for a := range approved {
			list = append(list, a)
		}
		sort.Strings(list)

		if err := in.MainChain.Instantiate(addr, chainsim.ArtifactAccount, chainsim.CodeHash(chainsim.ArtifactAccount), instantiatorAddr); err != nil {
			return nil, fmt.Errorf("instantiator: step 8 (account %d): %w", accId, err)
		}
		if err := in.MainChain.SetApprovedLibraries(addr, list); err != nil {
			return nil, fmt.Errorf("instantiator: step 8 (account %d approved_libraries): %w", accId, err)
		}
	}

	// Step 9: rewrite every function's contract_address placeholder.
	resolvedAuths := make([]domain.Authorization, len(cfg.Authorizations))
	for i, a := range cfg.Authorizations {
		funcs := make([]domain.Function, len(a.Subroutine.Functions))
		for j, fn := range a.Subroutine.Functions {
			fn.ContractAddress = resolveContractAddress(fn.ContractAddress, accountAddrs, libraryAddrs)
			funcs[j] = fn
		}
		a.Subroutine.Functions = funcs
		resolvedAuths[i] = a
	}

	// Step 10: verify every predicted address exists with the expected code
	// identity, and each external domain's authorization-side proxy reached
	// Created. The processor-side proxy's state is not re-checked here.
	if err := in.verify(authAddr, chainsim.ArtifactAuthorization, mainProcAddr, accountAddrs, libraryAddrs, extAddrs, externalProxies, procProxyAddrsByConn, authProxyAddrsByConn); err != nil {
		return nil, err
	}

	// Step 11: submit add_authorizations.
	if err := manager.CreateAuthorizations(instantiatorAddr, resolvedAuths); err != nil {
		return nil, fmt.Errorf("instantiator: step 11 (add_authorizations): %w", err)
	}

	// Step 12: transfer ownership to the declared owner.
	if err := manager.TransferOwnership(instantiatorAddr, cfg.Owner); err != nil {
		return nil, fmt.Errorf("instantiator: step 12 (transfer_ownership): %w", err)
	}
	if err := in.MainChain.TransferOwner(authAddr, cfg.Owner); err != nil {
		return nil, fmt.Errorf("instantiator: step 12 (transfer_owner on chain): %w", err)
	}

	// Step 13: persist.
	data := registry.AuthorizationData{
		AuthorizationAddr:        authAddr,
		ProcessorAddrs:           map[string]string{"": mainProcAddr},
		AuthorizationBridgeAddrs: authProxyAddrsByConn,
		ProcessorBridgeAddrs:     procProxyAddrsByConn,
	}
	for connId, addrs := range extAddrs {
		data.ProcessorAddrs[connId] = addrs.processorAddr
	}
	if err := in.Registry.Persist(id, cfg, data); err != nil {
		return nil, fmt.Errorf("instantiator: step 13 (persist): %w", err)
	}

	in.Cctx.Log().Info().Uint64("program_id", uint64(id)).Str("authorization_addr", authAddr).Log("instantiator: instantiation complete")

	return &Result{
		ProgramId:       id,
		Manager:         manager,
		MainEngine:      mainEngine,
		ExternalEngines: externalEngines,
		ExternalProxies: externalProxies,
		ExternalRouters: externalRouters,
		Data:            data,
	}, nil
}

func (in *Instantiator) verify(
	authAddr string, authKind chainsim.ArtifactKind,
	mainProcAddr string,
	accountAddrs map[domain.AccountId]string,
	libraryAddrs map[domain.LibraryId]string,
	extAddrs map[string]externalAddrs,
	externalProxies map[string]*bridge.Proxy,
	procProxyAddrsByConn map[string]string,
	authProxyAddrsByConn map[string]string,
) error {
	if err := checkIdentity(in.MainChain, authAddr, authKind); err != nil {
		return fmt.Errorf("instantiator: step 10 (authorization): %w", err)
	}
	if err := checkIdentity(in.MainChain, mainProcAddr, chainsim.ArtifactProcessor); err != nil {
		return fmt.Errorf("instantiator: step 10 (main processor): %w", err)
	}
	for accId, addr := range accountAddrs {
		if err := checkIdentity(in.MainChain, addr, chainsim.ArtifactAccount); err != nil {
			return fmt.Errorf("instantiator: step 10 (account %d): %w", accId, err)
		}
	}
	for libId, addr := range libraryAddrs {
		if err := checkIdentity(in.MainChain, addr, chainsim.ArtifactLibrary); err != nil {
			return fmt.Errorf("instantiator: step 10 (library %d): %w", libId, err)
		}
	}
	for connId, addrs := range extAddrs {
		extChain, ok := in.External[connId]
		if !ok {
			return fmt.Errorf("instantiator: step 10: no chain wired for external connection %q", connId)
		}
		if err := checkIdentity(extChain.Chain, addrs.processorAddr, chainsim.ArtifactProcessor); err != nil {
			return fmt.Errorf("instantiator: step 10 (remote processor %s): %w", connId, err)
		}
		if err := checkIdentity(extChain.Chain, authProxyAddrsByConn[connId], chainsim.ArtifactProxy); err != nil {
			return fmt.Errorf("instantiator: step 10 (auth proxy %s): %w", connId, err)
		}
		if err := checkIdentity(in.MainChain, procProxyAddrsByConn[connId], chainsim.ArtifactProxy); err != nil {
			return fmt.Errorf("instantiator: step 10 (processor proxy %s): %w", connId, err)
		}
		proxy, ok := externalProxies[connId]
		if !ok || proxy.State() != domain.ProxyCreated {
			return fmt.Errorf("instantiator: step 10: authorization proxy for %s is not Created", connId)
		}
	}
	return nil
}

func checkIdentity(chain *chainsim.Chain, addr string, want chainsim.ArtifactKind) error {
	kind, _, ok := chain.CodeIdentity(addr)
	if !ok {
		return fmt.Errorf("address %s does not exist on chain", addr)
	}
	if kind != want {
		return fmt.Errorf("address %s has code identity %s, expected %s", addr, kind, want)
	}
	return nil
}
