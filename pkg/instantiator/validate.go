package instantiator

import (
	"fmt"

	"github.com/valence-labs/corechain/pkg/domain"
	"github.com/valence-labs/corechain/pkg/registry"
)

// Validate runs the instantiator's pre-flight checks (spec.md §4.5 steps
// 2-5) against cfg as a pure function, with no chain or registry side
// effects. Step 1 ("id == 0, not previously instantiated") is enforced by
// Instantiate itself via registry.Registry.Reserve always minting a fresh
// id, so it is not re-checked here.
func Validate(cfg registry.ProgramConfig) error {
	accountRefs := map[domain.AccountId]int{}
	libraryRefs := map[domain.LibraryId]int{}

	for i, link := range cfg.Links {
		if _, ok := cfg.Libraries[link.LibraryId]; !ok {
			return domain.NewConfigurationError(domain.CodeInvalidStructure,
				fmt.Sprintf("link %d references undeclared library_id %d", i, link.LibraryId))
		}
		libraryRefs[link.LibraryId]++

		for _, accId := range link.Inputs {
			if _, ok := cfg.Accounts[accId]; !ok {
				return domain.NewConfigurationError(domain.CodeInvalidStructure,
					fmt.Sprintf("link %d references undeclared account_id %d", i, accId))
			}
			accountRefs[accId]++
		}
		for _, accId := range link.Outputs {
			if _, ok := cfg.Accounts[accId]; !ok {
				return domain.NewConfigurationError(domain.CodeInvalidStructure,
					fmt.Sprintf("link %d references undeclared account_id %d", i, accId))
			}
			accountRefs[accId]++
		}
	}

	for accId := range cfg.Accounts {
		if accountRefs[accId] == 0 {
			return domain.NewConfigurationError(domain.CodeInvalidStructure,
				fmt.Sprintf("account_id %d is declared but referenced by no link", accId))
		}
	}
	for libId := range cfg.Libraries {
		if libraryRefs[libId] == 0 {
			return domain.NewConfigurationError(domain.CodeInvalidStructure,
				fmt.Sprintf("library_id %d is declared but referenced by no link", libId))
		}
	}

	placeholdered := map[domain.AccountId]bool{}
	for _, lib := range cfg.Libraries {
		for _, accId := range lib.AccountPlaceholders {
			placeholdered[accId] = true
		}
	}
	for accId := range cfg.Accounts {
		if !placeholdered[accId] {
			return domain.NewConfigurationError(domain.CodeInvalidStructure,
				fmt.Sprintf("account_id %d appears in no library's config placeholder list", accId))
		}
	}

	if len(cfg.Authorizations) == 0 {
		return domain.NewConfigurationError(domain.CodeInvalidStructure, "authorizations must be non-empty")
	}

	return nil
}
