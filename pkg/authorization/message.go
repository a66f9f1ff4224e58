package authorization

import (
	"encoding/json"
	"fmt"

	"github.com/valence-labs/corechain/pkg/domain"
	"github.com/valence-labs/corechain/pkg/jsonpath"
)

// validateMessages checks messages against functions' MessageDetails
// templates, in order, per spec.md §4.1 step 4: count, single-top-key shape,
// top key matching the declared function name, and every param restriction.
func validateMessages(functions []domain.Function, messages [][]byte) error {
	if len(messages) != len(functions) {
		return domain.NewValidationError(domain.CodeInvalidAmount, fmt.Sprintf("expected %d messages, got %d", len(functions), len(messages)))
	}

	for i, fn := range functions {
		var top map[string]json.RawMessage
		if err := json.Unmarshal(messages[i], &top); err != nil || len(top) != 1 {
			return domain.NewValidationError(domain.CodeInvalidStructure, fmt.Sprintf("message %d must be a single-top-key JSON object", i))
		}

		var key string
		var raw json.RawMessage
		for k, v := range top {
			key, raw = k, v
		}
		if key != fn.Message.Name {
			return domain.NewValidationError(domain.CodeDoesNotMatch, fmt.Sprintf("message %d top key %q does not match declared function name %q", i, key, fn.Message.Name))
		}

		var inner any
		if err := json.Unmarshal(raw, &inner); err != nil {
			return domain.NewValidationError(domain.CodeInvalidStructure, fmt.Sprintf("message %d body is not valid JSON", i))
		}

		for _, r := range fn.Message.ParamRestrictions {
			q, err := jsonpath.Compile(r.Path)
			if err != nil {
				return domain.NewValidationError(domain.CodeInvalidMessageParams, fmt.Sprintf("message %d: invalid restriction path %q: %v", i, r.Path, err))
			}
			switch r.Kind {
			case domain.MustBeIncluded:
				if !q.Exists(inner) {
					return domain.NewValidationError(domain.CodeInvalidMessageParams, fmt.Sprintf("message %d: required path %q is missing", i, r.Path))
				}
			case domain.CannotBeIncluded:
				if q.Exists(inner) {
					return domain.NewValidationError(domain.CodeInvalidMessageParams, fmt.Sprintf("message %d: forbidden path %q is present", i, r.Path))
				}
			case domain.MustBeValue:
				if !q.MatchesValue(inner, r.Value) {
					return domain.NewValidationError(domain.CodeInvalidMessageParams, fmt.Sprintf("message %d: path %q does not equal required value", i, r.Path))
				}
			}
		}
	}
	return nil
}
