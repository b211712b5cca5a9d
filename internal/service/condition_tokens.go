package service

import (
	"strconv"
	"strings"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// allergySuffix is appended to an allergy name to form its condition token.
const allergySuffix = "Allergy"

// MakeConditionTokens flattens conditions and allergies into one token list.
// Conditions come first in input order, then one "<name>Allergy" token per allergy.
// Empty entries and the allergy value "none" are skipped. No deduplication.
func MakeConditionTokens(conditions, allergies []string) []string {
	tokens := make([]string, 0, len(conditions)+len(allergies))
	for _, c := range conditions {
		if c = strings.TrimSpace(c); c != "" {
			tokens = append(tokens, c)
		}
	}
	for _, a := range allergies {
		a = strings.TrimSpace(a)
		if a == "" || strings.EqualFold(a, "none") {
			continue
		}
		tokens = append(tokens, a+allergySuffix)
	}
	return tokens
}

// ConditionTokensFrom is the loosely typed boundary used by the JSON and MCP surfaces.
// conditions must be a list of strings; allergies may be a list or a single scalar,
// which is treated as a one-element list. Any other shape returns ErrInvalidArgument.
func ConditionTokensFrom(conditions, allergies any) ([]string, error) {
	conds, err := stringList("conditions", conditions, false)
	if err != nil {
		return nil, err
	}
	alls, err := stringList("allergies", allergies, true)
	if err != nil {
		return nil, err
	}
	return MakeConditionTokens(conds, alls), nil
}

func stringList(field string, v any, allowScalar bool) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, domain.InvalidArgumentf("%s[%d] must be a string, got %T", field, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if allowScalar {
			return []string{t}, nil
		}
	case float64:
		if allowScalar {
			return []string{strconv.FormatFloat(t, 'f', -1, 64)}, nil
		}
	case int:
		if allowScalar {
			return []string{strconv.Itoa(t)}, nil
		}
	case int64:
		if allowScalar {
			return []string{strconv.FormatInt(t, 10)}, nil
		}
	}
	return nil, domain.InvalidArgumentf("%s must be a list of strings, got %T", field, v)
}
