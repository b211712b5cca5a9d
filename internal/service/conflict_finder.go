package service

import (
	"sort"
	"strings"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// FindConflicts returns every rule in kb triggered by the prescription and condition tokens,
// ordered by severity score descending, then ItemA, ItemB and kind ascending.
// Each rule key contributes at most one conflict. An empty prescription yields an empty list.
func FindConflicts(prescription, conditionTokens []string, kb *KnowledgeBase) []domain.Conflict {
	drugs := normalized(prescription)
	if len(drugs) == 0 || kb == nil {
		return []domain.Conflict{}
	}
	conds := normalized(conditionTokens)

	seen := make(map[domain.RuleKey]struct{})
	matched := make([]domain.Rule, 0)
	add := func(key domain.RuleKey) {
		if _, dup := seen[key]; dup {
			return
		}
		if rule, ok := kb.Lookup(key); ok {
			seen[key] = struct{}{}
			matched = append(matched, rule)
		}
	}

	for i := 0; i < len(drugs); i++ {
		for j := i + 1; j < len(drugs); j++ {
			add(domain.DrugPairKey(drugs[i], drugs[j]))
		}
	}
	for _, cond := range conds {
		for _, drug := range drugs {
			add(domain.ConditionDrugKey(cond, drug))
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if sa, sb := a.Severity.Score(), b.Severity.Score(); sa != sb {
			return sa > sb
		}
		if a.ItemA != b.ItemA {
			return a.ItemA < b.ItemA
		}
		if a.ItemB != b.ItemB {
			return a.ItemB < b.ItemB
		}
		return a.Kind < b.Kind
	})

	conflicts := make([]domain.Conflict, len(matched))
	for i, r := range matched {
		conflicts[i] = domain.ConflictFromRule(r)
	}
	return conflicts
}

func normalized(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
