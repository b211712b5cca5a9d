package service

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// KnowledgeBase is an immutable index of interaction rules keyed by canonical rule key.
// Every build gets a fresh generation ID, so two knowledge bases built from identical
// rows are still different identities for caching.
type KnowledgeBase struct {
	generation string
	rules      map[domain.RuleKey]domain.Rule
	builtAt    time.Time
}

// BuildKnowledgeBase converts validated rule records into a KnowledgeBase.
// A later record whose key collides with an earlier one replaces it.
// Records are assumed clean: unknown kinds and severities are carried through as given.
func BuildKnowledgeBase(records []domain.RuleRecord) *KnowledgeBase {
	rules := make(map[domain.RuleKey]domain.Rule, len(records))
	for _, rec := range records {
		rule := domain.Rule{
			Kind:           domain.RuleKind(strings.ToLower(strings.TrimSpace(rec.Type))),
			ItemA:          rec.ItemA,
			ItemB:          rec.ItemB,
			Severity:       domain.Severity(domain.TitleCase(strings.TrimSpace(rec.Severity))),
			Recommendation: rec.Recommendation,
			Notes:          rec.Notes,
		}
		rules[rule.Key()] = rule
	}

	return &KnowledgeBase{
		generation: uuid.NewString(),
		rules:      rules,
		builtAt:    time.Now().UTC(),
	}
}

// Generation returns the identity marker of this knowledge base instance.
func (kb *KnowledgeBase) Generation() string {
	return kb.generation
}

// BuiltAt returns when the knowledge base was built.
func (kb *KnowledgeBase) BuiltAt() time.Time {
	return kb.builtAt
}

// Len returns the number of distinct rules.
func (kb *KnowledgeBase) Len() int {
	return len(kb.rules)
}

// Lookup returns the rule stored under key.
func (kb *KnowledgeBase) Lookup(key domain.RuleKey) (domain.Rule, bool) {
	r, ok := kb.rules[key]
	return r, ok
}

// Rules returns a copy of all rules ordered by key.
func (kb *KnowledgeBase) Rules() []domain.Rule {
	keys := make([]domain.RuleKey, 0, len(kb.rules))
	for k := range kb.rules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	out := make([]domain.Rule, 0, len(keys))
	for _, k := range keys {
		out = append(out, kb.rules[k])
	}
	return out
}
