package service

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// RuleEngine publishes the current knowledge base and answers conflict checks against it.
// Reload swaps the knowledge base atomically; in-flight checks keep the instance they started with.
type RuleEngine struct {
	kb     atomic.Pointer[KnowledgeBase]
	cache  *ConflictCache
	logger *logrus.Logger
}

var _ domain.ConflictChecker = (*RuleEngine)(nil)

// NewRuleEngine builds the first knowledge base from records.
// cache may be nil, in which case every check runs the enumerator directly.
func NewRuleEngine(records []domain.RuleRecord, cache *ConflictCache, logger *logrus.Logger) *RuleEngine {
	e := &RuleEngine{cache: cache, logger: logger}
	e.publish(BuildKnowledgeBase(records))
	return e
}

// KnowledgeBase returns the currently published knowledge base.
func (e *RuleEngine) KnowledgeBase() *KnowledgeBase {
	return e.kb.Load()
}

// Cache returns the engine's conflict cache, or nil.
func (e *RuleEngine) Cache() *ConflictCache {
	return e.cache
}

// Reload builds a knowledge base from records, publishes it and returns its generation.
// Local cache entries of the replaced generation are dropped.
func (e *RuleEngine) Reload(records []domain.RuleRecord) string {
	kb := BuildKnowledgeBase(records)
	old := e.publish(kb)

	if old != nil && e.cache != nil {
		dropped := e.cache.DropGeneration(old.Generation())
		e.logger.WithFields(logrus.Fields{
			"generation": old.Generation(),
			"dropped":    dropped,
		}).Debug("Dropped stale cache entries")
	}
	return kb.Generation()
}

// CheckConflicts tokenizes conditions and allergies and returns the conflicts
// triggered by the prescription against the current knowledge base.
func (e *RuleEngine) CheckConflicts(ctx context.Context, prescription, conditions, allergies []string) ([]domain.Conflict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.Check(ctx, prescription, MakeConditionTokens(conditions, allergies)), nil
}

// Check runs the enumerator for already tokenized conditions.
func (e *RuleEngine) Check(ctx context.Context, prescription, conditionTokens []string) []domain.Conflict {
	conflicts, _ := e.Evaluate(ctx, prescription, conditionTokens)
	return conflicts
}

// Evaluate is Check that also reports the generation of the knowledge base it ran against.
func (e *RuleEngine) Evaluate(ctx context.Context, prescription, conditionTokens []string) ([]domain.Conflict, string) {
	kb := e.kb.Load()
	if e.cache == nil {
		return FindConflicts(prescription, conditionTokens, kb), kb.Generation()
	}
	return e.cache.FindConflictsCached(ctx, prescription, conditionTokens, kb), kb.Generation()
}

func (e *RuleEngine) publish(kb *KnowledgeBase) *KnowledgeBase {
	old := e.kb.Swap(kb)
	e.logger.WithFields(logrus.Fields{
		"generation": kb.Generation(),
		"rules":      kb.Len(),
	}).Info("Published knowledge base")
	return old
}
