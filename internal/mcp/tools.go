package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/domain"
	"github.com/drug-conflict-mcp-server/internal/service"
)

// Tool names
const (
	ToolCheckConflicts  = "check_conflicts"
	ToolConditionTokens = "condition_tokens"
	ToolCacheStats      = "cache_stats"
)

// CheckConflictsParams defines parameters for check_conflicts tool
type CheckConflictsParams struct {
	Prescription []string `json:"prescription" jsonschema:"drug names prescribed together"`
	Conditions   any      `json:"conditions,omitempty" jsonschema:"patient condition names"`
	Allergies    any      `json:"allergies,omitempty" jsonschema:"patient allergy names, a list or a single name"`
}

// CheckConflictsResult defines the result structure for check_conflicts tool
type CheckConflictsResult struct {
	Conflicts  []domain.Conflict `json:"conflicts"`
	Count      int               `json:"count"`
	Generation string            `json:"generation"`
	Summary    string            `json:"summary"`
}

// ConditionTokensParams defines parameters for condition_tokens tool
type ConditionTokensParams struct {
	Conditions any `json:"conditions,omitempty" jsonschema:"patient condition names"`
	Allergies  any `json:"allergies,omitempty" jsonschema:"patient allergy names, a list or a single name"`
}

// ConditionTokensResult defines the result structure for condition_tokens tool
type ConditionTokensResult struct {
	Tokens []string `json:"tokens"`
}

// CacheStatsParams defines parameters for cache_stats tool
type CacheStatsParams struct{}

// CacheStatsResult defines the result structure for cache_stats tool
type CacheStatsResult struct {
	Enabled      bool   `json:"enabled"`
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	RemoteHits   int64  `json:"remote_hits"`
	RemoteErrors int64  `json:"remote_errors"`
	Entries      int    `json:"entries"`
	MaxItems     int    `json:"max_items"`
	RemoteState  string `json:"remote_state,omitempty"`
	Since        string `json:"since,omitempty"`
}

func (s *Server) handleCheckConflicts(ctx context.Context, req *mcp.CallToolRequest, params CheckConflictsParams) (*mcp.CallToolResult, CheckConflictsResult, error) {
	tokens, err := service.ConditionTokensFrom(params.Conditions, params.Allergies)
	if err != nil {
		return nil, CheckConflictsResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, CheckConflictsResult{}, err
	}

	conflicts, generation := s.engine.Evaluate(ctx, params.Prescription, tokens)
	s.logger.WithFields(logrus.Fields{
		"tool":      ToolCheckConflicts,
		"drugs":     len(params.Prescription),
		"conflicts": len(conflicts),
	}).Info("Tool invoked")

	return nil, CheckConflictsResult{
		Conflicts:  conflicts,
		Count:      len(conflicts),
		Generation: generation,
		Summary:    summarize(conflicts),
	}, nil
}

func (s *Server) handleConditionTokens(ctx context.Context, req *mcp.CallToolRequest, params ConditionTokensParams) (*mcp.CallToolResult, ConditionTokensResult, error) {
	tokens, err := service.ConditionTokensFrom(params.Conditions, params.Allergies)
	if err != nil {
		return nil, ConditionTokensResult{}, err
	}
	s.logger.WithField("tool", ToolConditionTokens).Debug("Tool invoked")
	return nil, ConditionTokensResult{Tokens: tokens}, nil
}

func (s *Server) handleCacheStats(ctx context.Context, req *mcp.CallToolRequest, params CacheStatsParams) (*mcp.CallToolResult, CacheStatsResult, error) {
	cache := s.engine.Cache()
	if cache == nil {
		return nil, CacheStatsResult{Enabled: false}, nil
	}
	stats := cache.Stats()
	return nil, CacheStatsResult{
		Enabled:      true,
		Hits:         stats.Hits,
		Misses:       stats.Misses,
		RemoteHits:   stats.RemoteHits,
		RemoteErrors: stats.RemoteErrors,
		Entries:      stats.Entries,
		MaxItems:     stats.MaxItems,
		RemoteState:  stats.RemoteState,
		Since:        stats.LastReset.UTC().Format(time.RFC3339),
	}, nil
}

// summarize renders one line per conflict for agents that read text rather than JSON.
func summarize(conflicts []domain.Conflict) string {
	if len(conflicts) == 0 {
		return "No known conflicts."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d conflict(s) found:", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(&b, "\n- [%s] %s + %s (%s): %s", c.Severity, c.ItemA, c.ItemB, c.Kind, c.Recommendation)
	}
	return b.String()
}
