package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/domain"
	"github.com/drug-conflict-mcp-server/internal/ingest"
	"github.com/drug-conflict-mcp-server/internal/middleware"
	"github.com/drug-conflict-mcp-server/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// CheckRequest is the body of POST /api/v1/conflicts/check.
// Conditions must be a list of strings; Allergies may also be a single string.
type CheckRequest struct {
	Prescription []string `json:"prescription"`
	Conditions   any      `json:"conditions"`
	Allergies    any      `json:"allergies"`
}

// CheckResponse lists the conflicts found and the knowledge base generation used.
type CheckResponse struct {
	Conflicts  []domain.Conflict `json:"conflicts"`
	Count      int               `json:"count"`
	Generation string            `json:"generation"`
}

// TokensResponse is the body returned by POST /api/v1/conditions/tokens.
type TokensResponse struct {
	Tokens []string `json:"tokens"`
}

// ReplaceRulesRequest is the JSON body of PUT /api/v1/rules.
type ReplaceRulesRequest struct {
	Rules []domain.RuleRecord `json:"rules"`
}

// ReplaceRulesResponse reports the published generation and the rejected rows.
type ReplaceRulesResponse struct {
	Generation string             `json:"generation"`
	Accepted   int                `json:"accepted"`
	Rejected   []service.RowError `json:"rejected"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	kb := s.engine.KnowledgeBase()
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now(),
		"version":    Version,
		"generation": kb.Generation(),
		"rules":      kb.Len(),
	})
}

// handleCheckConflicts runs a prescription against the current knowledge base.
func (s *Server) handleCheckConflicts(c *gin.Context) {
	var req CheckRequest
	if !s.bindJSON(c, &req) {
		return
	}

	tokens, err := service.ConditionTokensFrom(req.Conditions, req.Allergies)
	if err != nil {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid conditions or allergies", err.Error())
		return
	}

	ctx := c.Request.Context()
	if ctx.Err() != nil {
		respondError(c, http.StatusGatewayTimeout, domain.ErrCodeInternalServer, "Request timed out", "")
		return
	}

	conflicts, generation := s.engine.Evaluate(ctx, req.Prescription, tokens)

	s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"drugs":          len(req.Prescription),
		"conditions":     len(tokens),
		"conflicts":      len(conflicts),
	}).Debug("Checked prescription")

	c.JSON(http.StatusOK, CheckResponse{
		Conflicts:  conflicts,
		Count:      len(conflicts),
		Generation: generation,
	})
}

// handleConditionTokens exposes the condition tokenizer.
func (s *Server) handleConditionTokens(c *gin.Context) {
	var req CheckRequest
	if !s.bindJSON(c, &req) {
		return
	}

	tokens, err := service.ConditionTokensFrom(req.Conditions, req.Allergies)
	if err != nil {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid conditions or allergies", err.Error())
		return
	}

	c.JSON(http.StatusOK, TokensResponse{Tokens: tokens})
}

// handleCacheStats reports conflict cache counters.
func (s *Server) handleCacheStats(c *gin.Context) {
	cache := s.engine.Cache()
	if cache == nil {
		respondError(c, http.StatusServiceUnavailable, domain.ErrCodeNotConfigured, "Conflict cache is disabled", "")
		return
	}
	c.JSON(http.StatusOK, cache.Stats())
}

// handleReplaceRules validates a new rule set and publishes it.
// The body is either {"rules": [...]} or a rules CSV with Content-Type text/csv.
func (s *Server) handleReplaceRules(c *gin.Context) {
	var records []domain.RuleRecord

	if strings.HasPrefix(c.ContentType(), "text/csv") {
		parsed, err := ingest.ReadRuleRecords(c.Request.Body)
		if err != nil {
			respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid rules CSV", err.Error())
			return
		}
		records = parsed
	} else {
		var req ReplaceRulesRequest
		if !s.bindJSON(c, &req) {
			return
		}
		records = req.Rules
	}

	if len(records) == 0 {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Rule set must not be empty", "")
		return
	}

	valid, rejected := s.validator.Validate(records)
	if len(valid) == 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":    domain.NewAPIError(domain.ErrCodeValidation, "No valid rules in rule set", "", c.GetString(middleware.CorrelationIDKey)),
			"rejected": rejected,
		})
		return
	}

	generation := s.engine.Reload(valid)
	s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"generation":     generation,
		"accepted":       len(valid),
		"rejected":       len(rejected),
	}).Info("Rule set replaced")

	if rejected == nil {
		rejected = []service.RowError{}
	}
	c.JSON(http.StatusOK, ReplaceRulesResponse{
		Generation: generation,
		Accepted:   len(valid),
		Rejected:   rejected,
	})
}

// handleListReviews pages through the review log, optionally for one patient.
func (s *Server) handleListReviews(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "limit must be a positive integer", "")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "offset must be a non-negative integer", "")
		return
	}

	ctx := c.Request.Context()
	var entries []domain.ReviewEntry
	if patientID := strings.TrimSpace(c.Query("patient_id")); patientID != "" {
		entries, err = s.store.ListByPatient(ctx, patientID, limit)
		if errors.Is(err, domain.ErrNotFound) {
			respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "No reviews for patient", patientID)
			return
		}
	} else {
		entries, err = s.store.List(ctx, limit, offset)
	}
	if err != nil {
		s.storageFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
		"limit":   limit,
		"offset":  offset,
	})
}

// handleReviewSummary returns the review log totals by severity.
func (s *Server) handleReviewSummary(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	ctx := c.Request.Context()
	total, err := s.store.Count(ctx)
	if err != nil {
		s.storageFailed(c, err)
		return
	}
	counts, err := s.store.CountBySeverity(ctx)
	if err != nil {
		s.storageFailed(c, err)
		return
	}

	bySeverity := make(map[domain.Severity]int64, len(domain.Severities()))
	for _, sev := range domain.Severities() {
		bySeverity[sev] = counts[sev]
	}

	c.JSON(http.StatusOK, gin.H{
		"total_conflicts": total,
		"by_severity":     bySeverity,
	})
}

// handleExportReviews streams the whole review log as a JSON document.
func (s *Server) handleExportReviews(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="review_log.json"`)
	if err := s.store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		if !c.Writer.Written() {
			s.storageFailed(c, err)
			return
		}
		s.logger.WithError(err).Error("Review log export interrupted")
	}
}

func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidInput, "Request body too large", "")
			return false
		}
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return false
	}
	return true
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, domain.ErrCodeNotConfigured, "Review log storage is disabled", "")
		return false
	}
	return true
}

func (s *Server) storageFailed(c *gin.Context, err error) {
	s.logger.WithError(err).WithField("correlation_id", c.GetString(middleware.CorrelationIDKey)).Error("Review log query failed")
	respondError(c, http.StatusInternalServerError, domain.ErrCodeStorage, "Review log query failed", "")
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
