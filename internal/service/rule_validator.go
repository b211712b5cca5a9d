package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// RowError reports why the rule record at Index was rejected.
type RowError struct {
	Index int                     `json:"index"`
	Err   *domain.ValidationError `json:"error"`
}

// Error implements the error interface
func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, e.Err.Error())
}

// RuleValidator cleans raw rule records before they reach BuildKnowledgeBase.
type RuleValidator struct {
	logger *logrus.Logger
}

// NewRuleValidator creates a new rule validator
func NewRuleValidator(logger *logrus.Logger) *RuleValidator {
	return &RuleValidator{logger: logger}
}

// Validate normalizes every record and splits them into accepted and rejected rows.
// Accepted records have a lowercase type, a title-cased severity and trimmed text fields.
// Duplicate rule keys are accepted and logged; the knowledge base keeps the last one.
func (v *RuleValidator) Validate(records []domain.RuleRecord) ([]domain.RuleRecord, []RowError) {
	valid := make([]domain.RuleRecord, 0, len(records))
	var rejected []RowError
	firstSeen := make(map[domain.RuleKey]int)

	for i, rec := range records {
		clean, verr := normalizeRecord(rec)
		if verr != nil {
			rejected = append(rejected, RowError{Index: i, Err: verr})
			v.logger.WithFields(logrus.Fields{
				"row":   i,
				"field": verr.Field,
				"value": verr.Value,
			}).Warn("Rejected rule row")
			continue
		}

		key := domain.Rule{Kind: domain.RuleKind(clean.Type), ItemA: clean.ItemA, ItemB: clean.ItemB}.Key()
		if prev, dup := firstSeen[key]; dup {
			v.logger.WithFields(logrus.Fields{
				"row":      i,
				"previous": prev,
				"key":      key.String(),
			}).Warn("Duplicate rule key, later row overrides earlier one")
		} else {
			firstSeen[key] = i
		}

		valid = append(valid, clean)
	}

	return valid, rejected
}

func normalizeRecord(rec domain.RuleRecord) (domain.RuleRecord, *domain.ValidationError) {
	kind, err := domain.ParseRuleKind(rec.Type)
	if err != nil {
		return rec, domain.NewValidationError("type", "must be drug-drug or drug-condition", rec.Type)
	}
	severity, err := domain.ParseSeverity(rec.Severity)
	if err != nil {
		return rec, domain.NewValidationError("severity", "must be one of Minor, Moderate, Major", rec.Severity)
	}

	clean := domain.RuleRecord{
		Type:           kind.String(),
		ItemA:          strings.TrimSpace(rec.ItemA),
		ItemB:          strings.TrimSpace(rec.ItemB),
		Severity:       severity.String(),
		Recommendation: strings.TrimSpace(rec.Recommendation),
		Notes:          strings.TrimSpace(rec.Notes),
	}
	if clean.ItemA == "" {
		return rec, domain.NewValidationError("item_a", domain.ErrEmptyRuleSubject.Error(), rec.ItemA)
	}
	if clean.ItemB == "" {
		return rec, domain.NewValidationError("item_b", domain.ErrEmptyRuleSubject.Error(), rec.ItemB)
	}
	// Prescriptions are cached as sets; a drug never pairs with itself.
	if kind == domain.DrugDrug && strings.EqualFold(clean.ItemA, clean.ItemB) {
		return rec, domain.NewValidationError("item_b", domain.ErrSelfInteraction.Error(), rec.ItemB)
	}
	return clean, nil
}
