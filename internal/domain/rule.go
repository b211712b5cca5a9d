package domain

import (
	"strings"
	"time"
)

// RuleKey is the canonical, case-normalized identity of a rule.
// Drug-drug keys are unordered; drug-condition keys keep the condition first.
type RuleKey struct {
	Kind RuleKind
	A    string
	B    string
}

// DrugPairKey builds the unordered key for two drug names.
func DrugPairKey(a, b string) RuleKey {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if lb < la {
		la, lb = lb, la
	}
	return RuleKey{Kind: DrugDrug, A: la, B: lb}
}

// ConditionDrugKey builds the ordered key for a condition token and a drug name.
func ConditionDrugKey(condition, drug string) RuleKey {
	return RuleKey{
		Kind: DrugCondition,
		A:    strings.ToLower(strings.TrimSpace(condition)),
		B:    strings.ToLower(strings.TrimSpace(drug)),
	}
}

// String renders the key as kind:a|b for logs and cache keys.
func (k RuleKey) String() string {
	return string(k.Kind) + ":" + k.A + "|" + k.B
}

// RuleRecord is a raw rule row as delivered by a loader, before validation.
type RuleRecord struct {
	Type           string `json:"type"`
	ItemA          string `json:"item_a"`
	ItemB          string `json:"item_b"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
	Notes          string `json:"notes,omitempty"`
}

// Rule is one authored interaction fact. ItemA and ItemB keep their original casing.
type Rule struct {
	Kind           RuleKind `json:"type"`
	ItemA          string   `json:"item_a"`
	ItemB          string   `json:"item_b"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
	Notes          string   `json:"notes,omitempty"`
}

// Key returns the canonical lookup key of the rule.
func (r Rule) Key() RuleKey {
	if r.Kind == DrugDrug {
		return DrugPairKey(r.ItemA, r.ItemB)
	}
	return RuleKey{
		Kind: r.Kind,
		A:    strings.ToLower(r.ItemA),
		B:    strings.ToLower(r.ItemB),
	}
}

// Conflict is a rule confirmed against a prescription.
type Conflict struct {
	Kind           RuleKind `json:"type"`
	ItemA          string   `json:"item_a"`
	ItemB          string   `json:"item_b"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
	Score          int      `json:"score"`
}

// ConflictFromRule copies the stored rule fields into a Conflict.
func ConflictFromRule(r Rule) Conflict {
	return Conflict{
		Kind:           r.Kind,
		ItemA:          r.ItemA,
		ItemB:          r.ItemB,
		Severity:       r.Severity,
		Recommendation: r.Recommendation,
		Score:          r.Severity.Score(),
	}
}

// Patient is the subset of a patient record the conflict checker needs.
type Patient struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Conditions []string `json:"conditions"`
	Allergies  []string `json:"allergies"`
}

// DrugEntry is one row of the drug catalogue: a drug indicated for a condition.
type DrugEntry struct {
	Drug         string   `json:"drug"`
	Condition    string   `json:"condition"`
	Category     string   `json:"category,omitempty"`
	Replacements []string `json:"replacements,omitempty"`
}

// ReviewEntry is one conflict found while reviewing a patient's prescription.
type ReviewEntry struct {
	ID             int64     `json:"id,omitempty"`
	BatchID        string    `json:"batch_id"`
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	Prescription   []string  `json:"prescription"`
	Kind           RuleKind  `json:"type"`
	ItemA          string    `json:"item_a"`
	ItemB          string    `json:"item_b"`
	Severity       Severity  `json:"severity"`
	Score          int       `json:"score"`
	Recommendation string    `json:"recommendation"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReviewSummary aggregates one review run.
type ReviewSummary struct {
	BatchID            string           `json:"batch_id"`
	TotalPrescriptions int              `json:"total_prescriptions"`
	TotalConflicts     int              `json:"total_conflicts"`
	BySeverity         map[Severity]int `json:"by_severity"`
}
