// Package domain contains the core entities for rule-based drug interaction checking:
// interaction rules, their canonical lookup keys, and the conflicts reported for a prescription.
package domain

import (
	"errors"
	"strings"
	"unicode"
)

// RuleKind identifies whether a rule relates two drugs or a condition and a drug.
type RuleKind string

const (
	DrugDrug      RuleKind = "drug-drug"
	DrugCondition RuleKind = "drug-condition"
)

// Severity is the clinical weight of an interaction rule.
// Ordered Minor < Moderate < Major.
type Severity string

const (
	Minor    Severity = "Minor"
	Moderate Severity = "Moderate"
	Major    Severity = "Major"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRuleKind  = errors.New("invalid rule type")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrEmptyRuleSubject = errors.New("rule item cannot be empty")
	ErrSelfInteraction  = errors.New("drug cannot interact with itself")
	ErrNoValidRules     = errors.New("no valid rules")
)

// ParseRuleKind trims and lowercases s and matches it against the known rule kinds.
func ParseRuleKind(s string) (RuleKind, error) {
	k := RuleKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return k, ErrInvalidRuleKind
	}
	return k, nil
}

// IsValid reports whether k is one of the known rule kinds.
func (k RuleKind) IsValid() bool {
	switch k {
	case DrugDrug, DrugCondition:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the rule kind.
func (k RuleKind) String() string {
	return string(k)
}

// ParseSeverity trims and title-cases s before validating it,
// so "MAJOR", " major " and "Major" all parse to Major.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(TitleCase(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return sev, ErrInvalidSeverity
	}
	return sev, nil
}

// IsValid reports whether s is one of Minor, Moderate or Major.
func (s Severity) IsValid() bool {
	switch s {
	case Minor, Moderate, Major:
		return true
	default:
		return false
	}
}

// Score returns the integer weight used for ordering and risk aggregation.
// Unknown severities score 0.
func (s Severity) Score() int {
	switch s {
	case Major:
		return 3
	case Moderate:
		return 2
	case Minor:
		return 1
	default:
		return 0
	}
}

// String returns the display form of the severity.
func (s Severity) String() string {
	return string(s)
}

// Severities lists the known severities from most to least severe.
func Severities() []Severity {
	return []Severity{Major, Moderate, Minor}
}

// TitleCase upper-cases the first letter of every word in s and lower-cases the rest.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	startOfWord := true
	for _, r := range s {
		if unicode.IsLetter(r) {
			if startOfWord {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			startOfWord = false
			continue
		}
		b.WriteRune(r)
		startOfWord = true
	}
	return b.String()
}
