package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// ReviewRecorder persists review entries. Implemented by reviewlog stores.
type ReviewRecorder interface {
	Save(ctx context.Context, entries []domain.ReviewEntry) error
}

// ReviewService validates prescriptions against the rule engine and records what it finds.
type ReviewService struct {
	checker  domain.ConflictChecker
	recorder ReviewRecorder
	logger   *logrus.Logger
}

// NewReviewService creates a new review service. recorder may be nil.
func NewReviewService(checker domain.ConflictChecker, recorder ReviewRecorder, logger *logrus.Logger) *ReviewService {
	return &ReviewService{
		checker:  checker,
		recorder: recorder,
		logger:   logger,
	}
}

// Validate checks one patient's prescription.
func (s *ReviewService) Validate(ctx context.Context, patient domain.Patient, prescription []string) ([]domain.Conflict, error) {
	conflicts, err := s.checker.CheckConflicts(ctx, prescription, patient.Conditions, patient.Allergies)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts for patient %s: %w", patient.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id": patient.ID,
		"drugs":      len(prescription),
		"conflicts":  len(conflicts),
	}).Debug("Validated prescription")

	return conflicts, nil
}

// ReviewAll prescribes for every patient, validates each prescription and returns one
// entry per conflict along with a summary. Entries are saved when a recorder is configured.
func (s *ReviewService) ReviewAll(ctx context.Context, patients []domain.Patient, prescriber domain.Prescriber) ([]domain.ReviewEntry, *domain.ReviewSummary, error) {
	batchID := uuid.NewString()
	summary := &domain.ReviewSummary{
		BatchID:    batchID,
		BySeverity: make(map[domain.Severity]int),
	}
	entries := make([]domain.ReviewEntry, 0)
	now := time.Now().UTC()

	for _, patient := range patients {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		prescription := prescriber.Prescribe(patient)
		summary.TotalPrescriptions++

		conflicts, err := s.Validate(ctx, patient, prescription)
		if err != nil {
			return nil, nil, err
		}

		for _, c := range conflicts {
			entries = append(entries, domain.ReviewEntry{
				BatchID:        batchID,
				PatientID:      patient.ID,
				PatientName:    patient.Name,
				Prescription:   prescription,
				Kind:           c.Kind,
				ItemA:          c.ItemA,
				ItemB:          c.ItemB,
				Severity:       c.Severity,
				Score:          c.Score,
				Recommendation: c.Recommendation,
				CreatedAt:      now,
			})
			summary.BySeverity[c.Severity]++
		}
	}
	summary.TotalConflicts = len(entries)

	if s.recorder != nil && len(entries) > 0 {
		if err := s.recorder.Save(ctx, entries); err != nil {
			return nil, nil, fmt.Errorf("failed to save review entries: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id":      batchID,
		"prescriptions": summary.TotalPrescriptions,
		"conflicts":     summary.TotalConflicts,
	}).Info("Review finished")

	return entries, summary, nil
}

// CatalogPrescriber prescribes the first catalogue drug indicated for each patient condition.
type CatalogPrescriber struct {
	byCondition map[string][]string
}

var _ domain.Prescriber = (*CatalogPrescriber)(nil)

// NewCatalogPrescriber indexes the drug catalogue by condition.
func NewCatalogPrescriber(catalogue []domain.DrugEntry) *CatalogPrescriber {
	idx := make(map[string][]string)
	for _, d := range catalogue {
		cond := strings.ToLower(strings.TrimSpace(d.Condition))
		drug := strings.TrimSpace(d.Drug)
		if cond == "" || drug == "" {
			continue
		}
		idx[cond] = append(idx[cond], drug)
	}
	return &CatalogPrescriber{byCondition: idx}
}

// Prescribe returns one drug per treatable condition, without repeats, in condition order.
func (p *CatalogPrescriber) Prescribe(patient domain.Patient) []string {
	rx := make([]string, 0, len(patient.Conditions))
	seen := make(map[string]bool)
	for _, cond := range patient.Conditions {
		options := p.byCondition[strings.ToLower(strings.TrimSpace(cond))]
		if len(options) == 0 {
			continue
		}
		drug := options[0]
		if seen[strings.ToLower(drug)] {
			continue
		}
		seen[strings.ToLower(drug)] = true
		rx = append(rx, drug)
	}
	return rx
}
