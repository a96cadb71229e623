package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/metrics"
	"github.com/straye-as/deal-engine/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxSequenceValue is the largest value that fits the five digit format
const MaxSequenceValue = 99999

// FormatSequence renders a sequence value as five zero-padded digits
func FormatSequence(n int) string {
	return fmt.Sprintf("%05d", n)
}

// NumberSequenceService generates order, bill and contract numbers.
// Each (company, domain, calendar year in UTC) scope has its own counter, so
// numbering restarts at 00001 every year.
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	logger *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(repo *repository.NumberSequenceRepository, logger *zap.Logger) *NumberSequenceService {
	return &NumberSequenceService{repo: repo, logger: logger}
}

// Next returns the next number of the scope. It runs in the caller's
// transaction and holds the counter row lock until that transaction ends.
func (s *NumberSequenceService) Next(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, seqDomain domain.SequenceDomain, at time.Time) (string, error) {
	if !seqDomain.IsValid() {
		return "", fmt.Errorf("%w: unknown numbering domain %q", ErrInvalidInput, seqDomain)
	}

	scope := repository.SequenceScope{
		CompanyID: companyID,
		Domain:    seqDomain,
		Year:      at.UTC().Year(),
	}
	value, err := s.repo.WithTx(tx).NextValue(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s number: %w", seqDomain, err)
	}

	if value > MaxSequenceValue {
		s.logger.Warn("Sequence exceeded five digits",
			zap.String("company_id", companyID.String()),
			zap.String("domain", string(seqDomain)),
			zap.Int("year", scope.Year),
			zap.Int("value", value),
		)
	}
	metrics.SequenceNumbersIssued.WithLabelValues(string(seqDomain)).Inc()

	number := FormatSequence(value)
	s.logger.Debug("Generated sequence number",
		zap.String("company_id", companyID.String()),
		zap.String("domain", string(seqDomain)),
		zap.String("number", number),
	)
	return number, nil
}

// Reserve raises the counter of the scope past an explicitly supplied number
// so later generated numbers do not repeat it. Numbers without trailing
// digits leave the counter alone. Runs in the caller's transaction.
func (s *NumberSequenceService) Reserve(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, seqDomain domain.SequenceDomain, number string, at time.Time) error {
	value, ok := repository.TrailingValue(number)
	if !ok {
		return nil
	}
	scope := repository.SequenceScope{
		CompanyID: companyID,
		Domain:    seqDomain,
		Year:      at.UTC().Year(),
	}
	if err := s.repo.WithTx(tx).Raise(ctx, scope, value); err != nil {
		return fmt.Errorf("failed to reserve %s number: %w", seqDomain, err)
	}
	return nil
}

// GetCurrentSequence returns the last issued value of a scope, 0 if none
func (s *NumberSequenceService) GetCurrentSequence(ctx context.Context, companyID uuid.UUID, seqDomain domain.SequenceDomain, year int) (int, error) {
	if !seqDomain.IsValid() {
		return 0, fmt.Errorf("%w: unknown numbering domain %q", ErrInvalidInput, seqDomain)
	}
	return s.repo.GetCurrentSequence(ctx, repository.SequenceScope{CompanyID: companyID, Domain: seqDomain, Year: year})
}

// InitializeSequence raises a counter so the next number is value+1. Used
// when importing numbers issued by another system.
func (s *NumberSequenceService) InitializeSequence(ctx context.Context, companyID uuid.UUID, seqDomain domain.SequenceDomain, year, value int) error {
	if !seqDomain.IsValid() {
		return fmt.Errorf("%w: unknown numbering domain %q", ErrInvalidInput, seqDomain)
	}
	if value < 0 || value > MaxSequenceValue {
		return fmt.Errorf("%w: sequence value must be between 0 and %d", ErrInvalidInput, MaxSequenceValue)
	}

	scope := repository.SequenceScope{CompanyID: companyID, Domain: seqDomain, Year: year}
	if err := s.repo.SetSequence(ctx, scope, value); err != nil {
		return fmt.Errorf("failed to initialize sequence: %w", err)
	}

	s.logger.Info("Initialized number sequence",
		zap.String("company_id", companyID.String()),
		zap.String("domain", string(seqDomain)),
		zap.Int("year", year),
		zap.Int("value", value),
	)
	return nil
}

// ListSequences returns counters, optionally for one company
func (s *NumberSequenceService) ListSequences(ctx context.Context, companyID *uuid.UUID) ([]domain.NumberSequenceDTO, error) {
	seqs, err := s.repo.ListSequences(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sequences: %w", err)
	}
	out := make([]domain.NumberSequenceDTO, len(seqs))
	for i, seq := range seqs {
		out[i] = domain.NumberSequenceDTO{
			CompanyID:    seq.CompanyID,
			Domain:       seq.Domain,
			Year:         seq.Year,
			LastSequence: seq.LastSequence,
		}
	}
	return out, nil
}
