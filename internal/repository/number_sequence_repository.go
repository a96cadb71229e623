package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceScope identifies one counter
type SequenceScope struct {
	CompanyID uuid.UUID
	Domain    domain.SequenceDomain
	Year      int
}

// sequenceColumns maps a sequence domain to the deals columns holding its
// numbers: number, owning company, and the date that places it in a year.
var sequenceColumns = map[domain.SequenceDomain][3]string{
	domain.SequenceBuyerOrder:     {"buyer_order_number", "buyer_company_id", "created_at"},
	domain.SequenceSellerOrder:    {"seller_order_number", "seller_company_id", "created_at"},
	domain.SequenceBill:           {"bill_number", "seller_company_id", "bill_date"},
	domain.SequenceContract:       {"contract_number", "seller_company_id", "contract_date"},
	domain.SequenceSupplyContract: {"supply_contract_number", "seller_company_id", "supply_contract_date"},
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// NumberSequenceRepository handles the per (company, domain, year) counters.
// Counters are only advanced under a row lock inside the caller's transaction.
type NumberSequenceRepository struct {
	db *gorm.DB
}

// NewNumberSequenceRepository creates a new NumberSequenceRepository
func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

// WithTx returns a repository bound to an open transaction
func (r *NumberSequenceRepository) WithTx(tx *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: tx}
}

func (r *NumberSequenceRepository) lock(ctx context.Context, scope SequenceScope) (*domain.NumberSequence, error) {
	var seq domain.NumberSequence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND domain = ? AND year = ?", scope.CompanyID, scope.Domain, scope.Year).
		First(&seq).Error
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// lockOrCreate locks the counter row, creating it first when missing. A new
// counter starts at the highest number already persisted for the scope.
func (r *NumberSequenceRepository) lockOrCreate(ctx context.Context, scope SequenceScope, initial func() (int, error)) (*domain.NumberSequence, error) {
	seq, err := r.lock(ctx, scope)
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get number sequence: %w", err)
	}

	start, err := initial()
	if err != nil {
		return nil, err
	}

	// a concurrent creator wins the insert; both then serialize on the lock
	row := domain.NumberSequence{
		CompanyID:    scope.CompanyID,
		Domain:       scope.Domain,
		Year:         scope.Year,
		LastSequence: start,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create number sequence: %w", err)
	}

	seq, err = r.lock(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to lock number sequence: %w", err)
	}
	return seq, nil
}

// NextValue increments the counter of the scope and returns the new value.
// Numbers stored on deals past the counter (explicit assignments) are
// skipped, so a generated number never repeats one already in use.
func (r *NumberSequenceRepository) NextValue(ctx context.Context, scope SequenceScope) (int, error) {
	seq, err := r.lockOrCreate(ctx, scope, func() (int, error) { return 0, nil })
	if err != nil {
		return 0, err
	}

	persisted, err := r.MaxPersisted(ctx, scope)
	if err != nil {
		return 0, err
	}

	next := max(seq.LastSequence, persisted) + 1
	if err := r.store(ctx, seq, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Raise moves the counter of the scope up to value inside the caller's
// transaction. A lower value never reduces an existing counter.
func (r *NumberSequenceRepository) Raise(ctx context.Context, scope SequenceScope, value int) error {
	seq, err := r.lockOrCreate(ctx, scope, func() (int, error) { return value, nil })
	if err != nil {
		return err
	}
	if value <= seq.LastSequence {
		return nil
	}
	return r.store(ctx, seq, value)
}

func (r *NumberSequenceRepository) store(ctx context.Context, seq *domain.NumberSequence, value int) error {
	if err := r.db.WithContext(ctx).Model(seq).Updates(map[string]interface{}{
		"last_sequence": value,
		"updated_at":    time.Now().UTC(),
	}).Error; err != nil {
		return fmt.Errorf("failed to update number sequence: %w", err)
	}
	return nil
}

// TrailingValue parses the trailing digits of a number, false when there are none
func TrailingValue(number string) (int, bool) {
	m := trailingDigits.FindString(number)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MaxPersisted returns the largest trailing-digit value among the numbers
// already stored on deals for the scope, or 0.
func (r *NumberSequenceRepository) MaxPersisted(ctx context.Context, scope SequenceScope) (int, error) {
	cols, ok := sequenceColumns[scope.Domain]
	if !ok {
		return 0, fmt.Errorf("unknown sequence domain %q", scope.Domain)
	}
	numberCol, companyCol, dateCol := cols[0], cols[1], cols[2]

	from := time.Date(scope.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&domain.Deal{}).
		Distinct(numberCol).
		Where(companyCol+" = ?", scope.CompanyID).
		Where(numberCol + " IS NOT NULL").
		Where(dateCol+" >= ? AND "+dateCol+" < ?", from, to).
		Pluck(numberCol, &numbers).Error
	if err != nil {
		return 0, fmt.Errorf("failed to scan existing numbers: %w", err)
	}

	highest := 0
	for _, n := range numbers {
		if v, ok := TrailingValue(n); ok && v > highest {
			highest = v
		}
	}
	return highest, nil
}

// GetCurrentSequence retrieves the current value without incrementing.
// Returns 0 if no counter exists for the scope.
func (r *NumberSequenceRepository) GetCurrentSequence(ctx context.Context, scope SequenceScope) (int, error) {
	var seq domain.NumberSequence
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND domain = ? AND year = ?", scope.CompanyID, scope.Domain, scope.Year).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", err)
	}
	return seq.LastSequence, nil
}

// SetSequence raises the counter of a scope to value (the last used number).
// A lower value never reduces an existing counter.
func (r *NumberSequenceRepository) SetSequence(ctx context.Context, scope SequenceScope, value int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.WithTx(tx).Raise(ctx, scope, value)
	})
}

// ListSequences returns all counters, optionally for one company
func (r *NumberSequenceRepository) ListSequences(ctx context.Context, companyID *uuid.UUID) ([]domain.NumberSequence, error) {
	var sequences []domain.NumberSequence
	query := r.db.WithContext(ctx)
	if companyID != nil {
		query = query.Where("company_id = ?", *companyID)
	}
	err := query.Order("company_id ASC, domain ASC, year DESC").Find(&sequences).Error
	return sequences, err
}
