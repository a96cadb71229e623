package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"gorm.io/gorm"
)

// Presence is the result of an existence check that ignores who asks
type Presence int

const (
	DealAbsent Presence = iota
	DealPresent
)

// Access is the result of resolving a company against a deal. Role is
// PartyNone both when the deal does not exist and when the company is not a
// party; callers cannot tell the two apart from Access alone.
type Access struct {
	Role   domain.PartyRole
	Latest *domain.Deal
}

// Granted reports whether the company is buyer or seller
func (a Access) Granted() bool {
	return a.Role != domain.PartyNone
}

// DealAccessService resolves which side of a deal a company is on
type DealAccessService struct {
	deals *repository.DealRepository
}

func NewDealAccessService(deals *repository.DealRepository) *DealAccessService {
	return &DealAccessService{deals: deals}
}

// Exists looks up the deal without any access check. Only the HTTP
// boundary uses it, to turn a not-found into a 403 where that is wanted.
func (s *DealAccessService) Exists(ctx context.Context, dealID uuid.UUID) (Presence, error) {
	ok, err := s.deals.Exists(ctx, dealID)
	if err != nil {
		return DealAbsent, fmt.Errorf("failed to look up deal: %w", err)
	}
	if ok {
		return DealPresent, nil
	}
	return DealAbsent, nil
}

// Accessible resolves the company's role against the latest version
func (s *DealAccessService) Accessible(ctx context.Context, dealID, companyID uuid.UUID) (Access, error) {
	latest, err := s.deals.FindLatest(ctx, dealID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Access{}, nil
	}
	if err != nil {
		return Access{}, fmt.Errorf("failed to resolve deal access: %w", err)
	}
	role := latest.RoleOf(companyID)
	if role == domain.PartyNone {
		return Access{}, nil
	}
	return Access{Role: role, Latest: latest}, nil
}

// Require returns the access of a party or ErrNotFound
func (s *DealAccessService) Require(ctx context.Context, dealID, companyID uuid.UUID) (Access, error) {
	access, err := s.Accessible(ctx, dealID, companyID)
	if err != nil {
		return Access{}, err
	}
	if !access.Granted() {
		return Access{}, fmt.Errorf("%w: deal %s", ErrNotFound, dealID)
	}
	return access, nil
}

// Classify refines a not-found for the boundary: ErrForbidden when the deal
// exists but the company is not a party, otherwise nil.
func (s *DealAccessService) Classify(ctx context.Context, dealID, companyID uuid.UUID) error {
	presence, err := s.Exists(ctx, dealID)
	if err != nil || presence == DealAbsent {
		return nil
	}
	access, err := s.Accessible(ctx, dealID, companyID)
	if err != nil || access.Granted() {
		return nil
	}
	return fmt.Errorf("%w: company is not a party to deal %s", ErrForbidden, dealID)
}

// roleInTx resolves the actor against a locked version row
func roleInTx(deal *domain.Deal, companyID uuid.UUID) (domain.PartyRole, error) {
	role := deal.RoleOf(companyID)
	if role == domain.PartyNone {
		return role, fmt.Errorf("%w: deal %s", ErrNotFound, deal.DealID)
	}
	return role, nil
}
