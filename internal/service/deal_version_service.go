package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/logger"
	"github.com/straye-as/deal-engine/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateNewVersion proposes a new version copied from the latest one. The
// proposer's acceptance is stamped; the counterparty must accept it before it
// becomes the active version. A lost race for the version number is retried.
func (s *DealService) CreateNewVersion(ctx context.Context, dealID, actor uuid.UUID, patch *domain.DealPatch) (*domain.Deal, error) {
	access, err := s.access.Require(ctx, dealID, actor)
	if err != nil {
		return nil, err
	}

	var newItems []domain.DealItem
	if patch != nil && patch.Items != nil {
		newItems, _, err = resolveItems(ctx, s.catalog, access.Latest.SellerCompanyID, *patch.Items)
		if err != nil {
			return nil, err
		}
	}

	backoff := retry.WithMaxRetries(s.retry.VersionRetryAttempts, retry.NewExponential(s.retry.VersionRetryBaseDelay()))

	var created *domain.Deal
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		next, err := s.createNextVersion(ctx, dealID, actor, patch, newItems)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.VersionConflictRetries.Inc()
			s.logger.Debug("Version number taken, retrying", zap.String("deal_id", dealID.String()))
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		created = next
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("%w: another version was created concurrently, try again", ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	metrics.VersionTransitions.WithLabelValues("proposed").Inc()
	logger.WithDeal(s.logger, dealID, actor).Info("Version proposed", zap.Int("version", created.Version))
	return created, nil
}

func (s *DealService) createNextVersion(ctx context.Context, dealID, actor uuid.UUID, patch *domain.DealPatch, newItems []domain.DealItem) (*domain.Deal, error) {
	var next *domain.Deal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.deals.WithTx(tx)
		latest, err := dealRepo.FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		role, err := roleInTx(latest, actor)
		if err != nil {
			return err
		}

		next = latest.CloneAsNextVersion(role, s.now())
		if patch != nil {
			patch.ApplyScalars(next)
			if patch.Items != nil {
				next.Items = cloneItems(newItems)
			}
		}
		if len(next.Items) == 0 {
			return fmt.Errorf("%w: a deal needs at least one item", ErrInvalidInput)
		}
		for _, item := range next.Items {
			if err := checkDealType(next.DealType, item.ItemType); err != nil {
				return err
			}
		}
		next.RecalculateTotal()

		if err := dealRepo.Create(ctx, next); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			return fmt.Errorf("failed to create version: %w", err)
		}
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     next,
			Actor:       actor,
			ChangeType:  domain.ChangeVersionCreated,
			Description: fmt.Sprintf("Version %d proposed by %s", next.Version, role),
			Old:         latest,
			New:         next,
		})
	})
	return next, err
}

// cloneItems copies resolved items so a retried attempt starts from fresh rows
func cloneItems(items []domain.DealItem) []domain.DealItem {
	out := make([]domain.DealItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// AcceptVersion stamps the actor's acceptance on a version. Accepting twice is
// a no-op and records nothing.
func (s *DealService) AcceptVersion(ctx context.Context, dealID uuid.UUID, version int, actor uuid.UUID) (*domain.Deal, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.deals.WithTx(tx)
		deal, err := dealRepo.FindVersionForUpdate(ctx, dealID, version)
		if err != nil {
			return notFoundOr(err, fmt.Sprintf("version %d", version))
		}
		role, err := roleInTx(deal, actor)
		if err != nil {
			return err
		}
		if deal.IsRejected() {
			return fmt.Errorf("%w: version %d was rejected", ErrConflict, version)
		}

		before := domain.Fields{"state": string(deal.State())}
		if !deal.StampAcceptance(role, s.now()) {
			return nil
		}
		changed = true

		if err := dealRepo.Update(ctx, deal); err != nil {
			return fmt.Errorf("failed to accept version: %w", err)
		}
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     deal,
			Actor:       actor,
			ChangeType:  domain.ChangeVersionAccepted,
			Description: fmt.Sprintf("Version %d accepted by %s", version, role),
			Old:         before,
			New: domain.Fields{
				"state":      string(deal.State()),
				"acceptedBy": string(role),
				"acceptedAt": deal.AcceptedAt(role).UTC().Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.VersionTransitions.WithLabelValues("accepted").Inc()
		logger.WithDeal(s.logger, dealID, actor).Info("Version accepted", zap.Int("version", version))
	}
	return s.reloadVersion(ctx, dealID, version)
}

// RejectVersion marks a version as rejected. Agreed versions cannot be
// rejected; the proposer may reject their own pending proposal to withdraw it.
func (s *DealService) RejectVersion(ctx context.Context, dealID uuid.UUID, version int, actor uuid.UUID) (*domain.Deal, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.deals.WithTx(tx)
		deal, err := dealRepo.FindVersionForUpdate(ctx, dealID, version)
		if err != nil {
			return notFoundOr(err, fmt.Sprintf("version %d", version))
		}
		role, err := roleInTx(deal, actor)
		if err != nil {
			return err
		}
		if deal.IsRejected() {
			return fmt.Errorf("%w: version %d is already rejected", ErrConflict, version)
		}
		if deal.IsAgreed() {
			return fmt.Errorf("%w: version %d is agreed and cannot be rejected", ErrConflict, version)
		}

		before := domain.Fields{"state": string(deal.State())}
		now := s.now()
		rejectedBy := actor
		deal.RejectedByCompanyID = &rejectedBy
		deal.RejectedAt = &now

		if err := dealRepo.Update(ctx, deal); err != nil {
			return fmt.Errorf("failed to reject version: %w", err)
		}
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     deal,
			Actor:       actor,
			ChangeType:  domain.ChangeVersionRejected,
			Description: fmt.Sprintf("Version %d rejected by %s", version, role),
			Old:         before,
			New: domain.Fields{
				"state":      string(deal.State()),
				"rejectedBy": actor.String(),
				"rejectedAt": now.Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.VersionTransitions.WithLabelValues("rejected").Inc()
	logger.WithDeal(s.logger, dealID, actor).Info("Version rejected", zap.Int("version", version))
	return s.reloadVersion(ctx, dealID, version)
}

// DeleteLastVersion removes the highest version and returns the new latest.
// The only version of a deal cannot be removed, nor can an agreed one. A
// pending proposal can only be removed by its proposer.
func (s *DealService) DeleteLastVersion(ctx context.Context, dealID, actor uuid.UUID) (*domain.Deal, error) {
	var keys []string
	var removed int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.deals.WithTx(tx)
		latest, err := dealRepo.FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}
		if latest.Version == 1 {
			return fmt.Errorf("%w: cannot delete the only version of a deal; delete the deal instead", ErrInvalidInput)
		}
		switch latest.State() {
		case domain.VersionStateAgreed, domain.VersionStateLegacyAgreed:
			return fmt.Errorf("%w: version %d is agreed and cannot be deleted", ErrConflict, latest.Version)
		case domain.VersionStateProposed:
			if *latest.ProposedByCompanyID != actor {
				return fmt.Errorf("%w: only the proposer can withdraw a pending proposal; reject it instead", ErrConflict)
			}
		}

		previous, err := dealRepo.FindVersionForUpdate(ctx, dealID, latest.Version-1)
		if err != nil {
			return fmt.Errorf("failed to load previous version: %w", err)
		}

		keys, err = s.documents.WithTx(tx).StorageKeys(ctx, []uuid.UUID{latest.ID})
		if err != nil {
			return fmt.Errorf("failed to list stored documents: %w", err)
		}
		if err := dealRepo.DeleteVersions(ctx, []uuid.UUID{latest.ID}); err != nil {
			return fmt.Errorf("failed to delete version: %w", err)
		}
		removed = latest.Version

		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     previous,
			Actor:       actor,
			ChangeType:  domain.ChangeVersionDeleted,
			Description: fmt.Sprintf("Version %d deleted", latest.Version),
			Old:         latest,
		})
	})
	if err != nil {
		return nil, err
	}

	s.cleanup.DeleteObjects(ctx, keys)
	metrics.VersionTransitions.WithLabelValues("deleted").Inc()
	logger.WithDeal(s.logger, dealID, actor).Info("Version deleted", zap.Int("version", removed))

	latest, err := s.deals.FindLatest(ctx, dealID)
	if err != nil {
		return nil, notFoundOr(err, "deal")
	}
	return latest, nil
}

// AssignNumber sets a bill, contract or supply contract number on the latest
// version. An explicit number is stored verbatim, otherwise the next number of
// the seller's sequence is used. A number that is already set is kept.
func (s *DealService) AssignNumber(ctx context.Context, dealID, actor uuid.UUID, kind domain.NumberKind, req *domain.AssignNumberRequest) (*domain.Deal, error) {
	seqDomain := kind.SequenceDomain()
	if seqDomain == "" {
		return nil, fmt.Errorf("%w: unknown number kind %q", ErrInvalidInput, kind)
	}
	var explicit string
	if req != nil && req.Number != nil {
		explicit = strings.TrimSpace(*req.Number)
		if explicit == "" {
			return nil, fmt.Errorf("%w: number cannot be blank", ErrInvalidInput)
		}
	}

	var assigned string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dealRepo := s.deals.WithTx(tx)
		latest, err := dealRepo.FindLatestForUpdate(ctx, dealID)
		if err != nil {
			return notFoundOr(err, "deal")
		}
		if _, err := roleInTx(latest, actor); err != nil {
			return err
		}
		if latest.IsRejected() {
			return fmt.Errorf("%w: version %d was rejected", ErrConflict, latest.Version)
		}
		if existing := latest.AssignedNumber(kind); existing != nil {
			return nil
		}

		now := s.now()
		date := now
		if req != nil && req.Date != nil {
			date = req.Date.UTC()
		}

		number := explicit
		if number == "" {
			number, err = s.numbers.Next(ctx, tx, latest.SellerCompanyID, seqDomain, date)
		} else {
			err = s.numbers.Reserve(ctx, tx, latest.SellerCompanyID, seqDomain, number, date)
		}
		if err != nil {
			return err
		}
		latest.SetNumber(kind, number, date)

		if err := dealRepo.Update(ctx, latest); err != nil {
			return fmt.Errorf("failed to assign %s number: %w", kind, err)
		}
		assigned = number
		return s.history.Record(ctx, tx, HistoryEntry{
			Version:     latest,
			Actor:       actor,
			ChangeType:  domain.ChangeNumberAssigned,
			Description: fmt.Sprintf("%s number %s assigned", kind, number),
			New: domain.Fields{
				"kind":   string(kind),
				"number": number,
				"date":   date.Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if assigned != "" {
		logger.WithDeal(s.logger, dealID, actor).Info("Number assigned",
			zap.String("kind", string(kind)),
			zap.String("number", assigned),
		)
	}
	latest, err := s.deals.FindLatest(ctx, dealID)
	if err != nil {
		return nil, notFoundOr(err, "deal")
	}
	return latest, nil
}

func (s *DealService) reloadVersion(ctx context.Context, dealID uuid.UUID, version int) (*domain.Deal, error) {
	deal, err := s.deals.FindVersion(ctx, dealID, version)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("version %d", version))
	}
	return deal, nil
}
