package service

import (
	"context"
	"strings"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/metrics"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/payments"
	"github.com/degencred/credbot/internal/repository"
)

const maxTxReferenceLen = 256

// SubmitFee records a user's claim of payment for admin review.
func (s *Service) SubmitFee(ctx context.Context, userID int64, txReference string) (*models.AccessFeeSubmission, error) {
	txReference = strings.TrimSpace(txReference)
	if txReference == "" || len(txReference) > maxTxReferenceLen {
		return nil, errs.ErrInvalidReference
	}

	var sub *models.AccessFeeSubmission
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return errs.ErrNotFound.Withf("user %d not found", userID)
		}
		if user.AccessFeePaid {
			return errs.ErrAlreadyPaid
		}

		existing, err := tx.FindPendingSubmission(ctx, userID, txReference)
		if err != nil {
			return err
		}
		if existing != nil {
			return errs.ErrDuplicateSubmission
		}

		sub = &models.AccessFeeSubmission{
			UserID:      userID,
			TxReference: txReference,
			SubmittedAt: s.now(),
			Status:      models.FeeStatusPending,
		}
		return tx.CreateFeeSubmission(ctx, sub)
	})
	if err != nil {
		s.logger.Warnf("Fee submission by user %d rejected: %v", userID, err)
		return nil, err
	}

	metrics.FeeSubmissions.WithLabelValues(models.FeeStatusPending).Inc()
	s.logger.Infof("Fee submission #%d created for user %d", sub.ID, userID)
	return sub, nil
}

// ApproveFee marks the submission approved and the user paid. Approving an
// already approved submission is a no-op.
func (s *Service) ApproveFee(ctx context.Context, adminID, submissionID int64) (*models.AccessFeeSubmission, error) {
	var sub *models.AccessFeeSubmission
	changed := false
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		var err error
		sub, err = loadSubmission(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		switch sub.Status {
		case models.FeeStatusApproved:
			return nil
		case models.FeeStatusRejected:
			return errs.ErrNotPending.Withf("submission #%d was rejected", submissionID)
		}

		ok, err := tx.SetFeeStatus(ctx, submissionID, models.FeeStatusPending, models.FeeStatusApproved)
		if err != nil {
			return err
		}
		if !ok {
			// Lost a race with another admin; report the winner's outcome.
			sub, err = loadSubmission(ctx, tx, submissionID)
			if err != nil {
				return err
			}
			if sub.Status == models.FeeStatusApproved {
				return nil
			}
			return errs.ErrNotPending.Withf("submission #%d was rejected", submissionID)
		}
		sub.Status = models.FeeStatusApproved
		changed = true

		if _, err := tx.MarkAccessFeePaid(ctx, sub.UserID, s.now()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Warnf("Approve fee #%d by %d failed: %v", submissionID, adminID, err)
		return nil, err
	}

	if changed {
		metrics.FeeSubmissions.WithLabelValues(models.FeeStatusApproved).Inc()
		s.logger.Infof("Fee submission #%d approved by admin %d, user %d unlocked", submissionID, adminID, sub.UserID)
	}
	return sub, nil
}

// RejectFee marks the submission rejected. The user stays unpaid and may
// submit again. Rejecting twice is a no-op.
func (s *Service) RejectFee(ctx context.Context, adminID, submissionID int64) (*models.AccessFeeSubmission, error) {
	var sub *models.AccessFeeSubmission
	changed := false
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		var err error
		sub, err = loadSubmission(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		switch sub.Status {
		case models.FeeStatusRejected:
			return nil
		case models.FeeStatusApproved:
			return errs.ErrNotPending.Withf("submission #%d was already approved", submissionID)
		}

		ok, err := tx.SetFeeStatus(ctx, submissionID, models.FeeStatusPending, models.FeeStatusRejected)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrNotPending.Withf("submission #%d was decided concurrently", submissionID)
		}
		sub.Status = models.FeeStatusRejected
		changed = true
		return nil
	})
	if err != nil {
		s.logger.Warnf("Reject fee #%d by %d failed: %v", submissionID, adminID, err)
		return nil, err
	}

	if changed {
		metrics.FeeSubmissions.WithLabelValues(models.FeeStatusRejected).Inc()
		s.logger.Infof("Fee submission #%d rejected by admin %d", submissionID, adminID)
	}
	return sub, nil
}

// IsGated is true until the user's access fee has been approved. Unknown
// users are gated.
func (s *Service) IsGated(ctx context.Context, userID int64) (bool, error) {
	return isGated(ctx, s.repo, userID)
}

func isGated(ctx context.Context, repo repository.Store, userID int64) (bool, error) {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return true, err
	}
	return user == nil || !user.AccessFeePaid, nil
}

func (s *Service) PendingFeeSubmissions(ctx context.Context, adminID int64) ([]models.AccessFeeSubmission, error) {
	if err := requireAdmin(ctx, s.repo, adminID); err != nil {
		return nil, err
	}
	return s.repo.ListFeeSubmissions(ctx, models.FeeStatusPending, nil)
}

// CorroboratePayment looks for pending submissions that a detected payment
// could belong to. It never changes any state.
func (s *Service) CorroboratePayment(ctx context.Context, match payments.Match) (*models.User, []models.AccessFeeSubmission, error) {
	if match.Amount.LessThan(s.accessFee) {
		s.logger.Debugf("Payment of %s by @%s is below the access fee", match.Amount, match.Username)
		return nil, nil, nil
	}
	user, err := s.repo.FindUserByUsername(ctx, match.Username)
	if err != nil || user == nil {
		return nil, nil, err
	}
	subs, err := s.repo.ListFeeSubmissions(ctx, models.FeeStatusPending, &user.UserID)
	if err != nil {
		return nil, nil, err
	}
	if len(subs) > 0 {
		s.logger.Infof("Payment of %s by @%s corroborates %d pending submission(s)", match.Amount, match.Username, len(subs))
	}
	return user, subs, nil
}

func loadSubmission(ctx context.Context, repo repository.Store, id int64) (*models.AccessFeeSubmission, error) {
	sub, err := repo.GetFeeSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errs.ErrNotFound.Withf("submission #%d not found", id)
	}
	return sub, nil
}
