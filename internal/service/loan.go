package service

import (
	"context"
	"strings"
	"time"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/metrics"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RequestLoan creates a pending loan priced from the tier table as it is
// now. The rate and repayment period are copied onto the loan.
func (s *Service) RequestLoan(ctx context.Context, userID, chatID int64, tierID string, amount decimal.Decimal) (*models.Loan, error) {
	tierID = strings.ToUpper(strings.TrimSpace(tierID))

	var loan *models.Loan
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil || !user.AccessFeePaid {
			return errs.ErrAccessFeeRequired
		}

		tier, ok := s.tiers[tierID]
		if !ok {
			return errs.ErrUnknownTier.Withf("unknown loan tier %q", tierID)
		}
		if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
			return errs.ErrInvalidAmount.Withf("amount must be positive with at most two decimals")
		}
		if amount.GreaterThan(tier.MaxAmount) {
			return errs.ErrAmountExceedsLimit.Withf("max for %s is %s", tier.ID, tier.MaxAmount.StringFixed(2))
		}
		if user.Level < tier.MinLevel {
			return errs.ErrTierLocked.Withf("%s requires level %d, you are level %d", tier.ID, tier.MinLevel, user.Level)
		}

		active, err := tx.GetActiveLoan(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return errs.ErrLoanInFlight.Withf("loan %s is still %s", active.LoanID, active.Status)
		}

		loan = &models.Loan{
			LoanID:        uuid.NewString(),
			UserID:        userID,
			Username:      user.Username,
			ChatID:        chatID,
			Amount:        amount,
			InterestRate:  tier.InterestRate,
			TotalDue:      TotalDue(amount, tier.InterestRate),
			RepaymentDays: tier.RepaymentPeriodDays,
			Status:        models.LoanStatusPending,
			RequestedAt:   s.now(),
			Level:         tier.ID,
		}
		return tx.CreateLoan(ctx, loan)
	})
	if err != nil {
		s.logger.Warnf("Loan request by user %d (%s %s) failed: %v", userID, tierID, amount, err)
		return nil, err
	}

	metrics.LoanRequests.WithLabelValues(loan.Level).Inc()
	s.logger.WithFields(logrus.Fields{
		"loan":      loan.LoanID,
		"user":      userID,
		"tier":      loan.Level,
		"amount":    loan.Amount.StringFixed(2),
		"total_due": loan.TotalDue.StringFixed(2),
	}).Info("Loan requested")
	return loan, nil
}

// TotalDue is amount * (1 + rate) rounded to cents.
func TotalDue(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
}

// DecideLoan approves or denies a pending loan. A second decision on the
// same loan fails with NotPending.
func (s *Service) DecideLoan(ctx context.Context, adminID int64, loanID string, approve bool) (*models.Loan, error) {
	var loan *models.Loan
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		var err error
		loan, err = loadLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanStatusPending {
			return errs.ErrNotPending.Withf("loan %s is %s", loanID, loan.Status)
		}

		now := s.now()
		admin := adminID
		updates := map[string]interface{}{"admin_id": admin}
		if approve {
			due := now.Add(time.Duration(loan.RepaymentDays) * 24 * time.Hour)
			updates["status"] = models.LoanStatusApproved
			updates["approved_at"] = now
			updates["due_at"] = due
			loan.Status = models.LoanStatusApproved
			loan.ApprovedAt = &now
			loan.DueAt = &due
		} else {
			updates["status"] = models.LoanStatusDenied
			loan.Status = models.LoanStatusDenied
		}
		loan.AdminID = &admin

		ok, err := tx.UpdateLoanStatus(ctx, loanID, models.LoanStatusPending, updates)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrNotPending.Withf("loan %s was decided concurrently", loanID)
		}
		return nil
	})
	if err != nil {
		s.logger.Warnf("Decision on loan %s by %d failed: %v", loanID, adminID, err)
		return nil, err
	}

	metrics.LoanTransitions.WithLabelValues(loan.Status).Inc()
	s.logger.Infof("Loan %s %s by admin %d", loanID, loan.Status, adminID)
	return loan, nil
}

// RepayLoan records repayment on the borrower's word; funds are confirmed
// outside the core.
func (s *Service) RepayLoan(ctx context.Context, userID int64, loanID string) (*models.Loan, error) {
	var loan *models.Loan
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		gated, err := isGated(ctx, tx, userID)
		if err != nil {
			return err
		}
		if gated {
			return errs.ErrAccessFeeRequired
		}

		loan, err = tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan == nil || loan.UserID != userID {
			return errs.ErrNotFound.Withf("loan %s not found", loanID)
		}
		if loan.Status != models.LoanStatusApproved {
			return errs.ErrNotApproved.Withf("loan %s is %s", loanID, loan.Status)
		}

		now := s.now()
		ok, err := tx.UpdateLoanStatus(ctx, loanID, models.LoanStatusApproved, map[string]interface{}{
			"status":    models.LoanStatusRepaid,
			"repaid_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrNotApproved.Withf("loan %s changed concurrently", loanID)
		}
		loan.Status = models.LoanStatusRepaid
		loan.RepaidAt = &now
		return nil
	})
	if err != nil {
		s.logger.Warnf("Repayment of loan %s by %d failed: %v", loanID, userID, err)
		return nil, err
	}

	metrics.LoanTransitions.WithLabelValues(models.LoanStatusRepaid).Inc()
	s.logger.Infof("Loan %s repaid by user %d", loanID, userID)
	return loan, nil
}

// SweepOverdue defaults every approved loan whose due date is before now.
// Each loan flips at most once, so overlapping sweeps are harmless; only
// loans this call defaulted are returned.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) ([]models.Loan, error) {
	now = now.UTC()
	overdue, err := s.repo.ListOverdueLoans(ctx, now)
	if err != nil {
		s.logger.Errorf("Sweep: failed to list overdue loans: %v", err)
		return nil, err
	}

	var (
		defaulted []models.Loan
		firstErr  error
	)
	for _, loan := range overdue {
		ok, err := s.repo.UpdateLoanStatus(ctx, loan.LoanID, models.LoanStatusApproved, map[string]interface{}{
			"status":       models.LoanStatusDefaulted,
			"defaulted_at": now,
		})
		if err != nil {
			s.logger.Errorf("Sweep: failed to default loan %s: %v", loan.LoanID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		loan.Status = models.LoanStatusDefaulted
		at := now
		loan.DefaultedAt = &at
		defaulted = append(defaulted, loan)
		metrics.LoanTransitions.WithLabelValues(models.LoanStatusDefaulted).Inc()
		s.logger.Infof("Sweep: loan %s of user %d defaulted (due %s)", loan.LoanID, loan.UserID, loan.DueAt.Format(time.RFC3339))
	}
	return defaulted, firstErr
}

func (s *Service) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	return loadLoan(ctx, s.repo, loanID)
}

func (s *Service) LoansByUser(ctx context.Context, userID int64) ([]models.Loan, error) {
	return s.repo.ListLoansByUser(ctx, userID)
}

func (s *Service) PendingLoans(ctx context.Context, adminID int64) ([]models.Loan, error) {
	if err := requireAdmin(ctx, s.repo, adminID); err != nil {
		return nil, err
	}
	return s.repo.ListLoansByStatus(ctx, models.LoanStatusPending)
}

func loadLoan(ctx context.Context, repo repository.Store, loanID string) (*models.Loan, error) {
	loan, err := repo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, errs.ErrNotFound.Withf("loan %s not found", loanID)
	}
	return loan, nil
}
