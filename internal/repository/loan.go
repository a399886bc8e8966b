package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"gorm.io/gorm"
)

// CreateLoan inserts a loan. The partial unique index on active loans turns
// a lost race between two requests into LoanInFlight.
func (r *Repository) CreateLoan(ctx context.Context, loan *models.Loan) error {
	db, cancel := r.session(ctx)
	defer cancel()

	if err := db.Create(loan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrLoanInFlight
		}
		return errs.Storage(fmt.Errorf("failed to create loan: %w", err))
	}
	return nil
}

func (r *Repository) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var loan models.Loan
	err := db.First(&loan, "loan_id = ?", loanID).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errs.Storage(fmt.Errorf("failed to get loan %s: %w", loanID, err))
	}
	return &loan, nil
}

func (r *Repository) GetActiveLoan(ctx context.Context, userID int64) (*models.Loan, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var loan models.Loan
	err := db.Where("user_id = ? AND status IN ?", userID, []string{models.LoanStatusPending, models.LoanStatusApproved}).
		First(&loan).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errs.Storage(fmt.Errorf("failed to get active loan of user %d: %w", userID, err))
	}
	return &loan, nil
}

func (r *Repository) ListLoansByUser(ctx context.Context, userID int64) ([]models.Loan, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var loans []models.Loan
	if err := db.Where("user_id = ?", userID).Order("requested_at DESC").Find(&loans).Error; err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to list loans of user %d: %w", userID, err))
	}
	return loans, nil
}

func (r *Repository) ListLoansByStatus(ctx context.Context, status string) ([]models.Loan, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var loans []models.Loan
	if err := db.Where("status = ?", status).Order("requested_at ASC").Find(&loans).Error; err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to list %s loans: %w", status, err))
	}
	return loans, nil
}

func (r *Repository) ListOverdueLoans(ctx context.Context, now time.Time) ([]models.Loan, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	// sqlite compares the stored text, so both sides must be UTC.
	var loans []models.Loan
	err := db.Where("status = ? AND due_at IS NOT NULL AND due_at < ?", models.LoanStatusApproved, now.UTC()).
		Order("due_at ASC").
		Find(&loans).Error
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to list overdue loans: %w", err))
	}
	return loans, nil
}

// UpdateLoanStatus applies updates only while the loan is still in status
// from. It reports false when another caller got there first.
func (r *Repository) UpdateLoanStatus(ctx context.Context, loanID string, from string, updates map[string]interface{}) (bool, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	res := db.Model(&models.Loan{}).
		Where("loan_id = ? AND status = ?", loanID, from).
		Updates(updates)
	if res.Error != nil {
		return false, errs.Storage(fmt.Errorf("failed to update loan %s: %w", loanID, res.Error))
	}
	return res.RowsAffected == 1, nil
}
