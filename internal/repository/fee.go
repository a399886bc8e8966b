package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) CreateFeeSubmission(ctx context.Context, sub *models.AccessFeeSubmission) error {
	db, cancel := r.session(ctx)
	defer cancel()

	if err := db.Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrDuplicateSubmission
		}
		return errs.Storage(fmt.Errorf("failed to create fee submission: %w", err))
	}
	return nil
}

func (r *Repository) GetFeeSubmission(ctx context.Context, id int64) (*models.AccessFeeSubmission, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var sub models.AccessFeeSubmission
	err := db.First(&sub, "id = ?", id).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errs.Storage(fmt.Errorf("failed to get fee submission %d: %w", id, err))
	}
	return &sub, nil
}

func (r *Repository) FindPendingSubmission(ctx context.Context, userID int64, txReference string) (*models.AccessFeeSubmission, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var sub models.AccessFeeSubmission
	err := db.Where("user_id = ? AND tx_reference = ? AND status = ?", userID, txReference, models.FeeStatusPending).
		First(&sub).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errs.Storage(fmt.Errorf("failed to find pending submission: %w", err))
	}
	return &sub, nil
}

// ListFeeSubmissions returns submissions with the given status, oldest
// first, optionally restricted to one user.
func (r *Repository) ListFeeSubmissions(ctx context.Context, status string, userID *int64) ([]models.AccessFeeSubmission, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	q := db.Where("status = ?", status)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}

	var subs []models.AccessFeeSubmission
	if err := q.Order("submitted_at ASC").Order("id ASC").Find(&subs).Error; err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to list %s submissions: %w", status, err))
	}
	return subs, nil
}

func (r *Repository) SetFeeStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	res := db.Model(&models.AccessFeeSubmission{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, errs.Storage(fmt.Errorf("failed to update submission %d: %w", id, res.Error))
	}
	return res.RowsAffected == 1, nil
}
