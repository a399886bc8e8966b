package repository

import (
	"context"
	"fmt"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
)

func (r *Repository) CreateReputation(ctx context.Context, rep *models.ReputationTransaction) error {
	db, cancel := r.session(ctx)
	defer cancel()

	if err := db.Create(rep).Error; err != nil {
		return errs.Storage(fmt.Errorf("failed to record reputation for user %d: %w", rep.ToUserID, err))
	}
	return nil
}

func (r *Repository) SumReputation(ctx context.Context, toUserID int64) (int64, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var sum int64
	err := db.Model(&models.ReputationTransaction{}).
		Where("to_user_id = ?", toUserID).
		Select("COALESCE(SUM(amount),0)").
		Scan(&sum).Error
	if err != nil {
		return 0, errs.Storage(fmt.Errorf("failed to sum reputation for user %d: %w", toUserID, err))
	}
	return sum, nil
}
