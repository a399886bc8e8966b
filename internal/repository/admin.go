package repository

import (
	"context"
	"fmt"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"gorm.io/gorm/clause"
)

func (r *Repository) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var count int64
	if err := db.Model(&models.Admin{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, errs.Storage(fmt.Errorf("failed to check admin %d: %w", userID, err))
	}
	return count > 0, nil
}

func (r *Repository) AddAdmin(ctx context.Context, userID int64) error {
	db, cancel := r.session(ctx)
	defer cancel()

	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Admin{UserID: userID}).Error
	if err != nil {
		return errs.Storage(fmt.Errorf("failed to add admin %d: %w", userID, err))
	}
	r.logger.Infof("Admin %d added", userID)
	return nil
}

func (r *Repository) ListAdmins(ctx context.Context) ([]int64, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var ids []int64
	if err := db.Model(&models.Admin{}).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to list admins: %w", err))
	}
	return ids, nil
}
