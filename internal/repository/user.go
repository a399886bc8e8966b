package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"gorm.io/gorm/clause"
)

func (r *Repository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var user models.User
	err := db.First(&user, "user_id = ?", userID).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errs.Storage(fmt.Errorf("failed to get user %d: %w", userID, err))
	}
	return &user, nil
}

// LockUser reads the user row and holds it for the rest of the transaction.
func (r *Repository) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var user models.User
	err := r.forUpdate(db).First(&user, "user_id = ?", userID).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errs.Storage(fmt.Errorf("failed to lock user %d: %w", userID, err))
	}
	return &user, nil
}

func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var user models.User
	err := db.Where("LOWER(username) = LOWER(?)", username).
		Order("last_active_at DESC").
		First(&user).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, errs.Storage(fmt.Errorf("failed to find user @%s: %w", username, err))
	}
	return &user, nil
}

// GetOrCreateUser inserts the user if missing, otherwise refreshes the
// display name and activity time. Concurrent first contacts converge on
// the same row.
func (r *Repository) GetOrCreateUser(ctx context.Context, userID int64, username string, now time.Time) (*models.User, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	user := models.User{
		UserID:       userID,
		Username:     username,
		Level:        1,
		JoinedAt:     now,
		LastActiveAt: now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"username": username, "last_active_at": now}),
	}).Create(&user).Error
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to upsert user %d: %w", userID, err))
	}

	var stored models.User
	if err := db.First(&stored, "user_id = ?", userID).Error; err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to reload user %d: %w", userID, err))
	}
	return &stored, nil
}

func (r *Repository) SetUserReputation(ctx context.Context, userID int64, totalRep int64, level int) error {
	db, cancel := r.session(ctx)
	defer cancel()

	res := db.Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"total_rep": totalRep, "level": level})
	if res.Error != nil {
		return errs.Storage(fmt.Errorf("failed to update reputation of user %d: %w", userID, res.Error))
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound.Withf("user %d not found", userID)
	}
	return nil
}

// MarkAccessFeePaid flips the flag once; a user that is already paid keeps
// the first timestamp and false is returned.
func (r *Repository) MarkAccessFeePaid(ctx context.Context, userID int64, at time.Time) (bool, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	res := db.Model(&models.User{}).
		Where("user_id = ? AND access_fee_paid = ?", userID, false).
		Updates(map[string]interface{}{"access_fee_paid": true, "access_fee_paid_at": at})
	if res.Error != nil {
		return false, errs.Storage(fmt.Errorf("failed to mark fee paid for user %d: %w", userID, res.Error))
	}
	return res.RowsAffected == 1, nil
}

// Leaderboard orders by reputation, then by earliest join, then by id.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var users []models.User
	err := db.Order("total_rep DESC").
		Order("joined_at ASC").
		Order("user_id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("failed to load leaderboard: %w", err))
	}
	return users, nil
}
