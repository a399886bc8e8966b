package service

import (
	"context"
	"strings"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/metrics"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// Grant appends a reputation transaction and recomputes the recipient's
// total and level from the log. A nil from is a system grant. Admins may
// grant to themselves, nobody else may.
func (s *Service) Grant(ctx context.Context, from *int64, to, chatID, amount int64, reason string) (*models.ReputationTransaction, *models.User, error) {
	if amount <= 0 {
		return nil, nil, errs.ErrInvalidAmount
	}

	var (
		rep  *models.ReputationTransaction
		user *models.User
	)
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		if from != nil && *from == to {
			ok, err := tx.IsAdmin(ctx, *from)
			if err != nil {
				return err
			}
			if !ok {
				return errs.ErrSelfGrant
			}
		}

		var err error
		user, err = tx.LockUser(ctx, to)
		if err != nil {
			return err
		}
		if user == nil {
			return errs.ErrNotFound.Withf("user %d not found", to)
		}

		rep = &models.ReputationTransaction{
			FromUserID: from,
			ToUserID:   to,
			ChatID:     chatID,
			Amount:     amount,
			Timestamp:  s.now(),
			Reason:     strings.TrimSpace(reason),
		}
		if err := tx.CreateReputation(ctx, rep); err != nil {
			return err
		}

		total, err := tx.SumReputation(ctx, to)
		if err != nil {
			return err
		}
		level := LevelFor(s.levels, total)
		if err := tx.SetUserReputation(ctx, to, total, level); err != nil {
			return err
		}
		user.TotalRep = total
		user.Level = level
		return nil
	})
	if err != nil {
		s.logger.Warnf("Reputation grant to %d failed: %v", to, err)
		return nil, nil, err
	}

	metrics.ReputationGranted.Add(float64(amount))
	s.logger.WithFields(logrus.Fields{
		"to":     to,
		"amount": amount,
		"total":  user.TotalRep,
		"level":  user.Level,
	}).Info("Reputation granted")
	return rep, user, nil
}

// Leaderboard is a snapshot of users ordered by reputation, earliest joiner
// first on ties.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	return s.repo.Leaderboard(ctx, limit)
}
