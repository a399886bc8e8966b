package service

import (
	"context"
	"sort"
	"time"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/repository"
	"github.com/degencred/credbot/utils"
	"github.com/shopspring/decimal"
)

// Service is the ledger core: access-fee gate, reputation ledger and loan
// engine. The components share nothing but the store.
type Service struct {
	repo      repository.Store
	tiers     map[string]models.Tier
	levels    []int64
	accessFee decimal.Decimal
	now       func() time.Time
	logger    *utils.Logger
}

type Settings struct {
	Tiers     map[string]models.Tier
	RepLevels []int64
	AccessFee decimal.Decimal
}

type Option func(*Service)

// WithClock replaces the wall clock. Readings are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo repository.Store, settings Settings, logger *utils.Logger, opts ...Option) *Service {
	tiers := make(map[string]models.Tier, len(settings.Tiers))
	for id, t := range settings.Tiers {
		tiers[id] = t
	}
	levels := append([]int64(nil), settings.RepLevels...)
	if len(levels) == 0 {
		levels = []int64{0}
	}

	s := &Service{
		repo:      repo,
		tiers:     tiers,
		levels:    levels,
		accessFee: settings.AccessFee,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	clock := s.now
	s.now = func() time.Time { return clock().UTC() }
	return s
}

func (s *Service) AccessFee() decimal.Decimal {
	return s.accessFee
}

// Tier looks a tier up by id.
func (s *Service) Tier(id string) (models.Tier, bool) {
	t, ok := s.tiers[id]
	return t, ok
}

// Tiers returns the tier table ordered by id.
func (s *Service) Tiers() []models.Tier {
	out := make([]models.Tier, 0, len(s.tiers))
	for _, t := range s.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LevelFor maps a reputation total to a level: the highest level whose
// minimum is <= total. Equal minimums resolve to the higher level.
func LevelFor(levels []int64, total int64) int {
	level := 1
	for i, min := range levels {
		if min <= total {
			level = i + 1
		}
	}
	return level
}

func (s *Service) GetOrCreateUser(ctx context.Context, userID int64, username string) (*models.User, error) {
	user, err := s.repo.GetOrCreateUser(ctx, userID, username, s.now())
	if err != nil {
		s.logger.Errorf("Failed to get or create user %d: %v", userID, err)
		return nil, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.ErrNotFound.Withf("user %d not found", userID)
	}
	return user, nil
}

func (s *Service) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.ErrNotFound.Withf("user @%s not found", username)
	}
	return user, nil
}

// Profile returns the user with the loan currently in flight, if any.
func (s *Service) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	loan, err := s.repo.GetActiveLoan(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{User: user, ActiveLoan: loan}, nil
}

func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.repo.IsAdmin(ctx, userID)
}

func (s *Service) ListAdmins(ctx context.Context) ([]int64, error) {
	return s.repo.ListAdmins(ctx)
}

// AddAdmin grants admin rights. Only an existing admin may do it; adding an
// admin twice is a no-op.
func (s *Service) AddAdmin(ctx context.Context, adminID, userID int64) error {
	err := s.repo.Transaction(ctx, func(tx repository.Store) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		return tx.AddAdmin(ctx, userID)
	})
	if err != nil {
		s.logger.Warnf("Adding admin %d by %d failed: %v", userID, adminID, err)
		return err
	}
	s.logger.Infof("User %d promoted to admin by %d", userID, adminID)
	return nil
}

func requireAdmin(ctx context.Context, repo repository.Store, userID int64) error {
	ok, err := repo.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrUnauthorized
	}
	return nil
}
