package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/degencred/credbot/config"
	"github.com/degencred/credbot/db"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/repository"
	"github.com/degencred/credbot/internal/service"
	"github.com/degencred/credbot/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	adminID int64 = 6668510825
	aliceID int64 = 1001
	bobID   int64 = 1002
	chatID  int64 = -1002400589513
)

// levelGatedTiers requires reputation levels for the higher tiers.
const levelGatedTiers = "L1:100:0.12:7:1,L2:250:0.10:7:2,L3:500:0.08:10:3,L4:1000:0.07:14:4,L5:2000:0.05:14:5"

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	svc   *service.Service
	repo  *repository.Repository
	clock *fakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithTiers(t, config.DefaultLoanTiers)
}

func newEnvWithTiers(t *testing.T, tiersRaw string) *env {
	t.Helper()
	logger := utils.NopLogger()

	gdb, err := db.ConnectDb(db.Options{
		Driver:       "sqlite",
		URL:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(gdb, logger) })

	require.NoError(t, db.Migrate(gdb, true, logger))
	require.NoError(t, db.SeedAdmins(gdb, []int64{adminID}, logger))

	repo := repository.NewRepository(gdb, logger, 5*time.Second)
	clock := &fakeClock{now: t0}
	return &env{
		svc:   newService(t, repo, tiersRaw, clock),
		repo:  repo,
		clock: clock,
	}
}

func newService(t *testing.T, repo repository.Store, tiersRaw string, clock *fakeClock) *service.Service {
	t.Helper()
	tiers, err := config.ParseTiers(tiersRaw)
	require.NoError(t, err)
	levels, err := config.ParseLevels(config.DefaultRepLevels)
	require.NoError(t, err)

	return service.NewService(repo, service.Settings{
		Tiers:     tiers,
		RepLevels: levels,
		AccessFee: decimal.NewFromInt(5),
	}, utils.NopLogger(), service.WithClock(clock.Now))
}

func (e *env) user(t *testing.T, id int64, name string) *models.User {
	t.Helper()
	u, err := e.svc.GetOrCreateUser(context.Background(), id, name)
	require.NoError(t, err)
	return u
}

// paidUser creates a user and clears the access fee through the gate.
func (e *env) paidUser(t *testing.T, id int64, name string) *models.User {
	t.Helper()
	ctx := context.Background()
	e.user(t, id, name)
	sub, err := e.svc.SubmitFee(ctx, id, "0xfee-"+name)
	require.NoError(t, err)
	_, err = e.svc.ApproveFee(ctx, adminID, sub.ID)
	require.NoError(t, err)
	u, err := e.svc.GetUser(ctx, id)
	require.NoError(t, err)
	return u
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
