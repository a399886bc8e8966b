package service_test

import (
	"context"
	"testing"

	"github.com/degencred/credbot/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.svc.AddAdmin(ctx, aliceID, bobID), errs.ErrUnauthorized)

	require.NoError(t, e.svc.AddAdmin(ctx, adminID, aliceID))
	require.NoError(t, e.svc.AddAdmin(ctx, adminID, aliceID))

	ok, err := e.svc.IsAdmin(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, ok)

	admins, err := e.svc.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{aliceID, adminID}, admins)

	require.NoError(t, e.svc.AddAdmin(ctx, aliceID, bobID))
}
