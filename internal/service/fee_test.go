package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/degencred/credbot/internal/errs"
	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateUserIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := e.user(t, aliceID, "alice")
	assert.Equal(t, 1, first.Level)
	assert.False(t, first.AccessFeePaid)
	assert.Nil(t, first.AccessFeePaidAt)
	assert.True(t, first.JoinedAt.Equal(t0))

	e.clock.Advance(time.Hour)
	second, err := e.svc.GetOrCreateUser(ctx, aliceID, "alice_renamed")
	require.NoError(t, err)
	assert.Equal(t, "alice_renamed", second.Username)
	assert.True(t, second.JoinedAt.Equal(t0))
	assert.True(t, second.LastActiveAt.Equal(t0.Add(time.Hour)))
}

func TestFeeGateFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, aliceID, "alice")

	gated, err := e.svc.IsGated(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, gated)

	sub, err := e.svc.SubmitFee(ctx, aliceID, "  0xabc  ")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPending, sub.Status)
	assert.Equal(t, "0xabc", sub.TxReference)

	pending, err := e.svc.PendingFeeSubmissions(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, sub.ID, pending[0].ID)

	_, err = e.svc.SubmitFee(ctx, aliceID, "0xabc")
	assert.ErrorIs(t, err, errs.ErrDuplicateSubmission)

	_, err = e.svc.ApproveFee(ctx, bobID, sub.ID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	e.clock.Advance(time.Minute)
	approved, err := e.svc.ApproveFee(ctx, adminID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusApproved, approved.Status)

	gated, err = e.svc.IsGated(ctx, aliceID)
	require.NoError(t, err)
	assert.False(t, gated)

	user, err := e.svc.GetUser(ctx, aliceID)
	require.NoError(t, err)
	require.NotNil(t, user.AccessFeePaidAt)
	assert.True(t, user.AccessFeePaidAt.Equal(t0.Add(time.Minute)))

	_, err = e.svc.SubmitFee(ctx, aliceID, "0xother")
	assert.ErrorIs(t, err, errs.ErrAlreadyPaid)
}

func TestApproveFeeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, aliceID, "alice")

	sub, err := e.svc.SubmitFee(ctx, aliceID, "0xabc")
	require.NoError(t, err)
	_, err = e.svc.ApproveFee(ctx, adminID, sub.ID)
	require.NoError(t, err)
	before, err := e.svc.GetUser(ctx, aliceID)
	require.NoError(t, err)

	e.clock.Advance(24 * time.Hour)
	again, err := e.svc.ApproveFee(ctx, adminID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusApproved, again.Status)

	after, err := e.svc.GetUser(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, before.AccessFeePaidAt.Equal(*after.AccessFeePaidAt))
}

func TestRejectedFeeCanBeResubmitted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, aliceID, "alice")

	sub, err := e.svc.SubmitFee(ctx, aliceID, "0xabc")
	require.NoError(t, err)

	rejected, err := e.svc.RejectFee(ctx, adminID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusRejected, rejected.Status)

	_, err = e.svc.RejectFee(ctx, adminID, sub.ID)
	assert.NoError(t, err)

	_, err = e.svc.ApproveFee(ctx, adminID, sub.ID)
	assert.ErrorIs(t, err, errs.ErrNotPending)

	gated, err := e.svc.IsGated(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, gated)

	again, err := e.svc.SubmitFee(ctx, aliceID, "0xabc")
	require.NoError(t, err)
	assert.NotEqual(t, sub.ID, again.ID)
}

func TestFeeGateErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.SubmitFee(ctx, aliceID, "0xabc")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	e.user(t, aliceID, "alice")
	_, err = e.svc.SubmitFee(ctx, aliceID, "   ")
	assert.ErrorIs(t, err, errs.ErrInvalidReference)

	_, err = e.svc.ApproveFee(ctx, adminID, 999)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.svc.PendingFeeSubmissions(ctx, aliceID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	sub, err := e.svc.SubmitFee(ctx, aliceID, "0xabc")
	require.NoError(t, err)
	_, err = e.svc.ApproveFee(ctx, adminID, sub.ID)
	require.NoError(t, err)
	_, err = e.svc.RejectFee(ctx, adminID, sub.ID)
	assert.ErrorIs(t, err, errs.ErrNotPending)
}

func TestCorroboratePaymentNeverApproves(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, aliceID, "alice")
	sub, err := e.svc.SubmitFee(ctx, aliceID, "0xabc")
	require.NoError(t, err)

	user, subs, err := e.svc.CorroboratePayment(ctx, payments.Match{Username: "Alice", Amount: dec("5")})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, aliceID, user.UserID)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	gated, err := e.svc.IsGated(ctx, aliceID)
	require.NoError(t, err)
	assert.True(t, gated)

	user, subs, err = e.svc.CorroboratePayment(ctx, payments.Match{Username: "alice", Amount: dec("1")})
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Empty(t, subs)

	user, _, err = e.svc.CorroboratePayment(ctx, payments.Match{Username: "nobody", Amount: dec("5")})
	require.NoError(t, err)
	assert.Nil(t, user)
}
