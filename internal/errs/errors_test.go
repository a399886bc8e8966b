package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatchingByCode(t *testing.T) {
	err := ErrAmountExceedsLimit.Withf("max for L1 is %s", "100")

	assert.True(t, errors.Is(err, ErrAmountExceedsLimit))
	assert.False(t, errors.Is(err, ErrUnknownTier))
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Equal(t, "max for L1 is 100", err.Message)
	assert.Equal(t, "amount exceeds the tier limit", ErrAmountExceedsLimit.Message)
}

func TestWrappedTypedError(t *testing.T) {
	err := fmt.Errorf("request loan: %w", ErrLoanInFlight)

	assert.True(t, errors.Is(err, ErrLoanInFlight))
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, CodeLoanInFlight, CodeOf(err))
	assert.False(t, IsRetryable(err))
}

func TestStorageWrapping(t *testing.T) {
	err := Storage(context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsRetryable(err))

	assert.Same(t, ErrNotFound, Storage(ErrNotFound))
	assert.Nil(t, Storage(nil))
}

func TestKinds(t *testing.T) {
	cases := map[*Error]Kind{
		ErrUnauthorized:        KindUnauthorized,
		ErrAccessFeeRequired:   KindAccessFeeRequired,
		ErrNotFound:            KindNotFound,
		ErrNotPending:          KindInvalidState,
		ErrNotApproved:         KindInvalidState,
		ErrAlreadyPaid:         KindInvalidState,
		ErrDuplicateSubmission: KindInvalidState,
		ErrSelfGrant:           KindInvalidInput,
		ErrInvalidAmount:       KindInvalidInput,
		ErrTierLocked:          KindInvalidInput,
	}
	for e, kind := range cases {
		assert.Equal(t, kind, e.Kind, e.Code)
	}
	assert.Equal(t, KindStorageUnavailable, KindOf(errors.New("connection refused")))
}
