package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Range(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestOTP_ValidateConsumesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity, _, err := f.identities.Register(ctx, "otp@example.com", models.RoleBrand, "")
	require.NoError(t, err)

	code, err := f.otp.Issue(ctx, identity.ID)
	require.NoError(t, err)

	require.NoError(t, f.otp.Validate(ctx, identity.ID, code))

	err = f.otp.Validate(ctx, identity.ID, code)
	assert.ErrorIs(t, err, ErrOTPNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOTP_ExpiredEvenWhenCorrect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity, code, err := f.identities.Register(ctx, "late@example.com", models.RoleInfluencer, "")
	require.NoError(t, err)

	f.clock.Advance(10*time.Minute + time.Second)

	err = f.otp.Validate(ctx, identity.ID, code)
	assert.ErrorIs(t, err, ErrOTPExpired)
	assert.ErrorIs(t, err, ErrExpired)

	// Still expired on retry; never silently extended.
	assert.ErrorIs(t, f.otp.Validate(ctx, identity.ID, code), ErrOTPExpired)
}

func TestOTP_ValidAtWindowEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity, code, err := f.identities.Register(ctx, "edge@example.com", models.RoleInfluencer, "")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	assert.NoError(t, f.otp.Validate(ctx, identity.ID, code))
}

func TestOTP_MismatchKeepsChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity, code, err := f.identities.Register(ctx, "typo@example.com", models.RoleInfluencer, "")
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = f.otp.Validate(ctx, identity.ID, wrong)
	assert.ErrorIs(t, err, ErrOTPMismatch)
	assert.ErrorIs(t, err, ErrMismatch)

	assert.NoError(t, f.otp.Validate(ctx, identity.ID, code))
}

func TestOTP_ReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity, first, err := f.identities.Register(ctx, "again@example.com", models.RoleInfluencer, "")
	require.NoError(t, err)

	var second string
	for {
		second, err = f.otp.Issue(ctx, identity.ID)
		require.NoError(t, err)
		if second != first {
			break
		}
	}

	assert.ErrorIs(t, f.otp.Validate(ctx, identity.ID, first), ErrOTPMismatch)
	assert.NoError(t, f.otp.Validate(ctx, identity.ID, second))
}

func TestOTP_UnknownIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.otp.Issue(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	assert.ErrorIs(t, f.otp.Validate(ctx, uuid.New(), "123456"), ErrIdentityNotFound)
}

func TestValidationResult(t *testing.T) {
	assert.Equal(t, "success", validationResult(nil))
	assert.Equal(t, "expired", validationResult(ErrOTPExpired))
	assert.Equal(t, "mismatch", validationResult(ErrOTPMismatch))
	assert.Equal(t, "not_found", validationResult(ErrOTPNotFound))
	assert.Equal(t, "error", validationResult(assert.AnError))
}
