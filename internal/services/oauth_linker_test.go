package services

import (
	"context"
	"testing"

	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_LinksExistingEmailAndForcesVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	local, _, err := f.identities.Register(ctx, "bob@example.com", models.RoleBrand, "Bob")
	require.NoError(t, err)
	require.False(t, local.IsVerified)

	linked, err := f.linker.Resolve(ctx, &ProviderProfile{
		ProviderID: "google-123",
		Email:      "Bob@Example.com",
		Name:       "Robert",
		AvatarURL:  "https://lh3.example.com/bob.png",
	})
	require.NoError(t, err)

	assert.Equal(t, local.ID, linked.ID)
	require.NotNil(t, linked.GoogleID)
	assert.Equal(t, "google-123", *linked.GoogleID)
	assert.True(t, linked.IsVerified)
	assert.NotNil(t, linked.VerifiedAt)
	assert.Equal(t, models.RoleBrand, linked.UserType)
	assert.Equal(t, "Bob", linked.Name)

	var count int64
	require.NoError(t, f.db.Model(&models.Identity{}).Where("email = ?", "bob@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResolve_ReturnsAlreadyLinkedIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile := &ProviderProfile{ProviderID: "g-1", Email: "carol@example.com", Name: "Carol"}
	first, err := f.linker.Resolve(ctx, profile)
	require.NoError(t, err)

	again, err := f.linker.Resolve(ctx, &ProviderProfile{
		ProviderID: "g-1",
		Email:      "carol@example.com",
		Name:       "Someone Else",
		AvatarURL:  "https://lh3.example.com/new.png",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Carol", again.Name)

	stored, err := f.identities.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://lh3.example.com/new.png", stored.ProfilePicture)
}

func TestResolve_CreatesUnverifiedInfluencer(t *testing.T) {
	f := newFixture(t)

	identity, err := f.linker.Resolve(context.Background(), &ProviderProfile{
		ProviderID: "g-new",
		Email:      "dana@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleInfluencer, identity.UserType)
	assert.False(t, identity.IsVerified)
	assert.Equal(t, "dana", identity.Name)
	assert.True(t, identity.IsGoogleLinked())
	assert.False(t, identity.RequiresPassword())
}

func TestResolve_RejectsIncompleteProfile(t *testing.T) {
	f := newFixture(t)

	_, err := f.linker.Resolve(context.Background(), &ProviderProfile{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.linker.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
