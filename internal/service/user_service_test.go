package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/codearena-api/internal/dto"
)

func TestUserServiceProfile(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(env.users, nil, env.logger)
	ctx := context.Background()

	profile, err := svc.Profile(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, uint(5), profile.ID)
	require.Empty(t, profile.Username)

	_, err = svc.Profile(ctx, 0)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(env.users, validator.New(), env.logger)
	ctx := context.Background()

	handle := " alice "
	name := `<b>Alice</b> Liddell`
	profile, err := svc.UpdateProfile(ctx, 1, dto.UpdateProfileRequest{Username: &handle, DisplayName: &name})
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)
	require.Equal(t, "Alice Liddell", profile.DisplayName)

	taken := "alice"
	_, err = svc.UpdateProfile(ctx, 2, dto.UpdateProfileRequest{Username: &taken})
	require.ErrorIs(t, err, ErrUsernameTaken)

	invalid := "bad/handle"
	_, err = svc.UpdateProfile(ctx, 2, dto.UpdateProfileRequest{Username: &invalid})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	cleared := ""
	profile, err = svc.UpdateProfile(ctx, 1, dto.UpdateProfileRequest{Username: &cleared})
	require.NoError(t, err)
	require.Empty(t, profile.Username)
	require.Equal(t, "Alice Liddell", profile.DisplayName)

	profile, err = svc.UpdateProfile(ctx, 2, dto.UpdateProfileRequest{Username: &taken})
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)
}
