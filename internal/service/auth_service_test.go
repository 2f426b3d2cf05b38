package service

import (
	"context"
	"testing"
	"time"

	"wodgachi/rewards-api/internal/domain"
	"wodgachi/rewards-api/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	store := memory.NewStore()
	auth := NewAuthService(store.Users(), "secret", time.Hour)
	ctx := context.Background()

	user, err := auth.Register(ctx, "Alice", " Alice@Example.com ", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Empty(t, user.PasswordHash)

	_, err = auth.Register(ctx, "Alice", "alice@example.com", "password123", "")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	_, err = auth.Register(ctx, "Bob", "not-an-email", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Register(ctx, "Bob", "bob@example.com", "short", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = auth.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	token, logged, err := auth.Login(ctx, "ALICE@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)

	_, err = auth.ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
	other := NewAuthService(store.Users(), "other-secret", time.Hour)
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	auth := NewAuthService(store.Users(), "secret", time.Hour)
	ctx := context.Background()

	first, err := auth.EnsureAdmin(ctx, "Admin", "admin@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, first.IsAdmin())

	second, err := auth.EnsureAdmin(ctx, "Admin", "admin@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := auth.GetUser(ctx, first.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", got.Email)
	_, err = auth.GetUser(ctx, "zzz")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
