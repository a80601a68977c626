package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, "alice@example.com"))

	ok, err := s.UserExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UserExists(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, "alice@example.com"))
	err := s.RegisterUser(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, "bob@example.com"))
	require.NoError(t, s.RegisterUser(ctx, "alice@example.com"))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, users)
}
