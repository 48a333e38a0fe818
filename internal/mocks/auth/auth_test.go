package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/console-api/internal/domain/auth"
	apperrors "github.com/target/console-api/internal/errors"
)

func TestTokenResolver(t *testing.T) {
	admin := domainauth.Actor{UserID: "a", Role: domainauth.RoleAdmin}
	r := NewTokenResolver().With("admin-token", admin)

	got, err := r.Resolve(context.Background(), "admin-token")
	require.NoError(t, err)
	assert.Equal(t, admin, got)

	_, err = r.Resolve(context.Background(), "nope")
	assert.True(t, apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized)
	assert.Equal(t, 2, r.Calls())
}
