package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/certcheck-api/internal/domain"
)

func TestAuthServiceOrganizerAccounts(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newTestRepos(t).users)

	created, err := svc.Signup(ctx, domain.User{Email: " Ada@Example.com ", Password: "abcd1234", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.NotEqual(t, "abcd1234", created.Password)

	_, err = svc.Signup(ctx, domain.User{Email: "ADA@example.com", Password: "other123", Name: "Ada again"})
	assert.ErrorIs(t, err, ErrUserEmailExists)

	organizer, err := svc.Login(ctx, "ADA@EXAMPLE.COM", "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, created.ID, organizer.ID)

	_, err = svc.Login(ctx, "ada@example.com", "wrong-pass1")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = svc.Login(ctx, "grace@example.com", "abcd1234")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
