package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

func googleProfile(email string) model.FederatedProfile {
	return model.FederatedProfile{
		Provider:      model.ProviderGoogle,
		ProviderID:    "g-123",
		Email:         email,
		DisplayName:   "Alice Example",
		EmailVerified: true,
	}
}

func TestFederatedLoginCreatesVerifiedPrincipal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	federated := NewFederatedService(f.store, f.store, f.tokens, nil, "customer")

	result, err := federated.Login(ctx, googleProfile("Alice@Example.com"))
	require.NoError(t, err)

	user := result.User
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.Handle)
	assert.Equal(t, "Alice Example", user.FullName)
	assert.True(t, user.Verified)
	assert.Equal(t, model.ProviderGoogle, user.Provider)
	assert.Equal(t, "g-123", user.ProviderID)
	assert.Empty(t, user.PasswordHash)
	assert.NotEmpty(t, user.RoleID)

	claims, err := f.tokens.Verify(result.Tokens.AccessToken, model.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = f.auth.Refresh(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err, "the refresh token is persisted like a local login")

	_, err = f.auth.Login(ctx, "alice@example.com", "g-123")
	requireCode(t, err, apierror.CodeInvalidCredentials)
}

func TestFederatedLoginAttachesToExistingEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	federated := NewFederatedService(f.store, f.store, f.tokens, nil, "customer")
	local := f.register(t, "alice", "alice@example.com")

	first, err := federated.Login(ctx, googleProfile("alice@example.com"))
	require.NoError(t, err)
	second, err := federated.Login(ctx, googleProfile("alice@example.com"))
	require.NoError(t, err)

	assert.Equal(t, local.ID, first.User.ID)
	assert.Equal(t, local.ID, second.User.ID)

	users, err := f.store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestFederatedLoginKeepsVerifiedPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	federated := NewFederatedService(f.store, f.store, f.tokens, nil, "customer")
	f.register(t, "alice", "alice@example.com")
	_, err := f.auth.VerifyEmail(ctx, "alice@example.com", fixtureCode)
	require.NoError(t, err)

	_, err = federated.Login(ctx, googleProfile("alice@example.com"))
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, "alice@example.com", "p@ss1234")
	require.NoError(t, err, "a confirmed local password keeps working")
}

func TestFederatedLoginClaimsPendingAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	federated := NewFederatedService(f.store, f.store, f.tokens, nil, "customer")
	f.register(t, "squatter", "victim@example.com")

	pending, err := f.auth.Login(ctx, "victim@example.com", "p@ss1234")
	require.NoError(t, err)

	result, err := federated.Login(ctx, googleProfile("victim@example.com"))
	require.NoError(t, err)
	assert.True(t, result.User.Verified, "a provider-verified email confirms the account")
	assert.Empty(t, result.User.PasswordHash)

	_, err = f.auth.Login(ctx, "victim@example.com", "p@ss1234")
	requireCode(t, err, apierror.CodeInvalidCredentials)

	_, err = f.auth.Refresh(ctx, pending.Tokens.RefreshToken)
	requireCode(t, err, apierror.CodeNotFound)

	_, err = f.auth.Refresh(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestFederatedLoginSuffixesTakenHandle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	federated := NewFederatedService(f.store, f.store, f.tokens, nil, "customer")
	f.register(t, "alice", "alice@other.com")

	result, err := federated.Login(ctx, googleProfile("alice@example.com"))
	require.NoError(t, err)

	assert.NotEqual(t, "alice", result.User.Handle)
	assert.Regexp(t, `^alice-[0-9a-f]{6}$`, result.User.Handle)
}

func TestFederatedLoginRejectsDisabledAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	federated := NewFederatedService(f.store, f.store, f.tokens, nil, "customer")
	user := f.register(t, "alice", "alice@example.com")

	user.IsActive = false
	require.NoError(t, f.store.UpdateUser(ctx, user))

	_, err := federated.Login(ctx, googleProfile("alice@example.com"))
	requireCode(t, err, apierror.CodeUnauthorized)
}

func TestFederatedLoginRequiresEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	federated := NewFederatedService(f.store, f.store, f.tokens, nil, "customer")

	_, err := federated.Login(context.Background(), model.FederatedProfile{Provider: model.ProviderFacebook, ProviderID: "fb-1"})
	requireCode(t, err, apierror.CodeInvalidInput)
}
