package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-shop-admin/internal/mail"
	"go-shop-admin/internal/model"
	"go-shop-admin/internal/repository/memory"
	"go-shop-admin/pkg/apierror"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store    *memory.Store
	tokens   *TokenService
	resolver *PermissionResolver
	mailer   *mockMailer
	clock    *clock
	auth     *AuthService
	roles    *RoleService
	perms    *PermissionService
}

const fixtureCode = "123456"

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, Bootstrap(ctx, store, store, store, BootstrapConfig{DefaultRole: "customer", BcryptCost: 4}))

	c := &clock{now: time.Now().UTC()}
	tokens := newTestTokens(t)
	resolver := NewPermissionResolver(store)
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()

	return &fixture{
		store:    store,
		tokens:   tokens,
		resolver: resolver,
		mailer:   mailer,
		clock:    c,
		auth: NewAuthService(store, store, tokens, resolver, mailer, nil,
			AuthConfig{BcryptCost: 4, CodeTTL: 5 * time.Minute, DefaultRole: "customer"},
			WithAuthClock(c.Now),
			WithCodeGenerator(func() (string, error) { return fixtureCode, nil }),
		),
		roles: NewRoleService(store, store, nil, nil),
		perms: NewPermissionService(store, nil, nil),
	}
}

func (f *fixture) register(t *testing.T, handle string, email string) model.User {
	t.Helper()

	result, err := f.auth.Register(context.Background(), model.RegisterRequest{Handle: handle, Email: email, Password: "p@ss1234"})
	require.NoError(t, err)
	return result.User
}

func (f *fixture) permissionID(t *testing.T, key string) string {
	t.Helper()

	p, err := f.store.FindPermissionByKey(context.Background(), key)
	require.NoError(t, err)
	return p.ID
}

func requireCode(t *testing.T, err error, code string) *apierror.APIError {
	t.Helper()

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected an APIError, got %v", err)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}
