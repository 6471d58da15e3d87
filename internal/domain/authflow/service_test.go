package authflow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/astro-web3/codeveros-auth/internal/domain/authflow"
	"github.com/astro-web3/codeveros-auth/internal/domain/token"
	"github.com/astro-web3/codeveros-auth/internal/infra/authsvc"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codecTokenService answers like the auth service, backed by a real codec.
type codecTokenService struct {
	codec    *token.Codec
	signErr  error
	verified int
}

func (m *codecTokenService) SignToken(_ context.Context, payload map[string]any) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return m.codec.Sign(payload)
}

func (m *codecTokenService) VerifyToken(_ context.Context, tok string) (map[string]any, error) {
	m.verified++
	claims, err := m.codec.Verify(tok)
	if err != nil {
		return nil, authsvc.ErrTokenRejected
	}
	return claims, nil
}

type mockUserService struct {
	createFunc func(ctx context.Context, registration map[string]any) (map[string]any, error)
	loginFunc  func(ctx context.Context, username, password string) (map[string]any, error)
	getFunc    func(ctx context.Context, id string) (map[string]any, error)
}

func (m *mockUserService) CreateUser(ctx context.Context, registration map[string]any) (map[string]any, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, registration)
	}
	user := map[string]any{"_id": "u1"}
	for k, v := range registration {
		user[k] = v
	}
	return user, nil
}

func (m *mockUserService) Login(ctx context.Context, username, password string) (map[string]any, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, username, password)
	}
	if username == "jdoe" && password == "secret" {
		return map[string]any{"_id": "u1", "username": "jdoe"}, nil
	}
	return nil, errors.New("user service returned 401")
}

func (m *mockUserService) GetUser(ctx context.Context, id string) (map[string]any, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	if id == "u1" {
		return map[string]any{"_id": "u1", "username": "jdoe"}, nil
	}
	return nil, errors.New("not found")
}

type mockRevocationList struct {
	revoked map[string]bool
	err     error
}

func (m *mockRevocationList) Revoke(_ context.Context, tok string) error {
	if m.err != nil {
		return m.err
	}
	m.revoked[tok] = true
	return nil
}

func (m *mockRevocationList) IsRevoked(_ context.Context, tok string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.revoked[tok], nil
}

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Config{Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)
	return codec
}

func TestService_Register(t *testing.T) {
	tokens := &codecTokenService{codec: newCodec(t)}
	svc := authflow.NewService(tokens, &mockUserService{}, nil)

	session, err := svc.Register(context.Background(), map[string]any{"username": "jdoe", "email": "j@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", session.User["username"])
	assert.Equal(t, "j@example.com", session.User["email"])

	claims, err := tokens.codec.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, token.Claims{"id": "u1"}, claims)
}

func TestService_RegisterFailures(t *testing.T) {
	tests := []struct {
		name         string
		registration map[string]any
		users        *mockUserService
		signErr      error
		wantErr      error
	}{
		{
			name:         "missing username",
			registration: map[string]any{"email": "j@example.com"},
			users:        &mockUserService{},
			wantErr:      authflow.ErrInvalidRequestBody,
		},
		{
			name:         "non-string username",
			registration: map[string]any{"username": 12},
			users:        &mockUserService{},
			wantErr:      authflow.ErrInvalidRequestBody,
		},
		{
			name:         "user service failure",
			registration: map[string]any{"username": "jdoe"},
			users: &mockUserService{createFunc: func(context.Context, map[string]any) (map[string]any, error) {
				return nil, errors.New("409")
			}},
			wantErr: authflow.ErrRegistrationFailed,
		},
		{
			name:         "disallowed upstream",
			registration: map[string]any{"username": "jdoe"},
			users: &mockUserService{createFunc: func(context.Context, map[string]any) (map[string]any, error) {
				return nil, fmt.Errorf("user service request failed: %w", upstream.ErrDisallowedUpstream)
			}},
			wantErr: authflow.ErrRegistrationFailed,
		},
		{
			name:         "created user without id",
			registration: map[string]any{"username": "jdoe"},
			users: &mockUserService{createFunc: func(context.Context, map[string]any) (map[string]any, error) {
				return map[string]any{"username": "jdoe"}, nil
			}},
			wantErr: authflow.ErrRegistrationFailed,
		},
		{
			name:         "token not issued",
			registration: map[string]any{"username": "jdoe"},
			users:        &mockUserService{},
			signErr:      errors.New("auth service down"),
			wantErr:      authflow.ErrTokenNotIssued,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := authflow.NewService(&codecTokenService{codec: newCodec(t), signErr: tt.signErr}, tt.users, nil)

			session, err := svc.Register(context.Background(), tt.registration)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, session)
		})
	}
}

func TestService_Login(t *testing.T) {
	tokens := &codecTokenService{codec: newCodec(t)}
	svc := authflow.NewService(tokens, &mockUserService{}, nil)

	session, err := svc.Login(context.Background(), "jdoe", "secret")
	require.NoError(t, err)
	assert.Equal(t, authflow.User{"_id": "u1", "username": "jdoe"}, session.User)

	claims, err := tokens.codec.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, token.Claims{"id": "u1"}, claims)
}

func TestService_LoginFailures(t *testing.T) {
	outage := &mockUserService{loginFunc: func(context.Context, string, string) (map[string]any, error) {
		return nil, errors.New("connection refused")
	}}

	tests := []struct {
		name     string
		username string
		password string
		users    *mockUserService
		signErr  error
		wantErr  error
	}{
		{"missing username", "", "secret", &mockUserService{}, nil, authflow.ErrMissingCredentials},
		{"missing password", "jdoe", "", &mockUserService{}, nil, authflow.ErrMissingCredentials},
		{"wrong password", "jdoe", "nope", &mockUserService{}, nil, authflow.ErrInvalidCredentials},
		{"user service outage", "jdoe", "secret", outage, nil, authflow.ErrInvalidCredentials},
		{"user without id", "jdoe", "secret", &mockUserService{
			loginFunc: func(context.Context, string, string) (map[string]any, error) {
				return map[string]any{"username": "jdoe"}, nil
			},
		}, nil, authflow.ErrInvalidCredentials},
		{"disallowed upstream", "jdoe", "secret", &mockUserService{
			loginFunc: func(context.Context, string, string) (map[string]any, error) {
				return nil, upstream.ErrDisallowedUpstream
			},
		}, nil, authflow.ErrInvalidCredentials},
		{"signing failure", "jdoe", "secret", &mockUserService{}, errors.New("down"), authflow.ErrTokenIssuanceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := authflow.NewService(&codecTokenService{codec: newCodec(t), signErr: tt.signErr}, tt.users, nil)

			session, err := svc.Login(context.Background(), tt.username, tt.password)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, session)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	tokens := &codecTokenService{codec: newCodec(t)}
	svc := authflow.NewService(tokens, &mockUserService{}, nil)

	valid, err := tokens.codec.Sign(map[string]any{"id": "u1"})
	require.NoError(t, err)

	claims, err := svc.Authenticate(context.Background(), "Bearer "+valid)
	require.NoError(t, err)
	assert.Equal(t, authflow.Claims{"id": "u1"}, claims)

	for name, header := range map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic " + valid,
		"lowercase":      "bearer " + valid,
		"no token":       "Bearer",
		"blank token":    "Bearer   ",
		"invalid token":  "Bearer not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			claims, err := svc.Authenticate(context.Background(), header)
			require.ErrorIs(t, err, authflow.ErrUnauthenticated)
			assert.Nil(t, claims)
		})
	}
}

func TestService_LogoutRevokesToken(t *testing.T) {
	tokens := &codecTokenService{codec: newCodec(t)}
	revoked := &mockRevocationList{revoked: map[string]bool{}}
	svc := authflow.NewService(tokens, &mockUserService{}, revoked)

	tok, err := tokens.codec.Sign(map[string]any{"id": "u1"})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "Bearer "+tok)
	require.NoError(t, err)

	svc.Logout(context.Background(), "Bearer "+tok)
	assert.True(t, revoked.revoked[tok])

	_, err = svc.Authenticate(context.Background(), "Bearer "+tok)
	require.ErrorIs(t, err, authflow.ErrUnauthenticated)
}

func TestService_LogoutIgnoresUnverifiedTokens(t *testing.T) {
	revoked := &mockRevocationList{revoked: map[string]bool{}}
	svc := authflow.NewService(&codecTokenService{codec: newCodec(t)}, &mockUserService{}, revoked)

	svc.Logout(context.Background(), "Bearer forged")
	svc.Logout(context.Background(), "")
	assert.Empty(t, revoked.revoked)
}

func TestService_LogoutWithoutRevocationIsNoop(t *testing.T) {
	tokens := &codecTokenService{codec: newCodec(t)}
	svc := authflow.NewService(tokens, &mockUserService{}, nil)

	svc.Logout(context.Background(), "Bearer anything")
	assert.Zero(t, tokens.verified)
}

func TestService_AuthenticateFailsClosedWhenRevocationListErrors(t *testing.T) {
	tokens := &codecTokenService{codec: newCodec(t)}
	svc := authflow.NewService(tokens, &mockUserService{}, &mockRevocationList{err: errors.New("redis down")})

	tok, err := tokens.codec.Sign(map[string]any{"id": "u1"})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "Bearer "+tok)
	require.ErrorIs(t, err, authflow.ErrUnauthenticated)
}

func TestService_WhoAmI(t *testing.T) {
	svc := authflow.NewService(&codecTokenService{codec: newCodec(t)}, &mockUserService{}, nil)

	user, ok := svc.WhoAmI(context.Background(), authflow.Claims{"id": "u1"})
	require.True(t, ok)
	assert.Equal(t, "jdoe", user["username"])

	_, ok = svc.WhoAmI(context.Background(), nil)
	assert.False(t, ok)

	_, ok = svc.WhoAmI(context.Background(), authflow.Claims{"role": "admin"})
	assert.False(t, ok)

	_, ok = svc.WhoAmI(context.Background(), authflow.Claims{"id": "missing"})
	assert.False(t, ok)
}

func TestUser_ID(t *testing.T) {
	tests := []struct {
		user authflow.User
		want string
		ok   bool
	}{
		{authflow.User{"id": "a"}, "a", true},
		{authflow.User{"_id": "b"}, "b", true},
		{authflow.User{"id": "a", "_id": "b"}, "a", true},
		{authflow.User{"id": float64(42)}, "42", true},
		{authflow.User{"id": ""}, "", false},
		{authflow.User{"id": true}, "", false},
		{authflow.User{}, "", false},
	}

	for _, tt := range tests {
		got, ok := tt.user.ID()
		assert.Equal(t, tt.ok, ok, "%v", tt.user)
		assert.Equal(t, tt.want, got, "%v", tt.user)
	}
}

func TestClaimsContext(t *testing.T) {
	_, ok := authflow.ClaimsFromContext(context.Background())
	assert.False(t, ok)

	ctx := authflow.WithClaims(context.Background(), authflow.Claims{"id": "u1"})
	claims, ok := authflow.ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, authflow.Claims{"id": "u1"}, claims)
}
