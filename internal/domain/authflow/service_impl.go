package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/astro-web3/codeveros-auth/internal/infra/authsvc"
	"github.com/astro-web3/codeveros-auth/internal/infra/cache"
	"github.com/astro-web3/codeveros-auth/internal/infra/usersvc"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
)

const bearerScheme = "Bearer"

type service struct {
	tokens  authsvc.TokenService
	users   usersvc.UserService
	revoked cache.RevocationList
}

// NewService builds the gateway flow. revoked may be nil, which disables logout revocation.
func NewService(tokens authsvc.TokenService, users usersvc.UserService, revoked cache.RevocationList) Service {
	return &service{
		tokens:  tokens,
		users:   users,
		revoked: revoked,
	}
}

func (s *service) Register(ctx context.Context, registration map[string]any) (*Session, error) {
	username, _ := registration["username"].(string)
	if strings.TrimSpace(username) == "" {
		return nil, ErrInvalidRequestBody
	}

	logger.InfoContext(ctx, "attempting to register user", slog.String("username", username))

	created, err := s.users.CreateUser(ctx, registration)
	if err != nil {
		logger.WarnContext(ctx, "failed to create user record",
			slog.String("username", username),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	user := User(created)
	id, ok := user.ID()
	if !ok {
		logger.WarnContext(ctx, "user service did not return the created user id", slog.String("username", username))
		return nil, fmt.Errorf("%w: created user has no id", ErrRegistrationFailed)
	}

	token, err := s.tokens.SignToken(ctx, map[string]any{"id": id})
	if err != nil {
		logger.ErrorContext(ctx, "user created but token signing failed",
			slog.String("user_id", id),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrTokenNotIssued, err)
	}

	logger.InfoContext(ctx, "registration completed", slog.String("user_id", id))
	return &Session{Token: token, User: user}, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	found, err := s.users.Login(ctx, username, password)
	if err != nil {
		attrs := []slog.Attr{slog.String("username", username), logger.Error(err)}
		if errors.Is(err, upstream.ErrDisallowedUpstream) {
			logger.ErrorContext(ctx, "login upstream is not allow-listed", attrs...)
		} else {
			logger.InfoContext(ctx, "login rejected by user service", attrs...)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	user := User(found)
	id, ok := user.ID()
	if !ok {
		logger.WarnContext(ctx, "user not returned with login", slog.String("username", username))
		return nil, fmt.Errorf("%w: user has no id", ErrInvalidCredentials)
	}

	token, err := s.tokens.SignToken(ctx, map[string]any{"id": id})
	if err != nil {
		logger.ErrorContext(ctx, "token signing failed on login",
			slog.String("user_id", id),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrTokenIssuanceFailed, err)
	}

	return &Session{Token: token, User: user}, nil
}

func (s *service) Logout(ctx context.Context, authorizationHeader string) {
	if s.revoked == nil {
		return
	}

	token, ok := bearerToken(authorizationHeader)
	if !ok {
		return
	}

	// only tokens we issued are worth remembering
	if _, err := s.tokens.VerifyToken(ctx, token); err != nil {
		logger.DebugContext(ctx, "logout with a token that does not verify", logger.Error(err))
		return
	}

	if err := s.revoked.Revoke(ctx, token); err != nil {
		logger.WarnContext(ctx, "failed to revoke token on logout", logger.Error(err))
	}
}

func (s *service) Authenticate(ctx context.Context, authorizationHeader string) (Claims, error) {
	token, ok := bearerToken(authorizationHeader)
	if !ok {
		return nil, ErrUnauthenticated
	}

	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, token)
		if err != nil {
			logger.ErrorContext(ctx, "revocation list unavailable, rejecting token", logger.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
		}
	}

	payload, err := s.tokens.VerifyToken(ctx, token)
	if err != nil {
		logger.DebugContext(ctx, "token verification failed", logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	return Claims(payload), nil
}

func (s *service) WhoAmI(ctx context.Context, claims Claims) (User, bool) {
	id, ok := claims.UserID()
	if !ok {
		return nil, false
	}

	found, err := s.users.GetUser(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "failed to retrieve user from token", slog.String("user_id", id), logger.Error(err))
		return nil, false
	}

	user := User(found)
	if _, ok := user.ID(); !ok {
		logger.WarnContext(ctx, "user service returned a user without id", slog.String("user_id", id))
		return nil, false
	}
	return user, true
}

func bearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != bearerScheme {
		return "", false
	}
	return fields[1], true
}
