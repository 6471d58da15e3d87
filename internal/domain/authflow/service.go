package authflow

import "context"

type Service interface {
	Register(ctx context.Context, registration map[string]any) (*Session, error)

	Login(ctx context.Context, username, password string) (*Session, error)

	// Logout never fails for the caller; revocation problems are only logged.
	Logout(ctx context.Context, authorizationHeader string)

	Authenticate(ctx context.Context, authorizationHeader string) (Claims, error)

	WhoAmI(ctx context.Context, claims Claims) (User, bool)
}
