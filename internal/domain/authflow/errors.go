package authflow

import "errors"

var (
	ErrInvalidRequestBody  = errors.New("invalid request body")
	ErrMissingCredentials  = errors.New("missing username or password")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUnauthenticated     = errors.New("unable to verify token")
	ErrRegistrationFailed  = errors.New("failed to register")
	ErrTokenNotIssued      = errors.New("user created but token not issued")
	ErrTokenIssuanceFailed = errors.New("unable to sign token")
)
