package token

import "errors"

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidConfig  = errors.New("invalid codec configuration")
)
