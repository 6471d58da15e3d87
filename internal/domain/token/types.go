package token

import "time"

// Claims is the caller-supplied payload embedded in a token. Any JSON object is accepted.
type Claims map[string]any

type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}
