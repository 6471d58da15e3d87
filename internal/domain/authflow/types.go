package authflow

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Claims is the decoded token payload. Gateway-issued tokens carry the user id under "id".
type Claims map[string]any

// User is the record returned by the user service, passed through untouched.
type User map[string]any

type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ID reads "id", falling back to "_id" for Mongo-backed user services.
func (u User) ID() (string, bool) {
	return idFrom(u)
}

// UserID reads the user id the gateway embedded at sign time.
func (c Claims) UserID() (string, bool) {
	return idFrom(c)
}

func idFrom(m map[string]any) (string, bool) {
	for _, key := range []string{"id", "_id"} {
		if id, ok := idString(m[key]); ok {
			return id, true
		}
	}
	return "", false
}

func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	default:
		return "", false
	}
}

type claimsKey struct{}

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(Claims)
	return claims, ok && claims != nil
}
