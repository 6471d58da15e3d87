package authsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	httpclient "github.com/astro-web3/codeveros-auth/pkg/http"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status from auth service")
	ErrEmptyToken       = errors.New("auth service returned an empty token")
	ErrTokenRejected    = errors.New("token rejected by auth service")
)

const (
	signPath   = "/api/auth/signToken"
	verifyPath = "/api/auth/verifyToken"
)

type TokenService interface {
	SignToken(ctx context.Context, payload map[string]any) (string, error)
	// VerifyToken returns the decoded payload, or ErrTokenRejected when the service answers valid:false.
	VerifyToken(ctx context.Context, token string) (map[string]any, error)
}

type signRequest struct {
	Payload map[string]any `json:"payload"`
}

type signResponse struct {
	Token string `json:"token"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid   bool           `json:"valid"`
	Payload map[string]any `json:"payload,omitempty"`
}

type client struct {
	caller    *upstream.Caller
	signURL   string
	verifyURL string
}

func NewClient(caller *upstream.Caller, baseURL string) TokenService {
	return &client{
		caller:    caller,
		signURL:   SignURL(baseURL),
		verifyURL: VerifyURL(baseURL),
	}
}

func SignURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + signPath
}

func VerifyURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + verifyPath
}

// Endpoints lists every URL this client calls, for building the gateway allow-list.
func Endpoints(baseURL string) []string {
	return []string{SignURL(baseURL), VerifyURL(baseURL)}
}

func (c *client) SignToken(ctx context.Context, payload map[string]any) (string, error) {
	var out signResponse
	resp, err := c.caller.Post(ctx, c.signURL,
		httpclient.Retryable(),
		httpclient.WithBody(signRequest{Payload: payload}),
		httpclient.WithResult(&out),
	)
	if err != nil {
		return "", fmt.Errorf("sign token request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: sign token returned %d", ErrUnexpectedStatus, resp.StatusCode())
	}
	if out.Token == "" {
		return "", ErrEmptyToken
	}
	return out.Token, nil
}

func (c *client) VerifyToken(ctx context.Context, token string) (map[string]any, error) {
	var out verifyResponse
	resp, err := c.caller.Post(ctx, c.verifyURL,
		httpclient.Retryable(),
		httpclient.WithBody(verifyRequest{Token: token}),
		httpclient.WithResult(&out),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: verify token returned %d", ErrUnexpectedStatus, resp.StatusCode())
	}
	if !out.Valid {
		return nil, ErrTokenRejected
	}
	if out.Payload == nil {
		out.Payload = map[string]any{}
	}
	return out.Payload, nil
}
