package usersvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	httpclient "github.com/astro-web3/codeveros-auth/pkg/http"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status from user service")
	ErrEmptyUser        = errors.New("user service returned no user")
)

const userPath = "/api/user"

// UserService is the user-record service. Users are opaque JSON objects.
type UserService interface {
	CreateUser(ctx context.Context, registration map[string]any) (map[string]any, error)
	Login(ctx context.Context, username, password string) (map[string]any, error)
	GetUser(ctx context.Context, id string) (map[string]any, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type client struct {
	caller  *upstream.Caller
	baseURL string
}

func NewClient(caller *upstream.Caller, baseURL string) UserService {
	return &client{
		caller:  caller,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Endpoints lists every URL this client calls, for building the gateway allow-list.
func Endpoints(baseURL string) []string {
	base := strings.TrimSuffix(baseURL, "/") + userPath
	return []string{base, base + "/login", base + "/" + upstream.IDPlaceholder}
}

func (c *client) CreateUser(ctx context.Context, registration map[string]any) (map[string]any, error) {
	return c.send(ctx, http.MethodPost, c.baseURL+userPath,
		httpclient.WithBody(registration),
	)
}

func (c *client) Login(ctx context.Context, username, password string) (map[string]any, error) {
	return c.send(ctx, http.MethodPost, c.baseURL+userPath+"/login",
		httpclient.WithBody(loginRequest{Username: username, Password: password}),
	)
}

func (c *client) GetUser(ctx context.Context, id string) (map[string]any, error) {
	return c.send(ctx, http.MethodGet, c.baseURL+userPath+"/"+url.PathEscape(id),
		httpclient.Retryable(),
	)
}

func (c *client) send(
	ctx context.Context,
	method, target string,
	opts ...httpclient.RequestOption,
) (map[string]any, error) {
	var user map[string]any
	opts = append(opts, httpclient.WithResult(&user))

	resp, err := c.caller.Do(ctx, method, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("user service request failed: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, target, resp.StatusCode())
	}
	if len(user) == 0 {
		return nil, ErrEmptyUser
	}
	return user, nil
}
