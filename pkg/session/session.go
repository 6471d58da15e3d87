// Package session is a Go client for the gateway's /auth endpoints. It keeps the bearer token
// and the logged-in user between calls, the way the browser client does.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"sync"

	httpclient "github.com/astro-web3/codeveros-auth/pkg/http"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
	"github.com/go-resty/resty/v2"
)

var ErrUnexpectedStatus = errors.New("unexpected status from gateway")

type User map[string]any

// ID reads "_id", then "id". Numeric ids are rendered without exponent or trailing zeros.
func (u User) ID() string {
	for _, key := range []string{"_id", "id"} {
		switch id := u[key].(type) {
		case string:
			if id = strings.TrimSpace(id); id != "" {
				return id
			}
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		case json.Number:
			return id.String()
		case int:
			return strconv.Itoa(id)
		case int64:
			return strconv.FormatInt(id, 10)
		}
	}
	return ""
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Option func(*Session)

func WithStore(store Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

func WithHTTPClient(client *httpclient.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

// Session is safe for concurrent use.
type Session struct {
	gatewayURL string
	endpoint   string
	client     *httpclient.Client
	caller     *upstream.Caller
	store      Store

	mu   sync.RWMutex
	user User
}

func New(gatewayURL string, opts ...Option) *Session {
	gatewayURL = strings.TrimSuffix(gatewayURL, "/")
	s := &Session{
		gatewayURL: gatewayURL,
		endpoint:   gatewayURL + "/auth",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.client == nil {
		s.client = httpclient.New(httpclient.Options{})
	}

	s.caller = upstream.NewCaller(upstream.NewAllowlist(
		s.endpoint+"/login",
		s.endpoint+"/register",
		s.endpoint+"/logout",
		s.endpoint+"/loggedin",
	), s.client)
	return s
}

func (s *Session) Token() string {
	return s.store.Token()
}

// User returns a copy of the cached user, or nil.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.user)
}

func (s *Session) Login(ctx context.Context, username, password string) (bool, error) {
	s.store.Clear()
	return s.authenticate(ctx, s.endpoint+"/login", map[string]string{
		"username": username,
		"password": password,
	})
}

func (s *Session) Register(ctx context.Context, registration map[string]any) (bool, error) {
	return s.authenticate(ctx, s.endpoint+"/register", registration)
}

func (s *Session) authenticate(ctx context.Context, url string, body any) (bool, error) {
	var out loginResponse
	resp, err := s.caller.Post(ctx, url,
		httpclient.WithBody(body),
		httpclient.WithResult(&out),
	)
	if err != nil {
		return false, err
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	s.store.SetToken(out.Token)
	s.setUser(out.User)
	return out.Token != "", nil
}

// Logout forgets the local session before telling the gateway, so it always ends logged out.
func (s *Session) Logout(ctx context.Context) error {
	token := s.store.Token()
	s.clear()

	opts := []httpclient.RequestOption{httpclient.WithBody(map[string]any{})}
	if token != "" {
		opts = append(opts, httpclient.WithAuthToken(token))
	}
	resp, err := s.caller.Post(ctx, s.endpoint+"/logout", opts...)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
	}
	return nil
}

func (s *Session) IsLoggedIn(ctx context.Context) bool {
	token := s.store.Token()
	if token == "" {
		return false
	}
	if s.User().ID() != "" {
		return true
	}

	var user User
	resp, err := s.caller.Get(ctx, s.endpoint+"/loggedin",
		httpclient.WithAuthToken(token),
		httpclient.WithResult(&user),
	)
	if err == nil && resp.StatusCode() == http.StatusOK && user.ID() != "" {
		s.setUser(user)
		return true
	}
	if err != nil {
		logger.DebugContext(ctx, "loggedin check failed", logger.Error(err))
	}

	s.clear()
	return false
}

// AuthorizedRequest calls a gateway API path with the session's bearer token.
func (s *Session) AuthorizedRequest(
	ctx context.Context,
	method, path string,
	opts ...httpclient.RequestOption,
) (*resty.Response, error) {
	if token := s.store.Token(); token != "" {
		opts = append(opts, httpclient.WithAuthToken(token))
	}
	return s.client.Request(ctx, method, s.gatewayURL+"/"+strings.TrimPrefix(path, "/"), opts...)
}

func (s *Session) setUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func (s *Session) clear() {
	s.store.Clear()
	s.setUser(nil)
}
