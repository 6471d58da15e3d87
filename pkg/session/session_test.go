package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/astro-web3/codeveros-auth/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu          sync.Mutex
	loggedInOK  bool
	logoutAuth  string
	loggedInHit int
	apiAuth     string
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid username or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-1","user":{"_id":"u1","username":"jdoe"}}`))
	case "/auth/register":
		_, _ = w.Write([]byte(`{"token":"tok-2","user":{"_id":"u2","username":"new"}}`))
	case "/auth/logout":
		g.logoutAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	case "/auth/loggedin":
		g.loggedInHit++
		if !g.loggedInOK || r.Header.Get("Authorization") == "" {
			w.Header().Del("Content-Type")
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`{"_id":"u1","username":"jdoe"}`))
	case "/api/training":
		g.apiAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (g *fakeGateway) seen() (logoutAuth string, loggedInHit int, apiAuth string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.logoutAuth, g.loggedInHit, g.apiAuth
}

func newSession(t *testing.T, g *fakeGateway, opts ...session.Option) *session.Session {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return session.New(srv.URL+"/", opts...)
}

func TestSession_LoginAndLogout(t *testing.T) {
	g := &fakeGateway{}
	s := newSession(t, g)
	ctx := context.Background()

	ok, err := s.Login(ctx, "jdoe", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", s.Token())
	assert.Equal(t, "u1", s.User().ID())
	assert.True(t, s.IsLoggedIn(ctx))
	_, hits, _ := g.seen()
	assert.Zero(t, hits)

	require.NoError(t, s.Logout(ctx))
	logoutAuth, _, _ := g.seen()
	assert.Equal(t, "Bearer tok-1", logoutAuth)
	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
	assert.False(t, s.IsLoggedIn(ctx))
}

func TestSession_FailedLoginClearsPreviousToken(t *testing.T) {
	store := session.NewMemoryStore()
	store.SetToken("stale")
	s := newSession(t, &fakeGateway{}, session.WithStore(store))

	ok, err := s.Login(context.Background(), "jdoe", "wrong")
	require.ErrorIs(t, err, session.ErrUnexpectedStatus)
	assert.False(t, ok)
	assert.Empty(t, store.Token())
}

func TestSession_Register(t *testing.T) {
	s := newSession(t, &fakeGateway{})

	ok, err := s.Register(context.Background(), map[string]any{"username": "new"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", s.Token())
	assert.Equal(t, session.User{"_id": "u2", "username": "new"}, s.User())
}

func TestSession_IsLoggedInAsksGatewayWithoutCachedUser(t *testing.T) {
	store := session.NewMemoryStore()
	store.SetToken("restored")

	g := &fakeGateway{loggedInOK: true}
	s := newSession(t, g, session.WithStore(store))
	assert.True(t, s.IsLoggedIn(context.Background()))
	assert.Equal(t, "u1", s.User().ID())
	_, hits, _ := g.seen()
	assert.Equal(t, 1, hits)
}

func TestSession_IsLoggedInClearsStateWhenAnonymous(t *testing.T) {
	store := session.NewMemoryStore()
	store.SetToken("expired")

	s := newSession(t, &fakeGateway{}, session.WithStore(store))
	assert.False(t, s.IsLoggedIn(context.Background()))
	assert.Empty(t, store.Token())
}

func TestSession_LogoutClearsStateEvenWhenGatewayIsDown(t *testing.T) {
	g := &fakeGateway{}
	srv := httptest.NewServer(g)
	s := session.New(srv.URL)

	_, err := s.Login(context.Background(), "jdoe", "secret")
	require.NoError(t, err)
	srv.Close()

	require.Error(t, s.Logout(context.Background()))
	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
}

func TestSession_AuthorizedRequest(t *testing.T) {
	g := &fakeGateway{}
	s := newSession(t, g)

	_, err := s.Login(context.Background(), "jdoe", "secret")
	require.NoError(t, err)

	resp, err := s.AuthorizedRequest(context.Background(), http.MethodGet, "/api/training")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	_, _, apiAuth := g.seen()
	assert.Equal(t, "Bearer tok-1", apiAuth)
}

func TestUser_ID(t *testing.T) {
	tests := map[string]struct {
		user session.User
		want string
	}{
		"mongo id":         {session.User{"_id": "64f1"}, "64f1"},
		"plain id":         {session.User{"id": "u1"}, "u1"},
		"_id wins":         {session.User{"_id": "a", "id": "b"}, "a"},
		"numeric id":       {session.User{"id": float64(42)}, "42"},
		"json number":      {session.User{"id": json.Number("7")}, "7"},
		"int id":           {session.User{"id": 9}, "9"},
		"blank falls back": {session.User{"_id": " ", "id": "u2"}, "u2"},
		"no id":            {session.User{"username": "jdoe"}, ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.ID())
		})
	}
}
