package usersvc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/astro-web3/codeveros-auth/internal/infra/usersvc"
	httpclient "github.com/astro-web3/codeveros-auth/pkg/http"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserService struct {
	hits         atomic.Int32
	createStatus int
	getStatus    int
}

func (f *fakeUserService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/user":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.createStatus != 0 {
			w.WriteHeader(f.createStatus)
			return
		}
		body["_id"] = "u1"
		_ = json.NewEncoder(w).Encode(body)
	case r.Method == http.MethodPost && r.URL.Path == "/api/user/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "jdoe" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"_id":"u1","username":"jdoe"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/user/u1":
		if f.getStatus != 0 {
			w.WriteHeader(f.getStatus)
			return
		}
		_, _ = w.Write([]byte(`{"_id":"u1","username":"jdoe"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newClient(t *testing.T, fake *fakeUserService) usersvc.UserService {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	caller := upstream.NewCaller(
		upstream.NewAllowlist(usersvc.Endpoints(srv.URL)...),
		httpclient.New(httpclient.Options{RetryCount: 1, RetryWaitTime: time.Millisecond}),
	)
	return usersvc.NewClient(caller, srv.URL)
}

func TestClient_CreateUser(t *testing.T) {
	fake := &fakeUserService{}
	client := newClient(t, fake)

	user, err := client.CreateUser(context.Background(), map[string]any{"username": "jdoe"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user["_id"])
	assert.Equal(t, "jdoe", user["username"])
}

func TestClient_CreateUserIsNotRetried(t *testing.T) {
	fake := &fakeUserService{createStatus: http.StatusServiceUnavailable}
	client := newClient(t, fake)

	_, err := client.CreateUser(context.Background(), map[string]any{"username": "jdoe"})
	require.ErrorIs(t, err, usersvc.ErrUnexpectedStatus)
	assert.Equal(t, int32(1), fake.hits.Load())
}

func TestClient_Login(t *testing.T) {
	client := newClient(t, &fakeUserService{})

	user, err := client.Login(context.Background(), "jdoe", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", user["_id"])

	_, err = client.Login(context.Background(), "jdoe", "wrong")
	require.ErrorIs(t, err, usersvc.ErrUnexpectedStatus)
}

func TestClient_GetUser(t *testing.T) {
	client := newClient(t, &fakeUserService{})

	user, err := client.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", user["username"])
}

func TestClient_GetUserIsRetried(t *testing.T) {
	fake := &fakeUserService{getStatus: http.StatusBadGateway}
	client := newClient(t, fake)

	_, err := client.GetUser(context.Background(), "u1")
	require.ErrorIs(t, err, usersvc.ErrUnexpectedStatus)
	assert.Equal(t, int32(2), fake.hits.Load())
}

func TestClient_GetUserRejectsMultiSegmentID(t *testing.T) {
	fake := &fakeUserService{}
	client := newClient(t, fake)

	_, err := client.GetUser(context.Background(), "u1/../../admin")
	require.Error(t, err)
	assert.Equal(t, int32(0), fake.hits.Load())
}
