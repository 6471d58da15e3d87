package token_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/astro-web3/codeveros-auth/internal/app/token"
	tokendomain "github.com/astro-web3/codeveros-auth/internal/domain/token"
	"github.com/astro-web3/codeveros-auth/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, m *metrics.Metrics) token.Service {
	t.Helper()
	codec, err := tokendomain.NewCodec(tokendomain.Config{Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)
	return token.NewService(codec, m)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestService_SignVerifyRecordsOutcomes(t *testing.T) {
	m := metrics.New("codeveros")
	svc := newService(t, m)
	ctx := context.Background()

	signed, err := svc.Sign(ctx, map[string]any{"id": "u1"})
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, tokendomain.Claims{"id": "u1"}, claims)

	_, err = svc.Verify(ctx, signed+"x")
	require.ErrorIs(t, err, tokendomain.ErrInvalidToken)

	_, err = svc.Sign(ctx, "not an object")
	require.ErrorIs(t, err, tokendomain.ErrInvalidPayload)

	body := scrape(t, m)
	assert.Contains(t, body, `codeveros_token_operations_total{operation="sign",outcome="success"} 1`)
	assert.Contains(t, body, `codeveros_token_operations_total{operation="sign",outcome="failure"} 1`)
	assert.Contains(t, body, `codeveros_token_operations_total{operation="verify",outcome="success"} 1`)
	assert.Contains(t, body, `codeveros_token_operations_total{operation="verify",outcome="failure"} 1`)
}

func TestService_NilMetrics(t *testing.T) {
	svc := newService(t, nil)

	signed, err := svc.Sign(context.Background(), map[string]any{"role": "admin"})
	require.NoError(t, err)

	claims, err := svc.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims["role"])
}
