package token

import (
	"context"

	tokendomain "github.com/astro-web3/codeveros-auth/internal/domain/token"
	"github.com/astro-web3/codeveros-auth/pkg/metrics"
	"github.com/astro-web3/codeveros-auth/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Service interface {
	Sign(ctx context.Context, payload any) (string, error)
	Verify(ctx context.Context, token string) (tokendomain.Claims, error)
}

type service struct {
	codec   *tokendomain.Codec
	metrics *metrics.Metrics
}

func NewService(codec *tokendomain.Codec, m *metrics.Metrics) Service {
	return &service{
		codec:   codec,
		metrics: m,
	}
}

func (s *service) Sign(ctx context.Context, payload any) (string, error) {
	_, span := tracer.Start(ctx, "app.token.Sign")
	defer span.End()

	signed, err := s.codec.Sign(payload)
	s.metrics.ObserveTokenOperation("sign", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return signed, nil
}

func (s *service) Verify(ctx context.Context, token string) (tokendomain.Claims, error) {
	_, span := tracer.Start(ctx, "app.token.Verify")
	defer span.End()

	claims, err := s.codec.Verify(token)
	s.metrics.ObserveTokenOperation("verify", err)
	span.SetAttributes(attribute.Bool("token.valid", err == nil))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return claims, nil
}
