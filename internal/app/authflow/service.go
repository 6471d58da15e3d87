package authflow

import (
	"context"
	"errors"

	"github.com/astro-web3/codeveros-auth/internal/domain/authflow"
	"github.com/astro-web3/codeveros-auth/pkg/metrics"
	"github.com/astro-web3/codeveros-auth/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Service interface {
	Register(ctx context.Context, registration map[string]any) (*authflow.Session, error)
	Login(ctx context.Context, username, password string) (*authflow.Session, error)
	Logout(ctx context.Context, authorizationHeader string)
	Authenticate(ctx context.Context, authorizationHeader string) (authflow.Claims, error)
	WhoAmI(ctx context.Context, claims authflow.Claims) (authflow.User, bool)
}

type service struct {
	domainService authflow.Service
	metrics       *metrics.Metrics
}

func NewService(domainService authflow.Service, m *metrics.Metrics) Service {
	return &service{
		domainService: domainService,
		metrics:       m,
	}
}

func (s *service) Register(ctx context.Context, registration map[string]any) (*authflow.Session, error) {
	ctx, span := tracer.Start(ctx, "app.authflow.Register")
	defer span.End()

	session, err := s.domainService.Register(ctx, registration)
	s.record(span, "register", err)
	if err != nil {
		return nil, err
	}
	setUserID(span, session.User)
	return session, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*authflow.Session, error) {
	ctx, span := tracer.Start(ctx, "app.authflow.Login")
	defer span.End()

	session, err := s.domainService.Login(ctx, username, password)
	s.record(span, "login", err)
	if err != nil {
		return nil, err
	}
	setUserID(span, session.User)
	return session, nil
}

func (s *service) Logout(ctx context.Context, authorizationHeader string) {
	ctx, span := tracer.Start(ctx, "app.authflow.Logout")
	defer span.End()

	s.domainService.Logout(ctx, authorizationHeader)
	s.record(span, "logout", nil)
}

func (s *service) Authenticate(ctx context.Context, authorizationHeader string) (authflow.Claims, error) {
	ctx, span := tracer.Start(ctx, "app.authflow.Authenticate")
	defer span.End()

	claims, err := s.domainService.Authenticate(ctx, authorizationHeader)
	s.record(span, "authenticate", err)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *service) WhoAmI(ctx context.Context, claims authflow.Claims) (authflow.User, bool) {
	ctx, span := tracer.Start(ctx, "app.authflow.WhoAmI")
	defer span.End()

	user, ok := s.domainService.WhoAmI(ctx, claims)
	span.SetAttributes(attribute.Bool("authflow.anonymous", !ok))
	if ok {
		s.metrics.ObserveAuthFlow("whoami", metrics.OutcomeSuccess)
		setUserID(span, user)
	} else {
		s.metrics.ObserveAuthFlow("whoami", "anonymous")
	}
	return user, ok
}

func (s *service) record(span trace.Span, operation string, err error) {
	result := Outcome(err)
	span.SetAttributes(attribute.String("authflow.outcome", result))
	if err != nil {
		span.RecordError(err)
	}
	s.metrics.ObserveAuthFlow(operation, result)
}

func setUserID(span trace.Span, user authflow.User) {
	if id, ok := user.ID(); ok {
		span.SetAttributes(attribute.String("user.id", id))
	}
}

// Outcome names the failure class of an auth-flow error for metrics and traces.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, authflow.ErrInvalidRequestBody):
		return "invalid_request"
	case errors.Is(err, authflow.ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, authflow.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, authflow.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, authflow.ErrRegistrationFailed):
		return "registration_failed"
	case errors.Is(err, authflow.ErrTokenNotIssued):
		return "token_not_issued"
	case errors.Is(err, authflow.ErrTokenIssuanceFailed):
		return "token_issuance_failed"
	default:
		return metrics.OutcomeFailure
	}
}
