package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/astro-web3/codeveros-auth/internal/app/authflow"
	"github.com/astro-web3/codeveros-auth/internal/app/token"
	"github.com/astro-web3/codeveros-auth/internal/config"
	authflowdomain "github.com/astro-web3/codeveros-auth/internal/domain/authflow"
	tokendomain "github.com/astro-web3/codeveros-auth/internal/domain/token"
	"github.com/astro-web3/codeveros-auth/internal/infra/authsvc"
	"github.com/astro-web3/codeveros-auth/internal/infra/cache"
	"github.com/astro-web3/codeveros-auth/internal/infra/usersvc"
	"github.com/astro-web3/codeveros-auth/internal/transport/grpc"
	"github.com/astro-web3/codeveros-auth/internal/transport/http/handler"
	httpclient "github.com/astro-web3/codeveros-auth/pkg/http"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/metrics"
	"github.com/astro-web3/codeveros-auth/pkg/otel"
	"github.com/astro-web3/codeveros-auth/pkg/tracer"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
)


const metricsNamespace = "codeveros"

func NewAuthServer(cfg *config.Config) (*Server, error) {
	if err := initObservability(cfg); err != nil {
		return nil, err
	}

	codec, err := tokendomain.NewCodec(tokendomain.Config{
		Secret: cfg.Auth.Secret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	m := newMetrics(cfg)
	appService := token.NewService(codec, m)

	connectPath, connectHandler := grpc.NewRouter(grpc.NewTokenServiceHandler(appService))
	router := NewAuthRouter(cfg, m, AuthRoutes{
		Token:       handler.NewTokenHandler(appService),
		ConnectPath: connectPath,
		Connect:     connectHandler,
	})

	return newServer(cfg, router), nil
}

func NewGatewayServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := initObservability(cfg); err != nil {
		return nil, err
	}

	allowlist := upstream.NewAllowlist(cfg.Gateway.AllowedUpstreams...)
	logger.InfoContext(ctx, "upstream allow-list loaded", slog.Any("entries", allowlist.Entries()))

	caller := upstream.NewCaller(allowlist, httpclient.New(httpclient.Options{
		Timeout:    cfg.Gateway.Upstream.Timeout,
		RetryCount: cfg.Gateway.Upstream.RetryCount,
	}))

	var (
		revoked cache.RevocationList
		closers []func() error
	)
	if cfg.Gateway.Revocation.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		closers = append(closers, redisClient.Close)
		revoked = cache.NewRevocationList(redisClient, cfg.Auth.TokenTTL)
	}

	m := newMetrics(cfg)
	domainService := authflowdomain.NewService(
		authsvc.NewClient(caller, cfg.Gateway.AuthServiceURL),
		usersvc.NewClient(caller, cfg.Gateway.UserServiceURL),
		revoked,
	)
	gatewayHandler := handler.NewGatewayHandler(authflow.NewService(domainService, m))

	routes := GatewayRoutes{Gateway: gatewayHandler}

	proxyTransport := newProxyTransport(cfg)
	userProxy, err := handler.NewProxyHandler(ctx, cfg.Gateway.UserServiceURL, caller, cfg.Gateway.HeaderKeys.UserID, proxyTransport)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service proxy: %w", err)
	}
	routes.User = userProxy

	if cfg.Gateway.TrainingServiceURL != "" {
		trainingProxy, err := handler.NewProxyHandler(
			ctx, cfg.Gateway.TrainingServiceURL, caller, cfg.Gateway.HeaderKeys.UserID, proxyTransport,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create training service proxy: %w", err)
		}
		routes.Training = trainingProxy
	}

	if rl := cfg.Gateway.LoginRateLimit; rl.Enabled {
		routes.LoginLimiter = newIPRateLimiter(rl.RPS, rl.Burst).middleware()
	}

	srv := newServer(cfg, NewGatewayRouter(cfg, m, routes))
	srv.closers = closers
	return srv, nil
}

func initObservability(cfg *config.Config) error {
	logger.InitLogger(logger.Options{
		Level:     cfg.Observability.LogLevel,
		Format:    cfg.Observability.Format,
		AddSource: cfg.Observability.LogSource,
		Service:   serviceName(cfg),
	})

	otelCfg := otel.DefaultConfig(serviceName(cfg))
	otelCfg.EndpointURL = cfg.Observability.TracingEndpointURL
	otelCfg.Enabled = cfg.Observability.TraceEnabled
	otelCfg.Environment = os.Getenv("APP_ENV")
	if err := tracer.InitTracer(otelCfg); err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return nil
}

func newMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	return metrics.New(metricsNamespace)
}

func newProxyTransport(cfg *config.Config) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = cfg.Gateway.Upstream.Timeout
	return t
}
