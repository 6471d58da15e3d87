package http

import (
	"context"
	"net/http"

	"github.com/astro-web3/codeveros-auth/internal/config"
	"github.com/astro-web3/codeveros-auth/internal/transport/http/handler"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type AuthRoutes struct {
	Token       *handler.TokenHandler
	ConnectPath string
	Connect     http.Handler
}

type GatewayRoutes struct {
	Gateway  *handler.GatewayHandler
	User     *handler.ProxyHandler
	Training *handler.ProxyHandler
	// LoginLimiter is nil when login rate limiting is disabled.
	LoginLimiter gin.HandlerFunc
}

func NewAuthRouter(cfg *config.Config, m *metrics.Metrics, routes AuthRoutes) *gin.Engine {
	router := newEngine(cfg, m)

	api := router.Group("/api/auth")
	api.POST("/signToken", routes.Token.SignToken)
	api.POST("/verifyToken", routes.Token.VerifyToken)

	if routes.Connect != nil {
		router.Any(routes.ConnectPath+"*method", gin.WrapH(routes.Connect))
	}

	return router
}

func NewGatewayRouter(cfg *config.Config, m *metrics.Metrics, routes GatewayRoutes) *gin.Engine {
	router := newEngine(cfg, m)
	router.Use(corsMiddleware(cfg.CORS.AllowedOrigins))

	h := routes.Gateway

	auth := router.Group("/auth")
	if routes.LoginLimiter != nil {
		auth.POST("/login", routes.LoginLimiter, h.Login)
	} else {
		auth.POST("/login", h.Login)
	}
	auth.POST("/register", h.Register)
	auth.POST("/logout", h.Logout)
	auth.GET("/loggedin", h.OptionalAuth(), h.LoggedIn)

	proxied := []struct {
		prefix string
		proxy  *handler.ProxyHandler
	}{
		{"/api/user", routes.User},
		{"/api/training", routes.Training},
	}
	for _, p := range proxied {
		if p.proxy == nil {
			continue
		}
		router.Any(p.prefix, h.RequireAuth(), p.proxy.Handle)
		router.Any(p.prefix+"/*path", h.RequireAuth(), p.proxy.Handle)
	}

	return router
}

func newEngine(cfg *config.Config, m *metrics.Metrics) *gin.Engine {
	switch cfg.Server.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	// ClientIP keys the login limiter; without trusted proxies it is the socket peer address.
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.WarnContext(context.Background(), "invalid trusted proxies, trusting none", logger.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(recoveryMiddleware())
	if cfg.Observability.TraceEnabled {
		router.Use(otelgin.Middleware(serviceName(cfg)))
	}
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware())
	if cfg.Observability.MetricsEnabled {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return router
}

func serviceName(cfg *config.Config) string {
	return "codeveros-" + cfg.Service
}
