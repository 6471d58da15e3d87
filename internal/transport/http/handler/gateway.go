package handler

import (
	"errors"
	"net/http"

	appauthflow "github.com/astro-web3/codeveros-auth/internal/app/authflow"
	"github.com/astro-web3/codeveros-auth/internal/domain/authflow"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/tracer"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type GatewayHandler struct {
	appService appauthflow.Service
}

func NewGatewayHandler(appService appauthflow.Service) *GatewayHandler {
	return &GatewayHandler{
		appService: appService,
	}
}

func (h *GatewayHandler) Register(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.Register")
	defer span.End()

	body, ok := bindObject(c)
	if !ok {
		writeError(c, authflow.ErrInvalidRequestBody)
		return
	}

	session, err := h.appService.Register(ctx, body)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *GatewayHandler) Login(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.Login")
	defer span.End()

	body, ok := bindObject(c)
	if !ok {
		writeError(c, authflow.ErrMissingCredentials)
		return
	}

	username, _ := body["username"].(string)
	password, _ := body["password"].(string)

	session, err := h.appService.Login(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *GatewayHandler) Logout(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.Logout")
	defer span.End()

	h.appService.Logout(ctx, c.GetHeader("Authorization"))
	c.Status(http.StatusOK)
}

// LoggedIn answers 200 in every case: the user when the token resolves, an empty body otherwise.
func (h *GatewayHandler) LoggedIn(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.LoggedIn")
	defer span.End()

	claims, _ := authflow.ClaimsFromContext(ctx)
	user, ok := h.appService.WhoAmI(ctx, claims)
	span.SetAttributes(attribute.Bool("authflow.anonymous", !ok))
	if !ok {
		c.Status(http.StatusOK)
		return
	}

	c.JSON(http.StatusOK, user)
}

// RequireAuth rejects the request with 401 unless it carries a verifiable bearer token.
func (h *GatewayHandler) RequireAuth() gin.HandlerFunc {
	return h.gate(true)
}

// OptionalAuth attaches claims when the token verifies and lets the request through either way.
func (h *GatewayHandler) OptionalAuth() gin.HandlerFunc {
	return h.gate(false)
}

func (h *GatewayHandler) gate(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		claims, err := h.appService.Authenticate(ctx, c.GetHeader("Authorization"))
		if err != nil {
			if required {
				writeError(c, err)
				c.Abort()
				return
			}
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(authflow.WithClaims(ctx, claims))
		c.Next()
	}
}

var errorStatus = []struct {
	err    error
	status int
}{
	{authflow.ErrInvalidRequestBody, http.StatusBadRequest},
	{authflow.ErrMissingCredentials, http.StatusBadRequest},
	{authflow.ErrInvalidCredentials, http.StatusUnauthorized},
	{authflow.ErrUnauthenticated, http.StatusUnauthorized},
	{authflow.ErrRegistrationFailed, http.StatusInternalServerError},
	{authflow.ErrTokenNotIssued, http.StatusInternalServerError},
	{authflow.ErrTokenIssuanceFailed, http.StatusInternalServerError},
}

// writeError answers with the sentinel's fixed message so upstream detail never reaches the client.
func writeError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}
	logger.ErrorContext(c.Request.Context(), "unclassified gateway error", logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
