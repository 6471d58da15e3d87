package handler

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/astro-web3/codeveros-auth/internal/app/token"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/tracer"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgInvalidRequestBody = "invalid request body"
	msgMissingToken       = "missing token information"
	msgSignFailed         = "failed to sign token"
)

type TokenHandler struct {
	appService token.Service
}

func NewTokenHandler(appService token.Service) *TokenHandler {
	return &TokenHandler{
		appService: appService,
	}
}

func (h *TokenHandler) SignToken(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.SignToken")
	defer span.End()

	body, ok := bindObject(c)
	if !ok {
		logger.DebugContext(ctx, "sign token: body is not a JSON object")
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequestBody})
		return
	}

	payload, ok := body["payload"]
	if !ok {
		logger.DebugContext(ctx, "sign token: payload missing")
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequestBody})
		return
	}

	signed, err := h.appService.Sign(ctx, payload)
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "failed to sign token", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSignFailed})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed})
}

func (h *TokenHandler) VerifyToken(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.VerifyToken")
	defer span.End()

	body, ok := bindObject(c)
	if !ok {
		logger.DebugContext(ctx, "verify token: body is not a JSON object")
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequestBody})
		return
	}

	raw := body["token"]
	if isFalsy(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingToken})
		return
	}

	tokenString, isString := raw.(string)
	if !isString {
		span.SetAttributes(attribute.Bool("token.valid", false))
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	claims, err := h.appService.Verify(ctx, tokenString)
	span.SetAttributes(attribute.Bool("token.valid", err == nil))
	if err != nil {
		logger.DebugContext(ctx, "token invalid", slog.String("reason", err.Error()))
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "payload": claims})
}

// isFalsy reports the JSON values treated as an absent token: null, false, 0 and "".
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0 || math.IsNaN(t)
	case string:
		return t == ""
	default:
		return false
	}
}

// bindObject accepts only a JSON object body.
func bindObject(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		return nil, false
	}
	return body, true
}
