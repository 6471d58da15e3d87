package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/astro-web3/codeveros-auth/internal/domain/authflow"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/upstream"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const msgBadGateway = "upstream unavailable"

// ProxyHandler forwards authenticated requests to one backend service, replacing any
// client-supplied user id header with the id from the verified token.
// Every request goes to baseURL, and the allow-list is immutable, so the target is checked once
// here. A target outside the allow-list answers 502 on every request.
type ProxyHandler struct {
	userIDHeader string
	blocked      error
	proxy        *httputil.ReverseProxy
}

func NewProxyHandler(
	ctx context.Context,
	baseURL string,
	caller *upstream.Caller,
	userIDHeader string,
	transport http.RoundTripper,
) (*ProxyHandler, error) {
	target, err := url.Parse(baseURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q", baseURL)
	}

	h := &ProxyHandler{
		userIDHeader: http.CanonicalHeaderKey(userIDHeader),
	}
	if err = caller.Check(ctx, baseURL); err != nil {
		logger.ErrorContext(ctx, "proxy target is not allow-listed, requests will be rejected", logger.Error(err))
		h.blocked = err
	}

	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()

			r.Out.Header.Del(h.userIDHeader)
			if claims, ok := authflow.ClaimsFromContext(r.In.Context()); ok {
				if id, ok := claims.UserID(); ok {
					r.Out.Header.Set(h.userIDHeader, id)
				}
			}
			otel.GetTextMapPropagator().Inject(r.Out.Context(), propagation.HeaderCarrier(r.Out.Header))
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "proxy request failed", logger.Error(err))
			writeJSONError(w, http.StatusBadGateway, msgBadGateway)
		},
	}
	return h, nil
}

func (h *ProxyHandler) Handle(c *gin.Context) {
	if h.blocked != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": msgBadGateway})
		return
	}
	h.proxy.ServeHTTP(c.Writer, c.Request)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
