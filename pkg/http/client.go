package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/tracer"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultRetry         = 1
	DefaultRetryWaitTime = 100 * time.Millisecond
)

type Options struct {
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
}

// Client issues JSON requests to internal services. Requests are sent once unless marked
// Retryable, so non-idempotent calls such as user creation are never replayed.
type Client struct {
	single   *resty.Client
	retrying *resty.Client
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryWaitTime <= 0 {
		opts.RetryWaitTime = DefaultRetryWaitTime
	}

	retrying := newResty(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWaitTime).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() >= http.StatusInternalServerError ||
				resp.StatusCode() == http.StatusTooManyRequests
		})

	return &Client{
		single:   newResty(opts.Timeout),
		retrying: retrying,
	}
}

func newResty(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetLogger(restyLogger{}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

type request struct {
	retry    bool
	mutators []func(*resty.Request)
}

type RequestOption func(*request)

// Retryable marks the call as idempotent so transport errors and 5xx responses are retried.
func Retryable() RequestOption {
	return func(r *request) {
		r.retry = true
	}
}

func WithAuthToken(token string) RequestOption {
	return mutate(func(r *resty.Request) {
		r.SetAuthToken(token)
	})
}

func WithBody(body any) RequestOption {
	return mutate(func(r *resty.Request) {
		r.SetBody(body)
	})
}

// WithResult decodes a 2xx JSON response body into v.
func WithResult(v any) RequestOption {
	return mutate(func(r *resty.Request) {
		r.SetResult(v)
	})
}

func WithHeader(key, value string) RequestOption {
	return mutate(func(r *resty.Request) {
		r.SetHeader(key, value)
	})
}

func mutate(fn func(*resty.Request)) RequestOption {
	return func(r *request) {
		r.mutators = append(r.mutators, fn)
	}
}

func (c *Client) Request(ctx context.Context, method, url string, opts ...RequestOption) (*resty.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := startClientSpan(ctx, "http.Request", method, url)
	defer span.End()

	var cfg request
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := c.single
	if cfg.retry {
		rc = c.retrying
	}

	req := rc.R().SetContext(ctx)
	for _, fn := range cfg.mutators {
		fn(req)
	}

	injectTracingHeaders(ctx, req)

	resp, err := req.Execute(method, url)
	recordSpan(span, resp, err)
	if err != nil {
		return resp, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}

func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*resty.Response, error) {
	return c.Request(ctx, http.MethodGet, url, opts...)
}

func (c *Client) Post(ctx context.Context, url string, opts ...RequestOption) (*resty.Response, error) {
	return c.Request(ctx, http.MethodPost, url, opts...)
}

func startClientSpan(
	ctx context.Context,
	spanName string,
	method string,
	url string,
) (context.Context, trace.Span) {
	return tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		),
	)
}

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// restyLogger routes resty's internal messages into the service logger.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) {
	logger.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (restyLogger) Warnf(format string, v ...any) {
	logger.WarnContext(context.Background(), fmt.Sprintf(format, v...))
}

func (restyLogger) Debugf(format string, v ...any) {
	logger.DebugContext(context.Background(), fmt.Sprintf(format, v...))
}
