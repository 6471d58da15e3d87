package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	httpclient "github.com/astro-web3/codeveros-auth/pkg/http"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/go-resty/resty/v2"
)

type Requester interface {
	Request(ctx context.Context, method, url string, opts ...httpclient.RequestOption) (*resty.Response, error)
}

// Caller gates every outbound request on the allow-list before anything reaches the network.
type Caller struct {
	allowlist *Allowlist
	client    Requester
}

func NewCaller(allowlist *Allowlist, client Requester) *Caller {
	return &Caller{
		allowlist: allowlist,
		client:    client,
	}
}

// Check reports ErrDisallowedUpstream for any URL outside the allow-list.
func (c *Caller) Check(ctx context.Context, url string) error {
	if c.allowlist.IsAllowed(url) {
		return nil
	}
	logger.WarnContext(ctx, "blocked call to upstream outside allow-list", slog.String("url", url))
	return fmt.Errorf("%w: %s", ErrDisallowedUpstream, url)
}

func (c *Caller) Do(ctx context.Context, method, url string, opts ...httpclient.RequestOption) (*resty.Response, error) {
	if err := c.Check(ctx, url); err != nil {
		return nil, err
	}
	return c.client.Request(ctx, method, url, opts...)
}

func (c *Caller) Get(ctx context.Context, url string, opts ...httpclient.RequestOption) (*resty.Response, error) {
	return c.Do(ctx, http.MethodGet, url, opts...)
}

func (c *Caller) Post(ctx context.Context, url string, opts ...httpclient.RequestOption) (*resty.Response, error) {
	return c.Do(ctx, http.MethodPost, url, opts...)
}
