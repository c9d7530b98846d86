package dialer

import (
	"context"
	"crypto/tls"
	"net/url"

	"golang.org/x/net/http/httpproxy"

	"github.com/frankli0324/go-fetch/internal/http"
	"github.com/frankli0324/go-fetch/utils/netpool"
)

type Dialer = http.Dialer

type CoreDialer struct {
	ResolveConfig *ResolveConfig

	TLSConfig *tls.Config // the config to use, a request may override it

	ConnPool    *netpool.PoolGroup
	GetProxy    func(ctx context.Context, r *http.Request) (string, error)
	ProxyConfig *ProxyConfig
}

// DefaultMaxConnsPerHost bounds the connections the default dialer opens to
// a single host at a time.
const DefaultMaxConnsPerHost = 100

// New returns a CoreDialer connecting directly, with the system resolver and
// the default trust store.
func New() *CoreDialer {
	return &CoreDialer{
		TLSConfig:   &tls.Config{},
		ConnPool:    netpool.NewGroup(DefaultMaxConnsPerHost),
		ProxyConfig: &ProxyConfig{},
	}
}

func (d *CoreDialer) Clone() *CoreDialer {
	return &CoreDialer{
		ResolveConfig: d.ResolveConfig.Clone(),
		TLSConfig:     d.TLSConfig.Clone(),
		ConnPool:      d.ConnPool.NewEmpty(),
		GetProxy:      d.GetProxy,
		ProxyConfig:   d.ProxyConfig.Clone(),
	}
}

func (d *CoreDialer) Unwrap() Dialer {
	return nil
}

// ProxyFromEnvironment picks the proxy of a request from the HTTP_PROXY,
// HTTPS_PROXY, ALL_PROXY and NO_PROXY environment variables. It is meant to
// be assigned to [CoreDialer.GetProxy].
func ProxyFromEnvironment(ctx context.Context, r *http.Request) (string, error) {
	cfg := httpproxy.FromEnvironment()
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" {
		// httpproxy ignores ALL_PROXY
		if all := envAllProxy(); all != "" {
			cfg.HTTPProxy, cfg.HTTPSProxy = all, all
		}
	}
	u, err := cfg.ProxyFunc()(r.URL)
	if err != nil || u == nil {
		return "", err
	}
	return u.String(), nil
}

// StaticProxy returns a GetProxy function sending every request through
// proxy.
func StaticProxy(proxy string) (func(ctx context.Context, r *http.Request) (string, error), error) {
	if _, err := url.Parse(proxy); err != nil {
		return nil, err
	}
	return func(context.Context, *http.Request) (string, error) { return proxy, nil }, nil
}
