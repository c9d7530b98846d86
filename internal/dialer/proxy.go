package dialer

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/url"
	"os"

	"golang.org/x/net/proxy"

	"github.com/frankli0324/go-fetch/internal/headers"
	"github.com/frankli0324/go-fetch/internal/http"
	"github.com/frankli0324/go-fetch/internal/transport"
)

type ProxyConfig struct {
	TLSConfig      *tls.Config // the [*tls.Config] to use with proxy, if nil, *[CoreDialer.TLSConfig] will be used
	ResolveLocally bool
	ResolveConfig  *ResolveConfig // overrides the resolver config for dialer for proxy
}

func (c *ProxyConfig) Clone() *ProxyConfig {
	if c == nil {
		return nil
	}
	return &ProxyConfig{
		TLSConfig:      c.TLSConfig.Clone(),
		ResolveLocally: c.ResolveLocally,
		ResolveConfig:  c.ResolveConfig.Clone(),
	}
}

var (
	h1Transport = transport.HTTP1{}
)

func envAllProxy() string {
	if v := os.Getenv("ALL_PROXY"); v != "" {
		return v
	}
	return os.Getenv("all_proxy")
}

func (d *CoreDialer) tryDialProxy(ctx context.Context, r *http.PreparedRequest) (net.Conn, error) {
	if d.GetProxy != nil {
		proxy, perr := d.GetProxy(ctx, r.Request)
		if perr != nil {
			return nil, perr
		}
		if proxy != "" {
			proxyU, perr := url.Parse(proxy)
			if perr != nil {
				return nil, perr
			}
			return d.DialContextOverProxy(ctx, r.U, proxyU)
		}
	}
	return nil, nil
}

func (d *CoreDialer) proxyConfig() *ProxyConfig {
	if d.ProxyConfig == nil {
		return &ProxyConfig{}
	}
	return d.ProxyConfig
}

// DialContextOverProxy creates a connection over http/socks proxy.
// This part of logic may be reused when wrapping *[CoreDialer] into
// a new custom [Dialer]
func (d *CoreDialer) DialContextOverProxy(ctx context.Context, remote, proxyU *url.URL) (net.Conn, error) {
	pcfg := d.proxyConfig()
	addr, port := hostPort(remote.Host, remote.Scheme)
	if pcfg.ResolveLocally || proxyU.Scheme == "socks5" {
		var err error
		if addr, err = d.resolve(ctx, pcfg.ResolveConfig.Merge(d.ResolveConfig), addr); err != nil {
			return nil, err
		}
	}

	switch proxyU.Scheme {
	case "http", "https":
		return d.dialConnect(ctx, proxyU, remote.Host, net.JoinHostPort(addr, port))
	case "socks5", "socks5h":
		return d.dialSOCKS(ctx, proxyU, net.JoinHostPort(addr, port))
	}
	return nil, errors.New("unsupported proxy scheme: " + proxyU.Scheme)
}

// resolve picks one address for host, static hosts first.
func (d *CoreDialer) resolve(ctx context.Context, cfg *ResolveConfig, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}
	if res, ok := cfg.static(host); ok {
		return res, nil
	}
	ips, err := d.lookup(ctx, cfg, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips[rand.IntN(len(ips))].String(), nil
}

func (d *CoreDialer) dialProxyServer(ctx context.Context, proxyU *url.URL) (net.Conn, error) {
	addr, port := hostPort(proxyU.Host, proxyU.Scheme)
	return d.dialDirect(ctx, d.proxyConfig().ResolveConfig.Merge(d.ResolveConfig), addr, port)
}

func (d *CoreDialer) dialConnect(ctx context.Context, proxyU *url.URL, host, target string) (net.Conn, error) {
	conn, err := d.dialProxyServer(ctx, proxyU)
	if err != nil {
		return nil, err
	}

	if proxyU.Scheme == "https" {
		tlsCfg := d.proxyConfig().TLSConfig
		if tlsCfg == nil {
			tlsCfg = d.TLSConfig
		}
		c, err := d.handshake(ctx, conn, tlsCfg, proxyU.Hostname())
		if err != nil {
			conn.Close()
			return nil, err
		}
		conn = c
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	connReq := &http.PreparedRequest{
		Request:       &http.Request{Method: "CONNECT"},
		HeaderHost:    host,
		U:             &url.URL{Opaque: target},
		Header:        headers.New(),
		ContentLength: -1,
	}
	if u := proxyU.User; u != nil {
		pass, _ := u.Password()
		connReq.Header.Set("Proxy-Authorization",
			"Basic "+base64.StdEncoding.EncodeToString([]byte(u.Username()+":"+pass)))
	}
	if err := h1Transport.Write(ctx, conn, connReq); err != nil {
		conn.Close()
		return nil, err
	}
	resp := &http.WireResponse{}
	if err := h1Transport.Read(ctx, conn, connReq, resp); err != nil {
		conn.Close()
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		s, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		conn.Close()
		return nil, fmt.Errorf("proxy server returned error. status:%d, body:%s", resp.StatusCode, string(s))
	}
	return conn, nil
}

type dialerFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func (f dialerFunc) Dial(network, addr string) (net.Conn, error) {
	return f(context.Background(), network, addr)
}

func (f dialerFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}

// dialSOCKS connects to target through a SOCKS5 proxy. socks5h leaves name
// resolution to the proxy, socks5 resolves locally.
func (d *CoreDialer) dialSOCKS(ctx context.Context, proxyU *url.URL, target string) (net.Conn, error) {
	var auth *proxy.Auth
	if u := proxyU.User; u != nil {
		pass, _ := u.Password()
		auth = &proxy.Auth{User: u.Username(), Password: pass}
	}
	forward := dialerFunc(func(ctx context.Context, _, _ string) (net.Conn, error) {
		return d.dialProxyServer(ctx, proxyU)
	})
	addr, port := hostPort(proxyU.Host, proxyU.Scheme)
	sd, err := proxy.SOCKS5("tcp", net.JoinHostPort(addr, port), auth, forward)
	if err != nil {
		return nil, err
	}
	return sd.(proxy.ContextDialer).DialContext(ctx, "tcp", target)
}
