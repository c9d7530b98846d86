package dialer

import (
	"context"
	"crypto/tls"
	"io"
	"net"

	"github.com/frankli0324/go-fetch/internal/http"
)

var schemes = map[string]string{
	"http": "80", "https": "443", "socks5": "1080", "socks5h": "1080",
}

var zeroDialer net.Dialer
var customDnsDialer = net.Dialer{
	Resolver: &customServerResolver,
}

func hostPort(host, scheme string) (addr, port string) {
	addr, port = host, schemes[scheme]
	if add, prt, err := net.SplitHostPort(host); err == nil {
		addr, port = add, prt
	}
	return
}

func (d *CoreDialer) Dial(ctx context.Context, r *http.PreparedRequest) (io.ReadWriteCloser, error) {
	addr, port := hostPort(r.U.Host, r.U.Scheme)
	hp := net.JoinHostPort(addr, port)
	return d.ConnPool.Connect(ctx, hp, func(ctx context.Context) (conn net.Conn, err error) {
		conn, err = d.tryDialProxy(ctx, r)
		if err != nil {
			return nil, err
		}
		if conn == nil {
			conn, err = d.dialDirect(ctx, d.ResolveConfig, addr, port)
			if err != nil {
				return nil, err
			}
		}
		if r.U.Scheme == "https" {
			c, err := d.handshake(ctx, conn, r.TLSConfig, r.U.Hostname())
			if err != nil {
				conn.Close()
				return nil, err
			}
			conn = c
		}
		return conn, nil
	})
}

func (d *CoreDialer) dialDirect(ctx context.Context, cfg *ResolveConfig, addr, port string) (net.Conn, error) {
	// as of now net.Dialer could handle current DNS configurations
	network, dialer, dialctx, dst := cfg.tcpNetwork(), &zeroDialer, ctx, net.JoinHostPort(addr, port)
	if static, ok := cfg.static(addr); ok {
		dst = net.JoinHostPort(static, port)
	}
	if cfg != nil && cfg.CustomDNSServer != "" {
		dialctx = dnsServerCtx{dialctx, cfg.CustomDNSServer}
		dialer = &customDnsDialer
	}
	return dialer.DialContext(dialctx, network, dst)
}

// handshake runs a TLS client handshake over conn. override, when non-nil,
// replaces the dialer's config for this connection only.
func (d *CoreDialer) handshake(ctx context.Context, conn net.Conn, override *tls.Config, serverName string) (net.Conn, error) {
	base := override
	if base == nil {
		base = d.TLSConfig
	}
	config := base.Clone()
	if config == nil {
		config = &tls.Config{}
	}
	if config.ServerName == "" {
		config.ServerName = serverName
	}
	// only HTTP/1.1 is spoken on the connection
	config.NextProtos = []string{"http/1.1"}
	c := tls.Client(conn, config)
	if err := c.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
