package tor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultProxy is Tor's SOCKS port, resolving hostnames on the exit side.
const DefaultProxy = "socks5h://127.0.0.1:9050"

// NewHTTPClient returns an HTTP client whose connections are dialled
// through the SOCKS proxy at endpoint. An empty endpoint yields a direct
// client.
func NewHTTPClient(endpoint string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
		// Fresh connections after a rotation must use the new circuit.
		DisableKeepAlives: true,
	}

	if endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy endpoint: %w", err)
		}
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("building proxy dialer: %w", err)
		}
		transport.DialContext = contextDialer(dialer)
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
