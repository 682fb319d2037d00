package main

import (
	"log/slog"
	"net/http"

	"github.com/matsen/scholarsync/internal/config"
	"github.com/matsen/scholarsync/internal/tor"
)

// noTor disables the SOCKS proxy and identity rotation for a direct
// connection.
var noTor bool

// newHTTPClient returns the HTTP client every outbound request uses.
func newHTTPClient(cfg config.Config) *http.Client {
	endpoint := cfg.ProxyEndpoint
	if noTor {
		endpoint = ""
	}
	hc, err := tor.NewHTTPClient(endpoint, cfg.RequestTimeout)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return hc
}

// newRotator returns the identity rotator, or nil when rotation is off.
func newRotator(cfg config.Config, logger *slog.Logger) tor.Rotator {
	if noTor || cfg.ControlEndpoint == "" {
		return nil
	}
	return tor.NewController(cfg.ControlEndpoint, cfg.ControlPassword, logger)
}
