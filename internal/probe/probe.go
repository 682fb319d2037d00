// Package probe warms up a run by rotating Tor identities until the target
// source answers without a block page.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/matsen/scholarsync/internal/retry"
	"github.com/matsen/scholarsync/internal/scholar"
	"github.com/matsen/scholarsync/internal/tor"
)

// DefaultIdentityURL reports the current exit address and whether it is Tor.
const DefaultIdentityURL = "https://check.torproject.org/api/ip"

// Identity is the egress address reported by the identity endpoint.
type Identity struct {
	IsTor bool   `json:"IsTor"`
	IP    string `json:"IP"`
}

// Prober checks whether the target answers cleanly from the current identity.
type Prober struct {
	httpClient  scholar.Doer
	rotator     tor.Rotator
	sleep       retry.Sleeper
	settle      time.Duration
	identityURL string
	targetURL   string
	logger      *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithIdentityURL overrides the identity endpoint.
func WithIdentityURL(u string) Option {
	return func(p *Prober) { p.identityURL = u }
}

// WithSleeper overrides how the settle interval is waited out.
func WithSleeper(s retry.Sleeper) Option {
	return func(p *Prober) { p.sleep = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// New creates a prober for targetURL. settle is waited after each
// successful rotation.
func New(hc scholar.Doer, rotator tor.Rotator, targetURL string, settle time.Duration, opts ...Option) *Prober {
	p := &Prober{
		httpClient:  hc,
		rotator:     rotator,
		sleep:       retry.SleepContext,
		settle:      settle,
		identityURL: DefaultIdentityURL,
		targetURL:   targetURL,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FindCleanPath tries up to maxAttempts identities and returns true as soon
// as the target responds without being blocked. False means the bound was
// exhausted; it is a warning, not a failure of the run.
func (p *Prober) FindCleanPath(ctx context.Context, maxAttempts int) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		if id, err := p.CurrentIdentity(ctx); err != nil {
			p.logger.Warn("could not verify egress identity", "attempt", attempt, "error", err)
		} else {
			p.logger.Info("egress identity", "attempt", attempt, "ip", id.IP, "tor", id.IsTor)
		}

		blocked, err := p.Blocked(ctx)
		switch {
		case err != nil:
			p.logger.Warn("probe request failed", "attempt", attempt, "error", err)
		case !blocked:
			p.logger.Info("target reachable", "attempt", attempt)
			return true
		default:
			p.logger.Warn("target blocked this identity", "attempt", attempt, "max_attempts", maxAttempts)
		}

		if attempt == maxAttempts {
			break
		}
		if p.rotator != nil && p.rotator.Rotate(ctx) {
			if err := p.sleep(ctx, p.settle); err != nil {
				return false
			}
		}
	}
	return false
}

// CurrentIdentity queries the identity endpoint.
func (p *Prober) CurrentIdentity(ctx context.Context) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.identityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity endpoint returned %d", resp.StatusCode)
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	return &id, nil
}

// Blocked issues one request to the target and reports whether the
// response is a rate-limit status or a block page.
func (p *Prober) Blocked(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.targetURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", scholar.UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return true, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return false, fmt.Errorf("reading probe body: %w", err)
	}
	return scholar.IsBlockPage(body), nil
}
