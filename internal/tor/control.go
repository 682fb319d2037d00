// Package tor talks to a local Tor daemon: it requests new circuits through
// the control port and builds HTTP clients that dial through the SOCKS port.
package tor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

const (
	// DefaultControlAddr is Tor's default control port.
	DefaultControlAddr = "127.0.0.1:9051"

	// DefaultControlTimeout bounds one full control exchange.
	DefaultControlTimeout = 10 * time.Second

	// statusOK is the control protocol's success status code.
	statusOK = "250"
)

// Rotator requests a fresh network identity. A false return is advisory;
// callers carry on with the current identity.
type Rotator interface {
	Rotate(ctx context.Context) bool
}

// Controller speaks the Tor control protocol.
type Controller struct {
	addr     string
	password string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewController creates a controller for the control port at addr.
// An empty password authenticates with no credentials (cookie-less
// NULL auth).
func NewController(addr, password string, logger *slog.Logger) *Controller {
	if addr == "" {
		addr = DefaultControlAddr
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		addr:     addr,
		password: password,
		timeout:  DefaultControlTimeout,
		logger:   logger,
	}
}

// Addr returns the control port address.
func (c *Controller) Addr() string { return c.addr }

// Rotate sends AUTHENTICATE, SIGNAL NEWNYM and QUIT. It returns true when
// both the authentication and the signal are acknowledged with 250.
func (c *Controller) Rotate(ctx context.Context) bool {
	if err := c.newIdentity(ctx); err != nil {
		c.logger.Warn("tor identity rotation failed", "addr", c.addr, "error", err)
		return false
	}
	c.logger.Info("tor identity rotated", "addr", c.addr)
	return true
}

func (c *Controller) newIdentity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connecting to control port: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	r := bufio.NewReader(conn)
	if err := command(conn, r, "AUTHENTICATE "+quote(c.password)); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := command(conn, r, "SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("signal newnym: %w", err)
	}
	// QUIT replies "250 closing connection"; failure here is irrelevant.
	_ = command(conn, r, "QUIT")
	return nil
}

// command writes one CRLF-terminated line and reads the (possibly
// multi-line) reply, failing unless its status is 250.
func command(conn net.Conn, r *bufio.Reader, line string) error {
	if _, err := fmt.Fprintf(conn, "%s\r\n", line); err != nil {
		return err
	}

	for {
		reply, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading reply: %w", err)
		}
		reply = strings.TrimRight(reply, "\r\n")
		if len(reply) < 4 {
			return fmt.Errorf("malformed reply %q", reply)
		}
		if reply[:3] != statusOK {
			return fmt.Errorf("control port replied %q", reply)
		}
		// "250-" and "250+" continue; "250 " ends the reply.
		if reply[3] == ' ' {
			return nil
		}
	}
}

// quote renders s as a control-protocol QuotedString.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
