// Package transport opens backend connections. One connection serves one
// session; nothing is pooled or reused.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/kiroshi/internal/protocol"
	"github.com/danmuck/kiroshi/internal/protocol/session"
)

// Connector opens a fresh connection to the backend.
type Connector interface {
	Connect(ctx context.Context) (net.Conn, error)
}

// Dialer connects over TCP to a fixed address.
type Dialer struct {
	Address string
	Timeout time.Duration
}

func NewDialer(cfg session.Config) *Dialer {
	cfg = cfg.WithDefaults()
	return &Dialer{Address: cfg.Address, Timeout: cfg.ConnectTimeout}
}

func (d *Dialer) Connect(ctx context.Context) (net.Conn, error) {
	addr := d.Address
	if addr == "" {
		addr = session.DefaultAddress
	}
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", protocol.ErrConnectionFailed, addr, err)
	}
	return conn, nil
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (net.Conn, error)

func (f ConnectorFunc) Connect(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}
