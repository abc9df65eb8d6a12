package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/kiroshi/internal/protocol"
	"github.com/danmuck/kiroshi/internal/protocol/session"
	"github.com/danmuck/kiroshi/internal/testutil/testlog"
)

func TestDialerConnects(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
		close(accepted)
	}()

	d := &Dialer{Address: ln.Addr().String(), Timeout: time.Second}
	conn, err := d.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = conn.Close()
	<-accepted
}

func TestDialerRefusedIsConnectionFailed(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = (&Dialer{Address: addr, Timeout: time.Second}).Connect(context.Background())
	if !errors.Is(err, protocol.ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestNewDialerDefaults(t *testing.T) {
	d := NewDialer(session.Config{})
	if d.Address != session.DefaultAddress {
		t.Fatalf("unexpected default address: %q", d.Address)
	}
	if d.Timeout != session.DefaultConfig().ConnectTimeout {
		t.Fatalf("unexpected default timeout: %v", d.Timeout)
	}
}
