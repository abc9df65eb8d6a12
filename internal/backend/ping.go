package backend

import (
	"context"

	"github.com/danmuck/kiroshi/internal/protocol/frame"
	"github.com/danmuck/kiroshi/internal/protocol/session"
	"github.com/danmuck/kiroshi/internal/transport"
)

// Ping opens a connection, sends the ping task and waits for the boolean
// pong. Any decoded pong counts as alive.
func Ping(ctx context.Context, connector transport.Connector) error {
	conn, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := session.WritePing(conn); err != nil {
		return err
	}
	_, err = session.ReadPong(frame.NewReader(conn, frame.Limits{MaxPayloadBytes: 64}))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
