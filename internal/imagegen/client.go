package imagegen

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	logs "github.com/danmuck/kiroshi/internal/logging"
	"github.com/danmuck/kiroshi/internal/observability"
	"github.com/danmuck/kiroshi/internal/protocol/frame"
	"github.com/danmuck/kiroshi/internal/protocol/session"
	"github.com/danmuck/kiroshi/internal/transport"
)

// Client starts generation sessions against one backend endpoint.
type Client struct {
	connector transport.Connector
	cfg       session.Config
	limits    frame.Limits
}

func NewClient(connector transport.Connector, cfg session.Config) *Client {
	return &Client{
		connector: connector,
		cfg:       cfg.WithDefaults(),
		limits:    frame.DefaultLimits(),
	}
}

// SetMaxFrameBytes bounds a single frame; n <= 0 keeps the default.
func (c *Client) SetMaxFrameBytes(n int64) {
	if n > 0 {
		c.limits.MaxPayloadBytes = uint64(n)
	}
}

// Stream is the lazy event sequence of one session.
type Stream struct {
	ID      string
	results chan Result
	cancel  context.CancelFunc
	done    chan struct{}
}

// Results yields Sampling events, then exactly one Finished event or one
// error, then closes.
func (s *Stream) Results() <-chan Result {
	return s.results
}

// Close abandons the session and waits for the producer to release the
// connection. Safe to call after the stream completed.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

// Collect drains the stream, returning every event received before an error.
func (s *Stream) Collect() ([]Event, error) {
	defer s.Close()
	var events []Event
	for res := range s.results {
		if res.Err != nil {
			return events, res.Err
		}
		events = append(events, res.Event)
	}
	return events, nil
}

// Generate opens a session for def. previewAfter, when set, is the fraction
// of steps after which the backend starts sending previews.
func (c *Client) Generate(ctx context.Context, def Definition, previewAfter *float32) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ID:      uuid.NewString(),
		results: make(chan Result, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.run(ctx, s, def.Clone(), previewAfter)
	return s
}

func (c *Client) run(ctx context.Context, s *Stream, def Definition, previewAfter *float32) {
	defer close(s.done)
	defer close(s.results)

	log := logs.Logger().With().Str("session", s.ID).Str("model", def.Model).Logger()
	start := time.Now()
	outcome := observability.OutcomeError
	observability.RecordSessionStarted()
	defer func() {
		observability.RecordSessionFinished(outcome, time.Since(start))
		log.Debug().Str("outcome", outcome).Dur("elapsed", time.Since(start)).Msg("generation session closed")
	}()

	fail := func(err error) {
		log.Warn().Err(err).Msg("generation session failed")
		select {
		case s.results <- Result{Err: err}:
		case <-ctx.Done():
			outcome = observability.OutcomeAbandoned
		}
	}

	req, err := def.Request(previewAfter)
	if err != nil {
		fail(err)
		return
	}

	conn, err := c.connector.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			outcome = observability.OutcomeAbandoned
			return
		}
		fail(err)
		return
	}
	defer conn.Close()
	// unblock pending reads when the consumer walks away
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := session.WriteGenerate(conn, req); err != nil {
		fail(err)
		return
	}
	_ = conn.SetWriteDeadline(time.Time{})
	log.Debug().
		Str("size", def.Size.String()).
		Str("sampler", req.Sampler).
		Str("quality", req.Quality).
		Uint64("seed", req.Seed).
		Msg("generation request sent")

	reader := frame.NewReader(conn, c.limits)
	for {
		if c.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		res, payload, err := session.ReadResult(reader)
		if err != nil {
			if ctx.Err() != nil {
				outcome = observability.OutcomeAbandoned
				return
			}
			if session.IsTruncated(err) {
				log.Debug().Msg("backend closed the connection mid-session")
			}
			fail(err)
			return
		}

		image := Image{
			RGBA:       bytes.Clone(payload),
			Size:       Size{Width: res.Width, Height: res.Height},
			Definition: def,
		}
		var event Event
		kind := observability.EventSampling
		if res.IsFinal {
			kind = observability.EventFinished
			event = Finished{
				Image: image,
				Faces: rectanglesFromWire(res.Faces),
				Hands: rectanglesFromWire(res.Hands),
			}
		} else {
			event = Sampling{Image: image, Progress: res.Progress}
		}

		select {
		case s.results <- Result{Event: event}:
		case <-ctx.Done():
			outcome = observability.OutcomeAbandoned
			return
		}
		observability.RecordSessionEvent(kind, len(payload))

		if res.IsFinal {
			outcome = observability.OutcomeFinished
			log.Info().
				Int("faces", len(res.Faces)).
				Int("hands", len(res.Hands)).
				Dur("elapsed", time.Since(start)).
				Msg("generation finished")
			return
		}
		log.Trace().Float32("progress", res.Progress).Msg("generation preview")
	}
}
