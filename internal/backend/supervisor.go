package backend

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/kiroshi/internal/logging"
	"github.com/danmuck/kiroshi/internal/observability"
	"github.com/danmuck/kiroshi/internal/protocol/session"
	"github.com/danmuck/kiroshi/internal/transport"
)

// Config binds the container definition to the readiness policy.
type Config struct {
	Spec      CreateSpec
	Readiness session.ReadinessConfig
}

func DefaultConfig(modelsDir string) Config {
	return Config{
		Spec: CreateSpec{
			Image:               DefaultImage,
			ModelsDir:           modelsDir,
			ContainerModelsPath: DefaultContainerModelsPath,
			Port:                session.DefaultPort,
			GPUs:                DefaultGPUs,
		},
		Readiness: session.DefaultConfig().Readiness,
	}
}

// Supervisor launches one backend container and hands out the first Handle
// once it answers pings.
type Supervisor struct {
	cfg       Config
	runtime   Runtime
	connector transport.Connector

	started atomic.Bool
	state   atomic.Int32

	mu          sync.Mutex
	containerID string
	runningAt   time.Time
}

func NewSupervisor(cfg Config, runtime Runtime, connector transport.Connector) *Supervisor {
	if cfg.Spec.Port == 0 {
		cfg.Spec.Port = session.DefaultPort
	}
	if cfg.Spec.Image == "" {
		cfg.Spec.Image = DefaultImage
	}
	defaults := session.DefaultConfig().Readiness
	if cfg.Readiness.Interval <= 0 {
		cfg.Readiness.Interval = defaults.Interval
	}
	if cfg.Readiness.AttemptTimeout <= 0 {
		cfg.Readiness.AttemptTimeout = defaults.AttemptTimeout
	}
	return &Supervisor{cfg: cfg, runtime: runtime, connector: connector}
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// ContainerID returns the created container id, or "" before create.
func (s *Supervisor) ContainerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containerID
}

// Uptime reports how long the backend has been running; zero unless running.
func (s *Supervisor) Uptime() time.Duration {
	if s.State() != StateRunning {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.runningAt)
}

func (s *Supervisor) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		logs.Infof("backend.state from=%s to=%s", prev, next)
	}
	observability.SetBackendState(int(next))
}

// Start creates and starts the container, follows its logs and polls until
// the backend answers a ping. It may be called once per Supervisor.
func (s *Supervisor) Start(ctx context.Context) (*Handle, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	if dir := s.cfg.Spec.ModelsDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.setState(StateStopped)
			return nil, fmt.Errorf("backend: models dir %s: %w", dir, err)
		}
	}

	s.setState(StateLaunching)
	id, err := s.runtime.Create(ctx, s.cfg.Spec)
	if id != "" {
		s.mu.Lock()
		s.containerID = id
		s.mu.Unlock()
	}
	if err != nil {
		if id != "" {
			s.abort(id)
		} else {
			s.setState(StateStopped)
		}
		return nil, err
	}
	logs.Infof("backend.created id=%s image=%s", id, s.cfg.Spec.Image)

	s.setState(StateStarting)
	if err := s.runtime.Start(ctx, id); err != nil {
		s.abort(id)
		return nil, err
	}
	s.runtime.FollowLogs(id)

	s.setState(StatePollingReady)
	if err := s.waitReady(ctx); err != nil {
		s.abort(id)
		return nil, err
	}

	s.mu.Lock()
	s.runningAt = time.Now()
	s.mu.Unlock()
	s.setState(StateRunning)
	return newHandle(id, s.stop), nil
}

// StartResult carries the outcome of StartAsync.
type StartResult struct {
	Handle *Handle
	Err    error
}

// StartAsync runs Start in the background and delivers exactly one result.
func (s *Supervisor) StartAsync(ctx context.Context) <-chan StartResult {
	out := make(chan StartResult, 1)
	go func() {
		h, err := s.Start(ctx)
		out <- StartResult{Handle: h, Err: err}
		close(out)
	}()
	return out
}

func (s *Supervisor) waitReady(ctx context.Context) error {
	if s.cfg.Readiness.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Readiness.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Readiness.AttemptTimeout)
		err := Ping(attemptCtx, s.connector)
		cancel()
		observability.RecordReadinessAttempt(err == nil)
		if err == nil {
			logs.Debugf("backend.ready attempts=%d", attempt)
			return nil
		}
		logs.Tracef("backend.ping attempt=%d err=%v", attempt, err)

		timer := time.NewTimer(session.NextPollDelay(s.cfg.Readiness, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: not ready after %d attempts: %w", ErrBackendUnavailable, attempt, ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Supervisor) abort(id string) {
	s.runtime.Stop(id)
	s.setState(StateStopped)
}

func (s *Supervisor) stop(id string) {
	logs.Infof("backend.stop id=%s", id)
	s.runtime.Stop(id)
	s.setState(StateStopped)
}
