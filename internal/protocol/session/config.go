package session

import "time"

const (
	DefaultAddress = "127.0.0.1:9149"
	DefaultPort    = 9149
)

// ReadinessConfig defines how the supervisor polls the backend for liveness.
type ReadinessConfig struct {
	Interval   time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	// AttemptTimeout bounds a single connect+ping+pong attempt.
	AttemptTimeout time.Duration
	// Timeout bounds the whole poll; zero waits until the caller's context ends.
	Timeout time.Duration
}

// Config defines transport/session defaults.
type Config struct {
	Address        string
	ConnectTimeout time.Duration
	// ReadTimeout and WriteTimeout apply per frame; zero disables the deadline.
	// Generation can take minutes before the first frame, so reads default to none.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Readiness    ReadinessConfig
}

func DefaultConfig() Config {
	return Config{
		Address:        DefaultAddress,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    0,
		WriteTimeout:   15 * time.Second,
		Readiness: ReadinessConfig{
			Interval:       500 * time.Millisecond,
			Multiplier:     1.0,
			MaxDelay:       0,
			AttemptTimeout: 2 * time.Second,
			Timeout:        0,
		},
	}
}

// WithDefaults fills zero-valued required fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.Readiness.Interval <= 0 {
		c.Readiness.Interval = d.Readiness.Interval
	}
	if c.Readiness.AttemptTimeout <= 0 {
		c.Readiness.AttemptTimeout = d.Readiness.AttemptTimeout
	}
	if c.Readiness.Multiplier < 1.0 {
		c.Readiness.Multiplier = 1.0
	}
	return c
}
