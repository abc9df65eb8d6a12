package config

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/kiroshi/internal/backend"
	logs "github.com/danmuck/kiroshi/internal/logging"
	"github.com/danmuck/kiroshi/internal/protocol/session"
)

type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Session   SessionConfig   `toml:"session"`
	Readiness ReadinessConfig `toml:"readiness"`
	Status    StatusConfig    `toml:"status"`
	History   HistoryConfig   `toml:"history"`
	Log       LogConfig       `toml:"log"`
}

// BackendConfig describes the supervised container. With Managed false the
// client talks to an already running backend at session.address.
type BackendConfig struct {
	Managed             bool   `toml:"managed"`
	Binary              string `toml:"binary"`
	Image               string `toml:"image"`
	ModelsDir           string `toml:"models_dir"`
	ContainerModelsPath string `toml:"container_models_path"`
	Port                int    `toml:"port"`
	GPUs                string `toml:"gpus"`
	SettingsPath        string `toml:"settings_path"`
}

type SessionConfig struct {
	Address        string        `toml:"address"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	MaxFrameBytes  int64         `toml:"max_frame_bytes"`
}

type ReadinessConfig struct {
	Interval       time.Duration `toml:"interval"`
	Multiplier     float64       `toml:"multiplier"`
	MaxDelay       time.Duration `toml:"max_delay"`
	AttemptTimeout time.Duration `toml:"attempt_timeout"`
	Timeout        time.Duration `toml:"timeout"`
}

type StatusConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
}

func Default() Config {
	s := session.DefaultConfig()
	return Config{
		Backend: BackendConfig{
			Managed:             true,
			Binary:              backend.DefaultBinary,
			Image:               backend.DefaultImage,
			ModelsDir:           "data/models",
			ContainerModelsPath: backend.DefaultContainerModelsPath,
			Port:                session.DefaultPort,
			GPUs:                backend.DefaultGPUs,
			SettingsPath:        "data/models.toml",
		},
		Session: SessionConfig{
			Address:        s.Address,
			ConnectTimeout: s.ConnectTimeout,
			ReadTimeout:    s.ReadTimeout,
			WriteTimeout:   s.WriteTimeout,
			MaxFrameBytes:  1 << 30,
		},
		Readiness: ReadinessConfig{
			Interval:       s.Readiness.Interval,
			Multiplier:     s.Readiness.Multiplier,
			MaxDelay:       s.Readiness.MaxDelay,
			AttemptTimeout: s.Readiness.AttemptTimeout,
			Timeout:        s.Readiness.Timeout,
		},
		Status: StatusConfig{
			Enabled:     true,
			Addr:        "127.0.0.1:9150",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "data/history.db",
		},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
	}
}

// Load reads path over Default. Keys absent from the file keep their
// default; unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

func Parse(data string) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	// a published port without an explicit address targets the local container
	if meta.IsDefined("backend", "port") && !meta.IsDefined("session", "address") {
		cfg.Session.Address = net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Backend.Port))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Backend.Managed {
		if strings.TrimSpace(c.Backend.Binary) == "" {
			return fmt.Errorf("backend.binary is required when managed")
		}
		if strings.TrimSpace(c.Backend.Image) == "" {
			return fmt.Errorf("backend.image is required when managed")
		}
	}
	if c.Backend.Port <= 0 || c.Backend.Port > 65535 {
		return fmt.Errorf("backend.port %d out of range", c.Backend.Port)
	}
	if strings.TrimSpace(c.Session.Address) == "" {
		return fmt.Errorf("session.address is required")
	}
	if c.Session.ConnectTimeout < 0 || c.Session.ReadTimeout < 0 || c.Session.WriteTimeout < 0 {
		return fmt.Errorf("session timeouts must not be negative")
	}
	if c.Session.MaxFrameBytes <= 0 {
		return fmt.Errorf("session.max_frame_bytes must be positive")
	}
	if c.Readiness.Interval <= 0 {
		return fmt.Errorf("readiness.interval must be positive")
	}
	if c.Readiness.Multiplier < 1.0 {
		return fmt.Errorf("readiness.multiplier must be >= 1.0")
	}
	if c.Readiness.Timeout < 0 || c.Readiness.MaxDelay < 0 || c.Readiness.AttemptTimeout < 0 {
		return fmt.Errorf("readiness durations must not be negative")
	}
	if c.Status.Enabled && strings.TrimSpace(c.Status.Addr) == "" {
		return fmt.Errorf("status.addr is required when enabled")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path is required when enabled")
	}
	if _, ok := logs.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("log.level %q is not a level", c.Log.Level)
	}
	return nil
}

func (c Config) SessionConfig() session.Config {
	return session.Config{
		Address:        c.Session.Address,
		ConnectTimeout: c.Session.ConnectTimeout,
		ReadTimeout:    c.Session.ReadTimeout,
		WriteTimeout:   c.Session.WriteTimeout,
		Readiness: session.ReadinessConfig{
			Interval:       c.Readiness.Interval,
			Multiplier:     c.Readiness.Multiplier,
			MaxDelay:       c.Readiness.MaxDelay,
			AttemptTimeout: c.Readiness.AttemptTimeout,
			Timeout:        c.Readiness.Timeout,
		},
	}.WithDefaults()
}

func (c Config) BackendConfig() backend.Config {
	return backend.Config{
		Spec: backend.CreateSpec{
			Image:               c.Backend.Image,
			ModelsDir:           c.Backend.ModelsDir,
			ContainerModelsPath: c.Backend.ContainerModelsPath,
			Port:                c.Backend.Port,
			GPUs:                c.Backend.GPUs,
		},
		Readiness: c.SessionConfig().Readiness,
	}
}

// ApplyLogging maps the [log] section onto the runtime logging profile.
// no_color only forces colour off; it never forces it on for a pipe.
func (c Config) ApplyLogging(cfg *logs.Config) {
	if level, ok := logs.ParseLevel(c.Log.Level); ok {
		cfg.Level = level
	}
	cfg.Timestamp = c.Log.Timestamp
	cfg.NoColor = cfg.NoColor || c.Log.NoColor
}
