package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/danmuck/kiroshi/internal/backend"
	"github.com/danmuck/kiroshi/internal/catalog"
	"github.com/danmuck/kiroshi/internal/config"
	"github.com/danmuck/kiroshi/internal/history"
	"github.com/danmuck/kiroshi/internal/imagegen"
	logs "github.com/danmuck/kiroshi/internal/logging"
	"github.com/danmuck/kiroshi/internal/observability"
	"github.com/danmuck/kiroshi/internal/protocol/session"
	"github.com/danmuck/kiroshi/internal/transport"
)

const defaultConfigPath = "kiroshi.toml"

// app is the wiring shared by every command.
type app struct {
	cfg       config.Config
	session   session.Config
	connector transport.Connector
	runtime   backend.Runtime
	client    *imagegen.Client
	settings  *catalog.Settings
}

func addConfigFlag(fs *pflag.FlagSet, path *string) {
	fs.StringVarP(path, "config", "c", "", "config file (default: ./"+defaultConfigPath+" when present)")
}

// loadConfig reads path; with no path the default file is optional.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(defaultConfigPath)
}

func newApp(path string) (*app, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	logs.ConfigureRuntimeWith(cfg.ApplyLogging)
	observability.RegisterMetrics()

	settings, err := catalog.LoadSettings(cfg.Backend.SettingsPath)
	if err != nil {
		return nil, err
	}
	sc := cfg.SessionConfig()
	connector := transport.NewDialer(sc)
	client := imagegen.NewClient(connector, sc)
	client.SetMaxFrameBytes(cfg.Session.MaxFrameBytes)
	return &app{
		cfg:       cfg,
		session:   sc,
		connector: connector,
		runtime:   backend.NewDockerRuntime(cfg.Backend.Binary),
		client:    client,
		settings:  settings,
	}, nil
}

// newSupervisor returns nil for an unmanaged backend.
func (a *app) newSupervisor() *backend.Supervisor {
	if !a.cfg.Backend.Managed {
		logs.Infof("backend.external address=%s", a.session.Address)
		return nil
	}
	return backend.NewSupervisor(a.cfg.BackendConfig(), a.runtime, a.connector)
}

// startBackend launches the managed backend and blocks until it is ready.
// For an unmanaged backend it returns a nil handle.
func (a *app) startBackend(ctx context.Context) (*backend.Handle, error) {
	sup := a.newSupervisor()
	if sup == nil {
		return nil, nil
	}
	return sup.Start(ctx)
}

func (a *app) openHistory(ctx context.Context) (*history.Store, error) {
	if !a.cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(ctx, a.cfg.History.Path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	return nil
}

var errHelp = errors.New("help requested")
