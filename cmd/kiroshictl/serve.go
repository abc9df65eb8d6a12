package main

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"github.com/danmuck/kiroshi/internal/backend"
	logs "github.com/danmuck/kiroshi/internal/logging"
	"github.com/danmuck/kiroshi/internal/status"
)

func runServe(args []string, out io.Writer) error {
	var configPath string
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addConfigFlag(fs, &configPath)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return a.serve(ctx)
}

// serve runs the status server while the backend launches, so /ready
// reports each lifecycle state. It returns when ctx ends, the status
// server fails, or the backend fails to start.
func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	opts := status.Options{
		ModelsDir:   a.cfg.Backend.ModelsDir,
		CorsOrigins: a.cfg.Status.CorsOrigins,
	}
	if store != nil {
		opts.History = store
	}

	var started <-chan backend.StartResult
	sup := a.newSupervisor()
	if sup != nil {
		opts.Backend = sup
	}

	var serving chan error
	if a.cfg.Status.Enabled {
		serving = make(chan error, 1)
		srv := status.New("kiroshi", a.cfg.Status.Addr, opts)
		go func() { serving <- srv.Serve(ctx) }()
	}
	if sup != nil {
		started = sup.StartAsync(ctx)
	}

	var handle *backend.Handle
	defer func() {
		if handle != nil {
			handle.Release()
		}
	}()

	var runErr error
wait:
	for {
		select {
		case res := <-started:
			started = nil
			if res.Err != nil {
				if ctx.Err() != nil {
					break wait
				}
				logs.Errorf("serve.backend err=%v", res.Err)
				runErr = res.Err
				break wait
			}
			handle = res.Handle
			logs.Infof("serve.ready container=%s", handle.ID())
		case err := <-serving:
			serving = nil
			if err != nil {
				logs.Errorf("serve.status err=%v", err)
			}
			runErr = err
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	cancel()
	if started != nil {
		if res := <-started; res.Handle != nil {
			handle = res.Handle
		}
	}
	if serving != nil {
		if err := <-serving; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
