package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/danmuck/kiroshi/internal/backend"
)

func runPing(args []string, out io.Writer) error {
	var (
		configPath string
		timeout    time.Duration
	)
	fs := pflag.NewFlagSet("ping", pflag.ContinueOnError)
	addConfigFlag(fs, &configPath)
	fs.DurationVar(&timeout, "timeout", 2*time.Second, "ping timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := backend.Ping(ctx, a.connector); err != nil {
		return fmt.Errorf("%w: %s: %w", backend.ErrBackendUnavailable, a.session.Address, err)
	}
	fmt.Fprintf(out, "pong from %s in %s\n", a.session.Address, time.Since(start).Round(time.Millisecond))
	return nil
}
