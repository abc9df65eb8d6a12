package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// CommandRunner abstracts shell command execution for runtime adapters.
type CommandRunner interface {
	// Run waits for the command and returns stdout, stderr and the exit code.
	Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error)
	// FirstLine returns the first stdout line and waits for the command to exit.
	// An empty first line (or none) is reported as ("", exit, nil).
	FirstLine(ctx context.Context, name string, args ...string) (string, int32, error)
	// Spawn starts the command without waiting for it. Nil writers discard.
	Spawn(name string, args []string, stdout, stderr io.Writer) error
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// tools command-runner implementation backed by os/exec.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), exitCode(err), err
}

func (r ExecRunner) FirstLine(ctx context.Context, name string, args ...string) (string, int32, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", 1, err
	}
	if err := cmd.Start(); err != nil {
		return "", exitCode(err), err
	}

	line := ""
	scanner := bufio.NewScanner(stdout)
	if scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
	}
	// drain so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, stdout)

	err = cmd.Wait()
	return line, exitCode(err), err
}

func (r ExecRunner) Spawn(name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	// reap in the background; the caller never waits
	go func() { _ = cmd.Wait() }()
	return nil
}

func exitCode(err error) int32 {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}
