package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	logs "github.com/danmuck/kiroshi/internal/logging"
	"github.com/danmuck/kiroshi/internal/tools"
)

const (
	DefaultBinary              = "docker"
	DefaultImage               = "ghcr.io/hecrj/kiroshi/server:latest"
	DefaultContainerModelsPath = "/models"
	DefaultGPUs                = "all"
)

// CreateSpec describes the backend container to create.
type CreateSpec struct {
	Image               string
	ModelsDir           string
	ContainerModelsPath string
	Port                int
	// GPUs is passed to --gpus; empty omits the flag.
	GPUs string
}

func (s CreateSpec) args() []string {
	args := []string{"create", "-t", "--rm"}
	if s.GPUs != "" {
		args = append(args, "--gpus", s.GPUs)
	}
	port := strconv.Itoa(s.Port)
	args = append(args, "-p", port+":"+port)
	if s.ModelsDir != "" {
		target := s.ContainerModelsPath
		if target == "" {
			target = DefaultContainerModelsPath
		}
		args = append(args, "-v", s.ModelsDir+":"+target)
	}
	return append(args, s.Image)
}

// Runtime drives the container lifecycle. FollowLogs and Stop are
// best-effort and never block on the container. Create may return a
// non-empty id together with an error when the container exists but the
// command failed.
type Runtime interface {
	Create(ctx context.Context, spec CreateSpec) (string, error)
	Start(ctx context.Context, id string) error
	FollowLogs(id string)
	Stop(id string)
}

// DockerRuntime runs lifecycle commands through the docker CLI.
type DockerRuntime struct {
	Binary string
	Runner tools.CommandRunner
}

func NewDockerRuntime(binary string) *DockerRuntime {
	return &DockerRuntime{Binary: binary, Runner: tools.ExecRunner{}}
}

func (d *DockerRuntime) binary() string {
	if d.Binary == "" {
		return DefaultBinary
	}
	return d.Binary
}

// Create runs `create` and returns the container id printed on the first
// stdout line. The id is also returned when create exits non-zero after
// printing it.
func (d *DockerRuntime) Create(ctx context.Context, spec CreateSpec) (string, error) {
	args := spec.args()
	logs.Debugf("backend.create cmd=%s %s", d.binary(), strings.Join(args, " "))
	id, code, err := d.Runner.FirstLine(ctx, d.binary(), args...)
	if id == "" {
		return "", fmt.Errorf("%w: %s create printed no container id (exit=%d): %v", ErrBackendUnavailable, d.binary(), code, err)
	}
	if err != nil {
		// the container may exist even though create failed; the caller stops it
		return id, fmt.Errorf("%w: create exit=%d: %w", ErrBackendProcessFailed, code, err)
	}
	return id, nil
}

func (d *DockerRuntime) Start(ctx context.Context, id string) error {
	_, stderr, code, err := d.Runner.Run(ctx, d.binary(), "start", id)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		return fmt.Errorf("%w: start %s exit=%d stderr=%q: %w", ErrBackendProcessFailed, id, code, msg, err)
	}
	return nil
}

// FollowLogs forwards container output into the process log.
func (d *DockerRuntime) FollowLogs(id string) {
	err := d.Runner.Spawn(d.binary(), []string{"logs", "-f", id},
		logs.Writer(zerolog.InfoLevel, "backend"),
		logs.Writer(zerolog.WarnLevel, "backend"))
	if err != nil {
		logs.Debugf("backend.logs id=%s err=%v", id, err)
	}
}

func (d *DockerRuntime) Stop(id string) {
	if err := d.Runner.Spawn(d.binary(), []string{"stop", id}, nil, nil); err != nil {
		logs.Warnf("backend.stop id=%s err=%v", id, err)
	}
}
