package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/kiroshi/internal/history"
	"github.com/danmuck/kiroshi/internal/imagegen"
	"github.com/danmuck/kiroshi/internal/protocol/frame"
	"github.com/danmuck/kiroshi/internal/protocol/session"
	"github.com/danmuck/kiroshi/internal/testutil/testlog"
)

// writeConfig writes an unmanaged config pointing at addr.
func writeConfig(t *testing.T, dir, addr string) string {
	t.Helper()
	data := fmt.Sprintf(`[backend]
managed = false
models_dir = %q
settings_path = %q

[session]
address = %q

[status]
enabled = false

[history]
path = %q
`, filepath.Join(dir, "models"), filepath.Join(dir, "models.toml"), addr, filepath.Join(dir, "history.db"))
	path := filepath.Join(dir, "kiroshi.toml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// serveOne accepts one connection and hands the decoded first frame to fn.
func serveOne(t *testing.T, fn func(conn net.Conn, r *frame.Reader) error) (string, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		done <- fn(conn, frame.NewReader(conn, frame.DefaultLimits()))
	}()
	return ln.Addr().String(), done
}

func sendFrame(conn net.Conn, meta session.Result) error {
	if err := frame.WriteJSON(conn, meta); err != nil {
		return err
	}
	return frame.WriteFrame(conn, make([]byte, meta.PayloadLen()))
}

func TestGenerateWritesPNGAndHistory(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	var got session.GenerateRequest
	addr, served := serveOne(t, func(conn net.Conn, r *frame.Reader) error {
		if err := r.ReadJSON(&got); err != nil {
			return err
		}
		if err := sendFrame(conn, session.Result{Width: 2, Height: 2, Progress: 0.5}); err != nil {
			return err
		}
		return sendFrame(conn, session.Result{
			Width: 2, Height: 2, Progress: 1, IsFinal: true,
			Faces: []session.Box{{0, 0, 1, 1}},
		})
	})
	cfgPath := writeConfig(t, dir, addr)
	if err := os.WriteFile(filepath.Join(dir, "models.toml"), []byte("[anime]\nprompt_template = \"anime, {prompt}\"\n"), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	output := filepath.Join(dir, "out", "final.png")
	var out bytes.Buffer
	err := run([]string{"generate", "--config", cfgPath, "-m", "anime", "-p", "a cat",
		"--seed", "7", "--sampler", "dpm++_2m_karras", "--lora", "style.safetensors:150",
		"--upscaler", "2x-real_esrgan", "--tile-size", "256", "--inpaint", "10,20,64,32:80", "-o", output}, &out)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := <-served; err != nil {
		t.Fatalf("backend: %v", err)
	}

	if got.Task != session.TaskGenerateImage || got.Prompt != "anime, a cat" || got.Seed != 7 {
		t.Fatalf("request=%+v", got)
	}
	if got.Sampler != "dpm++_2m_karras" || len(got.Loras) != 1 || got.Loras[0].Strength != 150 {
		t.Fatalf("request sampler/loras=%+v", got)
	}
	if got.Upscaler == nil || *got.Upscaler != (session.Upscaler{Model: "2x-real_esrgan", TileSize: 256, TilePadding: 24}) {
		t.Fatalf("request upscaler=%+v", got.Upscaler)
	}
	if len(got.Inpaints) != 1 || got.Inpaints[0].Region != (session.Region{X: 10, Y: 20, Width: 64, Height: 32}) ||
		got.Inpaints[0].Strength != 80 || got.Inpaints[0].Prompt != nil {
		t.Fatalf("request inpaints=%+v", got.Inpaints)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("png not written: %v", err)
	}
	if !strings.Contains(out.String(), "sampling  50%") || !strings.Contains(out.String(), "faces=1") {
		t.Fatalf("output=%q", out.String())
	}

	store, err := history.Open(context.Background(), filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	entries, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != history.OutcomeFinished || entries[0].Faces != 1 {
		t.Fatalf("entries=%+v", entries)
	}
}

func TestGenerateRecordsFailure(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	addr, _ := serveOne(t, func(conn net.Conn, r *frame.Reader) error {
		var req session.GenerateRequest
		return r.ReadJSON(&req)
	})
	cfgPath := writeConfig(t, dir, addr)

	err := run([]string{"generate", "--config", cfgPath, "-m", "anime", "-p", "a cat", "--raw"}, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected error when the backend closes early")
	}

	store, err := history.Open(context.Background(), filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	entries, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != history.OutcomeError {
		t.Fatalf("entries=%+v", entries)
	}
}

func TestPing(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	addr, served := serveOne(t, func(conn net.Conn, r *frame.Reader) error {
		var req session.PingRequest
		if err := r.ReadJSON(&req); err != nil {
			return err
		}
		if req.Task != session.TaskPing {
			return fmt.Errorf("task=%q", req.Task)
		}
		return frame.WriteJSON(conn, true)
	})
	cfgPath := writeConfig(t, dir, addr)

	var out bytes.Buffer
	if err := run([]string{"ping", "--config", cfgPath}, &out); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := <-served; err != nil {
		t.Fatalf("backend: %v", err)
	}
	if !strings.Contains(out.String(), "pong from "+addr) {
		t.Fatalf("output=%q", out.String())
	}
}

func TestModelsJSON(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "127.0.0.1:1")
	if err := os.MkdirAll(filepath.Join(dir, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "models", "anime.safetensors"), []byte("w"), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}

	var out bytes.Buffer
	if err := run([]string{"models", "--config", cfgPath, "--json"}, &out); err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out.String(), `"name": "anime"`) {
		t.Fatalf("output=%s", out.String())
	}
}

func TestUsageErrors(t *testing.T) {
	testlog.Start(t)

	if err := run([]string{"bogus"}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Fatalf("err=%v want errUsage", err)
	}
	if err := run([]string{"generate", "-p", "x"}, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Fatalf("missing model err=%v", err)
	}
	if err := run([]string{"ping", "--help"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("help err=%v", err)
	}
}

func TestParseLora(t *testing.T) {
	l, err := parseLora("detail.safetensors")
	if err != nil || l.File != "detail.safetensors" || l.Strength != 100 {
		t.Fatalf("lora=%+v err=%v", l, err)
	}
	if _, err := parseLora("x:600"); err == nil {
		t.Fatalf("expected strength bound error")
	}
	if _, err := parseLora("x:abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestGenerateFlagsRejectBadUpscaler(t *testing.T) {
	f := generateFlags{model: "m", width: 512, height: 512, steps: 30, quality: "high", sampler: "euler_a",
		upscaler: "8x-magic", tileSize: imagegen.DefaultTileSize}
	if _, err := f.definition(); !errors.Is(err, imagegen.ErrUnknownToken) {
		t.Fatalf("err=%v want ErrUnknownToken", err)
	}
	f.upscaler = "4x-ultrasharp"
	f.tileSize = 50
	if _, err := f.definition(); !errors.Is(err, imagegen.ErrInvalidDefinition) {
		t.Fatalf("err=%v want ErrInvalidDefinition", err)
	}
}

func TestParseInpaint(t *testing.T) {
	in, err := parseInpaint("1.5, 2, 30, 40")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.Region != (imagegen.Rectangle{X: 1.5, Y: 2, Width: 30, Height: 40}) || in.Strength != imagegen.DefaultDetailStrength {
		t.Fatalf("inpaint=%+v", in)
	}
	for _, raw := range []string{"1,2,3", "1,2,0,4", "a,b,c,d", "1,2,3,4:101"} {
		if _, err := parseInpaint(raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}
