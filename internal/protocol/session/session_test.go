package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/kiroshi/internal/protocol"
	"github.com/danmuck/kiroshi/internal/protocol/frame"
	"github.com/danmuck/kiroshi/internal/testutil/testlog"
)

func validRequest() GenerateRequest {
	return GenerateRequest{
		Task:           TaskGenerateImage,
		Model:          "dreamshaper",
		Prompt:         "a lighthouse",
		NegativePrompt: "blurry",
		Size:           Size{Width: 512, Height: 768},
		Quality:        "high",
		Sampler:        "euler_a",
		Steps:          30,
		Seed:           18446744073709551615,
	}
}

func TestWriteGenerateShape(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	if err := WriteGenerate(&buf, validRequest()); err != nil {
		t.Fatalf("write generate: %v", err)
	}
	payload, err := frame.NewReader(&buf, frame.DefaultLimits()).Next()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got["task"]) != `"generate_image"` {
		t.Fatalf("unexpected task: %s", got["task"])
	}
	if string(got["seed"]) != "18446744073709551615" {
		t.Fatalf("seed must stay unsigned: %s", got["seed"])
	}
	if string(got["loras"]) != "[]" {
		t.Fatalf("loras must encode as empty list: %s", got["loras"])
	}
	if string(got["size"]) != `{"width":512,"height":768}` {
		t.Fatalf("unexpected size: %s", got["size"])
	}
	for _, absent := range []string{"face_detail", "hand_detail", "preview_after", "upscaler", "inpaints"} {
		if _, ok := got[absent]; ok {
			t.Fatalf("expected %s omitted", absent)
		}
	}
}

func TestWriteGenerateUpscalerAndInpaints(t *testing.T) {
	testlog.Start(t)

	req := validRequest()
	req.Upscaler = &Upscaler{Model: "4x-ultrasharp", TileSize: 192, TilePadding: 24}
	prompt := "a red door"
	req.Inpaints = []Inpaint{{Region: Region{X: 1, Y: 2, Width: 30, Height: 40}, Prompt: &prompt, Strength: 50, Padding: 16}}

	var buf bytes.Buffer
	if err := WriteGenerate(&buf, req); err != nil {
		t.Fatalf("write generate: %v", err)
	}
	payload, err := frame.NewReader(&buf, frame.DefaultLimits()).Next()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got["upscaler"]) != `{"model":"4x-ultrasharp","tile_size":192,"tile_padding":24}` {
		t.Fatalf("unexpected upscaler: %s", got["upscaler"])
	}
	want := `[{"region":{"x":1,"y":2,"width":30,"height":40},"prompt":"a red door","negative_prompt":null,"strength":50,"padding":16}]`
	if string(got["inpaints"]) != want {
		t.Fatalf("unexpected inpaints: %s", got["inpaints"])
	}

	req.Inpaints[0].Region.Width = 0
	if err := WriteGenerate(&bytes.Buffer{}, req); !errors.Is(err, protocol.ErrSerializationFailed) {
		t.Fatalf("expected ErrSerializationFailed for empty region, got %v", err)
	}
}

func TestWriteGenerateRejectsInvalid(t *testing.T) {
	testlog.Start(t)

	req := validRequest()
	req.Steps = 0
	if err := WriteGenerate(&bytes.Buffer{}, req); !errors.Is(err, protocol.ErrSerializationFailed) {
		t.Fatalf("expected ErrSerializationFailed, got %v", err)
	}
	req = validRequest()
	over := float32(1.5)
	req.PreviewAfter = &over
	if err := WriteGenerate(&bytes.Buffer{}, req); err == nil {
		t.Fatalf("expected preview_after range error")
	}
}

func TestPingRoundTrip(t *testing.T) {
	testlog.Start(t)

	var req bytes.Buffer
	if err := WritePing(&req); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	payload, _ := frame.NewReader(&req, frame.DefaultLimits()).Next()
	if string(payload) != `{"task":"ping"}` {
		t.Fatalf("unexpected ping payload: %s", payload)
	}

	var resp bytes.Buffer
	_ = frame.WriteFrame(&resp, []byte("true"))
	ok, err := ReadPong(frame.NewReader(&resp, frame.DefaultLimits()))
	if err != nil || !ok {
		t.Fatalf("read pong: ok=%v err=%v", ok, err)
	}

	resp.Reset()
	_ = frame.WriteFrame(&resp, []byte(`{"pong":true}`))
	if _, err := ReadPong(frame.NewReader(&resp, frame.DefaultLimits())); !errors.Is(err, protocol.ErrSerializationFailed) {
		t.Fatalf("expected ErrSerializationFailed, got %v", err)
	}
}

func writeResult(t *testing.T, buf *bytes.Buffer, meta string, payloadLen int) {
	t.Helper()
	if err := frame.WriteFrame(buf, []byte(meta)); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if err := frame.WriteFrame(buf, make([]byte, payloadLen)); err != nil {
		t.Fatalf("write payload: %v", err)
	}
}

func TestReadResultDefaultsBoxes(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	writeResult(t, &buf, `{"width":2,"height":3,"progress":0.5,"is_final":false}`, 24)
	res, payload, err := ReadResult(frame.NewReader(&buf, frame.DefaultLimits()))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if len(payload) != 24 || res.Progress != 0.5 || res.IsFinal {
		t.Fatalf("unexpected result: %+v len=%d", res, len(payload))
	}
	if res.Faces == nil || res.Hands == nil || len(res.Faces) != 0 || len(res.Hands) != 0 {
		t.Fatalf("expected empty box lists: %+v", res)
	}
}

func TestReadResultBoxes(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	writeResult(t, &buf, `{"width":1,"height":1,"progress":1,"is_final":true,"faces":[[1,2,3,4]],"hands":[[5,6,7,8],[0,0,1,1]]}`, 4)
	res, _, err := ReadResult(frame.NewReader(&buf, frame.DefaultLimits()))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if len(res.Faces) != 1 || res.Faces[0] != (Box{1, 2, 3, 4}) {
		t.Fatalf("unexpected faces: %+v", res.Faces)
	}
	if len(res.Hands) != 2 || res.Hands[1] != (Box{0, 0, 1, 1}) {
		t.Fatalf("unexpected hands: %+v", res.Hands)
	}
}

func TestReadResultRejectsMalformedBox(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	writeResult(t, &buf, `{"width":1,"height":1,"progress":1,"is_final":true,"faces":[[1,2,3]]}`, 4)
	_, _, err := ReadResult(frame.NewReader(&buf, frame.DefaultLimits()))
	if !errors.Is(err, protocol.ErrSerializationFailed) {
		t.Fatalf("expected ErrSerializationFailed, got %v", err)
	}
}

func TestReadResultPayloadMismatch(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	writeResult(t, &buf, `{"width":2,"height":2,"progress":0.1,"is_final":false}`, 15)
	_, _, err := ReadResult(frame.NewReader(&buf, frame.DefaultLimits()))
	if !errors.Is(err, ErrPayloadMismatch) {
		t.Fatalf("expected ErrPayloadMismatch, got %v", err)
	}
}

func TestReadResultTruncated(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	_ = frame.WriteFrame(&buf, []byte(`{"width":2,"height":2,"progress":0.1,"is_final":false}`))
	_, _, err := ReadResult(frame.NewReader(&buf, frame.DefaultLimits()))
	if !IsTruncated(err) {
		t.Fatalf("expected truncation error, got %v", err)
	}
}

func TestNextPollDelay(t *testing.T) {
	cfg := DefaultConfig().Readiness
	for attempt := 1; attempt <= 5; attempt++ {
		if d := NextPollDelay(cfg, attempt); d != 500*time.Millisecond {
			t.Fatalf("attempt %d: expected fixed 500ms, got %v", attempt, d)
		}
	}

	cfg.Multiplier = 2
	cfg.MaxDelay = 1500 * time.Millisecond
	if d := NextPollDelay(cfg, 2); d != time.Second {
		t.Fatalf("expected 1s, got %v", d)
	}
	if d := NextPollDelay(cfg, 4); d != 1500*time.Millisecond {
		t.Fatalf("expected cap 1.5s, got %v", d)
	}
}
