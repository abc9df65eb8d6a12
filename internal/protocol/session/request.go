package session

import (
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/kiroshi/internal/protocol"
	"github.com/danmuck/kiroshi/internal/protocol/frame"
)

const (
	TaskPing          = "ping"
	TaskGenerateImage = "generate_image"
)

// PingRequest is the minimal liveness request.
type PingRequest struct {
	Task string `json:"task"`
}

// Size is the requested output size in pixels.
type Size struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Detail configures a face/hand refinement pass.
type Detail struct {
	Strength uint32  `json:"strength"`
	Padding  uint32  `json:"padding"`
	MaxArea  *uint32 `json:"max_area"`
}

// Lora is one auxiliary weight adjustment.
type Lora struct {
	File     string `json:"file"`
	Strength uint32 `json:"strength"`
}

// Upscaler selects the model the backend runs over the final image in
// tiles of TileSize pixels overlapping by TilePadding.
type Upscaler struct {
	Model       string `json:"model"`
	TileSize    uint32 `json:"tile_size"`
	TilePadding uint32 `json:"tile_padding"`
}

// Region is an inpaint area in output pixel space.
type Region struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Inpaint repaints one region. Nil prompts inherit the request's prompts.
type Inpaint struct {
	Region         Region  `json:"region"`
	Prompt         *string `json:"prompt"`
	NegativePrompt *string `json:"negative_prompt"`
	Strength       uint32  `json:"strength"`
	Padding        uint32  `json:"padding"`
}

// GenerateRequest is the generate_image task payload.
type GenerateRequest struct {
	Task           string    `json:"task"`
	Model          string    `json:"model"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negative_prompt"`
	Size           Size      `json:"size"`
	Quality        string    `json:"quality"`
	Sampler        string    `json:"sampler"`
	Steps          uint32    `json:"steps"`
	Seed           uint64    `json:"seed"`
	FaceDetail     *Detail   `json:"face_detail,omitempty"`
	HandDetail     *Detail   `json:"hand_detail,omitempty"`
	Loras          []Lora    `json:"loras"`
	Upscaler       *Upscaler `json:"upscaler,omitempty"`
	Inpaints       []Inpaint `json:"inpaints,omitempty"`
	PreviewAfter   *float32  `json:"preview_after,omitempty"`
}

func (r GenerateRequest) Validate() error {
	if r.Task != TaskGenerateImage {
		return fmt.Errorf("%w: generate request task %q", protocol.ErrSerializationFailed, r.Task)
	}
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("%w: generate request missing model", protocol.ErrSerializationFailed)
	}
	if r.Size.Width == 0 || r.Size.Height == 0 {
		return fmt.Errorf("%w: generate request size %dx%d", protocol.ErrSerializationFailed, r.Size.Width, r.Size.Height)
	}
	if r.Steps == 0 {
		return fmt.Errorf("%w: generate request missing steps", protocol.ErrSerializationFailed)
	}
	if r.Quality == "" || r.Sampler == "" {
		return fmt.Errorf("%w: generate request missing quality/sampler", protocol.ErrSerializationFailed)
	}
	if r.PreviewAfter != nil && (*r.PreviewAfter < 0 || *r.PreviewAfter > 1) {
		return fmt.Errorf("%w: preview_after %v outside [0,1]", protocol.ErrSerializationFailed, *r.PreviewAfter)
	}
	if r.Upscaler != nil && (r.Upscaler.Model == "" || r.Upscaler.TileSize == 0) {
		return fmt.Errorf("%w: upscaler missing model/tile_size", protocol.ErrSerializationFailed)
	}
	for i, inpaint := range r.Inpaints {
		if inpaint.Region.Width <= 0 || inpaint.Region.Height <= 0 {
			return fmt.Errorf("%w: inpaints[%d] region %vx%v", protocol.ErrSerializationFailed, i, inpaint.Region.Width, inpaint.Region.Height)
		}
	}
	return nil
}

func WritePing(w io.Writer) error {
	return frame.WriteJSON(w, PingRequest{Task: TaskPing})
}

// ReadPong reads the ping response; any JSON boolean counts as alive.
func ReadPong(r *frame.Reader) (bool, error) {
	var pong bool
	if err := r.ReadJSON(&pong); err != nil {
		return false, err
	}
	return pong, nil
}

func WriteGenerate(w io.Writer, req GenerateRequest) error {
	if req.Loras == nil {
		req.Loras = []Lora{}
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return frame.WriteJSON(w, req)
}
