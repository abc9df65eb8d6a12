package imagegen

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/danmuck/kiroshi/internal/protocol/session"
)

var ErrInvalidDefinition = errors.New("imagegen: invalid definition")

const (
	DefaultSteps Steps = 30

	MaxDetailStrength = 100
	MaxDetailPadding  = 100
	MaxLoraStrength   = 500

	DefaultDetailStrength = 50
	DefaultDetailPadding  = 16
	DefaultLoraStrength   = 100
)

// DefaultSize is the portrait size the backend is tuned for.
var DefaultSize = Size{Width: 512, Height: 768}

type Size struct {
	Width  uint32
	Height uint32
}

func (s Size) Area() uint64 {
	return uint64(s.Width) * uint64(s.Height)
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

type Seed uint64

func RandomSeed() Seed {
	return Seed(rand.Uint64())
}

type Steps uint32

// Detail configures a face or hand refinement pass. MaxArea 0 means no limit.
type Detail struct {
	Strength uint32
	Padding  uint32
	MaxArea  uint32
}

func DefaultDetail() Detail {
	return Detail{Strength: DefaultDetailStrength, Padding: DefaultDetailPadding}
}

func (d Detail) Validate() error {
	if d.Strength > MaxDetailStrength {
		return fmt.Errorf("detail strength %d > %d", d.Strength, MaxDetailStrength)
	}
	if d.Padding > MaxDetailPadding {
		return fmt.Errorf("detail padding %d > %d", d.Padding, MaxDetailPadding)
	}
	return nil
}

func (d Detail) wire() *session.Detail {
	out := &session.Detail{Strength: d.Strength, Padding: d.Padding}
	if d.MaxArea > 0 {
		area := d.MaxArea
		out.MaxArea = &area
	}
	return out
}

// Lora is an auxiliary weight file applied at Strength percent.
type Lora struct {
	File     string
	Strength uint32
}

func (l Lora) Validate() error {
	if strings.TrimSpace(l.File) == "" {
		return fmt.Errorf("lora missing file")
	}
	if l.Strength > MaxLoraStrength {
		return fmt.Errorf("lora %s strength %d > %d", l.File, l.Strength, MaxLoraStrength)
	}
	return nil
}

// Definition describes one generation request. Treat it as a value: Generate
// takes its own copy, so later mutation by the caller is not observed.
type Definition struct {
	Model          string
	Prompt         string
	NegativePrompt string
	Size           Size
	Seed           Seed
	Steps          Steps
	Quality        Quality
	Sampler        Sampler
	FaceDetail     *Detail
	HandDetail     *Detail
	Loras          []Lora
	Upscaler       *Upscaler
	Inpaints       []Inpaint
}

// NewDefinition returns a definition carrying the backend defaults.
func NewDefinition(model, prompt string) Definition {
	return Definition{
		Model:   model,
		Prompt:  prompt,
		Size:    DefaultSize,
		Seed:    RandomSeed(),
		Steps:   DefaultSteps,
		Quality: High,
		Sampler: EulerAncestral,
	}
}

func (d Definition) Validate() error {
	if strings.TrimSpace(d.Model) == "" {
		return fmt.Errorf("%w: missing model", ErrInvalidDefinition)
	}
	if d.Size.Width == 0 || d.Size.Height == 0 {
		return fmt.Errorf("%w: size %s", ErrInvalidDefinition, d.Size)
	}
	if d.Steps == 0 {
		return fmt.Errorf("%w: steps must be > 0", ErrInvalidDefinition)
	}
	if _, err := d.Quality.Token(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if _, err := d.Sampler.Token(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if d.FaceDetail != nil {
		if err := d.FaceDetail.Validate(); err != nil {
			return fmt.Errorf("%w: face %w", ErrInvalidDefinition, err)
		}
	}
	if d.HandDetail != nil {
		if err := d.HandDetail.Validate(); err != nil {
			return fmt.Errorf("%w: hand %w", ErrInvalidDefinition, err)
		}
	}
	for i, lora := range d.Loras {
		if err := lora.Validate(); err != nil {
			return fmt.Errorf("%w: loras[%d]: %w", ErrInvalidDefinition, i, err)
		}
	}
	if d.Upscaler != nil {
		if err := d.Upscaler.Validate(); err != nil {
			return fmt.Errorf("%w: upscaler: %w", ErrInvalidDefinition, err)
		}
	}
	for i, inpaint := range d.Inpaints {
		if err := inpaint.Validate(); err != nil {
			return fmt.Errorf("%w: inpaints[%d]: %w", ErrInvalidDefinition, i, err)
		}
	}
	return nil
}

// Clone returns a deep copy so images never share mutable state with the caller.
func (d Definition) Clone() Definition {
	out := d
	if d.FaceDetail != nil {
		face := *d.FaceDetail
		out.FaceDetail = &face
	}
	if d.HandDetail != nil {
		hand := *d.HandDetail
		out.HandDetail = &hand
	}
	if d.Loras != nil {
		out.Loras = make([]Lora, len(d.Loras))
		copy(out.Loras, d.Loras)
	}
	if d.Upscaler != nil {
		up := *d.Upscaler
		out.Upscaler = &up
	}
	if d.Inpaints != nil {
		out.Inpaints = make([]Inpaint, len(d.Inpaints))
		copy(out.Inpaints, d.Inpaints)
	}
	return out
}

// Request builds the generate_image wire payload.
func (d Definition) Request(previewAfter *float32) (session.GenerateRequest, error) {
	if err := d.Validate(); err != nil {
		return session.GenerateRequest{}, err
	}
	if previewAfter != nil && (*previewAfter < 0 || *previewAfter > 1) {
		return session.GenerateRequest{}, fmt.Errorf("%w: preview_after %v outside [0,1]", ErrInvalidDefinition, *previewAfter)
	}
	quality, _ := d.Quality.Token()
	sampler, _ := d.Sampler.Token()

	req := session.GenerateRequest{
		Task:           session.TaskGenerateImage,
		Model:          d.Model,
		Prompt:         d.Prompt,
		NegativePrompt: d.NegativePrompt,
		Size:           session.Size{Width: d.Size.Width, Height: d.Size.Height},
		Quality:        quality,
		Sampler:        sampler,
		Steps:          uint32(d.Steps),
		Seed:           uint64(d.Seed),
		Loras:          make([]session.Lora, 0, len(d.Loras)),
	}
	if d.FaceDetail != nil {
		req.FaceDetail = d.FaceDetail.wire()
	}
	if d.HandDetail != nil {
		req.HandDetail = d.HandDetail.wire()
	}
	for _, lora := range d.Loras {
		req.Loras = append(req.Loras, session.Lora{File: lora.File, Strength: lora.Strength})
	}
	if d.Upscaler != nil {
		req.Upscaler = d.Upscaler.wire()
	}
	for _, inpaint := range d.Inpaints {
		req.Inpaints = append(req.Inpaints, inpaint.wire())
	}
	if previewAfter != nil {
		v := *previewAfter
		req.PreviewAfter = &v
	}
	return req, nil
}
