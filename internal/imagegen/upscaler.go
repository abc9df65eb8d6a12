package imagegen

import (
	"fmt"
	"strings"

	"github.com/danmuck/kiroshi/internal/protocol/session"
)

const (
	MinTileSize        = 100
	MaxTileSize        = 300
	MaxTilePadding     = 100
	DefaultTileSize    = 192
	DefaultTilePadding = 24
)

type UpscalerModel int

const (
	RealEsrganX2 UpscalerModel = iota
	UltrasharpX4
)

var AllUpscalerModels = []UpscalerModel{RealEsrganX2, UltrasharpX4}

var upscalerTokens = map[UpscalerModel]string{
	RealEsrganX2: "2x-real_esrgan",
	UltrasharpX4: "4x-ultrasharp",
}

var upscalerNames = map[UpscalerModel]string{
	RealEsrganX2: "RealESRGAN (2x)",
	UltrasharpX4: "UltraSharp (4x)",
}

func (m UpscalerModel) String() string {
	if name, ok := upscalerNames[m]; ok {
		return name
	}
	return fmt.Sprintf("UpscalerModel(%d)", int(m))
}

func (m UpscalerModel) Token() (string, error) {
	token, ok := upscalerTokens[m]
	if !ok {
		return "", fmt.Errorf("%w: upscaler %d", ErrUnknownToken, int(m))
	}
	return token, nil
}

func ParseUpscalerToken(token string) (UpscalerModel, error) {
	token = strings.TrimSpace(token)
	for _, m := range AllUpscalerModels {
		if upscalerTokens[m] == token {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: upscaler %q", ErrUnknownToken, token)
}

func (m UpscalerModel) MarshalText() ([]byte, error) {
	token, err := m.Token()
	if err != nil {
		return nil, err
	}
	return []byte(token), nil
}

func (m *UpscalerModel) UnmarshalText(text []byte) error {
	parsed, err := ParseUpscalerToken(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Upscaler runs a tiled super-resolution pass over the finished image.
type Upscaler struct {
	Model       UpscalerModel
	TileSize    uint32
	TilePadding uint32
}

func DefaultUpscaler() Upscaler {
	return Upscaler{Model: UltrasharpX4, TileSize: DefaultTileSize, TilePadding: DefaultTilePadding}
}

func (u Upscaler) Validate() error {
	if _, err := u.Model.Token(); err != nil {
		return err
	}
	if u.TileSize < MinTileSize || u.TileSize > MaxTileSize {
		return fmt.Errorf("tile size %d outside [%d,%d]", u.TileSize, MinTileSize, MaxTileSize)
	}
	if u.TilePadding > MaxTilePadding {
		return fmt.Errorf("tile padding %d > %d", u.TilePadding, MaxTilePadding)
	}
	return nil
}

func (u Upscaler) wire() *session.Upscaler {
	token, _ := u.Model.Token()
	return &session.Upscaler{Model: token, TileSize: u.TileSize, TilePadding: u.TilePadding}
}

// Inpaint repaints Region after sampling. Empty prompts reuse the
// definition's prompts.
type Inpaint struct {
	Region         Rectangle
	Prompt         string
	NegativePrompt string
	Strength       uint32
	Padding        uint32
}

func (i Inpaint) Validate() error {
	if i.Region.Width <= 0 || i.Region.Height <= 0 {
		return fmt.Errorf("inpaint region %vx%v", i.Region.Width, i.Region.Height)
	}
	if i.Strength > MaxDetailStrength {
		return fmt.Errorf("inpaint strength %d > %d", i.Strength, MaxDetailStrength)
	}
	if i.Padding > MaxDetailPadding {
		return fmt.Errorf("inpaint padding %d > %d", i.Padding, MaxDetailPadding)
	}
	return nil
}

func (i Inpaint) wire() session.Inpaint {
	out := session.Inpaint{
		Region:   session.Region{X: i.Region.X, Y: i.Region.Y, Width: i.Region.Width, Height: i.Region.Height},
		Strength: i.Strength,
		Padding:  i.Padding,
	}
	if i.Prompt != "" {
		p := i.Prompt
		out.Prompt = &p
	}
	if i.NegativePrompt != "" {
		n := i.NegativePrompt
		out.NegativePrompt = &n
	}
	return out
}
