package imagegen

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownToken = errors.New("imagegen: unknown wire token")

type Sampler int

const (
	EulerAncestral Sampler = iota
	DPMSDEKarras
	DPM2MKarras
	DPM2MSDEKarras
)

// AllSamplers lists every sampler in display order.
var AllSamplers = []Sampler{EulerAncestral, DPMSDEKarras, DPM2MKarras, DPM2MSDEKarras}

var samplerTokens = map[Sampler]string{
	EulerAncestral: "euler_a",
	DPMSDEKarras:   "dpm++_sde_karras",
	DPM2MKarras:    "dpm++_2m_karras",
	DPM2MSDEKarras: "dpm++_2m_sde_karras",
}

var samplerNames = map[Sampler]string{
	EulerAncestral: "Euler a",
	DPMSDEKarras:   "DPM++ SDE Karras",
	DPM2MKarras:    "DPM++ 2M Karras",
	DPM2MSDEKarras: "DPM++ 2M SDE Karras",
}

func (s Sampler) String() string {
	if name, ok := samplerNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Sampler(%d)", int(s))
}

// Token returns the wire token, or an error for values outside the enum.
func (s Sampler) Token() (string, error) {
	token, ok := samplerTokens[s]
	if !ok {
		return "", fmt.Errorf("%w: sampler %d", ErrUnknownToken, int(s))
	}
	return token, nil
}

func ParseSamplerToken(token string) (Sampler, error) {
	token = strings.TrimSpace(token)
	for _, s := range AllSamplers {
		if samplerTokens[s] == token {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: sampler %q", ErrUnknownToken, token)
}

func (s Sampler) MarshalText() ([]byte, error) {
	token, err := s.Token()
	if err != nil {
		return nil, err
	}
	return []byte(token), nil
}

func (s *Sampler) UnmarshalText(text []byte) error {
	parsed, err := ParseSamplerToken(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
