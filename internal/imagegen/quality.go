package imagegen

import (
	"fmt"
	"strings"
)

type Quality int

const (
	Low Quality = iota
	Normal
	High
	Ultra
	Insane
)

var AllQualities = []Quality{Low, Normal, High, Ultra, Insane}

var qualityNames = map[Quality]string{
	Low:    "Low",
	Normal: "Normal",
	High:   "High",
	Ultra:  "Ultra",
	Insane: "Insane",
}

func (q Quality) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Token is the lower-cased display name sent on the wire.
func (q Quality) Token() (string, error) {
	name, ok := qualityNames[q]
	if !ok {
		return "", fmt.Errorf("%w: quality %d", ErrUnknownToken, int(q))
	}
	return strings.ToLower(name), nil
}

// ScaleFactor is the backend's upscale multiplier for this tier.
func (q Quality) ScaleFactor() float32 {
	switch q {
	case Normal:
		return 1.25
	case High:
		return 1.5
	case Ultra:
		return 1.75
	case Insane:
		return 2.0
	default:
		return 1.0
	}
}

func ParseQualityName(raw string) (Quality, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, q := range AllQualities {
		if strings.ToLower(qualityNames[q]) == raw {
			return q, nil
		}
	}
	return 0, fmt.Errorf("%w: quality %q", ErrUnknownToken, raw)
}

func (q Quality) MarshalText() ([]byte, error) {
	token, err := q.Token()
	if err != nil {
		return nil, err
	}
	return []byte(token), nil
}

func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQualityName(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
