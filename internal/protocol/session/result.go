package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danmuck/kiroshi/internal/protocol"
	"github.com/danmuck/kiroshi/internal/protocol/frame"
)

var ErrPayloadMismatch = fmt.Errorf("%w: payload size mismatch", protocol.ErrSerializationFailed)

// Box is a wire detection box in (left, top, right, bottom) order.
type Box [4]float32

func (b *Box) UnmarshalJSON(data []byte) error {
	var raw []float32
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != len(b) {
		return fmt.Errorf("detection box has %d coordinates, want %d", len(raw), len(b))
	}
	copy(b[:], raw)
	return nil
}

// Result is the JSON metadata frame that precedes every payload frame.
type Result struct {
	Width    uint32  `json:"width"`
	Height   uint32  `json:"height"`
	Progress float32 `json:"progress"`
	IsFinal  bool    `json:"is_final"`
	Faces    []Box   `json:"faces"`
	Hands    []Box   `json:"hands"`
}

func (r Result) Validate() error {
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("%w: result size %dx%d", protocol.ErrSerializationFailed, r.Width, r.Height)
	}
	return nil
}

// PayloadLen is the RGBA byte count the metadata declares.
func (r Result) PayloadLen() uint64 {
	return uint64(r.Width) * uint64(r.Height) * 4
}

// ReadResult reads one metadata frame followed by exactly one payload frame.
// The payload aliases the reader's buffer; callers must copy before the
// next read.
func ReadResult(r *frame.Reader) (Result, []byte, error) {
	var res Result
	if err := r.ReadJSON(&res); err != nil {
		return Result{}, nil, err
	}
	if res.Faces == nil {
		res.Faces = []Box{}
	}
	if res.Hands == nil {
		res.Hands = []Box{}
	}
	if err := res.Validate(); err != nil {
		return Result{}, nil, err
	}
	payload, err := r.Next()
	if err != nil {
		return Result{}, nil, err
	}
	if uint64(len(payload)) != res.PayloadLen() {
		return Result{}, nil, fmt.Errorf("%w: got %d bytes, metadata declares %dx%dx4=%d",
			ErrPayloadMismatch, len(payload), res.Width, res.Height, res.PayloadLen())
	}
	return res, payload, nil
}

// IsTruncated reports whether err came from the peer closing mid-frame.
func IsTruncated(err error) bool {
	return errors.Is(err, frame.ErrShortPrefix) || errors.Is(err, frame.ErrShortPayload)
}
