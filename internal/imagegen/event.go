package imagegen

import (
	"fmt"

	"github.com/danmuck/kiroshi/internal/protocol/session"
)

// Image is one RGBA frame produced by the backend. RGBA is owned by the
// receiver; every event carries its own buffer.
type Image struct {
	RGBA       []byte
	Size       Size
	Definition Definition
}

func (i Image) String() string {
	return fmt.Sprintf("Image{%s, %d pixels}", i.Size, len(i.RGBA)/4)
}

// Rectangle is an axis-aligned box in pixel space.
type Rectangle struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

// RectangleFromWire converts (left, top, right, bottom) without clamping.
func RectangleFromWire(box session.Box) Rectangle {
	left, top, right, bottom := box[0], box[1], box[2], box[3]
	return Rectangle{
		X:      left,
		Y:      top,
		Width:  right - left,
		Height: bottom - top,
	}
}

func rectanglesFromWire(boxes []session.Box) []Rectangle {
	out := make([]Rectangle, 0, len(boxes))
	for _, box := range boxes {
		out = append(out, RectangleFromWire(box))
	}
	return out
}

// Event is either Sampling or Finished.
type Event interface {
	Frame() Image
	Final() bool
	event()
}

// Sampling is an intermediate preview; Progress is in [0, 1).
type Sampling struct {
	Image    Image
	Progress float32
}

func (e Sampling) Frame() Image { return e.Image }
func (Sampling) Final() bool    { return false }
func (Sampling) event()         {}

// Finished is the terminal result with detected regions.
type Finished struct {
	Image Image
	Faces []Rectangle
	Hands []Rectangle
}

func (e Finished) Frame() Image { return e.Image }
func (Finished) Final() bool    { return true }
func (Finished) event()         {}

// Result carries either an Event or the error that ended the stream.
type Result struct {
	Event Event
	Err   error
}
