package imagegen

import (
	"bytes"
	"image/png"
	"testing"
)

func TestEncodePNG(t *testing.T) {
	img := Image{
		RGBA: []byte{
			255, 0, 0, 255, 0, 255, 0, 255,
			0, 0, 255, 255, 10, 20, 30, 128,
		},
		Size: Size{Width: 2, Height: 2},
	}
	var buf bytes.Buffer
	if err := img.EncodePNG(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds=%v", b)
	}
	r, g, _, a := decoded.At(1, 0).RGBA()
	if r != 0 || g != 0xffff || a != 0xffff {
		t.Fatalf("pixel(1,0)=%d,%d,%d", r, g, a)
	}
}

func TestEncodePNGRejectsShortFrame(t *testing.T) {
	img := Image{RGBA: make([]byte, 7), Size: Size{Width: 2, Height: 1}}
	if err := img.EncodePNG(&bytes.Buffer{}); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}
