package imagegen

import (
	"fmt"
	"image"
	"image/png"
	"io"
)

// NRGBA views the frame as an image without copying. The backend emits
// straight (non-premultiplied) alpha.
func (i Image) NRGBA() (*image.NRGBA, error) {
	w, h := int(i.Size.Width), int(i.Size.Height)
	if want := i.Size.Area() * 4; uint64(len(i.RGBA)) != want {
		return nil, fmt.Errorf("imagegen: frame %s has %d bytes, want %d", i.Size, len(i.RGBA), want)
	}
	return &image.NRGBA{
		Pix:    i.RGBA,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}, nil
}

// EncodePNG writes the frame as a PNG.
func (i Image) EncodePNG(w io.Writer) error {
	img, err := i.NRGBA()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
